package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RiskLevel buckets the risk score for policy decisions.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Risk scoring weights. These are hand-tuned and load-bearing: detection
// parity across runs depends on the literal values.
const (
	riskBaseScore = 50

	riskVolatilityHigh     = 15
	riskVolatilityModerate = 5

	riskSlippageHigh     = 20
	riskSlippageModerate = 10

	riskPerExtraHop = 10

	riskMarginHigh     = -15
	riskMarginModerate = -5

	riskDenylistedVenue = 10

	riskPerStablecoin = -5
	riskPerMajor      = -3
	riskPerUnknown    = 5

	riskHighThreshold = 70
	riskLowThreshold  = 30
)

// Factor thresholds, in percent.
var (
	volatilityHighPct     = decimal.NewFromInt(10)
	volatilityModeratePct = decimal.NewFromInt(5)

	slippageHighPct     = decimal.NewFromInt(1)
	slippageModeratePct = decimal.RequireFromString("0.5")

	marginHighPct     = decimal.NewFromInt(2)
	marginModeratePct = decimal.NewFromInt(1)
)

// RiskAssessment scores an opportunity's execution risk.
type RiskAssessment struct {
	Score      int // 0..100
	Level      RiskLevel
	Confidence int // 100 - score
	Factors    []string
}

// RiskInputs are the signals the scoring model consumes.
type RiskInputs struct {
	VolatilityPct   decimal.Decimal // worst recent volatility across the route's tokens
	SlippagePct     decimal.Decimal // aggregate expected slippage
	Hops            int
	NetMarginPct    decimal.Decimal
	DenylistedVenue bool
	Stablecoins     int // token counts by class along the path
	Majors          int
	Unknowns        int
}

// ScoreRisk applies the additive heuristic model: start at 50, adjust for
// volatility, slippage, route length, margin and token quality, clamp to
// [0,100]. Confidence is the complement of the score.
func ScoreRisk(in RiskInputs) RiskAssessment {
	score := riskBaseScore
	var factors []string

	switch {
	case in.VolatilityPct.GreaterThanOrEqual(volatilityHighPct):
		score += riskVolatilityHigh
		factors = append(factors, "high recent volatility")
	case in.VolatilityPct.GreaterThanOrEqual(volatilityModeratePct):
		score += riskVolatilityModerate
		factors = append(factors, "moderate recent volatility")
	}

	switch {
	case in.SlippagePct.GreaterThanOrEqual(slippageHighPct):
		score += riskSlippageHigh
		factors = append(factors, "high expected slippage")
	case in.SlippagePct.GreaterThanOrEqual(slippageModeratePct):
		score += riskSlippageModerate
		factors = append(factors, "moderate expected slippage")
	}

	if in.Hops > 2 {
		extra := in.Hops - 2
		score += riskPerExtraHop * extra
		factors = append(factors, fmt.Sprintf("%d leg route", in.Hops))
	}

	switch {
	case in.NetMarginPct.GreaterThanOrEqual(marginHighPct):
		score += riskMarginHigh
		factors = append(factors, "wide profit margin")
	case in.NetMarginPct.GreaterThanOrEqual(marginModeratePct):
		score += riskMarginModerate
		factors = append(factors, "comfortable profit margin")
	}

	if in.DenylistedVenue {
		score += riskDenylistedVenue
		factors = append(factors, "denylisted venue in route")
	}

	score += riskPerStablecoin * in.Stablecoins
	score += riskPerMajor * in.Majors
	score += riskPerUnknown * in.Unknowns
	if in.Unknowns > 0 {
		factors = append(factors, fmt.Sprintf("%d unrecognized token(s)", in.Unknowns))
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	level := RiskMedium
	switch {
	case score >= riskHighThreshold:
		level = RiskHigh
	case score <= riskLowThreshold:
		level = RiskLow
	}

	return RiskAssessment{
		Score:      score,
		Level:      level,
		Confidence: 100 - score,
		Factors:    factors,
	}
}
