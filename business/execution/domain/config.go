package domain

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/internal/apperror"
)

// GasStrategy selects how aggressively submissions bid for inclusion.
type GasStrategy string

const (
	GasStrategySafe     GasStrategy = "safe"
	GasStrategyStandard GasStrategy = "standard"
	GasStrategyFast     GasStrategy = "fast"
)

// BidMultiplier scales the market gas price into what this strategy
// actually plans to pay. Fast bids over market to win inclusion.
func (s GasStrategy) BidMultiplier() decimal.Decimal {
	switch s {
	case GasStrategySafe:
		return decimal.NewFromFloat(0.9)
	case GasStrategyFast:
		return decimal.NewFromFloat(1.25)
	default:
		return decimal.NewFromInt(1)
	}
}

// RiskTolerance bounds which opportunities auto-execution will take.
type RiskTolerance string

const (
	RiskToleranceLow    RiskTolerance = "low"
	RiskToleranceMedium RiskTolerance = "medium"
	RiskToleranceHigh   RiskTolerance = "high"
)

// ConcurrencyStrategy controls how many trades may be in flight.
type ConcurrencyStrategy string

const (
	ConcurrencySequential ConcurrencyStrategy = "sequential"
	ConcurrencyParallel   ConcurrencyStrategy = "parallel"
)

// Slippage tolerance bounds in percent: below the floor the trade cannot
// clear realistic pool impact, above the cap the trade is unprotected.
var (
	SlippageToleranceMinPct = decimal.RequireFromString("0.1")
	SlippageToleranceMaxPct = decimal.NewFromInt(5)
)

// Config is the execution policy read by the detector and the execution
// service. Mutations go through the app-layer store only.
type Config struct {
	MinProfitPct        decimal.Decimal
	MinProfitUSD        decimal.Decimal
	MaxTradeSizeUSD     decimal.Decimal
	SlippageTolerance   decimal.Decimal // percent
	GasStrategy         GasStrategy
	AutoExecute         bool
	RiskTolerance       RiskTolerance
	Concurrency         ConcurrencyStrategy
	MaxConcurrentTrades int
	UseFlashloan        bool
	DeviationPct        decimal.Decimal // sim-vs-expected profit deviation that trips the breaker
}

// DefaultConfig returns the conservative starting policy.
func DefaultConfig() Config {
	return Config{
		MinProfitPct:        decimal.RequireFromString("0.5"),
		MinProfitUSD:        decimal.NewFromInt(5),
		MaxTradeSizeUSD:     decimal.NewFromInt(10_000),
		SlippageTolerance:   decimal.NewFromInt(1),
		GasStrategy:         GasStrategyStandard,
		AutoExecute:         false,
		RiskTolerance:       RiskToleranceLow,
		Concurrency:         ConcurrencySequential,
		MaxConcurrentTrades: 1,
		UseFlashloan:        false,
		DeviationPct:        decimal.NewFromInt(5),
	}
}

// Validate rejects policies that would let unsafe trades through.
func (c Config) Validate() error {
	if c.MinProfitPct.IsNegative() {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("min profit percentage is negative"))
	}
	if !c.MaxTradeSizeUSD.IsPositive() {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("max trade size must be positive"))
	}
	if c.SlippageTolerance.LessThan(SlippageToleranceMinPct) ||
		c.SlippageTolerance.GreaterThan(SlippageToleranceMaxPct) {
		return apperror.New(apperror.CodeSlippageOutOfRange,
			apperror.WithContext("slippage tolerance "+c.SlippageTolerance.String()+"% outside [0.1%, 5%]"))
	}
	switch c.GasStrategy {
	case GasStrategySafe, GasStrategyStandard, GasStrategyFast:
	default:
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("unknown gas strategy "+string(c.GasStrategy)))
	}
	switch c.RiskTolerance {
	case RiskToleranceLow, RiskToleranceMedium, RiskToleranceHigh:
	default:
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("unknown risk tolerance "+string(c.RiskTolerance)))
	}
	switch c.Concurrency {
	case ConcurrencySequential, ConcurrencyParallel:
	default:
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("unknown concurrency strategy "+string(c.Concurrency)))
	}
	if c.MaxConcurrentTrades < 1 {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("max concurrent trades must be at least 1"))
	}
	if !c.DeviationPct.IsPositive() {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("deviation threshold must be positive"))
	}
	return nil
}
