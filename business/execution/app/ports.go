// Package app contains application services and port definitions for the execution context.
package app

import (
	"context"

	"github.com/shopspring/decimal"
)

// EthPricer reports the latest observed USD price of the chain's gas token,
// used to convert gas costs for profitability gates.
type EthPricer interface {
	EthPriceUSD(ctx context.Context) (decimal.Decimal, bool)
}

// AdvisorRecommendation is the advisory collaborator's verdict.
type AdvisorRecommendation string

const (
	AdvisorExecute AdvisorRecommendation = "execute"
	AdvisorSkip    AdvisorRecommendation = "skip"
)

// Advice is what the AI collaborator returns for an evaluation request.
type Advice struct {
	Recommendation AdvisorRecommendation `json:"recommendation"`
	Confidence     int                   `json:"confidence"` // 0..100
	Reasoning      string                `json:"reasoning"`
}

// StrategySnapshot is the digest handed to the advisor: recent performance
// plus current market conditions.
type StrategySnapshot struct {
	Records       int             `json:"records"`
	SuccessRate   decimal.Decimal `json:"success_rate_pct"`
	RealizedUSD   decimal.Decimal `json:"realized_usd"`
	ExpectedUSD   decimal.Decimal `json:"expected_usd"`
	VolatilityPct decimal.Decimal `json:"volatility_pct"`
	GasCongestion string          `json:"gas_congestion"`
	MinProfitPct  decimal.Decimal `json:"min_profit_pct"`
}

// AIAdvisor is the optional advisory collaborator. A nil advisor, an error
// or a skip all degrade to the rule-based recommendation path.
type AIAdvisor interface {
	EvaluateOpportunity(ctx context.Context, snapshot StrategySnapshot) (Advice, error)
}
