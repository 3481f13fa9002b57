package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Liquidity is a snapshot of one pool's reserves, ordered so ReserveIn
// backs the token being sold.
type Liquidity struct {
	VenueID    ID
	TokenIn    string
	TokenOut   string
	ReserveIn  decimal.Decimal
	ReserveOut decimal.Decimal
	UpdatedAt  time.Time
}

// SwapQuote is a venue's answer to "what would I get for amountIn".
type SwapQuote struct {
	VenueID        ID
	TokenIn        string
	TokenOut       string
	AmountIn       decimal.Decimal
	AmountOut      decimal.Decimal
	PriceImpactPct decimal.Decimal // expected slippage for this size, percent
	FeePct         decimal.Decimal // venue swap fee, percent
	QuotedAt       time.Time
}

// EffectivePrice returns amountOut/amountIn, the realized rate including
// impact and fees. Zero when AmountIn is zero.
func (q SwapQuote) EffectivePrice() decimal.Decimal {
	if q.AmountIn.IsZero() {
		return decimal.Zero
	}
	return q.AmountOut.Div(q.AmountIn)
}

// SwapRequest instructs a venue to execute a swap.
type SwapRequest struct {
	VenueID      ID
	TokenIn      string
	TokenOut     string
	AmountIn     decimal.Decimal
	MinAmountOut decimal.Decimal
	Deadline     time.Time
	Flashloan    bool // funded by a flashloan rather than inventory
}

// SwapResult reports a completed (or provider-rejected) swap.
type SwapResult struct {
	VenueID   ID
	TxHash    string
	AmountIn  decimal.Decimal
	AmountOut decimal.Decimal
	GasUsed   uint64
	Executed  time.Time
}
