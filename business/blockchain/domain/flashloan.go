package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// FallbackFlashloanFeePct is the assumed premium when no provider can be
// quoted: 0.09% of the borrowed amount.
var FallbackFlashloanFeePct = decimal.RequireFromString("0.09")

// FlashloanProvider describes one lending pool that can fund a trade.
type FlashloanProvider struct {
	Name         string
	Pool         common.Address
	FeeBps       int64           // premium in basis points, used when the pool can't be queried
	MaxAmountUSD decimal.Decimal // zero means unbounded
	QueryPremium bool            // pool exposes FLASHLOAN_PREMIUM_TOTAL
}

// FeePct returns the static premium as a percentage.
func (p FlashloanProvider) FeePct() decimal.Decimal {
	return decimal.NewFromInt(p.FeeBps).Div(decimal.NewFromInt(100))
}

// Covers reports whether the provider can fund amountUSD.
func (p FlashloanProvider) Covers(amountUSD decimal.Decimal) bool {
	return p.MaxAmountUSD.IsZero() || amountUSD.LessThanOrEqual(p.MaxAmountUSD)
}

// FlashloanQuote prices a borrow against a specific provider.
type FlashloanQuote struct {
	Provider     string
	FeePct       decimal.Decimal
	FeeUSD       decimal.Decimal
	NetProfitUSD decimal.Decimal
	Profitable   bool
}

// QuoteFlashloan computes the cost of borrowing amountUSD at feePct against
// an expected gross profit.
func QuoteFlashloan(provider string, feePct, amountUSD, grossProfitUSD decimal.Decimal) *FlashloanQuote {
	feeUSD := amountUSD.Mul(feePct).Div(decimal.NewFromInt(100))
	net := grossProfitUSD.Sub(feeUSD)
	return &FlashloanQuote{
		Provider:     provider,
		FeePct:       feePct,
		FeeUSD:       feeUSD,
		NetProfitUSD: net,
		Profitable:   net.IsPositive(),
	}
}
