// Package domain contains the core domain types for the pricing context.
package domain

import "github.com/shopspring/decimal"

// Spread represents the price difference for one token across two venues.
type Spread struct {
	PriceA    decimal.Decimal
	PriceB    decimal.Decimal
	Absolute  decimal.Decimal // |A - B|
	Percent   decimal.Decimal // |A - B| / min(A, B) * 100
	Direction SpreadDirection
}

// SpreadDirection indicates which venue is the cheap (buy) side.
type SpreadDirection string

const (
	SpreadBuyA SpreadDirection = "BUY_A" // A is cheaper: buy on A, sell on B
	SpreadBuyB SpreadDirection = "BUY_B" // B is cheaper: buy on B, sell on A
	SpreadNone SpreadDirection = "NONE"  // prices equal
)

// CalculateSpread compares the same token's price on two venues. The percent
// spread is measured against the cheaper side, the price a buyer pays.
func CalculateSpread(priceA, priceB decimal.Decimal) Spread {
	diff := priceA.Sub(priceB)
	absolute := diff.Abs()

	low := priceA
	direction := SpreadBuyA
	switch {
	case diff.IsPositive():
		low = priceB
		direction = SpreadBuyB
	case diff.IsZero():
		direction = SpreadNone
	}

	percent := decimal.Zero
	if !low.IsZero() {
		percent = absolute.Div(low).Mul(decimal.NewFromInt(100))
	}

	return Spread{
		PriceA:    priceA,
		PriceB:    priceB,
		Absolute:  absolute,
		Percent:   percent,
		Direction: direction,
	}
}
