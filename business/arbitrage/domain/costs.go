// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Gas unit model: a base swap plus an increment per extra leg, plus the
// flashloan borrow/repay surcharge when the trade is funded by one.
const (
	GasUnitsBase        uint64 = 150_000
	GasUnitsPerExtraHop uint64 = 80_000
	GasUnitsFlashloan   uint64 = 120_000
)

var (
	// GasSafetyMultiplier pads gas cost estimates against price movement
	// between estimation and inclusion.
	GasSafetyMultiplier = decimal.RequireFromString("1.2")

	// FallbackSlippagePerHopPct stands in when a venue cannot quote price
	// impact for a leg.
	FallbackSlippagePerHopPct = decimal.RequireFromString("0.2")

	// MinTradeUSD is the floor under which a trade is not worth routing.
	MinTradeUSD = decimal.NewFromInt(50)

	// sizingReserveFraction targets 0.5% of the thinner reserve so the
	// trade's own price impact stays small.
	sizingReserveFraction = decimal.RequireFromString("0.005")

	weiPerEth = decimal.New(1, 18)
)

// GasUnits returns the modeled gas for a route of hops legs.
func GasUnits(hops int, flashloan bool) uint64 {
	if hops < 1 {
		hops = 1
	}
	units := GasUnitsBase + GasUnitsPerExtraHop*uint64(hops-1)
	if flashloan {
		units += GasUnitsFlashloan
	}
	return units
}

// GasCostUSD prices units of gas at gasPriceWei, converted through the ETH
// price and padded by the safety multiplier.
func GasCostUSD(units uint64, gasPriceWei *big.Int, ethPriceUSD decimal.Decimal) decimal.Decimal {
	if gasPriceWei == nil {
		return decimal.Zero
	}
	totalWei := new(big.Int).Mul(gasPriceWei, new(big.Int).SetUint64(units))
	eth := decimal.NewFromBigInt(totalWei, 0).Div(weiPerEth)
	return eth.Mul(ethPriceUSD).Mul(GasSafetyMultiplier)
}

// OptimalTradeSize sizes a trade against the thinner of the two input-token
// reserves: 0.5% of it, raised to the $50-equivalent floor. Pools that
// cannot support twice the floor are untradeable.
func OptimalTradeSize(reserveA, reserveB, tokenPriceUSD decimal.Decimal) (decimal.Decimal, bool) {
	cap := decimal.Min(reserveA, reserveB)
	if !cap.IsPositive() || !tokenPriceUSD.IsPositive() {
		return decimal.Zero, false
	}

	floor := MinTradeUSD.Div(tokenPriceUSD)
	if cap.LessThan(floor.Mul(decimal.NewFromInt(2))) {
		return decimal.Zero, false
	}

	size := cap.Mul(sizingReserveFraction)
	if size.LessThan(floor) {
		size = floor
	}
	return size, true
}

// CostBreakdown itemizes everything between gross and net profit.
type CostBreakdown struct {
	GrossUSD          decimal.Decimal
	GasUnits          uint64
	GasUSD            decimal.Decimal
	SlippagePct       decimal.Decimal // summed across legs
	SlippageUSD       decimal.Decimal
	FlashloanFeeUSD   decimal.Decimal
	FlashloanProvider string
}

// TotalUSD returns the summed costs.
func (c CostBreakdown) TotalUSD() decimal.Decimal {
	return c.GasUSD.Add(c.SlippageUSD).Add(c.FlashloanFeeUSD)
}

// NetUSD returns gross minus all costs.
func (c CostBreakdown) NetUSD() decimal.Decimal {
	return c.GrossUSD.Sub(c.TotalUSD())
}
