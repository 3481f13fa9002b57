// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	blockchainapp "github.com/fd1az/dexarb/business/blockchain/app"
	venueapp "github.com/fd1az/dexarb/business/venue/app"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/internal/logger"
)

var oneHundred = decimal.NewFromInt(100)

// CostEstimator prices everything between a spread and a net profit: gas
// at current rates, per-leg slippage from venue quotes, and the flashloan
// premium when the trade is borrowed. Estimates are conservative; every
// collaborator failure degrades to a pessimistic fallback rather than an
// error, so detection keeps moving.
type CostEstimator struct {
	venues *venueapp.Registry
	chain  *blockchainapp.BlockchainService
	eth    EthPricer
	logger logger.LoggerInterface
}

// NewCostEstimator wires the estimator.
func NewCostEstimator(
	venues *venueapp.Registry,
	chain *blockchainapp.BlockchainService,
	eth EthPricer,
	log logger.LoggerInterface,
) *CostEstimator {
	return &CostEstimator{venues: venues, chain: chain, eth: eth, logger: log}
}

// leg is one swap the estimator prices slippage for.
type leg struct {
	venue    venuedomain.ID
	tokenIn  string
	tokenOut string
	amountIn decimal.Decimal
}

// Estimate itemizes the costs of a trade: grossUSD is what the spread
// yields before costs, legs describe the swaps to price impact for, hops
// is the route length for the gas model. The returned breakdown always
// has every component populated.
func (e *CostEstimator) Estimate(
	ctx context.Context,
	grossUSD, tradeSizeUSD decimal.Decimal,
	legs []leg,
	hops int,
	flashloan bool,
) domain.CostBreakdown {
	costs := domain.CostBreakdown{
		GrossUSD: grossUSD,
		GasUnits: domain.GasUnits(hops, flashloan),
	}

	costs.GasUSD = e.gasUSD(ctx, costs.GasUnits)
	costs.SlippagePct = e.slippagePct(ctx, legs)
	costs.SlippageUSD = tradeSizeUSD.Mul(costs.SlippagePct).Div(oneHundred)

	if flashloan {
		quote := e.chain.QuoteFlashloan(ctx, tradeSizeUSD, grossUSD)
		costs.FlashloanFeeUSD = quote.FeeUSD
		costs.FlashloanProvider = quote.Provider
	}

	return costs
}

// EstimateQuoted is Estimate for routes whose gross was computed from
// round-trip venue quotes. Quoted outputs already carry each pool's price
// impact, so charging SlippageUSD again would double-count; the summed
// impact is still reported for risk scoring.
func (e *CostEstimator) EstimateQuoted(
	ctx context.Context,
	grossUSD decimal.Decimal,
	impactPct decimal.Decimal,
	hops int,
	flashloan bool,
	tradeSizeUSD decimal.Decimal,
) domain.CostBreakdown {
	costs := domain.CostBreakdown{
		GrossUSD:    grossUSD,
		GasUnits:    domain.GasUnits(hops, flashloan),
		SlippagePct: impactPct,
		SlippageUSD: decimal.Zero,
	}
	costs.GasUSD = e.gasUSD(ctx, costs.GasUnits)

	if flashloan {
		quote := e.chain.QuoteFlashloan(ctx, tradeSizeUSD, grossUSD)
		costs.FlashloanFeeUSD = quote.FeeUSD
		costs.FlashloanProvider = quote.Provider
	}

	return costs
}

func (e *CostEstimator) gasUSD(ctx context.Context, units uint64) decimal.Decimal {
	ethUSD, ok := e.eth.EthPriceUSD(ctx)
	if !ok {
		e.logger.Debug(ctx, "gas token price unavailable, gas priced at zero")
		return decimal.Zero
	}
	gasPrice, err := e.chain.GetGasPrice(ctx)
	if err != nil {
		e.logger.Debug(ctx, "gas price unavailable, gas priced at zero", "error", err)
		return decimal.Zero
	}
	return domain.GasCostUSD(units, gasPrice.Wei, ethUSD)
}

// slippagePct sums the quoted price impact across legs, substituting the
// per-hop fallback for any leg the venue cannot quote.
func (e *CostEstimator) slippagePct(ctx context.Context, legs []leg) decimal.Decimal {
	total := decimal.Zero
	for _, l := range legs {
		adapter, err := e.venues.Adapter(l.venue)
		if err != nil {
			total = total.Add(domain.FallbackSlippagePerHopPct)
			continue
		}
		quote, err := adapter.GetExpectedOutput(ctx, l.tokenIn, l.tokenOut, l.amountIn)
		if err != nil {
			e.logger.Debug(ctx, "impact quote failed, using fallback slippage",
				"venue", l.venue,
				"error", err)
			total = total.Add(domain.FallbackSlippagePerHopPct)
			continue
		}
		total = total.Add(quote.PriceImpactPct)
	}
	return total
}
