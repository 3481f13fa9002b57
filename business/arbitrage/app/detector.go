// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	pricingapp "github.com/fd1az/dexarb/business/pricing/app"
	pricingdomain "github.com/fd1az/dexarb/business/pricing/domain"
	venueapp "github.com/fd1az/dexarb/business/venue/app"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/logger"
)

const (
	// DefaultMaxPathLength caps multi-hop routes at three legs.
	DefaultMaxPathLength = 3

	// DefaultVolatilityWindow is the trailing window risk scoring reads
	// volatility over.
	DefaultVolatilityWindow = 15 * time.Minute
)

// DetectorConfig holds the detection thresholds and the markets to scan.
type DetectorConfig struct {
	Pairs            []pricingdomain.Pair
	BridgeTokens     []string // multi-hop cycle starts, usually stables
	MinProfitPct     decimal.Decimal
	MinProfitUSD     decimal.Decimal
	MaxPathLength    int           // default 3
	VolatilityWindow time.Duration // default 15m
	UseFlashloan     bool
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	if c.MaxPathLength <= 0 || c.MaxPathLength > DefaultMaxPathLength {
		c.MaxPathLength = DefaultMaxPathLength
	}
	if c.VolatilityWindow <= 0 {
		c.VolatilityWindow = DefaultVolatilityWindow
	}
	return c
}

// Detector finds cross-venue price discrepancies and prices them out to a
// net, risk-scored opportunity. Detection is synchronous and deterministic:
// the same prices and liquidity always yield the same opportunities in the
// same order.
type Detector struct {
	venues *venueapp.Registry
	prices *pricingapp.Store
	costs  *CostEstimator
	assets *asset.Registry
	config DetectorConfig
	logger logger.LoggerInterface

	now func() time.Time
}

// NewDetector creates a detector over the given venues and price store.
func NewDetector(
	venues *venueapp.Registry,
	prices *pricingapp.Store,
	costs *CostEstimator,
	assets *asset.Registry,
	cfg DetectorConfig,
	log logger.LoggerInterface,
) *Detector {
	return &Detector{
		venues: venues,
		prices: prices,
		costs:  costs,
		assets: assets,
		config: cfg.withDefaults(),
		logger: log,
		now:    time.Now,
	}
}

// DetectDirect compares tokenIn's price on two venues and, when the spread
// clears the floor and the economics survive costs, returns the priced
// opportunity. A nil return means no trade; detection failures are logged
// and treated the same way.
func (d *Detector) DetectDirect(ctx context.Context, tokenIn, tokenOut string, venueX, venueY venuedomain.ID) *domain.Opportunity {
	adapterX, err := d.venues.Adapter(venueX)
	if err != nil {
		return nil
	}
	adapterY, err := d.venues.Adapter(venueY)
	if err != nil {
		return nil
	}

	priceX, err := adapterX.GetTokenPrice(ctx, tokenIn, tokenOut)
	if err != nil {
		d.logger.Debug(ctx, "price fetch failed", "venue", venueX, "error", err)
		return nil
	}
	priceY, err := adapterY.GetTokenPrice(ctx, tokenIn, tokenOut)
	if err != nil {
		d.logger.Debug(ctx, "price fetch failed", "venue", venueY, "error", err)
		return nil
	}
	if !priceX.IsPositive() || !priceY.IsPositive() {
		return nil
	}

	spread := pricingdomain.CalculateSpread(priceX, priceY)
	if spread.Direction == pricingdomain.SpreadNone || spread.Percent.LessThan(d.config.MinProfitPct) {
		return nil
	}

	source, target := venueX, venueY // buy cheap on source, sell on target
	buyPrice := priceX
	if spread.Direction == pricingdomain.SpreadBuyB {
		source, target = venueY, venueX
		buyPrice = priceY
	}
	srcAdapter, dstAdapter := adapterX, adapterY
	if source == venueY {
		srcAdapter, dstAdapter = adapterY, adapterX
	}

	srcLiq, err := srcAdapter.GetLiquidity(ctx, tokenIn, tokenOut)
	if err != nil {
		d.logger.Debug(ctx, "liquidity fetch failed", "venue", source, "error", err)
		return nil
	}
	dstLiq, err := dstAdapter.GetLiquidity(ctx, tokenIn, tokenOut)
	if err != nil {
		d.logger.Debug(ctx, "liquidity fetch failed", "venue", target, "error", err)
		return nil
	}

	size, ok := domain.OptimalTradeSize(srcLiq.ReserveIn, dstLiq.ReserveIn, buyPrice)
	if !ok {
		return nil
	}
	sizeUSD := size.Mul(buyPrice)

	grossUSD := sizeUSD.Mul(spread.Percent).Div(oneHundred)
	legs := []leg{
		{venue: source, tokenIn: tokenIn, tokenOut: tokenOut, amountIn: size},
		{venue: target, tokenIn: tokenIn, tokenOut: tokenOut, amountIn: size},
	}
	costs := d.costs.Estimate(ctx, grossUSD, sizeUSD, legs, 2, d.config.UseFlashloan)

	net := costs.NetUSD()
	if !net.IsPositive() || net.LessThan(d.config.MinProfitUSD) {
		return nil
	}
	netPct := net.Div(sizeUSD).Mul(oneHundred)

	opp := &domain.Opportunity{
		ID:           domain.OpportunityID(source, target, tokenIn, tokenOut),
		DiscoveredAt: d.now(),
		SourceVenue:  source,
		TargetVenue:  target,
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		TradeSize:    size,
		TradeSizeUSD: sizeUSD,
		SpreadPct:    spread.Percent,
		Costs:        costs,
		NetProfitUSD: net,
		NetProfitPct: netPct,
		Status:       domain.StatusPending,
	}
	opp.Risk = d.scoreRisk(opp, []string{tokenIn, tokenOut})
	return opp
}

// DetectMultiHop enumerates token cycles start -> intermediates -> start
// and venue sequences up to the configured path length, prices each route
// by its round-trip quoted output, and returns the survivors sorted by net
// profit descending.
func (d *Detector) DetectMultiHop(ctx context.Context, start string, intermediates []string, venues []venuedomain.ID) []*domain.Opportunity {
	maxLen := d.config.MaxPathLength

	startUSD, ok := d.tokenUSD(ctx, start)
	if !ok {
		d.logger.Debug(ctx, "multi-hop start token has no USD price", "token", start)
		return nil
	}

	var out []*domain.Opportunity
	for _, tokens := range tokenCycles(start, intermediates, maxLen) {
		for _, route := range venueSequences(venues, len(tokens)-1) {
			if opp := d.evaluateRoute(ctx, tokens, route, startUSD); opp != nil {
				out = append(out, opp)
			}
		}
	}

	sortOpportunities(out)
	return out
}

// Scan runs the full sweep: all direct pairs across every active venue
// combination, plus multi-hop cycles from each bridge token. Results are
// sorted by net profit descending. Iteration order is fixed, so identical
// market data yields an identical slice.
func (d *Detector) Scan(ctx context.Context) []*domain.Opportunity {
	venues := d.venues.Active()
	ids := make([]venuedomain.ID, len(venues))
	for i, v := range venues {
		ids[i] = v.ID
	}

	var out []*domain.Opportunity
	for _, pair := range d.config.Pairs {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if opp := d.DetectDirect(ctx, pair.Base, pair.Quote, ids[i], ids[j]); opp != nil {
					out = append(out, opp)
				}
			}
		}
	}

	for _, bridge := range d.config.BridgeTokens {
		out = append(out, d.DetectMultiHop(ctx, bridge, d.intermediatesFor(bridge), ids)...)
	}

	sortOpportunities(out)
	return out
}

// evaluateRoute walks one candidate cycle through its venue sequence and
// prices the round trip. Returns nil unless the route clears every floor.
func (d *Detector) evaluateRoute(ctx context.Context, tokens []string, route []venuedomain.ID, startUSD decimal.Decimal) *domain.Opportunity {
	first, err := d.venues.Adapter(route[0])
	if err != nil {
		return nil
	}
	firstLiq, err := first.GetLiquidity(ctx, tokens[0], tokens[1])
	if err != nil {
		return nil
	}
	size, ok := domain.OptimalTradeSize(firstLiq.ReserveIn, firstLiq.ReserveIn, startUSD)
	if !ok {
		return nil
	}
	sizeUSD := size.Mul(startUSD)

	amount := size
	impact := decimal.Zero
	path := make([]domain.Hop, 0, len(route))
	for i, venueID := range route {
		adapter, err := d.venues.Adapter(venueID)
		if err != nil {
			return nil
		}
		quote, err := adapter.GetExpectedOutput(ctx, tokens[i], tokens[i+1], amount)
		if err != nil {
			d.logger.Debug(ctx, "route quote failed",
				"venue", venueID,
				"token_in", tokens[i],
				"error", err)
			return nil
		}
		if !quote.AmountOut.IsPositive() {
			return nil
		}
		amount = quote.AmountOut
		impact = impact.Add(quote.PriceImpactPct)
		path = append(path, domain.Hop{Venue: venueID, TokenIn: tokens[i], TokenOut: tokens[i+1]})
	}

	grossTokens := amount.Sub(size)
	if !grossTokens.IsPositive() {
		return nil
	}
	grossUSD := grossTokens.Mul(startUSD)

	spreadPct := grossUSD.Div(sizeUSD).Mul(oneHundred)
	if spreadPct.LessThan(d.config.MinProfitPct) {
		return nil
	}

	costs := d.costs.EstimateQuoted(ctx, grossUSD, impact, len(path), d.config.UseFlashloan, sizeUSD)
	net := costs.NetUSD()
	if !net.IsPositive() || net.LessThan(d.config.MinProfitUSD) {
		return nil
	}

	opp := &domain.Opportunity{
		ID:           domain.RouteOpportunityID(path),
		DiscoveredAt: d.now(),
		SourceVenue:  route[0],
		TargetVenue:  route[len(route)-1],
		TokenIn:      tokens[0],
		TokenOut:     tokens[len(tokens)-2],
		TradeSize:    size,
		TradeSizeUSD: sizeUSD,
		SpreadPct:    spreadPct,
		Costs:        costs,
		NetProfitUSD: net,
		NetProfitPct: net.Div(sizeUSD).Mul(oneHundred),
		Status:       domain.StatusPending,
		Path:         path,
	}
	opp.Risk = d.scoreRisk(opp, tokens[:len(tokens)-1])
	return opp
}

func (d *Detector) scoreRisk(opp *domain.Opportunity, tokens []string) domain.RiskAssessment {
	in := domain.RiskInputs{
		VolatilityPct: d.maxVolatility(tokens),
		SlippagePct:   opp.Costs.SlippagePct,
		Hops:          opp.Hops(),
		NetMarginPct:  opp.NetProfitPct,
		DenylistedVenue: d.venues.IsDenylisted(opp.SourceVenue) ||
			d.venues.IsDenylisted(opp.TargetVenue),
	}
	for _, token := range tokens {
		switch d.assets.Classify(token) {
		case asset.ClassStablecoin:
			in.Stablecoins++
		case asset.ClassMajor:
			in.Majors++
		default:
			in.Unknowns++
		}
	}
	return domain.ScoreRisk(in)
}

func (d *Detector) maxVolatility(tokens []string) decimal.Decimal {
	max := decimal.Zero
	for _, token := range tokens {
		if v := d.prices.Volatility(token, d.config.VolatilityWindow); v.GreaterThan(max) {
			max = v
		}
	}
	return max
}

// tokenUSD resolves a token's USD price from the store, assuming the
// monitored quote tokens are dollar stables.
func (d *Detector) tokenUSD(_ context.Context, token string) (decimal.Decimal, bool) {
	if point, ok := d.prices.LatestPriceAnyVenue(token); ok {
		return point.Price, true
	}
	// A stablecoin with no stored series is still a dollar.
	if d.assets.Classify(token) == asset.ClassStablecoin {
		return decimal.NewFromInt(1), true
	}
	return decimal.Zero, false
}

// intermediatesFor gathers the distinct non-bridge tokens from the
// monitored pairs, in first-seen order.
func (d *Detector) intermediatesFor(bridge string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, pair := range d.config.Pairs {
		for _, token := range []string{pair.Base, pair.Quote} {
			key := strings.ToLower(token)
			if strings.EqualFold(token, bridge) || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, token)
		}
	}
	return out
}

// tokenCycles enumerates start -> i1 [-> i2] -> start sequences with
// distinct intermediates, shortest first. maxLegs bounds the number of
// swaps in the cycle.
func tokenCycles(start string, intermediates []string, maxLegs int) [][]string {
	var out [][]string
	for _, a := range intermediates {
		if maxLegs >= 2 {
			out = append(out, []string{start, a, start})
		}
	}
	if maxLegs >= 3 {
		for _, a := range intermediates {
			for _, b := range intermediates {
				if strings.EqualFold(a, b) {
					continue
				}
				out = append(out, []string{start, a, b, start})
			}
		}
	}
	return out
}

// venueSequences enumerates every assignment of venues to legs.
func venueSequences(venues []venuedomain.ID, legs int) [][]venuedomain.ID {
	if legs == 0 || len(venues) == 0 {
		return nil
	}
	out := [][]venuedomain.ID{{}}
	for i := 0; i < legs; i++ {
		var next [][]venuedomain.ID
		for _, prefix := range out {
			for _, v := range venues {
				seq := make([]venuedomain.ID, len(prefix), len(prefix)+1)
				copy(seq, prefix)
				next = append(next, append(seq, v))
			}
		}
		out = next
	}
	return out
}

// sortOpportunities orders by net profit descending, ID breaking ties so
// the order is total.
func sortOpportunities(opps []*domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if !opps[i].NetProfitUSD.Equal(opps[j].NetProfitUSD) {
			return opps[i].NetProfitUSD.GreaterThan(opps[j].NetProfitUSD)
		}
		return opps[i].ID < opps[j].ID
	})
}
