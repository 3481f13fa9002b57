package app

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	blockchaindomain "github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/business/execution/domain"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/logger"
)

// MinRecordsForRecommendation is the least history the optimizer will
// reason over.
const MinRecordsForRecommendation = 5

// Hour scoring weights: success rate dominates, realized profit refines.
var (
	hourSuccessWeight = decimal.RequireFromString("0.6")
	hourProfitWeight  = decimal.RequireFromString("0.4")
)

// MarketConditions is the snapshot of current conditions the optimizer
// folds into its recommendation.
type MarketConditions struct {
	VolatilityPct decimal.Decimal
	GasCongestion blockchaindomain.Congestion
}

// PairPerformance ranks one traded pair by historical outcome.
type PairPerformance struct {
	TokenIn     string
	TokenOut    string
	Attempts    int
	SuccessRate decimal.Decimal
	ProfitUSD   decimal.Decimal
}

// VenuePerformance ranks one venue by historical outcome across the
// trades it participated in.
type VenuePerformance struct {
	Venue       venuedomain.ID
	Attempts    int
	SuccessRate decimal.Decimal
	ProfitUSD   decimal.Decimal
}

// HourScore ranks a UTC hour of day for trading.
type HourScore struct {
	Hour        int
	Attempts    int
	SuccessRate decimal.Decimal
	ProfitUSD   decimal.Decimal
	Score       decimal.Decimal
}

// Recommendation is the optimizer's advisory output. Applying it is a
// separate, explicit step; nothing here mutates the live policy.
type Recommendation struct {
	MinProfitPct      decimal.Decimal
	MinProfitUSD      decimal.Decimal
	MaxTradeSizeUSD   decimal.Decimal
	SlippageTolerance decimal.Decimal
	GasStrategy       domain.GasStrategy
	RiskTolerance     domain.RiskTolerance
	TopPairs          []PairPerformance
	TopVenues         []VenuePerformance
	TradingHours      []HourScore
	Source            string // "rules" or "advisor"
	Reasoning         string
}

// Optimizer derives parameter recommendations from execution history. The
// rule-based core is deterministic; an optional AI advisor can endorse a
// more aggressive posture, and any advisor trouble falls back to rules.
type Optimizer struct {
	records *RecordStore
	cfg     *ConfigStore
	advisor AIAdvisor // nil when not configured
	logger  logger.LoggerInterface
}

// NewOptimizer wires the optimizer. advisor may be nil.
func NewOptimizer(records *RecordStore, cfg *ConfigStore, advisor AIAdvisor, log logger.LoggerInterface) *Optimizer {
	return &Optimizer{
		records: records,
		cfg:     cfg,
		advisor: advisor,
		logger:  log,
	}
}

// Recommend produces a strategy recommendation from the retained history
// and the current market snapshot. It fails only on insufficient history.
func (o *Optimizer) Recommend(ctx context.Context, market MarketConditions) (*Recommendation, error) {
	records := o.records.All()
	if len(records) < MinRecordsForRecommendation {
		return nil, apperror.New(apperror.CodeInvalidState,
			apperror.WithContext("need at least 5 execution records to recommend"))
	}

	stats := o.records.Stats()
	rec := o.ruleBased(stats, market)
	rec.TopPairs = rankPairs(records)
	rec.TopVenues = rankVenues(records)
	rec.TradingHours = rankHours(records)

	o.consultAdvisor(ctx, &rec, stats, market)
	return &rec, nil
}

// Apply patches the live policy with the recommendation's parameter
// fields, one by one.
func (o *Optimizer) Apply(rec *Recommendation) error {
	return o.cfg.Apply(Patch{
		MinProfitPct:      &rec.MinProfitPct,
		MinProfitUSD:      &rec.MinProfitUSD,
		MaxTradeSizeUSD:   &rec.MaxTradeSizeUSD,
		SlippageTolerance: &rec.SlippageTolerance,
		GasStrategy:       &rec.GasStrategy,
		RiskTolerance:     &rec.RiskTolerance,
	})
}

// ruleBased derives the parameter suggestions deterministically from the
// success rate and market snapshot.
func (o *Optimizer) ruleBased(stats domain.Stats, market MarketConditions) Recommendation {
	cur := o.cfg.Get()
	rec := Recommendation{
		MinProfitPct:      cur.MinProfitPct,
		MinProfitUSD:      cur.MinProfitUSD,
		MaxTradeSizeUSD:   cur.MaxTradeSizeUSD,
		SlippageTolerance: cur.SlippageTolerance,
		GasStrategy:       cur.GasStrategy,
		RiskTolerance:     cur.RiskTolerance,
		Source:            "rules",
	}

	half := decimal.NewFromInt(2)

	switch {
	case stats.SuccessRate.LessThan(decimal.NewFromInt(40)):
		// Losing more than winning: demand wider margins, take less risk.
		rec.MinProfitPct = cur.MinProfitPct.Mul(decimal.RequireFromString("1.5"))
		rec.RiskTolerance = domain.RiskToleranceLow
		rec.Reasoning = "success rate below 40%: widen profit floor, lower risk tolerance"
	case stats.SuccessRate.GreaterThan(decimal.NewFromInt(80)) &&
		stats.ActualUSDSum.GreaterThanOrEqual(stats.ExpectedUSDSum.Div(half)):
		// Winning consistently and realizing estimates: loosen slightly.
		loosened := cur.MinProfitPct.Mul(decimal.RequireFromString("0.8"))
		if floor := decimal.RequireFromString("0.1"); loosened.LessThan(floor) {
			loosened = floor
		}
		rec.MinProfitPct = loosened
		rec.RiskTolerance = raiseTolerance(cur.RiskTolerance)
		rec.Reasoning = "success rate above 80% with realized profit: narrow profit floor"
	default:
		rec.Reasoning = "performance within expected band: keep thresholds"
	}

	if market.GasCongestion == blockchaindomain.CongestionHigh {
		rec.GasStrategy = domain.GasStrategyFast
		rec.MinProfitUSD = cur.MinProfitUSD.Mul(half)
		rec.Reasoning += "; high gas congestion: fast strategy, doubled USD floor"
	}

	if market.VolatilityPct.GreaterThanOrEqual(decimal.NewFromInt(10)) {
		widened := cur.SlippageTolerance.Mul(decimal.RequireFromString("1.5"))
		if widened.GreaterThan(domain.SlippageToleranceMaxPct) {
			widened = domain.SlippageToleranceMaxPct
		}
		rec.SlippageTolerance = widened
		rec.MaxTradeSizeUSD = cur.MaxTradeSizeUSD.Div(half)
		rec.Reasoning += "; high volatility: wider slippage tolerance, halved size cap"
	}

	return rec
}

// consultAdvisor lets the optional advisor endorse the recommendation.
// Unavailable, erroring or skipping advisors leave the rule-based result
// untouched.
func (o *Optimizer) consultAdvisor(ctx context.Context, rec *Recommendation, stats domain.Stats, market MarketConditions) {
	if o.advisor == nil {
		return
	}

	advice, err := o.advisor.EvaluateOpportunity(ctx, StrategySnapshot{
		Records:       stats.Total,
		SuccessRate:   stats.SuccessRate,
		RealizedUSD:   stats.ActualUSDSum,
		ExpectedUSD:   stats.ExpectedUSDSum,
		VolatilityPct: market.VolatilityPct,
		GasCongestion: string(market.GasCongestion),
		MinProfitPct:  rec.MinProfitPct,
	})
	if err != nil {
		o.logger.Warn(ctx, "advisor unavailable, keeping rule-based recommendation", "error", err)
		return
	}
	if advice.Recommendation != AdvisorExecute || advice.Confidence < 50 {
		o.logger.Debug(ctx, "advisor declined, keeping rule-based recommendation",
			"recommendation", advice.Recommendation,
			"confidence", advice.Confidence)
		return
	}

	rec.Source = "advisor"
	rec.RiskTolerance = raiseTolerance(rec.RiskTolerance)
	rec.Reasoning += "; advisor endorsed (" + advice.Reasoning + ")"
}

func raiseTolerance(t domain.RiskTolerance) domain.RiskTolerance {
	switch t {
	case domain.RiskToleranceLow:
		return domain.RiskToleranceMedium
	default:
		return domain.RiskToleranceHigh
	}
}

func rankPairs(records []domain.Record) []PairPerformance {
	type key struct{ in, out string }
	agg := make(map[key]*PairPerformance)
	wins := make(map[key]int)

	for _, r := range records {
		if !r.Status.Terminal() {
			continue
		}
		k := key{r.TokenIn, r.TokenOut}
		p := agg[k]
		if p == nil {
			p = &PairPerformance{TokenIn: r.TokenIn, TokenOut: r.TokenOut}
			agg[k] = p
		}
		p.Attempts++
		if r.Status.Success() {
			wins[k]++
			p.ProfitUSD = p.ProfitUSD.Add(r.ActualUSD)
		}
	}

	out := make([]PairPerformance, 0, len(agg))
	for k, p := range agg {
		p.SuccessRate = rate(wins[k], p.Attempts)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SuccessRate.Equal(out[j].SuccessRate) {
			return out[i].SuccessRate.GreaterThan(out[j].SuccessRate)
		}
		if !out[i].ProfitUSD.Equal(out[j].ProfitUSD) {
			return out[i].ProfitUSD.GreaterThan(out[j].ProfitUSD)
		}
		return out[i].TokenIn+out[i].TokenOut < out[j].TokenIn+out[j].TokenOut
	})
	return out
}

func rankVenues(records []domain.Record) []VenuePerformance {
	agg := make(map[venuedomain.ID]*VenuePerformance)
	wins := make(map[venuedomain.ID]int)

	for _, r := range records {
		if !r.Status.Terminal() {
			continue
		}
		for _, v := range []venuedomain.ID{r.SourceVenue, r.TargetVenue} {
			p := agg[v]
			if p == nil {
				p = &VenuePerformance{Venue: v}
				agg[v] = p
			}
			p.Attempts++
			if r.Status.Success() {
				wins[v]++
				p.ProfitUSD = p.ProfitUSD.Add(r.ActualUSD)
			}
		}
	}

	out := make([]VenuePerformance, 0, len(agg))
	for v, p := range agg {
		p.SuccessRate = rate(wins[v], p.Attempts)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SuccessRate.Equal(out[j].SuccessRate) {
			return out[i].SuccessRate.GreaterThan(out[j].SuccessRate)
		}
		if !out[i].ProfitUSD.Equal(out[j].ProfitUSD) {
			return out[i].ProfitUSD.GreaterThan(out[j].ProfitUSD)
		}
		return out[i].Venue < out[j].Venue
	})
	return out
}

// rankHours scores each UTC hour by success rate (60%) and profit
// normalized against the best hour (40%).
func rankHours(records []domain.Record) []HourScore {
	byHour := make(map[int]*HourScore)
	wins := make(map[int]int)

	for _, r := range records {
		if !r.Status.Terminal() {
			continue
		}
		h := r.StartedAt.UTC().Hour()
		s := byHour[h]
		if s == nil {
			s = &HourScore{Hour: h}
			byHour[h] = s
		}
		s.Attempts++
		if r.Status.Success() {
			wins[h]++
			s.ProfitUSD = s.ProfitUSD.Add(r.ActualUSD)
		}
	}

	maxProfit := decimal.Zero
	for _, s := range byHour {
		if s.ProfitUSD.GreaterThan(maxProfit) {
			maxProfit = s.ProfitUSD
		}
	}

	out := make([]HourScore, 0, len(byHour))
	for h, s := range byHour {
		s.SuccessRate = rate(wins[h], s.Attempts)
		normProfit := decimal.Zero
		if maxProfit.IsPositive() {
			normProfit = s.ProfitUSD.Div(maxProfit).Mul(decimal.NewFromInt(100))
		}
		s.Score = s.SuccessRate.Mul(hourSuccessWeight).Add(normProfit.Mul(hourProfitWeight))
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Score.Equal(out[j].Score) {
			return out[i].Score.GreaterThan(out[j].Score)
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

func rate(wins, attempts int) decimal.Decimal {
	if attempts == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(wins)).
		Div(decimal.NewFromInt(int64(attempts))).
		Mul(decimal.NewFromInt(100))
}
