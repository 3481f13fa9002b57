package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	blockchaindomain "github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/business/execution/domain"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
)

type fakeAdvisor struct {
	advice Advice
	err    error
	calls  int
}

func (f *fakeAdvisor) EvaluateOpportunity(context.Context, StrategySnapshot) (Advice, error) {
	f.calls++
	return f.advice, f.err
}

func optimizerRecord(i int, status domain.RecordStatus, actualUSD string, startedAt time.Time) domain.Record {
	return domain.Record{
		ID:            fmt.Sprintf("rec-%d", i),
		OpportunityID: fmt.Sprintf("opp-%d", i),
		StartedAt:     startedAt,
		UpdatedAt:     startedAt,
		SourceVenue:   venuedomain.MustID("sushiswap"),
		TargetVenue:   venuedomain.MustID("uniswap-v2"),
		TokenIn:       execWETH,
		TokenOut:      execUSDC,
		TradeSize:     decimal.NewFromInt(1),
		ExpectedUSD:   decimal.NewFromInt(20),
		ActualUSD:     decimal.RequireFromString(actualUSD),
		Status:        status,
	}
}

func seededStores(t *testing.T, records []domain.Record) (*RecordStore, *ConfigStore) {
	t.Helper()
	store := NewRecordStore(domain.NewRecords(domain.DefaultRecordCapacity))
	for _, r := range records {
		store.Append(r)
	}
	cfg, err := NewConfigStore(domain.DefaultConfig())
	if err != nil {
		t.Fatalf("config store: %v", err)
	}
	return store, cfg
}

func winningHistory(n int) []domain.Record {
	base := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	out := make([]domain.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, optimizerRecord(i, domain.RecordCompleted, "15", base.Add(time.Duration(i)*time.Minute)))
	}
	return out
}

func losingHistory(n int) []domain.Record {
	base := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	out := make([]domain.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, optimizerRecord(i, domain.RecordFailed, "0", base.Add(time.Duration(i)*time.Minute)))
	}
	return out
}

func TestRecommendRequiresHistory(t *testing.T) {
	store, cfg := seededStores(t, winningHistory(MinRecordsForRecommendation-1))
	opt := NewOptimizer(store, cfg, nil, testLogger())

	if _, err := opt.Recommend(context.Background(), MarketConditions{}); err == nil {
		t.Fatal("expected an error with fewer than 5 records")
	}
}

func TestRecommendLowSuccessWidensFloor(t *testing.T) {
	// Two wins out of six: 33% success rate.
	records := append(winningHistory(2), losingHistory(4)...)
	store, cfg := seededStores(t, records)
	opt := NewOptimizer(store, cfg, nil, testLogger())

	rec, err := opt.Recommend(context.Background(), MarketConditions{GasCongestion: blockchaindomain.CongestionLow})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	cur := cfg.Get()
	wantFloor := cur.MinProfitPct.Mul(decimal.RequireFromString("1.5"))
	if !rec.MinProfitPct.Equal(wantFloor) {
		t.Errorf("MinProfitPct = %s, want %s", rec.MinProfitPct, wantFloor)
	}
	if rec.RiskTolerance != domain.RiskToleranceLow {
		t.Errorf("RiskTolerance = %s, want low", rec.RiskTolerance)
	}
	if rec.Source != "rules" {
		t.Errorf("Source = %q, want rules", rec.Source)
	}
}

func TestRecommendHighSuccessNarrowsFloor(t *testing.T) {
	store, cfg := seededStores(t, winningHistory(10))
	opt := NewOptimizer(store, cfg, nil, testLogger())

	rec, err := opt.Recommend(context.Background(), MarketConditions{})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	cur := cfg.Get()
	wantFloor := cur.MinProfitPct.Mul(decimal.RequireFromString("0.8"))
	if !rec.MinProfitPct.Equal(wantFloor) {
		t.Errorf("MinProfitPct = %s, want %s", rec.MinProfitPct, wantFloor)
	}
	if rec.RiskTolerance != domain.RiskToleranceMedium {
		t.Errorf("RiskTolerance = %s, want raised to medium", rec.RiskTolerance)
	}
}

func TestRecommendMarketConditionOverlays(t *testing.T) {
	store, cfg := seededStores(t, winningHistory(10))
	opt := NewOptimizer(store, cfg, nil, testLogger())
	cur := cfg.Get()

	rec, err := opt.Recommend(context.Background(), MarketConditions{
		VolatilityPct: decimal.NewFromInt(12),
		GasCongestion: blockchaindomain.CongestionHigh,
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if rec.GasStrategy != domain.GasStrategyFast {
		t.Errorf("GasStrategy = %s, want fast under high congestion", rec.GasStrategy)
	}
	if !rec.MinProfitUSD.Equal(cur.MinProfitUSD.Mul(decimal.NewFromInt(2))) {
		t.Errorf("MinProfitUSD = %s, want doubled %s", rec.MinProfitUSD, cur.MinProfitUSD.Mul(decimal.NewFromInt(2)))
	}
	if !rec.SlippageTolerance.Equal(cur.SlippageTolerance.Mul(decimal.RequireFromString("1.5"))) {
		t.Errorf("SlippageTolerance = %s, want widened by 1.5x", rec.SlippageTolerance)
	}
	if !rec.MaxTradeSizeUSD.Equal(cur.MaxTradeSizeUSD.Div(decimal.NewFromInt(2))) {
		t.Errorf("MaxTradeSizeUSD = %s, want halved", rec.MaxTradeSizeUSD)
	}
}

func TestRecommendSlippageWideningIsCapped(t *testing.T) {
	store, cfg := seededStores(t, winningHistory(10))
	if err := cfg.Apply(Patch{SlippageTolerance: decimalPtr("4")}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	opt := NewOptimizer(store, cfg, nil, testLogger())

	rec, err := opt.Recommend(context.Background(), MarketConditions{VolatilityPct: decimal.NewFromInt(15)})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if !rec.SlippageTolerance.Equal(domain.SlippageToleranceMaxPct) {
		t.Errorf("SlippageTolerance = %s, want capped at %s", rec.SlippageTolerance, domain.SlippageToleranceMaxPct)
	}
}

func TestRecommendAdvisorEndorsement(t *testing.T) {
	cases := []struct {
		name       string
		advisor    *fakeAdvisor
		wantSource string
	}{
		{
			name:       "endorsement raises tolerance",
			advisor:    &fakeAdvisor{advice: Advice{Recommendation: AdvisorExecute, Confidence: 80, Reasoning: "stable regime"}},
			wantSource: "advisor",
		},
		{
			name:       "low confidence keeps rules",
			advisor:    &fakeAdvisor{advice: Advice{Recommendation: AdvisorExecute, Confidence: 30}},
			wantSource: "rules",
		},
		{
			name:       "skip keeps rules",
			advisor:    &fakeAdvisor{advice: Advice{Recommendation: AdvisorSkip, Confidence: 90}},
			wantSource: "rules",
		},
		{
			name:       "error degrades to rules",
			advisor:    &fakeAdvisor{err: errors.New("advisor down")},
			wantSource: "rules",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, cfg := seededStores(t, winningHistory(10))
			opt := NewOptimizer(store, cfg, tc.advisor, testLogger())

			rec, err := opt.Recommend(context.Background(), MarketConditions{})
			if err != nil {
				t.Fatalf("recommend: %v", err)
			}
			if rec.Source != tc.wantSource {
				t.Errorf("Source = %q, want %q", rec.Source, tc.wantSource)
			}
			if tc.advisor.calls != 1 {
				t.Errorf("advisor calls = %d, want 1", tc.advisor.calls)
			}
		})
	}
}

func TestRecommendRankings(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	records := []domain.Record{
		optimizerRecord(0, domain.RecordCompleted, "30", base),
		optimizerRecord(1, domain.RecordCompleted, "10", base.Add(time.Minute)),
		optimizerRecord(2, domain.RecordFailed, "0", base.Add(2*time.Minute)),
	}
	// A second pair on other venues, winning every attempt.
	for i := 3; i < 6; i++ {
		r := optimizerRecord(i, domain.RecordCompleted, "5", base.Add(time.Duration(i)*time.Hour))
		r.SourceVenue = venuedomain.MustID("curve")
		r.TargetVenue = venuedomain.MustID("balancer")
		r.TokenIn = execUSDC
		r.TokenOut = execWETH
		records = append(records, r)
	}
	// A non-terminal record must not be counted.
	pending := optimizerRecord(6, domain.RecordExecuting, "0", base)
	records = append(records, pending)

	store, cfg := seededStores(t, records)
	opt := NewOptimizer(store, cfg, nil, testLogger())

	rec, err := opt.Recommend(context.Background(), MarketConditions{})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if len(rec.TopPairs) != 2 {
		t.Fatalf("TopPairs = %d entries, want 2", len(rec.TopPairs))
	}
	// The all-winning pair ranks first despite lower profit.
	if rec.TopPairs[0].TokenIn != execUSDC {
		t.Errorf("top pair token-in = %s, want the 100%% success pair", rec.TopPairs[0].TokenIn)
	}
	if rec.TopPairs[0].Attempts != 3 {
		t.Errorf("top pair attempts = %d, want 3 (pending excluded)", rec.TopPairs[0].Attempts)
	}
	if !rec.TopPairs[1].SuccessRate.Round(2).Equal(decimal.RequireFromString("66.67")) {
		t.Errorf("second pair success rate = %s, want 66.67", rec.TopPairs[1].SuccessRate.Round(2))
	}

	if len(rec.TopVenues) != 4 {
		t.Fatalf("TopVenues = %d entries, want 4", len(rec.TopVenues))
	}
	// balancer and curve tie on rate and profit; ID breaks the tie.
	if rec.TopVenues[0].Venue != venuedomain.MustID("balancer") {
		t.Errorf("top venue = %s, want balancer", rec.TopVenues[0].Venue)
	}

	if len(rec.TradingHours) == 0 {
		t.Fatal("expected trading hour scores")
	}
	best := rec.TradingHours[0]
	if best.Hour != 9 {
		t.Errorf("best hour = %d, want 9 (highest profit and a win)", best.Hour)
	}
}

func TestRecommendIsDeterministic(t *testing.T) {
	records := append(winningHistory(6), losingHistory(3)...)
	store, cfg := seededStores(t, records)
	opt := NewOptimizer(store, cfg, nil, testLogger())
	market := MarketConditions{VolatilityPct: decimal.NewFromInt(3)}

	first, err := opt.Recommend(context.Background(), market)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	second, err := opt.Recommend(context.Background(), market)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if len(first.TopPairs) != len(second.TopPairs) ||
		len(first.TopVenues) != len(second.TopVenues) ||
		len(first.TradingHours) != len(second.TradingHours) {
		t.Fatal("ranking lengths differ across runs")
	}
	for i := range first.TopVenues {
		if first.TopVenues[i].Venue != second.TopVenues[i].Venue {
			t.Fatalf("venue order differs at %d: %s vs %s", i, first.TopVenues[i].Venue, second.TopVenues[i].Venue)
		}
	}
	for i := range first.TradingHours {
		if first.TradingHours[i].Hour != second.TradingHours[i].Hour {
			t.Fatalf("hour order differs at %d", i)
		}
	}
}

func TestApplyPatchesLiveConfig(t *testing.T) {
	store, cfg := seededStores(t, winningHistory(10))
	opt := NewOptimizer(store, cfg, nil, testLogger())

	rec, err := opt.Recommend(context.Background(), MarketConditions{})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if err := opt.Apply(rec); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got := cfg.Get()
	if !got.MinProfitPct.Equal(rec.MinProfitPct) {
		t.Errorf("MinProfitPct = %s, want %s", got.MinProfitPct, rec.MinProfitPct)
	}
	if got.RiskTolerance != rec.RiskTolerance {
		t.Errorf("RiskTolerance = %s, want %s", got.RiskTolerance, rec.RiskTolerance)
	}
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
