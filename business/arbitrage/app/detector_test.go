package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	blockchainapp "github.com/fd1az/dexarb/business/blockchain/app"
	blockchaindomain "github.com/fd1az/dexarb/business/blockchain/domain"
	pricingapp "github.com/fd1az/dexarb/business/pricing/app"
	pricingdomain "github.com/fd1az/dexarb/business/pricing/domain"
	venueapp "github.com/fd1az/dexarb/business/venue/app"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/logger"
)

const (
	arbWETH = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	arbUSDC = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

func pairKey(in, out string) string {
	return strings.ToLower(in) + "/" + strings.ToLower(out)
}

// fakeMarket scripts one venue's prices, quotes and reserves per pair.
type fakeMarket struct {
	id       venuedomain.ID
	prices   map[string]decimal.Decimal // mid price per pair
	rates    map[string]decimal.Decimal // quoted output per unit in; falls back to prices
	reserves map[string]decimal.Decimal // input-token reserve per pair
	impact   decimal.Decimal
	priceErr error
	quoteErr error
}

func (f *fakeMarket) VenueID() venuedomain.ID { return f.id }

func (f *fakeMarket) GetTokenPrice(_ context.Context, tokenIn, tokenOut string) (decimal.Decimal, error) {
	if f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	price, ok := f.prices[pairKey(tokenIn, tokenOut)]
	if !ok {
		return decimal.Zero, errors.New("no price for pair")
	}
	return price, nil
}

func (f *fakeMarket) GetExpectedOutput(_ context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (venuedomain.SwapQuote, error) {
	if f.quoteErr != nil {
		return venuedomain.SwapQuote{}, f.quoteErr
	}
	rate, ok := f.rates[pairKey(tokenIn, tokenOut)]
	if !ok {
		rate, ok = f.prices[pairKey(tokenIn, tokenOut)]
		if !ok {
			return venuedomain.SwapQuote{}, errors.New("no rate for pair")
		}
	}
	return venuedomain.SwapQuote{
		VenueID:        f.id,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       amountIn,
		AmountOut:      amountIn.Mul(rate),
		PriceImpactPct: f.impact,
		QuotedAt:       time.Now(),
	}, nil
}

func (f *fakeMarket) GetLiquidity(_ context.Context, tokenIn, tokenOut string) (venuedomain.Liquidity, error) {
	reserve, ok := f.reserves[pairKey(tokenIn, tokenOut)]
	if !ok {
		return venuedomain.Liquidity{}, errors.New("no pool for pair")
	}
	return venuedomain.Liquidity{
		VenueID:    f.id,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		ReserveIn:  reserve,
		ReserveOut: reserve,
		UpdatedAt:  time.Now(),
	}, nil
}

func (f *fakeMarket) GetSwapFee(context.Context, string, string) (decimal.Decimal, error) {
	return decimal.RequireFromString("0.3"), nil
}

func (f *fakeMarket) ExecuteSwap(_ context.Context, req venuedomain.SwapRequest) (venuedomain.SwapResult, error) {
	return venuedomain.SwapResult{
		VenueID:   f.id,
		TxHash:    "0xtx",
		AmountIn:  req.AmountIn,
		AmountOut: req.AmountIn,
		GasUsed:   120_000,
	}, nil
}

type stubGasOracle struct {
	wei *big.Int
}

func (s *stubGasOracle) GetGasPrice(context.Context) (*blockchaindomain.GasPrice, error) {
	return blockchaindomain.NewGasPrice(s.wei), nil
}
func (s *stubGasOracle) EstimateGas(context.Context, []byte, string) (uint64, error) {
	return 150_000, nil
}
func (s *stubGasOracle) GetGasEstimate(ctx context.Context, _ []byte, _ string) (*blockchaindomain.GasEstimate, error) {
	price, _ := s.GetGasPrice(ctx)
	return blockchaindomain.NewGasEstimate(300_000, price), nil
}

type stubEthPricer struct{ usd decimal.Decimal }

func (s stubEthPricer) EthPriceUSD(context.Context) (decimal.Decimal, bool) { return s.usd, true }

type detectorFixture struct {
	detector *Detector
	venueA   *fakeMarket
	venueB   *fakeMarket
	gas      *stubGasOracle
	prices   *pricingapp.Store
}

// newDetectorFixture sets up the canonical two-venue WETH/USDC market:
// WETH at 3500 on uniswap-v2 and 3550 on sushiswap, deep pools, 10 gwei.
func newDetectorFixture(t *testing.T, cfg DetectorConfig) *detectorFixture {
	t.Helper()

	deep := decimal.NewFromInt(1_000_000)
	venueA := &fakeMarket{
		id:     venuedomain.MustID("uniswap-v2"),
		prices: map[string]decimal.Decimal{pairKey(arbWETH, arbUSDC): decimal.NewFromInt(3500)},
		rates: map[string]decimal.Decimal{
			pairKey(arbUSDC, arbWETH): decimal.NewFromInt(1).Div(decimal.NewFromInt(3500)),
		},
		reserves: map[string]decimal.Decimal{
			pairKey(arbWETH, arbUSDC): decimal.NewFromInt(100),
			pairKey(arbUSDC, arbWETH): deep,
		},
		impact: decimal.RequireFromString("0.1"),
	}
	venueB := &fakeMarket{
		id:     venuedomain.MustID("sushiswap"),
		prices: map[string]decimal.Decimal{pairKey(arbWETH, arbUSDC): decimal.NewFromInt(3550)},
		rates: map[string]decimal.Decimal{
			pairKey(arbUSDC, arbWETH): decimal.NewFromInt(1).Div(decimal.NewFromInt(3550)),
		},
		reserves: map[string]decimal.Decimal{
			pairKey(arbWETH, arbUSDC): decimal.NewFromInt(100),
			pairKey(arbUSDC, arbWETH): deep,
		},
		impact: decimal.RequireFromString("0.1"),
	}

	venues := venueapp.NewRegistry()
	for _, m := range []*fakeMarket{venueA, venueB} {
		if err := venues.Register(&venuedomain.Venue{ID: m.id, Name: m.id.String(), Active: true}, m); err != nil {
			t.Fatalf("register venue %s: %v", m.id, err)
		}
	}

	gas := &stubGasOracle{wei: big.NewInt(10_000_000_000)}
	chain := blockchainapp.NewBlockchainService(gas, stubSubmitter{}, nil)
	prices := pricingapp.NewStore(pricingdomain.NewHistory(pricingdomain.DefaultMaxPointsPerToken))

	estimator := NewCostEstimator(venues, chain, stubEthPricer{usd: decimal.NewFromInt(3000)}, testLogger())

	if cfg.MinProfitPct.IsZero() {
		cfg.MinProfitPct = decimal.RequireFromString("0.5")
	}
	if cfg.MinProfitUSD.IsZero() {
		cfg.MinProfitUSD = decimal.NewFromInt(5)
	}
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = []pricingdomain.Pair{pricingdomain.NewPair(arbWETH, arbUSDC)}
	}

	detector := NewDetector(venues, prices, estimator, asset.DefaultRegistry(), cfg, testLogger())
	return &detectorFixture{detector: detector, venueA: venueA, venueB: venueB, gas: gas, prices: prices}
}

type stubSubmitter struct{}

func (stubSubmitter) SubmitCall(context.Context, common.Address, []byte, uint64) (string, uint64, error) {
	return "0xdeadbeef", 210_000, nil
}
func (stubSubmitter) CanSign() bool { return false }
func (stubSubmitter) LatestBlock(context.Context) (*blockchaindomain.Block, error) {
	return nil, nil
}
func (stubSubmitter) Status() blockchaindomain.ConnectionStatus {
	return blockchaindomain.ConnectionStatus{State: blockchaindomain.StateConnected}
}

func TestDetectDirectFindsSpread(t *testing.T) {
	fx := newDetectorFixture(t, DetectorConfig{})

	opp := fx.detector.DetectDirect(context.Background(), arbWETH, arbUSDC,
		venuedomain.MustID("uniswap-v2"), venuedomain.MustID("sushiswap"))
	if opp == nil {
		t.Fatal("expected an opportunity on a 3500/3550 spread")
	}

	if opp.SourceVenue != venuedomain.MustID("uniswap-v2") {
		t.Errorf("source = %s, want the cheaper uniswap-v2", opp.SourceVenue)
	}
	if opp.TargetVenue != venuedomain.MustID("sushiswap") {
		t.Errorf("target = %s, want sushiswap", opp.TargetVenue)
	}
	if !opp.NetProfitUSD.IsPositive() {
		t.Errorf("net profit = %s, want positive", opp.NetProfitUSD)
	}

	// 0.5% of the 100 WETH reserve.
	if !opp.TradeSize.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("trade size = %s, want 0.5", opp.TradeSize)
	}
	if !opp.TradeSizeUSD.Equal(decimal.NewFromInt(1750)) {
		t.Errorf("trade size USD = %s, want 1750", opp.TradeSizeUSD)
	}

	// Direct trade: 230k gas units, impact quoted on both legs.
	if opp.Costs.GasUnits != 230_000 {
		t.Errorf("gas units = %d, want 230000", opp.Costs.GasUnits)
	}
	if !opp.Costs.SlippagePct.Equal(decimal.RequireFromString("0.2")) {
		t.Errorf("slippage = %s%%, want 0.2", opp.Costs.SlippagePct)
	}
	if opp.ID != "uniswap-v2>sushiswap:"+strings.ToLower(arbWETH)+"/"+strings.ToLower(arbUSDC) {
		t.Errorf("unexpected id %q", opp.ID)
	}
}

func TestDetectDirectSpreadBelowFloor(t *testing.T) {
	fx := newDetectorFixture(t, DetectorConfig{})
	// 0.2% spread against the 0.5% floor.
	fx.venueB.prices[pairKey(arbWETH, arbUSDC)] = decimal.NewFromInt(3507)

	opp := fx.detector.DetectDirect(context.Background(), arbWETH, arbUSDC,
		venuedomain.MustID("uniswap-v2"), venuedomain.MustID("sushiswap"))
	if opp != nil {
		t.Fatalf("expected nil for a 0.2%% spread, got %s", opp.ID)
	}
}

func TestDetectDirectGasDominates(t *testing.T) {
	fx := newDetectorFixture(t, DetectorConfig{})
	// 200 gwei turns $25 gross into a loss after gas.
	fx.gas.wei = big.NewInt(200_000_000_000)

	opp := fx.detector.DetectDirect(context.Background(), arbWETH, arbUSDC,
		venuedomain.MustID("uniswap-v2"), venuedomain.MustID("sushiswap"))
	if opp != nil {
		t.Fatalf("expected nil when gas dominates, got net %s", opp.NetProfitUSD)
	}
}

func TestDetectDirectThinPoolUntradeable(t *testing.T) {
	fx := newDetectorFixture(t, DetectorConfig{})
	// Under twice the $50-equivalent floor: 50/3500*2 ~ 0.0286 WETH.
	fx.venueA.reserves[pairKey(arbWETH, arbUSDC)] = decimal.RequireFromString("0.02")

	opp := fx.detector.DetectDirect(context.Background(), arbWETH, arbUSDC,
		venuedomain.MustID("uniswap-v2"), venuedomain.MustID("sushiswap"))
	if opp != nil {
		t.Fatal("expected nil for an untradeable pool")
	}
}

func TestDetectDirectPriceErrorYieldsNil(t *testing.T) {
	fx := newDetectorFixture(t, DetectorConfig{})
	fx.venueA.priceErr = errors.New("rpc down")

	opp := fx.detector.DetectDirect(context.Background(), arbWETH, arbUSDC,
		venuedomain.MustID("uniswap-v2"), venuedomain.MustID("sushiswap"))
	if opp != nil {
		t.Fatal("expected nil when a price fetch fails")
	}
}

func TestDetectDirectRiskScoring(t *testing.T) {
	fx := newDetectorFixture(t, DetectorConfig{})

	opp := fx.detector.DetectDirect(context.Background(), arbWETH, arbUSDC,
		venuedomain.MustID("uniswap-v2"), venuedomain.MustID("sushiswap"))
	if opp == nil {
		t.Fatal("expected an opportunity")
	}

	// Base 50, calm market, major -3, stable -5; margin below 1% leaves it.
	// SlippagePct 0.2 adds nothing.
	if opp.Risk.Score != 42 {
		t.Errorf("risk score = %d, want 42", opp.Risk.Score)
	}
	if opp.Risk.Confidence != 58 {
		t.Errorf("confidence = %d, want 58", opp.Risk.Confidence)
	}
}

func TestScanThresholdMonotonicity(t *testing.T) {
	loose := newDetectorFixture(t, DetectorConfig{MinProfitPct: decimal.RequireFromString("0.5")})
	strict := newDetectorFixture(t, DetectorConfig{MinProfitPct: decimal.NewFromInt(5)})

	if got := loose.detector.Scan(context.Background()); len(got) == 0 {
		t.Fatal("loose floor should find the spread")
	}
	if got := strict.detector.Scan(context.Background()); len(got) != 0 {
		t.Fatalf("strict floor should filter everything, got %d", len(got))
	}
}

func TestScanIsDeterministic(t *testing.T) {
	fx := newDetectorFixture(t, DetectorConfig{
		BridgeTokens: []string{arbUSDC},
	})

	first := fx.detector.Scan(context.Background())
	second := fx.detector.Scan(context.Background())

	if len(first) == 0 {
		t.Fatal("expected opportunities")
	}
	if len(first) != len(second) {
		t.Fatalf("scans differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("order differs at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
		if !first[i].NetProfitUSD.Equal(second[i].NetProfitUSD) {
			t.Fatalf("economics differ for %s", first[i].ID)
		}
	}
	// Sorted by net profit descending.
	for i := 1; i < len(first); i++ {
		if first[i].NetProfitUSD.GreaterThan(first[i-1].NetProfitUSD) {
			t.Fatal("scan results not sorted by net profit")
		}
	}
}

func TestDetectMultiHopRoundTrip(t *testing.T) {
	fx := newDetectorFixture(t, DetectorConfig{})

	opps := fx.detector.DetectMultiHop(context.Background(), arbUSDC, []string{arbWETH},
		[]venuedomain.ID{venuedomain.MustID("uniswap-v2"), venuedomain.MustID("sushiswap")})
	if len(opps) != 1 {
		t.Fatalf("opportunities = %d, want the single profitable cycle", len(opps))
	}

	opp := opps[0]
	// Buy WETH cheap on uniswap-v2, sell dear on sushiswap.
	wantPath := []venuedomain.ID{venuedomain.MustID("uniswap-v2"), venuedomain.MustID("sushiswap")}
	if len(opp.Path) != 2 || opp.Path[0].Venue != wantPath[0] || opp.Path[1].Venue != wantPath[1] {
		t.Fatalf("path = %+v, want %v", opp.Path, wantPath)
	}
	if !opp.NetProfitUSD.IsPositive() {
		t.Errorf("net profit = %s, want positive", opp.NetProfitUSD)
	}
	// Quoted-route costing reports impact but charges no extra slippage.
	if !opp.Costs.SlippageUSD.IsZero() {
		t.Errorf("slippage USD = %s, want 0 for quoted routes", opp.Costs.SlippageUSD)
	}
	if !opp.Costs.SlippagePct.Equal(decimal.RequireFromString("0.2")) {
		t.Errorf("slippage pct = %s, want summed 0.2", opp.Costs.SlippagePct)
	}
	if !strings.HasSuffix(opp.ID, ":hop2") {
		t.Errorf("id %q should carry the hop count", opp.ID)
	}
}

func TestDetectMultiHopQuoteErrorSkipsRoute(t *testing.T) {
	fx := newDetectorFixture(t, DetectorConfig{})
	fx.venueA.quoteErr = errors.New("pool gone")

	opps := fx.detector.DetectMultiHop(context.Background(), arbUSDC, []string{arbWETH},
		[]venuedomain.ID{venuedomain.MustID("uniswap-v2"), venuedomain.MustID("sushiswap")})
	if len(opps) != 0 {
		t.Fatalf("opportunities = %d, want none when the buy leg cannot quote", len(opps))
	}
}
