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

	arbdomain "github.com/fd1az/dexarb/business/arbitrage/domain"
	blockchainapp "github.com/fd1az/dexarb/business/blockchain/app"
	blockchaindomain "github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/business/execution/domain"
	venueapp "github.com/fd1az/dexarb/business/venue/app"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

const (
	execWETH = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	execUSDC = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

// fakeVenue is an in-memory venue adapter with scripted quotes and swap
// rates, so execution tests control every leg.
type fakeVenue struct {
	id        venuedomain.ID
	impactPct decimal.Decimal
	// rates maps tokenIn -> amountOut per unit of amountIn.
	rates   map[string]decimal.Decimal
	swapErr error

	swaps []venuedomain.SwapRequest
}

func (f *fakeVenue) VenueID() venuedomain.ID { return f.id }

func (f *fakeVenue) GetTokenPrice(_ context.Context, tokenIn, _ string) (decimal.Decimal, error) {
	return f.rates[tokenIn], nil
}

func (f *fakeVenue) GetExpectedOutput(_ context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (venuedomain.SwapQuote, error) {
	return venuedomain.SwapQuote{
		VenueID:        f.id,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       amountIn,
		AmountOut:      amountIn.Mul(f.rates[tokenIn]),
		PriceImpactPct: f.impactPct,
		QuotedAt:       time.Now(),
	}, nil
}

func (f *fakeVenue) GetLiquidity(_ context.Context, tokenIn, tokenOut string) (venuedomain.Liquidity, error) {
	return venuedomain.Liquidity{
		VenueID:    f.id,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		ReserveIn:  decimal.NewFromInt(1_000_000),
		ReserveOut: decimal.NewFromInt(1_000_000),
		UpdatedAt:  time.Now(),
	}, nil
}

func (f *fakeVenue) GetSwapFee(context.Context, string, string) (decimal.Decimal, error) {
	return decimal.RequireFromString("0.3"), nil
}

func (f *fakeVenue) ExecuteSwap(_ context.Context, req venuedomain.SwapRequest) (venuedomain.SwapResult, error) {
	f.swaps = append(f.swaps, req)
	if f.swapErr != nil {
		return venuedomain.SwapResult{}, f.swapErr
	}
	return venuedomain.SwapResult{
		VenueID:   f.id,
		TxHash:    "0xtx-" + f.id.String(),
		AmountIn:  req.AmountIn,
		AmountOut: req.AmountIn.Mul(f.rates[req.TokenIn]),
		GasUsed:   120_000,
		Executed:  time.Now(),
	}, nil
}

type fakeGasOracle struct {
	wei *big.Int
}

func (f *fakeGasOracle) GetGasPrice(context.Context) (*blockchaindomain.GasPrice, error) {
	return blockchaindomain.NewGasPrice(f.wei), nil
}

func (f *fakeGasOracle) EstimateGas(context.Context, []byte, string) (uint64, error) {
	return 150_000, nil
}

func (f *fakeGasOracle) GetGasEstimate(ctx context.Context, data []byte, to string) (*blockchaindomain.GasEstimate, error) {
	price, err := f.GetGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return blockchaindomain.NewGasEstimate(300_000, price), nil
}

type fakeSubmitter struct{}

func (fakeSubmitter) SubmitCall(context.Context, common.Address, []byte, uint64) (string, uint64, error) {
	return "0xdeadbeef", 210_000, nil
}
func (fakeSubmitter) CanSign() bool { return true }
func (fakeSubmitter) LatestBlock(context.Context) (*blockchaindomain.Block, error) {
	return nil, nil
}
func (fakeSubmitter) Status() blockchaindomain.ConnectionStatus {
	return blockchaindomain.ConnectionStatus{State: blockchaindomain.StateConnected}
}

type fakeEthPricer struct {
	usd decimal.Decimal
	ok  bool
}

func (f fakeEthPricer) EthPriceUSD(context.Context) (decimal.Decimal, bool) { return f.usd, f.ok }

type serviceFixture struct {
	svc    *Service
	cfg    *ConfigStore
	store  *RecordStore
	sell   *fakeVenue // target venue, the expensive side
	buy    *fakeVenue // source venue, the cheap side
	gas    *fakeGasOracle
	limits *ratelimit.Registry
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	// Selling one WETH on the target yields 3010 USDC; buying back on the
	// source costs 2990 USDC per WETH, so the round trip returns the
	// principal plus a surplus.
	sell := &fakeVenue{
		id:        venuedomain.MustID("uniswap-v2"),
		impactPct: decimal.RequireFromString("0.1"),
		rates: map[string]decimal.Decimal{
			execWETH: decimal.NewFromInt(3010),
		},
	}
	buy := &fakeVenue{
		id:        venuedomain.MustID("sushiswap"),
		impactPct: decimal.RequireFromString("0.1"),
		rates: map[string]decimal.Decimal{
			execWETH: decimal.NewFromInt(2990),
			execUSDC: decimal.NewFromInt(1).Div(decimal.NewFromInt(2990)),
		},
	}

	venues := venueapp.NewRegistry()
	for _, fv := range []*fakeVenue{sell, buy} {
		err := venues.Register(&venuedomain.Venue{ID: fv.id, Name: fv.id.String(), Active: true}, fv)
		if err != nil {
			t.Fatalf("register venue %s: %v", fv.id, err)
		}
	}

	gas := &fakeGasOracle{wei: big.NewInt(10_000_000_000)} // 10 gwei
	chain := blockchainapp.NewBlockchainService(gas, fakeSubmitter{}, nil)

	cfg, err := NewConfigStore(domain.DefaultConfig())
	if err != nil {
		t.Fatalf("config store: %v", err)
	}
	store := NewRecordStore(domain.NewRecords(domain.DefaultRecordCapacity))

	limits := ratelimit.NewRegistry()
	limits.Register(ratelimit.ResourceTradeExecution, ratelimit.Budget{MaxRequests: 1, Window: time.Minute})
	limits.Register(ratelimit.ResourceFlashloanExecution, ratelimit.Budget{MaxRequests: 1, Window: time.Minute})

	svc := NewService(cfg, store, venues, chain, fakeEthPricer{usd: decimal.NewFromInt(3000), ok: true}, limits, testLogger())
	return &serviceFixture{svc: svc, cfg: cfg, store: store, sell: sell, buy: buy, gas: gas, limits: limits}
}

// testOpportunity matches the fixture venues. At 10 gwei and $3000 ETH the
// simulation gas cost is $10.80 for the flat 300k units; with 0.1% quoted
// impact per leg the slippage on a $3000 trade is $6, so the recomputed net
// on a $100 gross is $83.20.
func testOpportunity() *arbdomain.Opportunity {
	src := venuedomain.MustID("sushiswap")
	dst := venuedomain.MustID("uniswap-v2")
	gross := decimal.NewFromInt(100)
	net := decimal.RequireFromString("83.2")
	return &arbdomain.Opportunity{
		ID:           arbdomain.OpportunityID(src, dst, execWETH, execUSDC),
		DiscoveredAt: time.Now(),
		SourceVenue:  src,
		TargetVenue:  dst,
		TokenIn:      execWETH,
		TokenOut:     execUSDC,
		TradeSize:    decimal.NewFromInt(1),
		TradeSizeUSD: decimal.NewFromInt(3000),
		SpreadPct:    decimal.RequireFromString("0.67"),
		Costs:        arbdomain.CostBreakdown{GrossUSD: gross},
		NetProfitUSD: net,
		NetProfitPct: net.Div(decimal.NewFromInt(3000)).Mul(decimal.NewFromInt(100)),
		Risk:         arbdomain.RiskAssessment{Score: 25, Level: arbdomain.RiskLow, Confidence: 75},
		Status:       arbdomain.StatusPending,
	}
}

func TestExecuteTradeCompletes(t *testing.T) {
	fx := newServiceFixture(t)
	opp := testOpportunity()

	result := fx.svc.ExecuteTrade(context.Background(), opp, Options{})

	if result.Status != domain.RecordCompleted {
		t.Fatalf("status = %s (%s), want completed", result.Status, result.Error)
	}
	if !result.Succeeded() {
		t.Fatal("expected Succeeded() for a completed trade")
	}
	if result.TxHash == "" {
		t.Error("expected a tx hash on the result")
	}
	if result.Simulation == nil || !result.Simulation.OK {
		t.Fatal("expected a passing simulation attached to the result")
	}

	// Sell leg routes to the target venue, buy-back to the source.
	if len(fx.sell.swaps) != 1 || fx.sell.swaps[0].TokenIn != execWETH {
		t.Fatalf("sell leg not routed to target venue: %+v", fx.sell.swaps)
	}
	if len(fx.buy.swaps) != 1 || fx.buy.swaps[0].TokenIn != execUSDC {
		t.Fatalf("buy-back leg not routed to source venue: %+v", fx.buy.swaps)
	}
	// Round trip must return at least the principal.
	if !fx.buy.swaps[0].MinAmountOut.Equal(opp.TradeSize) {
		t.Errorf("buy-back MinAmountOut = %s, want principal %s", fx.buy.swaps[0].MinAmountOut, opp.TradeSize)
	}

	records := fx.store.All()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Status != domain.RecordCompleted {
		t.Errorf("record status = %s, want completed", rec.Status)
	}
	if !rec.ActualUSD.IsPositive() {
		t.Errorf("record ActualUSD = %s, want positive", rec.ActualUSD)
	}
	if rec.GasUsed == 0 {
		t.Error("record GasUsed not set")
	}
}

func TestExecuteTradeRateLimited(t *testing.T) {
	fx := newServiceFixture(t)
	opp := testOpportunity()

	first := fx.svc.ExecuteTrade(context.Background(), opp, Options{})
	if first.Status != domain.RecordCompleted {
		t.Fatalf("first trade status = %s (%s), want completed", first.Status, first.Error)
	}

	// The trade budget is one per minute; the second attempt must time out
	// waiting for a slot.
	second := fx.svc.ExecuteTrade(context.Background(), opp, Options{WaitTimeout: 50 * time.Millisecond})
	if second.Status != domain.RecordRateLimited {
		t.Fatalf("second trade status = %s, want rate_limited", second.Status)
	}

	records := fx.store.All()
	if len(records) != 2 {
		t.Fatalf("records = %d, want completed trade plus audit entry", len(records))
	}
	if records[1].Status != domain.RecordRateLimited {
		t.Errorf("audit record status = %s, want rate_limited", records[1].Status)
	}
}

func TestSimulationRejectsGasDominatedTrade(t *testing.T) {
	fx := newServiceFixture(t)
	opp := testOpportunity()
	// Gross $20 against $10.80 of gas: more than half the profit burns as gas.
	opp.Costs.GrossUSD = decimal.NewFromInt(20)
	opp.NetProfitUSD = decimal.RequireFromString("3.2")

	result := fx.svc.ExecuteTrade(context.Background(), opp, Options{})
	if result.Status != domain.RecordSimulationFailed {
		t.Fatalf("status = %s, want simulation_failed", result.Status)
	}
	if !strings.Contains(result.Error, "gas cost") || !strings.Contains(result.Error, "gross profit") {
		t.Errorf("error = %q, want gas cost vs gross profit rejection", result.Error)
	}
	if len(fx.sell.swaps)+len(fx.buy.swaps) != 0 {
		t.Error("no swap should execute after a failed simulation")
	}
}

func TestSimulationRejectsSlippageAboveTolerance(t *testing.T) {
	fx := newServiceFixture(t)
	// Both legs quote 0.8% impact; the 1% default tolerance cannot absorb
	// the 1.6% total.
	fx.sell.impactPct = decimal.RequireFromString("0.8")
	fx.buy.impactPct = decimal.RequireFromString("0.8")

	result := fx.svc.ExecuteTrade(context.Background(), testOpportunity(), Options{})
	if result.Status != domain.RecordSimulationFailed {
		t.Fatalf("status = %s, want simulation_failed", result.Status)
	}
	if !strings.Contains(result.Error, "slippage") {
		t.Errorf("error = %q, want slippage rejection", result.Error)
	}
}

func TestDeviationTripsCircuitBreaker(t *testing.T) {
	fx := newServiceFixture(t)
	opp := testOpportunity()
	// The detector promised $100 net but the simulation recomputes $83.20,
	// a 16.8% shortfall against the 5% threshold.
	opp.NetProfitUSD = decimal.NewFromInt(100)

	result := fx.svc.ExecuteTrade(context.Background(), opp, Options{})
	if result.Status != domain.RecordCircuitBreaker {
		t.Fatalf("status = %s (%s), want circuit_breaker", result.Status, result.Error)
	}

	tripped, event := fx.svc.CircuitBreakerTripped()
	if !tripped {
		t.Fatal("breaker should be latched after the deviation")
	}
	if event.Type != domain.BreakerProfitDeviation {
		t.Errorf("event type = %s, want profit_deviation", event.Type)
	}

	// The latch holds: a clean opportunity is rejected at validation.
	blocked := fx.svc.ExecuteTrade(context.Background(), testOpportunity(), Options{})
	if blocked.Status != domain.RecordCircuitBreaker {
		t.Fatalf("post-trip status = %s, want circuit_breaker", blocked.Status)
	}

	// Only an explicit reset clears it. Widen the trade budget so the
	// retry is not rate limited.
	fx.limits.Register(ratelimit.ResourceTradeExecution, ratelimit.Budget{MaxRequests: 10, Window: time.Minute})
	fx.svc.ResetCircuitBreaker()
	retry := fx.svc.ExecuteTrade(context.Background(), testOpportunity(), Options{})
	if retry.Status != domain.RecordCompleted {
		t.Fatalf("post-reset status = %s (%s), want completed", retry.Status, retry.Error)
	}
}

func TestEmergencyStopBlocksExecution(t *testing.T) {
	fx := newServiceFixture(t)
	fx.svc.ActivateEmergencyStop("drill")

	result := fx.svc.ExecuteTrade(context.Background(), testOpportunity(), Options{})
	if result.Status != domain.RecordCircuitBreaker {
		t.Fatalf("status = %s, want circuit_breaker rejection", result.Status)
	}
	if len(fx.sell.swaps)+len(fx.buy.swaps) != 0 {
		t.Error("no swap should execute under emergency stop")
	}

	fx.svc.DeactivateEmergencyStop()
	if fx.svc.EmergencyStopped() {
		t.Fatal("stop should be lifted")
	}
	result = fx.svc.ExecuteTrade(context.Background(), testOpportunity(), Options{})
	if result.Status != domain.RecordCompleted {
		t.Fatalf("post-deactivation status = %s (%s), want completed", result.Status, result.Error)
	}
}

func TestAutoExecuteTradePolicy(t *testing.T) {
	cases := []struct {
		name          string
		prepare       func(fx *serviceFixture, opp *arbdomain.Opportunity)
		wantAttempted bool
		wantSucceeded bool
	}{
		{
			name: "executes when enabled and profitable",
			prepare: func(fx *serviceFixture, _ *arbdomain.Opportunity) {
				mustUpdateConfig(fx, func(c *domain.Config) { c.AutoExecute = true })
			},
			wantAttempted: true,
			wantSucceeded: true,
		},
		{
			name:    "disabled by default",
			prepare: func(*serviceFixture, *arbdomain.Opportunity) {},
		},
		{
			name: "blocked by emergency stop",
			prepare: func(fx *serviceFixture, _ *arbdomain.Opportunity) {
				mustUpdateConfig(fx, func(c *domain.Config) { c.AutoExecute = true })
				fx.svc.ActivateEmergencyStop("test")
			},
		},
		{
			name: "blocked by tripped breaker",
			prepare: func(fx *serviceFixture, _ *arbdomain.Opportunity) {
				mustUpdateConfig(fx, func(c *domain.Config) { c.AutoExecute = true })
				fx.svc.TripCircuitBreaker(domain.BreakerEvent{Type: domain.BreakerManual, Reason: "test"})
			},
		},
		{
			name: "below usd floor",
			prepare: func(fx *serviceFixture, opp *arbdomain.Opportunity) {
				mustUpdateConfig(fx, func(c *domain.Config) {
					c.AutoExecute = true
					c.MinProfitUSD = decimal.NewFromInt(500)
				})
			},
		},
		{
			name: "high risk with low tolerance",
			prepare: func(fx *serviceFixture, opp *arbdomain.Opportunity) {
				mustUpdateConfig(fx, func(c *domain.Config) { c.AutoExecute = true })
				opp.Risk = arbdomain.RiskAssessment{Score: 85, Level: arbdomain.RiskHigh, Confidence: 15}
			},
		},
		{
			name: "high risk with high tolerance",
			prepare: func(fx *serviceFixture, opp *arbdomain.Opportunity) {
				mustUpdateConfig(fx, func(c *domain.Config) {
					c.AutoExecute = true
					c.RiskTolerance = domain.RiskToleranceHigh
				})
				opp.Risk = arbdomain.RiskAssessment{Score: 85, Level: arbdomain.RiskHigh, Confidence: 15}
			},
			wantAttempted: true,
			wantSucceeded: true,
		},
		{
			name: "attempted but swap fails",
			prepare: func(fx *serviceFixture, _ *arbdomain.Opportunity) {
				mustUpdateConfig(fx, func(c *domain.Config) { c.AutoExecute = true })
				fx.sell.swapErr = errors.New("revert")
			},
			wantAttempted: true,
			wantSucceeded: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newServiceFixture(t)
			opp := testOpportunity()
			tc.prepare(fx, opp)

			attempted, succeeded := fx.svc.AutoExecuteTrade(context.Background(), opp)
			if attempted != tc.wantAttempted || succeeded != tc.wantSucceeded {
				t.Errorf("AutoExecuteTrade = (%v, %v), want (%v, %v)",
					attempted, succeeded, tc.wantAttempted, tc.wantSucceeded)
			}
		})
	}
}

func TestValidateTradeParameters(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(fx *serviceFixture, opp *arbdomain.Opportunity) Options
		wantErr bool
	}{
		{
			name:    "accepts a well-formed trade",
			mutate:  func(*serviceFixture, *arbdomain.Opportunity) Options { return Options{} },
			wantErr: false,
		},
		{
			name: "rejects an inactive venue",
			mutate: func(fx *serviceFixture, _ *arbdomain.Opportunity) Options {
				if err := fx.svc.venues.SetActive(venuedomain.MustID("uniswap-v2"), false); err != nil {
					t.Fatalf("deactivate venue: %v", err)
				}
				return Options{}
			},
			wantErr: true,
		},
		{
			name: "rejects an unknown venue",
			mutate: func(_ *serviceFixture, opp *arbdomain.Opportunity) Options {
				opp.TargetVenue = venuedomain.MustID("unknown-dex")
				return Options{}
			},
			wantErr: true,
		},
		{
			name: "rejects size above the configured maximum",
			mutate: func(_ *serviceFixture, opp *arbdomain.Opportunity) Options {
				opp.TradeSizeUSD = decimal.NewFromInt(50_000)
				return Options{}
			},
			wantErr: true,
		},
		{
			name: "rejects a zero trade size",
			mutate: func(_ *serviceFixture, opp *arbdomain.Opportunity) Options {
				opp.TradeSize = decimal.Zero
				return Options{}
			},
			wantErr: true,
		},
		{
			name: "rejects a tolerance override above 5%",
			mutate: func(*serviceFixture, *arbdomain.Opportunity) Options {
				return Options{SlippageTolerancePct: decimal.NewFromInt(8)}
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newServiceFixture(t)
			opp := testOpportunity()
			opts := tc.mutate(fx, opp)

			err := fx.svc.ValidateTradeParameters(opp, opts)
			if tc.wantErr && err == nil {
				t.Fatal("expected a validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestExecuteTradeFlashloanUsesOwnBudget(t *testing.T) {
	fx := newServiceFixture(t)
	// Exhaust the plain trade budget first.
	first := fx.svc.ExecuteTrade(context.Background(), testOpportunity(), Options{})
	if first.Status != domain.RecordCompleted {
		t.Fatalf("plain trade status = %s (%s), want completed", first.Status, first.Error)
	}

	// A flashloan-funded attempt draws from its own limiter and proceeds.
	second := fx.svc.ExecuteTrade(context.Background(), testOpportunity(), Options{UseFlashloan: true})
	if second.Status != domain.RecordCompleted {
		t.Fatalf("flashloan trade status = %s (%s), want completed", second.Status, second.Error)
	}
	if second.Simulation == nil || !second.Simulation.FlashloanReady {
		t.Error("flashloan readiness should be reported by the simulation")
	}
}

func mustUpdateConfig(fx *serviceFixture, mutate func(*domain.Config)) {
	cfg := fx.cfg.Get()
	mutate(&cfg)
	if err := fx.cfg.Update(cfg); err != nil {
		panic(err)
	}
}
