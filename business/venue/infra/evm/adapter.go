// Package evm implements the venue Adapter against Uniswap V2 style AMMs
// over an Ethereum JSON-RPC endpoint.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/fd1az/dexarb/business/venue/app"
	"github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/cache"
	"github.com/fd1az/dexarb/internal/circuitbreaker"
	"github.com/fd1az/dexarb/internal/logger"
)

const (
	tracerName = "venue-evm"
	meterName  = "venue-evm"

	pairCacheTTL = 10 * time.Minute
)

// Ensure Adapter implements the venue port.
var _ app.Adapter = (*Adapter)(nil)

// TxSender submits a prepared contract call as a signed transaction and
// waits for inclusion. The blockchain context provides the implementation;
// a nil sender leaves the adapter quote-only.
type TxSender interface {
	SubmitCall(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (txHash string, gasUsed uint64, err error)
}

// adapterMetrics holds OTEL metric instruments.
type adapterMetrics struct {
	callsTotal  metric.Int64Counter
	callLatency metric.Float64Histogram
	callErrors  metric.Int64Counter
	swapsTotal  metric.Int64Counter
}

// Adapter serves quotes and swaps for one V2 style venue.
type Adapter struct {
	venue  *domain.Venue
	client *ethclient.Client
	sender TxSender

	factoryABI abi.ABI
	pairABI    abi.ABI
	routerABI  abi.ABI

	registry  *asset.Registry
	logger    logger.LoggerInterface
	cb        *circuitbreaker.CircuitBreaker[[]byte]
	pace      *rate.Limiter
	pairCache *cache.Cache[string, common.Address]

	tracer  trace.Tracer
	metrics *adapterMetrics
}

// NewAdapter creates an adapter for venue backed by client. rpcPerSecond
// paces JSON-RPC calls; sender may be nil for quote-only operation.
func NewAdapter(client *ethclient.Client, venue *domain.Venue, sender TxSender, rpcPerSecond float64, log logger.LoggerInterface) (*Adapter, error) {
	factoryABI, err := abi.JSON(strings.NewReader(FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	pairABI, err := abi.JSON(strings.NewReader(PairABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}
	routerABI, err := abi.JSON(strings.NewReader(RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}

	if rpcPerSecond <= 0 {
		rpcPerSecond = 10
	}

	a := &Adapter{
		venue:      venue,
		client:     client,
		sender:     sender,
		factoryABI: factoryABI,
		pairABI:    pairABI,
		routerABI:  routerABI,
		registry:   asset.DefaultRegistry(),
		logger:     log,
		pace:       rate.NewLimiter(rate.Limit(rpcPerSecond), int(rpcPerSecond)),
		pairCache:  cache.New[string, common.Address](pairCacheTTL),
		tracer:     otel.Tracer(tracerName),
	}

	cbCfg := circuitbreaker.DefaultConfig("venue-" + venue.ID.String())
	a.cb = circuitbreaker.New[[]byte](cbCfg)

	if err := a.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return a, nil
}

func (a *Adapter) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	a.metrics = &adapterMetrics{}

	a.metrics.callsTotal, err = meter.Int64Counter(
		"venue_rpc_calls_total",
		metric.WithDescription("Total venue RPC calls"),
	)
	if err != nil {
		return err
	}

	a.metrics.callLatency, err = meter.Float64Histogram(
		"venue_rpc_latency_ms",
		metric.WithDescription("Venue RPC call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	a.metrics.callErrors, err = meter.Int64Counter(
		"venue_rpc_errors_total",
		metric.WithDescription("Total venue RPC errors"),
	)
	if err != nil {
		return err
	}

	a.metrics.swapsTotal, err = meter.Int64Counter(
		"venue_swaps_total",
		metric.WithDescription("Total swaps submitted"),
	)
	if err != nil {
		return err
	}

	return nil
}

// VenueID returns the venue this adapter serves.
func (a *Adapter) VenueID() domain.ID {
	return a.venue.ID
}

// GetTokenPrice returns the pool mid price of tokenIn in tokenOut units.
func (a *Adapter) GetTokenPrice(ctx context.Context, tokenIn, tokenOut string) (decimal.Decimal, error) {
	ctx, span := a.tracer.Start(ctx, "venue.get_token_price",
		trace.WithAttributes(
			attribute.String("venue", a.venue.ID.String()),
			attribute.String("token_in", tokenIn),
			attribute.String("token_out", tokenOut),
		),
	)
	defer span.End()

	liq, err := a.GetLiquidity(ctx, tokenIn, tokenOut)
	if err != nil {
		span.SetStatus(codes.Error, "liquidity fetch failed")
		return decimal.Zero, err
	}

	if liq.ReserveIn.IsZero() {
		span.SetStatus(codes.Error, "empty reserve")
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext(fmt.Sprintf("empty reserves on %s", a.venue.ID)))
	}

	price := liq.ReserveOut.Div(liq.ReserveIn)
	span.SetStatus(codes.Ok, "priced")
	return price, nil
}

// GetLiquidity reads pair reserves, ordered for the tokenIn -> tokenOut side.
func (a *Adapter) GetLiquidity(ctx context.Context, tokenIn, tokenOut string) (domain.Liquidity, error) {
	ctx, span := a.tracer.Start(ctx, "venue.get_liquidity",
		trace.WithAttributes(
			attribute.String("venue", a.venue.ID.String()),
			attribute.String("token_in", tokenIn),
			attribute.String("token_out", tokenOut),
		),
	)
	defer span.End()

	in := common.HexToAddress(tokenIn)
	out := common.HexToAddress(tokenOut)

	pair, err := a.pairFor(ctx, in, out)
	if err != nil {
		span.SetStatus(codes.Error, "pair lookup failed")
		return domain.Liquidity{}, err
	}

	r0, r1, err := a.getReserves(ctx, pair)
	if err != nil {
		span.SetStatus(codes.Error, "reserve read failed")
		return domain.Liquidity{}, err
	}

	token0, err := a.token0(ctx, pair)
	if err != nil {
		span.SetStatus(codes.Error, "token0 read failed")
		return domain.Liquidity{}, err
	}

	reserveIn, reserveOut := r0, r1
	if token0 != in {
		reserveIn, reserveOut = r1, r0
	}

	liq := domain.Liquidity{
		VenueID:    a.venue.ID,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		ReserveIn:  a.toDecimal(in, reserveIn),
		ReserveOut: a.toDecimal(out, reserveOut),
		UpdatedAt:  time.Now(),
	}

	span.SetStatus(codes.Ok, "reserves read")
	return liq, nil
}

// GetExpectedOutput quotes amountIn through the constant-product curve with
// the venue fee applied, and reports the resulting price impact.
func (a *Adapter) GetExpectedOutput(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (domain.SwapQuote, error) {
	ctx, span := a.tracer.Start(ctx, "venue.get_expected_output",
		trace.WithAttributes(
			attribute.String("venue", a.venue.ID.String()),
			attribute.String("token_in", tokenIn),
			attribute.String("token_out", tokenOut),
			attribute.String("amount_in", amountIn.String()),
		),
	)
	defer span.End()

	if amountIn.Sign() <= 0 {
		return domain.SwapQuote{}, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext("amount in must be positive"))
	}

	liq, err := a.GetLiquidity(ctx, tokenIn, tokenOut)
	if err != nil {
		span.SetStatus(codes.Error, "liquidity fetch failed")
		return domain.SwapQuote{}, err
	}
	if liq.ReserveIn.IsZero() || liq.ReserveOut.IsZero() {
		span.SetStatus(codes.Error, "empty pool")
		return domain.SwapQuote{}, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext(fmt.Sprintf("empty pool on %s", a.venue.ID)))
	}

	// x*y=k with fee: out = (in * (1-fee) * Rout) / (Rin + in * (1-fee))
	feeFactor := decimal.NewFromInt(10000 - a.venue.FeeBps).Div(decimal.NewFromInt(10000))
	inAfterFee := amountIn.Mul(feeFactor)
	amountOut := inAfterFee.Mul(liq.ReserveOut).Div(liq.ReserveIn.Add(inAfterFee))

	spot := liq.ReserveOut.Div(liq.ReserveIn)
	effective := amountOut.Div(amountIn)

	impact := decimal.Zero
	if spot.Sign() > 0 {
		impact = spot.Sub(effective).Div(spot).Mul(decimal.NewFromInt(100))
	}

	quote := domain.SwapQuote{
		VenueID:        a.venue.ID,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		PriceImpactPct: impact,
		FeePct:         decimal.NewFromInt(a.venue.FeeBps).Div(decimal.NewFromInt(100)),
		QuotedAt:       time.Now(),
	}

	span.SetAttributes(
		attribute.String("amount_out", amountOut.String()),
		attribute.String("price_impact_pct", impact.String()),
	)
	span.SetStatus(codes.Ok, "quoted")
	return quote, nil
}

// GetSwapFee returns the venue's LP fee as a percentage.
func (a *Adapter) GetSwapFee(ctx context.Context, tokenIn, tokenOut string) (decimal.Decimal, error) {
	return decimal.NewFromInt(a.venue.FeeBps).Div(decimal.NewFromInt(100)), nil
}

// ExecuteSwap routes an exact-in swap through the venue router.
func (a *Adapter) ExecuteSwap(ctx context.Context, req domain.SwapRequest) (domain.SwapResult, error) {
	ctx, span := a.tracer.Start(ctx, "venue.execute_swap",
		trace.WithAttributes(
			attribute.String("venue", a.venue.ID.String()),
			attribute.String("token_in", req.TokenIn),
			attribute.String("token_out", req.TokenOut),
			attribute.String("amount_in", req.AmountIn.String()),
			attribute.Bool("flashloan", req.Flashloan),
		),
	)
	defer span.End()

	if a.sender == nil {
		span.SetStatus(codes.Error, "no sender")
		return domain.SwapResult{}, apperror.New(apperror.CodeVenueSwapFailed,
			apperror.WithContext("adapter is quote-only: no transaction sender configured"))
	}

	in := common.HexToAddress(req.TokenIn)
	out := common.HexToAddress(req.TokenOut)

	rawIn, err := a.toRaw(in, req.AmountIn)
	if err != nil {
		return domain.SwapResult{}, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithCause(err),
			apperror.WithContext("amount in"))
	}
	rawMinOut, err := a.toRaw(out, req.MinAmountOut)
	if err != nil {
		return domain.SwapResult{}, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithCause(err),
			apperror.WithContext("min amount out"))
	}

	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = time.Now().Add(2 * time.Minute)
	}

	callData, err := a.routerABI.Pack("swapExactTokensForTokens",
		rawIn,
		rawMinOut,
		[]common.Address{in, out},
		a.venue.Router, // proceeds stay with the executing contract
		big.NewInt(deadline.Unix()),
	)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("failed to encode swap: %w", err)
	}

	a.metrics.swapsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("venue", a.venue.ID.String()),
	))

	txHash, gasUsed, err := a.sender.SubmitCall(ctx, a.venue.Router, callData, 0)
	if err != nil {
		span.SetStatus(codes.Error, "submit failed")
		return domain.SwapResult{}, apperror.New(apperror.CodeVenueSwapFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("swap on %s", a.venue.ID)))
	}

	a.logger.Info(ctx, "swap submitted",
		"venue", a.venue.ID.String(),
		"tx_hash", txHash,
		"amount_in", req.AmountIn.String(),
		"min_out", req.MinAmountOut.String())

	span.SetStatus(codes.Ok, "swap submitted")
	return domain.SwapResult{
		VenueID:   a.venue.ID,
		TxHash:    txHash,
		AmountIn:  req.AmountIn,
		AmountOut: req.MinAmountOut, // realized amount comes from receipt logs; floor is what we guarantee
		GasUsed:   gasUsed,
		Executed:  time.Now(),
	}, nil
}

// pairFor resolves (and caches) the pool address for a token pair.
func (a *Adapter) pairFor(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	key := strings.ToLower(tokenA.Hex() + ":" + tokenB.Hex())
	if addr, ok := a.pairCache.Get(ctx, key); ok {
		return addr, nil
	}

	callData, err := a.factoryABI.Pack("getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to encode getPair: %w", err)
	}

	result, err := a.callContract(ctx, a.venue.Factory, callData)
	if err != nil {
		return common.Address{}, err
	}

	outputs, err := a.factoryABI.Unpack("getPair", result)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode getPair: %w", err)
	}

	pair := outputs[0].(common.Address)
	if pair == (common.Address{}) {
		return common.Address{}, apperror.New(apperror.CodePoolNotFound,
			apperror.WithContext(fmt.Sprintf("%s/%s on %s", tokenA.Hex(), tokenB.Hex(), a.venue.ID)))
	}

	a.pairCache.Set(ctx, key, pair, pairCacheTTL)
	return pair, nil
}

func (a *Adapter) getReserves(ctx context.Context, pair common.Address) (*big.Int, *big.Int, error) {
	callData, err := a.pairABI.Pack("getReserves")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode getReserves: %w", err)
	}

	result, err := a.callContract(ctx, pair, callData)
	if err != nil {
		return nil, nil, err
	}

	outputs, err := a.pairABI.Unpack("getReserves", result)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode getReserves: %w", err)
	}
	if len(outputs) < 2 {
		return nil, nil, fmt.Errorf("unexpected getReserves output length: %d", len(outputs))
	}

	return outputs[0].(*big.Int), outputs[1].(*big.Int), nil
}

func (a *Adapter) token0(ctx context.Context, pair common.Address) (common.Address, error) {
	callData, err := a.pairABI.Pack("token0")
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to encode token0: %w", err)
	}

	result, err := a.callContract(ctx, pair, callData)
	if err != nil {
		return common.Address{}, err
	}

	outputs, err := a.pairABI.Unpack("token0", result)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode token0: %w", err)
	}

	return outputs[0].(common.Address), nil
}

// callContract runs a paced, breaker-guarded eth_call.
func (a *Adapter) callContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := a.pace.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	a.metrics.callsTotal.Add(ctx, 1)

	result, err := a.cb.Execute(func() ([]byte, error) {
		return a.client.CallContract(ctx, ethereum.CallMsg{
			To:   &to,
			Data: data,
		}, nil)
	})

	a.metrics.callLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		a.metrics.callErrors.Add(ctx, 1)
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("call to %s on %s", to.Hex(), a.venue.ID)))
	}

	return result, nil
}

// toDecimal converts a raw on-chain amount to human units.
func (a *Adapter) toDecimal(token common.Address, raw *big.Int) decimal.Decimal {
	return asset.ToDecimal(raw, a.decimalsFor(token))
}

// toRaw converts a human-unit amount to raw on-chain units.
func (a *Adapter) toRaw(token common.Address, amount decimal.Decimal) (*big.Int, error) {
	raw, err := asset.ToRaw(amount, a.decimalsFor(token))
	if err != nil {
		return nil, fmt.Errorf("convert %s for %s: %w", amount, token.Hex(), err)
	}
	return raw, nil
}

func (a *Adapter) decimalsFor(token common.Address) uint8 {
	if known, ok := a.registry.GetToken(a.venue.ChainID, token); ok {
		return known.Decimals()
	}
	return 18
}

// Close releases adapter resources.
func (a *Adapter) Close() {
	a.pairCache.Close()
}
