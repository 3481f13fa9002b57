package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
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

	"github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/circuitbreaker"
	"github.com/fd1az/dexarb/internal/logger"
)

// PoolPremiumABI exposes the flashloan premium getter on Aave-style pools.
const PoolPremiumABI = `[
	{
		"inputs": [],
		"name": "FLASHLOAN_PREMIUM_TOTAL",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// FlashloanQuoterConfig holds configuration for the flashloan quoter.
type FlashloanQuoterConfig struct {
	RPCURL          string
	Providers       []domain.FlashloanProvider
	RefreshInterval time.Duration // how often on-chain premiums are re-read
}

// DefaultFlashloanQuoterConfig returns the mainnet provider set: Balancer's
// fee-free vault for small borrows, Aave v3 and v2 behind it.
func DefaultFlashloanQuoterConfig(rpcURL string) FlashloanQuoterConfig {
	return FlashloanQuoterConfig{
		RPCURL:          rpcURL,
		RefreshInterval: time.Hour,
		Providers: []domain.FlashloanProvider{
			{
				Name:         "balancer-v2",
				Pool:         common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8"),
				FeeBps:       0,
				MaxAmountUSD: decimal.NewFromInt(250_000),
			},
			{
				Name:         "aave-v3",
				Pool:         common.HexToAddress("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2"),
				FeeBps:       5,
				QueryPremium: true,
			},
			{
				Name:         "aave-v2",
				Pool:         common.HexToAddress("0x7d2768dE32b0b80b7a3454c06BdAc94A69DDc7A9"),
				FeeBps:       9,
				QueryPremium: true,
			},
		},
	}
}

// flashloanMetrics holds OTEL metric instruments.
type flashloanMetrics struct {
	quotes        metric.Int64Counter
	quoteFailures metric.Int64Counter
	refreshes     metric.Int64Counter
}

// FlashloanQuoter prices flashloan funding against a table of providers.
// Providers that expose FLASHLOAN_PREMIUM_TOTAL have their premium re-read
// on-chain; the rest keep their configured fee.
type FlashloanQuoter struct {
	config FlashloanQuoterConfig
	logger logger.LoggerInterface

	client   *ethclient.Client
	clientMu sync.RWMutex

	poolABI abi.ABI

	providers   []domain.FlashloanProvider
	lastRefresh time.Time
	providersMu sync.RWMutex

	cb *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *flashloanMetrics
}

// NewFlashloanQuoter creates a flashloan quoter over the configured providers.
func NewFlashloanQuoter(cfg FlashloanQuoterConfig, log logger.LoggerInterface) (*FlashloanQuoter, error) {
	if len(cfg.Providers) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("flashloan quoter needs at least one provider"))
	}

	poolABI, err := abi.JSON(strings.NewReader(PoolPremiumABI))
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	providers := make([]domain.FlashloanProvider, len(cfg.Providers))
	copy(providers, cfg.Providers)

	q := &FlashloanQuoter{
		config:    cfg,
		logger:    log,
		poolABI:   poolABI,
		providers: providers,
		cb:        circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("flashloan-quoter")),
		tracer:    otel.Tracer(tracerName),
	}

	if err := q.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return q, nil
}

func (q *FlashloanQuoter) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	q.metrics = &flashloanMetrics{}

	q.metrics.quotes, err = meter.Int64Counter(
		"flashloan_quotes_total",
		metric.WithDescription("Total flashloan quotes produced"),
		metric.WithUnit("{quote}"),
	)
	if err != nil {
		return err
	}

	q.metrics.quoteFailures, err = meter.Int64Counter(
		"flashloan_quote_failures_total",
		metric.WithDescription("Quotes that found no covering provider"),
		metric.WithUnit("{quote}"),
	)
	if err != nil {
		return err
	}

	q.metrics.refreshes, err = meter.Int64Counter(
		"flashloan_premium_refreshes_total",
		metric.WithDescription("On-chain premium refresh rounds"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Connect establishes connection to the Ethereum node and performs the
// first premium refresh. Refresh failures are tolerated, the configured
// static fees stand in.
func (q *FlashloanQuoter) Connect(ctx context.Context) error {
	ctx, span := q.tracer.Start(ctx, "flashloan.connect",
		trace.WithAttributes(attribute.String("url", q.config.RPCURL)),
	)
	defer span.End()

	client, err := ethclient.DialContext(ctx, q.config.RPCURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect flashloan quoter"))
	}

	q.clientMu.Lock()
	q.client = client
	q.clientMu.Unlock()

	if err := q.RefreshPremiums(ctx); err != nil {
		q.logger.Warn(ctx, "premium refresh failed, using configured fees", "error", err)
	}

	span.SetStatus(codes.Ok, "connected")
	q.logger.Info(ctx, "flashloan quoter connected",
		"url", q.config.RPCURL,
		"providers", len(q.providers))

	return nil
}

// Quote picks the cheapest provider able to fund amountUSD and prices the
// borrow against the expected gross profit.
func (q *FlashloanQuoter) Quote(ctx context.Context, amountUSD, grossProfitUSD decimal.Decimal) (*domain.FlashloanQuote, error) {
	ctx, span := q.tracer.Start(ctx, "flashloan.quote",
		trace.WithAttributes(attribute.String("amount_usd", amountUSD.String())),
	)
	defer span.End()

	if !amountUSD.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("flashloan amount must be positive"))
	}

	q.maybeRefresh(ctx)

	provider, ok := q.cheapestCovering(amountUSD)
	if !ok {
		q.metrics.quoteFailures.Add(ctx, 1)
		err := apperror.New(apperror.CodeFlashloanQuoteFailed,
			apperror.WithContext("no provider covers "+amountUSD.StringFixed(2)+" USD"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "no provider")
		return nil, err
	}

	quote := domain.QuoteFlashloan(provider.Name, provider.FeePct(), amountUSD, grossProfitUSD)
	q.metrics.quotes.Add(ctx, 1)

	span.SetAttributes(
		attribute.String("provider", quote.Provider),
		attribute.String("fee_usd", quote.FeeUSD.String()),
	)
	span.SetStatus(codes.Ok, "quoted")

	return quote, nil
}

// cheapestCovering returns the lowest-fee provider able to fund amountUSD.
// Fee ties break on name so results are stable.
func (q *FlashloanQuoter) cheapestCovering(amountUSD decimal.Decimal) (domain.FlashloanProvider, bool) {
	q.providersMu.RLock()
	candidates := make([]domain.FlashloanProvider, 0, len(q.providers))
	for _, p := range q.providers {
		if p.Covers(amountUSD) {
			candidates = append(candidates, p)
		}
	}
	q.providersMu.RUnlock()

	if len(candidates) == 0 {
		return domain.FlashloanProvider{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FeeBps != candidates[j].FeeBps {
			return candidates[i].FeeBps < candidates[j].FeeBps
		}
		return candidates[i].Name < candidates[j].Name
	})

	return candidates[0], true
}

// Providers returns a snapshot of the current provider table.
func (q *FlashloanQuoter) Providers() []domain.FlashloanProvider {
	q.providersMu.RLock()
	defer q.providersMu.RUnlock()

	out := make([]domain.FlashloanProvider, len(q.providers))
	copy(out, q.providers)
	return out
}

// maybeRefresh re-reads on-chain premiums when the last round is older than
// the refresh interval. Failures are logged and the table keeps its values.
func (q *FlashloanQuoter) maybeRefresh(ctx context.Context) {
	if q.config.RefreshInterval <= 0 {
		return
	}

	q.providersMu.RLock()
	stale := time.Since(q.lastRefresh) > q.config.RefreshInterval
	q.providersMu.RUnlock()

	if !stale {
		return
	}

	if err := q.RefreshPremiums(ctx); err != nil {
		q.logger.Warn(ctx, "premium refresh failed, keeping current fees", "error", err)
	}
}

// RefreshPremiums reads FLASHLOAN_PREMIUM_TOTAL from every provider that
// exposes it and updates the fee table.
func (q *FlashloanQuoter) RefreshPremiums(ctx context.Context) error {
	ctx, span := q.tracer.Start(ctx, "flashloan.refresh_premiums")
	defer span.End()

	q.clientMu.RLock()
	client := q.client
	q.clientMu.RUnlock()

	if client == nil {
		return apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContext("flashloan quoter not connected"))
	}

	data, err := q.poolABI.Pack("FLASHLOAN_PREMIUM_TOTAL")
	if err != nil {
		return fmt.Errorf("pack premium call: %w", err)
	}

	var firstErr error
	updated := 0

	q.providersMu.Lock()
	defer q.providersMu.Unlock()

	for i := range q.providers {
		p := &q.providers[i]
		if !p.QueryPremium {
			continue
		}

		result, err := q.cb.Execute(func() ([]byte, error) {
			return client.CallContract(ctx, ethereum.CallMsg{
				To:   &p.Pool,
				Data: data,
			}, nil)
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			q.logger.Warn(ctx, "premium read failed",
				"provider", p.Name,
				"error", err)
			continue
		}

		outputs, err := q.poolABI.Unpack("FLASHLOAN_PREMIUM_TOTAL", result)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		bps := outputs[0].(*big.Int).Int64()
		if bps != p.FeeBps {
			q.logger.Info(ctx, "flashloan premium changed",
				"provider", p.Name,
				"old_bps", p.FeeBps,
				"new_bps", bps)
			p.FeeBps = bps
		}
		updated++
	}

	q.lastRefresh = time.Now()
	q.metrics.refreshes.Add(ctx, 1)

	span.SetAttributes(attribute.Int("providers_updated", updated))
	if firstErr != nil {
		span.RecordError(firstErr)
		span.SetStatus(codes.Error, "partial refresh")
		return apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(firstErr),
			apperror.WithContext("premium refresh incomplete"))
	}

	span.SetStatus(codes.Ok, "refreshed")
	return nil
}

// Close closes the quoter.
func (q *FlashloanQuoter) Close() error {
	q.clientMu.Lock()
	defer q.clientMu.Unlock()

	if q.client != nil {
		q.client.Close()
		q.client = nil
	}
	return nil
}
