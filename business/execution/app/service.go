package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	arbdomain "github.com/fd1az/dexarb/business/arbitrage/domain"
	blockchainapp "github.com/fd1az/dexarb/business/blockchain/app"
	"github.com/fd1az/dexarb/business/execution/domain"
	venueapp "github.com/fd1az/dexarb/business/venue/app"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

const (
	// SimulationGasUnits is the flat dry-run gas estimate for a two-leg trade.
	SimulationGasUnits uint64 = 300_000

	// gasShareOfProfitCap rejects trades whose gas would eat more than half
	// the gross profit.
	gasShareOfProfitCap = "0.5"

	defaultWaitTimeout = 5 * time.Second
	swapDeadline       = 2 * time.Minute
)

var fiftyPct = decimal.RequireFromString(gasShareOfProfitCap)

// Options tune a single execution attempt.
type Options struct {
	// UseFlashloan funds the trade with a borrow and draws from the
	// flashloan budget instead of the trade budget.
	UseFlashloan bool

	// SlippageTolerancePct overrides the configured tolerance when positive.
	SlippageTolerancePct decimal.Decimal

	// WaitTimeout bounds the rate-limit wait. Zero selects the default 5s.
	WaitTimeout time.Duration
}

// Service owns the execution path: safety validation, pre-flight
// simulation, rate-limited submission and the circuit-breaker and
// emergency-stop interlocks. Every call returns a structured result;
// the service itself never panics on a rejected trade.
type Service struct {
	cfg      *ConfigStore
	records  *RecordStore
	venues   *venueapp.Registry
	chain    *blockchainapp.BlockchainService
	eth      EthPricer
	limiters *ratelimit.Registry
	logger   logger.LoggerInterface

	mu            sync.Mutex
	breakerEvent  *domain.BreakerEvent
	emergencyStop bool
	inFlight      int

	now func() time.Time
}

// NewService wires the execution service.
func NewService(
	cfg *ConfigStore,
	records *RecordStore,
	venues *venueapp.Registry,
	chain *blockchainapp.BlockchainService,
	eth EthPricer,
	limiters *ratelimit.Registry,
	log logger.LoggerInterface,
) *Service {
	return &Service{
		cfg:      cfg,
		records:  records,
		venues:   venues,
		chain:    chain,
		eth:      eth,
		limiters: limiters,
		logger:   log,
		now:      time.Now,
	}
}

// TripCircuitBreaker latches the breaker. All executions are rejected at
// validation until ResetCircuitBreaker is called.
func (s *Service) TripCircuitBreaker(event domain.BreakerEvent) {
	s.mu.Lock()
	event.TrippedAt = s.now()
	s.breakerEvent = &event
	s.mu.Unlock()

	s.logger.Error(context.Background(), "circuit breaker tripped",
		"type", event.Type,
		"reason", event.Reason)
}

// ResetCircuitBreaker clears the latch. Operator action only.
func (s *Service) ResetCircuitBreaker() {
	s.mu.Lock()
	s.breakerEvent = nil
	s.mu.Unlock()
	s.logger.Info(context.Background(), "circuit breaker reset")
}

// CircuitBreakerTripped reports the latch state and the trip event, if any.
func (s *Service) CircuitBreakerTripped() (bool, *domain.BreakerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.breakerEvent == nil {
		return false, nil
	}
	event := *s.breakerEvent
	return true, &event
}

// ActivateEmergencyStop blocks all executions until deactivated. It is
// independent of the circuit breaker.
func (s *Service) ActivateEmergencyStop(reason string) {
	s.mu.Lock()
	s.emergencyStop = true
	s.mu.Unlock()
	s.logger.Error(context.Background(), "emergency stop activated", "reason", reason)
}

// DeactivateEmergencyStop lifts the stop.
func (s *Service) DeactivateEmergencyStop() {
	s.mu.Lock()
	s.emergencyStop = false
	s.mu.Unlock()
	s.logger.Info(context.Background(), "emergency stop deactivated")
}

// EmergencyStopped reports whether the stop is active.
func (s *Service) EmergencyStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emergencyStop
}

// ValidateTradeParameters applies the safety policy to an opportunity
// before any I/O: interlocks first, then shape, then limits. A nil return
// means the trade may proceed.
func (s *Service) ValidateTradeParameters(opp *arbdomain.Opportunity, opts Options) error {
	if s.EmergencyStopped() {
		return apperror.New(apperror.CodeEmergencyStopActive,
			apperror.WithContext("emergency stop is active"))
	}
	if tripped, event := s.CircuitBreakerTripped(); tripped {
		return apperror.New(apperror.CodeCircuitBreakerActive,
			apperror.WithContext("circuit breaker tripped: "+event.Reason))
	}

	if err := opp.Validate(); err != nil {
		return apperror.New(apperror.CodeValidationError,
			apperror.WithCause(err),
			apperror.WithContext("malformed opportunity"))
	}
	for _, id := range []venuedomain.ID{opp.SourceVenue, opp.TargetVenue} {
		v, err := s.venues.Venue(id)
		if err != nil {
			return apperror.New(apperror.CodeVenueNotFound, apperror.WithContext(id.String()))
		}
		if !v.Tradeable() {
			return apperror.New(apperror.CodeVenueInactive,
				apperror.WithContext(id.String()+" is not tradeable"))
		}
	}

	cfg := s.cfg.Get()
	if !opp.TradeSize.IsPositive() {
		return apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext("trade size must be positive"))
	}
	if opp.TradeSizeUSD.GreaterThan(cfg.MaxTradeSizeUSD) {
		return apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext("trade size $"+opp.TradeSizeUSD.StringFixed(2)+
				" exceeds configured maximum $"+cfg.MaxTradeSizeUSD.StringFixed(2)))
	}

	tolerance := s.tolerance(cfg, opts)
	if tolerance.LessThan(domain.SlippageToleranceMinPct) ||
		tolerance.GreaterThan(domain.SlippageToleranceMaxPct) {
		return apperror.New(apperror.CodeSlippageOutOfRange,
			apperror.WithContext("slippage tolerance "+tolerance.String()+"% outside [0.1%, 5%]"))
	}

	return nil
}

// SimulateTransaction is the conservative pre-flight gate: reprice gas at
// current rates against a flat unit estimate, take the venues' quoted
// impact for this size, and recompute the net profit from the gross
// estimate. It always returns a structured result.
func (s *Service) SimulateTransaction(ctx context.Context, opp *arbdomain.Opportunity, opts Options) domain.SimulationResult {
	cfg := s.cfg.Get()
	result := domain.SimulationResult{
		ExpectedUSD: opp.NetProfitUSD,
		GasUnits:    SimulationGasUnits,
	}

	ethUSD, ok := s.eth.EthPriceUSD(ctx)
	if !ok {
		result.Reason = "gas token price unavailable"
		return result
	}
	gasPrice, err := s.chain.GetGasPrice(ctx)
	if err != nil {
		result.Reason = "gas price unavailable: " + err.Error()
		return result
	}
	result.GasPriceGwei = gasPrice.Gwei()
	result.GasCostUSD = arbdomain.GasCostUSD(SimulationGasUnits, gasPrice.Wei, ethUSD).
		Mul(cfg.GasStrategy.BidMultiplier())

	gross := opp.Costs.GrossUSD
	if result.GasCostUSD.GreaterThan(gross.Mul(fiftyPct)) {
		result.Reason = "gas cost $" + result.GasCostUSD.StringFixed(2) +
			" exceeds half of gross profit $" + gross.StringFixed(2)
		return result
	}

	result.SlippagePct = s.quoteSlippage(ctx, opp)
	tolerance := s.tolerance(cfg, opts)
	if result.SlippagePct.GreaterThan(tolerance) {
		result.Reason = "expected slippage " + result.SlippagePct.StringFixed(2) +
			"% exceeds tolerance " + tolerance.StringFixed(2) + "%"
		return result
	}

	result.SlippageUSD = opp.TradeSizeUSD.Mul(result.SlippagePct).Div(decimal.NewFromInt(100))
	result.SimulatedUSD = gross.Sub(result.GasCostUSD).
		Sub(result.SlippageUSD).
		Sub(opp.Costs.FlashloanFeeUSD)
	if !result.SimulatedUSD.IsPositive() {
		result.Reason = "simulated profit $" + result.SimulatedUSD.StringFixed(2) + " is not positive"
		return result
	}

	if !opp.NetProfitUSD.IsZero() {
		result.DeviationPct = result.SimulatedUSD.Sub(opp.NetProfitUSD).
			Div(opp.NetProfitUSD).Mul(decimal.NewFromInt(100)).Abs()
	}
	result.FlashloanReady = !opts.UseFlashloan || s.chain.CanSign()
	result.OK = true
	return result
}

// ExecuteTrade runs the full attempt: validation, budget acquisition,
// recording, simulation, deviation gate and submission. Every path
// returns a structured result; once the attempt reaches executing there
// is no cancellation lever, only the terminal outcome.
func (s *Service) ExecuteTrade(ctx context.Context, opp *arbdomain.Opportunity, opts Options) domain.Result {
	result := domain.Result{OpportunityID: opp.ID, Status: domain.RecordPending}

	if !s.acquireSlot() {
		result.Status = domain.RecordRateLimited
		result.Error = "max concurrent trades in flight"
		s.appendShortCircuit(opp, opts, result.Status, result.Error)
		return result
	}
	defer s.releaseSlot()

	if err := s.ValidateTradeParameters(opp, opts); err != nil {
		result.Status = s.rejectionStatus(err)
		result.Error = err.Error()
		s.appendShortCircuit(opp, opts, result.Status, result.Error)
		return result
	}

	limiter := s.limiterFor(opts)
	timeout := opts.WaitTimeout
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	if err := limiter.WaitForAvailability(ctx, timeout); err != nil {
		result.Status = domain.RecordRateLimited
		if errors.Is(err, ratelimit.ErrWaitTimeout) {
			result.Error = "no execution slot within " + timeout.String()
		} else {
			result.Error = err.Error()
		}
		s.appendShortCircuit(opp, opts, result.Status, result.Error)
		return result
	}
	if !limiter.TryAcquire() {
		result.Status = domain.RecordRateLimited
		result.Error = "execution slot claimed by concurrent attempt"
		s.appendShortCircuit(opp, opts, result.Status, result.Error)
		return result
	}

	rec := s.newRecord(opp, opts)
	result.RecordID = rec.ID
	s.records.Append(rec)

	s.records.Progress(rec.ID, domain.RecordSimulating, s.now(), nil)
	sim := s.SimulateTransaction(ctx, opp, opts)
	result.Simulation = &sim
	if !sim.OK {
		result.Status = domain.RecordSimulationFailed
		result.Error = sim.Reason
		s.records.Progress(rec.ID, result.Status, s.now(), func(r *domain.Record) { r.Error = sim.Reason })
		return result
	}

	cfg := s.cfg.Get()
	if sim.DeviationPct.GreaterThan(cfg.DeviationPct) {
		reason := "simulated profit deviates " + sim.DeviationPct.StringFixed(2) +
			"% from expected (threshold " + cfg.DeviationPct.StringFixed(2) + "%)"
		s.TripCircuitBreaker(domain.BreakerEvent{
			Type:   domain.BreakerProfitDeviation,
			Reason: reason,
			Data: map[string]string{
				"opportunity":   opp.ID,
				"expected_usd":  opp.NetProfitUSD.StringFixed(2),
				"simulated_usd": sim.SimulatedUSD.StringFixed(2),
			},
		})
		result.Status = domain.RecordCircuitBreaker
		result.Error = reason
		s.records.Progress(rec.ID, result.Status, s.now(), func(r *domain.Record) { r.Error = reason })
		return result
	}

	s.records.Progress(rec.ID, domain.RecordExecuting, s.now(), nil)
	return s.submit(ctx, opp, opts, rec.ID, sim, result)
}

// AutoExecuteTrade applies the auto-execution policy and, when permitted,
// runs the trade. attempted is false when policy declined without running
// anything; succeeded is the outcome of an attempted run.
func (s *Service) AutoExecuteTrade(ctx context.Context, opp *arbdomain.Opportunity) (attempted, succeeded bool) {
	if s.EmergencyStopped() {
		s.logger.Debug(ctx, "auto-execute blocked by emergency stop", "opportunity", opp.ID)
		return false, false
	}
	if tripped, _ := s.CircuitBreakerTripped(); tripped {
		s.logger.Debug(ctx, "auto-execute blocked by circuit breaker", "opportunity", opp.ID)
		return false, false
	}

	cfg := s.cfg.Get()
	if !cfg.AutoExecute {
		return false, false
	}
	if opp.NetProfitUSD.LessThan(cfg.MinProfitUSD) || opp.NetProfitPct.LessThan(cfg.MinProfitPct) {
		s.logger.Debug(ctx, "auto-execute skipped: below profit floor",
			"opportunity", opp.ID,
			"net_usd", opp.NetProfitUSD)
		return false, false
	}
	if opp.Risk.Level == arbdomain.RiskHigh && cfg.RiskTolerance == domain.RiskToleranceLow {
		s.logger.Debug(ctx, "auto-execute skipped: risk above tolerance", "opportunity", opp.ID)
		return false, false
	}

	result := s.ExecuteTrade(ctx, opp, Options{UseFlashloan: cfg.UseFlashloan})
	return true, result.Succeeded()
}

// submit routes the two swap legs: sell token-in on the target venue, buy
// it back on the cheaper source venue.
func (s *Service) submit(
	ctx context.Context,
	opp *arbdomain.Opportunity,
	opts Options,
	recordID string,
	sim domain.SimulationResult,
	result domain.Result,
) domain.Result {
	fail := func(err error) domain.Result {
		result.Status = domain.RecordFailed
		result.Error = err.Error()
		s.records.Progress(recordID, result.Status, s.now(), func(r *domain.Record) { r.Error = result.Error })
		s.logger.Error(ctx, "trade execution failed",
			"opportunity", opp.ID,
			"error", err)
		return result
	}

	sellAdapter, err := s.venues.Adapter(opp.TargetVenue)
	if err != nil {
		return fail(err)
	}
	buyAdapter, err := s.venues.Adapter(opp.SourceVenue)
	if err != nil {
		return fail(err)
	}

	tolerance := s.tolerance(s.cfg.Get(), opts)
	deadline := s.now().Add(swapDeadline)

	sellMinOut := opp.TradeSize.Mul(sellPriceFloor(opp, tolerance))
	sell, err := sellAdapter.ExecuteSwap(ctx, venuedomain.SwapRequest{
		VenueID:      opp.TargetVenue,
		TokenIn:      opp.TokenIn,
		TokenOut:     opp.TokenOut,
		AmountIn:     opp.TradeSize,
		MinAmountOut: sellMinOut,
		Deadline:     deadline,
		Flashloan:    opts.UseFlashloan,
	})
	if err != nil {
		return fail(apperror.Wrap(err, apperror.CodeSwapRejected, "sell leg on "+opp.TargetVenue.String()))
	}

	buyMinOut := opp.TradeSize // round trip must return at least the principal
	buy, err := buyAdapter.ExecuteSwap(ctx, venuedomain.SwapRequest{
		VenueID:      opp.SourceVenue,
		TokenIn:      opp.TokenOut,
		TokenOut:     opp.TokenIn,
		AmountIn:     sell.AmountOut,
		MinAmountOut: buyMinOut,
		Deadline:     deadline,
	})
	if err != nil {
		return fail(apperror.Wrap(err, apperror.CodeSwapRejected, "buy leg on "+opp.SourceVenue.String()))
	}

	gasUsed := sell.GasUsed + buy.GasUsed
	unitUSD := decimal.Zero
	if !opp.TradeSize.IsZero() {
		unitUSD = opp.TradeSizeUSD.Div(opp.TradeSize)
	}
	actualUSD := buy.AmountOut.Sub(opp.TradeSize).Mul(unitUSD).Sub(sim.GasCostUSD)

	result.Status = domain.RecordCompleted
	result.TxHash = buy.TxHash
	result.GasUsed = gasUsed
	result.ActualUSD = actualUSD
	s.records.Progress(recordID, domain.RecordCompleted, s.now(), func(r *domain.Record) {
		r.TxHash = buy.TxHash
		r.GasUsed = gasUsed
		r.ActualUSD = actualUSD
	})

	s.logger.Info(ctx, "trade completed",
		"opportunity", opp.ID,
		"tx", buy.TxHash,
		"actual_usd", actualUSD.StringFixed(2))
	return result
}

func (s *Service) newRecord(opp *arbdomain.Opportunity, opts Options) domain.Record {
	now := s.now()
	return domain.Record{
		ID:            uuid.NewString(),
		OpportunityID: opp.ID,
		StartedAt:     now,
		UpdatedAt:     now,
		SourceVenue:   opp.SourceVenue,
		TargetVenue:   opp.TargetVenue,
		TokenIn:       opp.TokenIn,
		TokenOut:      opp.TokenOut,
		TradeSize:     opp.TradeSize,
		ExpectedUSD:   opp.NetProfitUSD,
		Status:        domain.RecordPreparing,
		Flashloan:     opts.UseFlashloan,
	}
}

// appendShortCircuit files an audit entry for attempts rejected before the
// preparing stage, so the ring holds every attempt, not just submissions.
func (s *Service) appendShortCircuit(opp *arbdomain.Opportunity, opts Options, status domain.RecordStatus, reason string) {
	rec := s.newRecord(opp, opts)
	rec.Status = status
	rec.Error = reason
	s.records.Append(rec)
}

func (s *Service) rejectionStatus(err error) domain.RecordStatus {
	switch apperror.GetCode(err) {
	case apperror.CodeEmergencyStopActive, apperror.CodeCircuitBreakerActive:
		return domain.RecordCircuitBreaker
	default:
		return domain.RecordValidationFailed
	}
}

func (s *Service) limiterFor(opts Options) *ratelimit.Limiter {
	if opts.UseFlashloan {
		return s.limiters.MustGet(ratelimit.ResourceFlashloanExecution)
	}
	return s.limiters.MustGet(ratelimit.ResourceTradeExecution)
}

func (s *Service) tolerance(cfg domain.Config, opts Options) decimal.Decimal {
	if opts.SlippageTolerancePct.IsPositive() {
		return opts.SlippageTolerancePct
	}
	return cfg.SlippageTolerance
}

func (s *Service) acquireSlot() bool {
	max := s.cfg.Get().MaxConcurrentTrades
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight >= max {
		return false
	}
	s.inFlight++
	return true
}

func (s *Service) releaseSlot() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
}

// quoteSlippage sums the venues' quoted impact for this size over both
// legs, falling back to the per-hop heuristic when a quote fails.
func (s *Service) quoteSlippage(ctx context.Context, opp *arbdomain.Opportunity) decimal.Decimal {
	total := decimal.Zero
	for _, id := range []venuedomain.ID{opp.TargetVenue, opp.SourceVenue} {
		adapter, err := s.venues.Adapter(id)
		if err != nil {
			total = total.Add(arbdomain.FallbackSlippagePerHopPct)
			continue
		}
		quote, err := adapter.GetExpectedOutput(ctx, opp.TokenIn, opp.TokenOut, opp.TradeSize)
		if err != nil {
			total = total.Add(arbdomain.FallbackSlippagePerHopPct)
			continue
		}
		total = total.Add(quote.PriceImpactPct)
	}
	return total
}

// sellPriceFloor derives the minimum acceptable sell rate from the trade's
// USD pricing less the tolerance.
func sellPriceFloor(opp *arbdomain.Opportunity, tolerancePct decimal.Decimal) decimal.Decimal {
	if opp.TradeSize.IsZero() {
		return decimal.Zero
	}
	unit := opp.TradeSizeUSD.Div(opp.TradeSize)
	discount := decimal.NewFromInt(1).Sub(tolerancePct.Div(decimal.NewFromInt(100)))
	floor := unit.Mul(discount)
	if floor.IsNegative() {
		return decimal.Zero
	}
	return floor
}
