package app

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fd1az/dexarb/business/pricing/domain"
	venueapp "github.com/fd1az/dexarb/business/venue/app"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

const (
	defaultPollInterval  = 10 * time.Second
	defaultRetention     = time.Hour
	defaultSweepInterval = 10 * time.Minute

	// pollConcurrency bounds in-flight price fetches within one cycle.
	pollConcurrency = 4
)

// FeedConfig holds configuration for the price feed.
type FeedConfig struct {
	Pairs          []domain.Pair
	PollingEnabled bool
	PollInterval   time.Duration // default 10s
	Retention      time.Duration // how long points are kept, default 1h
	SweepInterval  time.Duration // how often old points are cleared, default 10m
}

// FeedService ingests prices into the store from two sources: periodic
// polling across every monitored pair and active venue, and per-venue
// streaming connections. Either source can run without the other.
type FeedService struct {
	config  FeedConfig
	store   *Store
	venues  *venueapp.Registry
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface

	streams []StreamSource

	now func() time.Time
}

// NewFeedService creates a feed writing into store. Polling draws from the
// price-poll budget in limiters.
func NewFeedService(
	cfg FeedConfig,
	store *Store,
	venues *venueapp.Registry,
	limiters *ratelimit.Registry,
	log logger.LoggerInterface,
) (*FeedService, error) {
	for _, pair := range cfg.Pairs {
		if !pair.Valid() {
			return nil, apperror.New(apperror.CodeInvalidInput,
				apperror.WithContext("monitored pair "+pair.String()))
		}
	}

	limiter, ok := limiters.Get(ratelimit.ResourcePricePoll)
	if !ok {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no limiter registered for "+ratelimit.ResourcePricePoll))
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}

	return &FeedService{
		config:  cfg,
		store:   store,
		venues:  venues,
		limiter: limiter,
		logger:  log,
		now:     time.Now,
	}, nil
}

// RegisterStream attaches a streaming source. Must be called before Start.
func (s *FeedService) RegisterStream(src StreamSource) {
	src.OnPrice(func(ctx context.Context, token string, point domain.PricePoint) {
		s.store.RecordPoint(token, point)
	})
	s.streams = append(s.streams, src)
}

// Start launches the poll and sweep loops and connects registered streams.
// Stream connection failures degrade to polling only.
func (s *FeedService) Start(ctx context.Context) error {
	for _, src := range s.streams {
		go func(src StreamSource) {
			if err := src.Start(ctx); err != nil {
				s.logger.Warn(ctx, "price stream unavailable, continuing without it",
					"venue", src.VenueID(),
					"error", err)
			}
		}(src)
	}

	if s.config.PollingEnabled {
		go s.pollLoop(ctx)
	}
	go s.sweepLoop(ctx)

	s.logger.Info(ctx, "price feed started",
		"pairs", len(s.config.Pairs),
		"streams", len(s.streams),
		"polling", s.config.PollingEnabled,
		"poll_interval", s.config.PollInterval)
	return nil
}

// Stop closes all streaming connections. Loops exit with their context.
func (s *FeedService) Stop() error {
	var firstErr error
	for _, src := range s.streams {
		if err := src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PollOnce runs a single poll cycle: every monitored pair against every
// active venue. Fetches within a cycle run concurrently, a few venues at a
// time. Budget is drawn before each fetch is dispatched; when it runs out
// the rest of the cycle is abandoned and the next tick starts fresh.
func (s *FeedService) PollOnce(ctx context.Context) (int, error) {
	var recorded atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pollConcurrency)

	aborted := false
dispatch:
	for _, pair := range s.config.Pairs {
		for _, v := range s.venues.Active() {
			if !s.limiter.TryAcquire() {
				aborted = true
				break dispatch
			}

			adapter, err := s.venues.Adapter(v.ID)
			if err != nil {
				s.logger.Warn(ctx, "venue has no adapter", "venue", v.ID)
				continue
			}

			venueID := v.ID
			g.Go(func() error {
				price, err := adapter.GetTokenPrice(gctx, pair.Base, pair.Quote)
				if err != nil {
					s.logger.Warn(gctx, "price fetch failed",
						"venue", venueID,
						"pair", pair.String(),
						"error", err)
					return nil
				}

				s.store.RecordPoint(pair.Base, domain.PricePoint{
					Venue:     venueID,
					Price:     price,
					Timestamp: s.now(),
				})
				recorded.Add(1)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return int(recorded.Load()), err
	}
	if aborted {
		return int(recorded.Load()), apperror.New(apperror.CodeFeedCycleAborted,
			apperror.WithContext("price poll budget exhausted"))
	}
	return int(recorded.Load()), nil
}

func (s *FeedService) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.pollCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "price poll loop stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			s.pollCycle(ctx)
		}
	}
}

func (s *FeedService) pollCycle(ctx context.Context) {
	recorded, err := s.PollOnce(ctx)
	switch {
	case apperror.GetCode(err) == apperror.CodeFeedCycleAborted:
		// Expected under budget pressure. The next tick retries.
		s.logger.Debug(ctx, "poll cycle aborted", "recorded", recorded)
	case err != nil:
		s.logger.Warn(ctx, "poll cycle failed", "error", err)
	default:
		s.logger.Debug(ctx, "poll cycle complete", "recorded", recorded)
	}
}

func (s *FeedService) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.store.ClearOlderThan(s.config.Retention)
			s.logger.Debug(ctx, "price history swept", "retention", s.config.Retention)
		}
	}
}
