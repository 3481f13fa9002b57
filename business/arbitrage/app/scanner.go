package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

const (
	// DefaultScanInterval spaces full market sweeps.
	DefaultScanInterval = time.Minute

	// terminalRetention keeps completed and failed opportunities visible
	// for a while before pruning.
	terminalRetention = 15 * time.Minute

	// staleRetention prunes pending entries the detector has stopped
	// re-reporting.
	staleRetention = 10 * time.Minute

	scannerTick = time.Second
)

// ScannerConfig tunes the scan loop.
type ScannerConfig struct {
	ScanInterval time.Duration // default 60s
}

// tracked wraps an opportunity with the bookkeeping the eviction policy
// needs.
type tracked struct {
	opp      *domain.Opportunity
	lastSeen time.Time
}

// Scanner owns the opportunity lifecycle: it runs detection sweeps on an
// interval, deduplicates re-detections by content-derived ID, dispatches
// fresh finds to auto-execution or notification, and evicts entries that
// have gone terminal or stale. All state behind one mutex.
type Scanner struct {
	detector *Detector
	executor AutoExecutor // may be nil
	notifier Notifier     // may be nil
	limiter  *ratelimit.Limiter
	config   ScannerConfig
	logger   logger.LoggerInterface

	mu       sync.Mutex
	entries  map[string]*tracked
	lastScan time.Time

	now func() time.Time
}

// NewScanner wires the scanner. Scans draw from the opportunity-scan
// budget in limiters. executor and notifier may each be nil.
func NewScanner(
	detector *Detector,
	executor AutoExecutor,
	notifier Notifier,
	limiters *ratelimit.Registry,
	cfg ScannerConfig,
	log logger.LoggerInterface,
) (*Scanner, error) {
	limiter, ok := limiters.Get(ratelimit.ResourceOpportunityScan)
	if !ok {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no limiter registered for "+ratelimit.ResourceOpportunityScan))
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	return &Scanner{
		detector: detector,
		executor: executor,
		notifier: notifier,
		limiter:  limiter,
		config:   cfg,
		logger:   log,
		entries:  make(map[string]*tracked),
		now:      time.Now,
	}, nil
}

// ShouldScan reports whether a full interval has passed since the last
// sweep.
func (s *Scanner) ShouldScan() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.lastScan) >= s.config.ScanInterval
}

// Run drives the scan loop until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(scannerTick)
	defer ticker.Stop()

	s.logger.Info(ctx, "opportunity scanner started", "interval", s.config.ScanInterval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "opportunity scanner stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			if !s.ShouldScan() {
				continue
			}
			if _, err := s.ScanOnce(ctx); err != nil {
				s.logger.Warn(ctx, "scan skipped", "error", err)
			}
		}
	}
}

// ScanOnce runs one full sweep: evict, detect, track, dispatch. It returns
// the opportunities found this sweep. A denied scan budget is a normal
// outcome reported as a typed error; the next tick retries.
func (s *Scanner) ScanOnce(ctx context.Context) ([]*domain.Opportunity, error) {
	if !s.limiter.TryAcquire() {
		return nil, apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithContext("opportunity scan budget exhausted, next slot in "+
				s.limiter.TimeUntilNextSlot().String()))
	}

	now := s.now()
	s.mu.Lock()
	s.lastScan = now
	s.evictLocked(now)
	s.mu.Unlock()

	found := s.detector.Scan(ctx)

	fresh := make([]*domain.Opportunity, 0, len(found))
	s.mu.Lock()
	for _, opp := range found {
		entry, seen := s.entries[opp.ID]
		if seen {
			// Re-detection: refresh economics, keep lifecycle status.
			opp.Status = entry.opp.Status
			entry.opp = opp
			entry.lastSeen = now
			continue
		}
		s.entries[opp.ID] = &tracked{opp: opp, lastSeen: now}
		fresh = append(fresh, opp)
	}
	s.mu.Unlock()

	for _, opp := range fresh {
		s.dispatch(ctx, opp)
	}

	s.logger.Debug(ctx, "scan complete",
		"found", len(found),
		"new", len(fresh),
		"tracked", s.Len())
	return found, nil
}

// dispatch routes one fresh opportunity: auto-execution when the policy
// takes it, notification otherwise. An attempted execution goes terminal
// either way; a policy decline drops back to pending.
func (s *Scanner) dispatch(ctx context.Context, opp *domain.Opportunity) {
	if s.executor != nil {
		s.setStatus(opp.ID, domain.StatusExecuting)
		attempted, succeeded := s.executor.AutoExecuteTrade(ctx, opp)
		switch {
		case succeeded:
			s.setStatus(opp.ID, domain.StatusCompleted)
			return
		case attempted:
			s.setStatus(opp.ID, domain.StatusFailed)
			return
		}
		s.setStatus(opp.ID, domain.StatusPending)
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, opp)
	}
}

// Opportunities returns a snapshot of tracked opportunities sorted by net
// profit descending.
func (s *Scanner) Opportunities() []*domain.Opportunity {
	s.mu.Lock()
	out := make([]*domain.Opportunity, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.opp)
	}
	s.mu.Unlock()

	sortOpportunities(out)
	return out
}

// Len reports how many opportunities are tracked.
func (s *Scanner) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// MarkStatus moves a tracked opportunity's lifecycle status, for callers
// that execute outside the auto path.
func (s *Scanner) MarkStatus(id string, status domain.Status) bool {
	return s.setStatus(id, status)
}

func (s *Scanner) setStatus(id string, status domain.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return false
	}
	entry.opp.Status = status
	return true
}

// evictLocked applies the retention policy: terminal entries go after
// 15 minutes, pending entries not re-seen for 10 minutes go too.
func (s *Scanner) evictLocked(now time.Time) {
	var evict []string
	for id, entry := range s.entries {
		age := now.Sub(entry.lastSeen)
		if entry.opp.Status.Terminal() && age >= terminalRetention {
			evict = append(evict, id)
			continue
		}
		if !entry.opp.Status.Terminal() && age >= staleRetention {
			evict = append(evict, id)
		}
	}
	sort.Strings(evict)
	for _, id := range evict {
		delete(s.entries, id)
	}
}
