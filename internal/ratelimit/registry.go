package ratelimit

import (
	"sync"
	"time"
)

// Resource names with dedicated limiters. Each gets an independent window,
// so exhausting one never throttles another.
const (
	ResourcePricePoll          = "price_poll"
	ResourceTradeExecution     = "trade_execution"
	ResourceFlashloanExecution = "flashloan_execution"
	ResourceOpportunityScan    = "opportunity_scan"
)

// Budget describes one resource's limit.
type Budget struct {
	MaxRequests int
	Window      time.Duration
}

// Registry hands out one limiter per named resource.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// NewDefaultRegistry returns a Registry pre-populated with the standard
// resources and their per-minute budgets.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ResourcePricePoll, Budget{MaxRequests: 60, Window: time.Minute})
	r.Register(ResourceTradeExecution, Budget{MaxRequests: 10, Window: time.Minute})
	r.Register(ResourceFlashloanExecution, Budget{MaxRequests: 6, Window: time.Minute})
	r.Register(ResourceOpportunityScan, Budget{MaxRequests: 30, Window: time.Minute})
	return r
}

// Register creates (or replaces) the limiter for name and returns it.
func (r *Registry) Register(name string, b Budget) *Limiter {
	l := New(b.MaxRequests, b.Window)

	r.mu.Lock()
	r.limiters[name] = l
	r.mu.Unlock()

	return l
}

// Get returns the limiter registered under name.
func (r *Registry) Get(name string) (*Limiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.limiters[name]
	return l, ok
}

// MustGet returns the limiter for name, panicking when absent. Wiring code
// uses it for the standard resources registered at startup.
func (r *Registry) MustGet(name string) *Limiter {
	l, ok := r.Get(name)
	if !ok {
		panic("ratelimit: no limiter registered for resource " + name)
	}
	return l
}
