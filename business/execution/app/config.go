package app

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/execution/domain"
)

// ConfigStore is the single mutable home of the execution policy. Readers
// get a copy; writers go through Update or Apply so every change is
// validated before it becomes visible.
type ConfigStore struct {
	mu  sync.RWMutex
	cfg domain.Config
}

// NewConfigStore creates a store holding cfg. Invalid configs are rejected.
func NewConfigStore(cfg domain.Config) (*ConfigStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ConfigStore{cfg: cfg}, nil
}

// Get returns a copy of the current policy.
func (s *ConfigStore) Get() domain.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update replaces the whole policy after validation.
func (s *ConfigStore) Update(cfg domain.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// Patch holds optional field changes. Nil fields stay untouched, so
// advisory recommendations apply field-by-field, never wholesale.
type Patch struct {
	MinProfitPct      *decimal.Decimal
	MinProfitUSD      *decimal.Decimal
	MaxTradeSizeUSD   *decimal.Decimal
	SlippageTolerance *decimal.Decimal
	GasStrategy       *domain.GasStrategy
	AutoExecute       *bool
	RiskTolerance     *domain.RiskTolerance
	UseFlashloan      *bool
}

// Apply merges the patch into the current policy, validating the result
// before it takes effect.
func (s *ConfigStore) Apply(p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	if p.MinProfitPct != nil {
		next.MinProfitPct = *p.MinProfitPct
	}
	if p.MinProfitUSD != nil {
		next.MinProfitUSD = *p.MinProfitUSD
	}
	if p.MaxTradeSizeUSD != nil {
		next.MaxTradeSizeUSD = *p.MaxTradeSizeUSD
	}
	if p.SlippageTolerance != nil {
		next.SlippageTolerance = *p.SlippageTolerance
	}
	if p.GasStrategy != nil {
		next.GasStrategy = *p.GasStrategy
	}
	if p.AutoExecute != nil {
		next.AutoExecute = *p.AutoExecute
	}
	if p.RiskTolerance != nil {
		next.RiskTolerance = *p.RiskTolerance
	}
	if p.UseFlashloan != nil {
		next.UseFlashloan = *p.UseFlashloan
	}

	if err := next.Validate(); err != nil {
		return err
	}
	s.cfg = next
	return nil
}
