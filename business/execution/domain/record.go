// Package domain contains the core domain types for the execution context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
)

// RecordStatus tracks one execution attempt through its state machine.
// pending -> preparing -> simulating -> executing -> completed | failed.
// The remaining statuses are terminal short-circuits taken before the
// attempt reaches the chain.
type RecordStatus string

const (
	RecordPending          RecordStatus = "pending"
	RecordPreparing        RecordStatus = "preparing"
	RecordSimulating       RecordStatus = "simulating"
	RecordExecuting        RecordStatus = "executing"
	RecordCompleted        RecordStatus = "completed"
	RecordFailed           RecordStatus = "failed"
	RecordSimulationFailed RecordStatus = "simulation_failed"
	RecordCircuitBreaker   RecordStatus = "circuit_breaker"
	RecordRateLimited      RecordStatus = "rate_limited"
	RecordValidationFailed RecordStatus = "validation_failed"
)

// Terminal reports whether the status is final.
func (s RecordStatus) Terminal() bool {
	switch s {
	case RecordCompleted, RecordFailed, RecordSimulationFailed,
		RecordCircuitBreaker, RecordRateLimited, RecordValidationFailed:
		return true
	}
	return false
}

// Success reports whether the attempt landed on chain and completed.
func (s RecordStatus) Success() bool {
	return s == RecordCompleted
}

// Record is the audit entry for one execution attempt. Fields other than
// status, error, tx hash, gas and actual profit are set once at creation.
type Record struct {
	ID            string          `json:"id"`
	OpportunityID string          `json:"opportunity_id"`
	StartedAt     time.Time       `json:"started_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	SourceVenue   venuedomain.ID  `json:"source_venue"`
	TargetVenue   venuedomain.ID  `json:"target_venue"`
	TokenIn       string          `json:"token_in"`
	TokenOut      string          `json:"token_out"`
	TradeSize     decimal.Decimal `json:"trade_size"`
	ExpectedUSD   decimal.Decimal `json:"expected_usd"`
	ActualUSD     decimal.Decimal `json:"actual_usd"`
	Status        RecordStatus    `json:"status"`
	Error         string          `json:"error,omitempty"`
	GasUsed       uint64          `json:"gas_used,omitempty"`
	TxHash        string          `json:"tx_hash,omitempty"`
	Flashloan     bool            `json:"flashloan,omitempty"`
}

// DefaultRecordCapacity bounds the in-memory execution history.
const DefaultRecordCapacity = 100

// Records is a capped ring of execution attempts, oldest dropped first.
// Not safe for concurrent use; the app layer serializes access.
type Records struct {
	capacity int
	entries  []Record
}

// NewRecords creates an empty ring. capacity <= 0 selects the default.
func NewRecords(capacity int) *Records {
	if capacity <= 0 {
		capacity = DefaultRecordCapacity
	}
	return &Records{
		capacity: capacity,
		entries:  make([]Record, 0, capacity),
	}
}

// Append files a new attempt, evicting the oldest entry at capacity.
func (r *Records) Append(rec Record) {
	r.entries = append(r.entries, rec)
	if over := len(r.entries) - r.capacity; over > 0 {
		r.entries = r.entries[over:]
	}
}

// Progress moves the identified attempt to a later lifecycle status,
// stamping UpdatedAt with the caller's clock. Terminal records never
// change again; unknown ids are ignored.
func (r *Records) Progress(id string, status RecordStatus, at time.Time, update func(*Record)) bool {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].ID != id {
			continue
		}
		if r.entries[i].Status.Terminal() {
			return false
		}
		r.entries[i].Status = status
		r.entries[i].UpdatedAt = at
		if update != nil {
			update(&r.entries[i])
		}
		return true
	}
	return false
}

// All returns a copy of the ring, oldest first.
func (r *Records) All() []Record {
	out := make([]Record, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len reports how many attempts are retained.
func (r *Records) Len() int { return len(r.entries) }

// Capacity reports the ring bound.
func (r *Records) Capacity() int { return r.capacity }

// Replace swaps in imported entries, keeping only the newest at capacity.
func (r *Records) Replace(entries []Record) {
	if over := len(entries) - r.capacity; over > 0 {
		entries = entries[over:]
	}
	r.entries = append(r.entries[:0], entries...)
}

// Stats aggregates the retained history for the optimizer and the UI.
type Stats struct {
	Total          int
	Completed      int
	Failed         int
	SuccessRate    decimal.Decimal // percent of terminal attempts that completed
	ExpectedUSDSum decimal.Decimal
	ActualUSDSum   decimal.Decimal
	GasUsedSum     uint64
}

// Stats computes aggregate outcomes over the retained ring.
func (r *Records) Stats() Stats {
	var s Stats
	terminal := 0
	for _, rec := range r.entries {
		s.Total++
		s.ExpectedUSDSum = s.ExpectedUSDSum.Add(rec.ExpectedUSD)
		if rec.Status.Terminal() {
			terminal++
		}
		switch {
		case rec.Status.Success():
			s.Completed++
			s.ActualUSDSum = s.ActualUSDSum.Add(rec.ActualUSD)
			s.GasUsedSum += rec.GasUsed
		case rec.Status.Terminal():
			s.Failed++
		}
	}
	if terminal > 0 {
		s.SuccessRate = decimal.NewFromInt(int64(s.Completed)).
			Div(decimal.NewFromInt(int64(terminal))).
			Mul(decimal.NewFromInt(100))
	}
	return s
}
