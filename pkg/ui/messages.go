// Package ui provides the Bubble Tea TUI for the arbitrage engine.
package ui

import (
	"time"

	"github.com/shopspring/decimal"

	arbdomain "github.com/fd1az/dexarb/business/arbitrage/domain"
	execdomain "github.com/fd1az/dexarb/business/execution/domain"
)

// Message types for TUI updates

// OpportunityMsg is sent when an arbitrage opportunity is detected.
type OpportunityMsg struct {
	Opportunity *arbdomain.Opportunity
}

// PriceTickMsg is sent when a venue reports a fresh price.
type PriceTickMsg struct {
	Token     string
	Symbol    string
	Venue     string
	Price     decimal.Decimal
	Timestamp time.Time
}

// ExecutionMsg is sent when an execution record is created or progresses.
type ExecutionMsg struct {
	Record execdomain.Record
}

// ExecutionStatsMsg carries the aggregate execution history.
type ExecutionStatsMsg struct {
	Stats execdomain.Stats
}

// BreakerMsg is sent when the circuit breaker trips or resets.
type BreakerMsg struct {
	Tripped bool
	Reason  string
}

// EmergencyStopMsg is sent when the emergency stop is toggled.
type EmergencyStopMsg struct {
	Active bool
	Reason string
}

// ConnectionStatusMsg is sent when a venue or chain connection changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// GasPriceMsg is sent when gas price is updated.
type GasPriceMsg struct {
	GweiPrice  float64
	Congestion string
}

// ScanCompleteMsg is sent after each detection sweep.
type ScanCompleteMsg struct {
	Found   int
	Fresh   int
	Tracked int
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "failed"
	Message string // Optional message
}
