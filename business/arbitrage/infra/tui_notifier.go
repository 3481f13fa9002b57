// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	execdomain "github.com/fd1az/dexarb/business/execution/domain"
	"github.com/fd1az/dexarb/pkg/ui"
)

// TUINotifier forwards engine events to the Bubble Tea dashboard.
type TUINotifier struct{}

// NewTUINotifier creates a new TUINotifier.
func NewTUINotifier() *TUINotifier {
	return &TUINotifier{}
}

// Notify sends an opportunity to the TUI.
func (n *TUINotifier) Notify(_ context.Context, opp *domain.Opportunity) {
	ui.Send(ui.OpportunityMsg{Opportunity: opp})
}

// PriceTick forwards a fresh venue quote.
func (n *TUINotifier) PriceTick(token, symbol, venue string, price decimal.Decimal, ts time.Time) {
	ui.Send(ui.PriceTickMsg{
		Token:     token,
		Symbol:    symbol,
		Venue:     venue,
		Price:     price,
		Timestamp: ts,
	})
}

// ExecutionUpdate forwards an execution record transition.
func (n *TUINotifier) ExecutionUpdate(rec execdomain.Record) {
	ui.Send(ui.ExecutionMsg{Record: rec})
}

// ExecutionStats forwards the aggregate execution history.
func (n *TUINotifier) ExecutionStats(stats execdomain.Stats) {
	ui.Send(ui.ExecutionStatsMsg{Stats: stats})
}

// BreakerChanged forwards a circuit breaker transition.
func (n *TUINotifier) BreakerChanged(tripped bool, reason string) {
	ui.Send(ui.BreakerMsg{Tripped: tripped, Reason: reason})
}

// EmergencyStopChanged forwards an emergency stop toggle.
func (n *TUINotifier) EmergencyStopChanged(active bool, reason string) {
	ui.Send(ui.EmergencyStopMsg{Active: active, Reason: reason})
}

// UpdateConnectionStatus forwards connection state.
func (n *TUINotifier) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	ui.Send(ui.ConnectionStatusMsg{Name: name, Connected: connected, Latency: latency})
}

// GasPrice forwards gas price and congestion level.
func (n *TUINotifier) GasPrice(gwei float64, congestion string) {
	ui.Send(ui.GasPriceMsg{GweiPrice: gwei, Congestion: congestion})
}

// ScanComplete forwards scan sweep results.
func (n *TUINotifier) ScanComplete(found, fresh, tracked int) {
	ui.Send(ui.ScanCompleteMsg{Found: found, Fresh: fresh, Tracked: tracked})
}
