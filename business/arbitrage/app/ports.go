// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
)

// Notifier surfaces newly detected opportunities to an operator-facing
// channel (console, TUI). Notification is fire-and-forget: errors are
// logged by the scanner, never propagated.
type Notifier interface {
	// Notify presents one opportunity.
	Notify(ctx context.Context, opp *domain.Opportunity)
}

// AutoExecutor hands an opportunity to the execution policy. attempted is
// false when policy declined the trade without running it; succeeded is the
// outcome of an attempted execution. A declined opportunity goes to the
// notification path instead.
type AutoExecutor interface {
	AutoExecuteTrade(ctx context.Context, opp *domain.Opportunity) (attempted, succeeded bool)
}

// EthPricer supplies the USD price of the gas token for cost estimates.
// The boolean is false when no sufficiently fresh price is known.
type EthPricer interface {
	EthPriceUSD(ctx context.Context) (decimal.Decimal, bool)
}
