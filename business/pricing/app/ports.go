// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/fd1az/dexarb/business/pricing/domain"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
)

// PriceHandler receives a parsed price point for the token it was observed on.
type PriceHandler func(ctx context.Context, token string, point domain.PricePoint)

// StreamSource is a per-venue streaming price connection. Implementations
// own their reconnect loop and must re-issue every registered subscription
// after a reconnect so the handler keeps receiving points.
type StreamSource interface {
	// VenueID returns the venue this stream reports prices for.
	VenueID() venuedomain.ID

	// OnPrice registers the handler invoked for every parsed price event.
	// Must be called before Start.
	OnPrice(handler PriceHandler)

	// Subscribe registers pair subscriptions. Pairs subscribed before Start
	// are issued on connect; pairs subscribed later are issued immediately.
	Subscribe(ctx context.Context, pairs ...domain.Pair) error

	// Start opens the connection and begins dispatching events.
	Start(ctx context.Context) error

	// Close tears the connection down.
	Close() error
}
