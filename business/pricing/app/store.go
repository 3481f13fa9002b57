package app

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/pricing/domain"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
)

// Store serializes access to a price History so feed goroutines, the
// scanner and the UI can share one instance.
type Store struct {
	mu      sync.RWMutex
	history *domain.History
}

// NewStore wraps a History for concurrent use.
func NewStore(history *domain.History) *Store {
	return &Store{history: history}
}

// RecordPoint files a point under the token.
func (s *Store) RecordPoint(token string, point domain.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.AddPoint(token, point)
}

// LatestPrice returns the most recent point for the token on one venue.
func (s *Store) LatestPrice(token string, venueID venuedomain.ID) (domain.PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.LatestPrice(token, venueID)
}

// LatestPriceAnyVenue returns the newest point for the token across venues.
func (s *Store) LatestPriceAnyVenue(token string) (domain.PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.LatestPriceAnyVenue(token)
}

// LatestByVenue returns the latest point per venue, sorted by venue ID.
func (s *Store) LatestByVenue(token string) []domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.LatestByVenue(token)
}

// Volatility estimates the token's volatility over the trailing window.
func (s *Store) Volatility(token string, window time.Duration) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Volatility(token, window)
}

// Tokens returns the tracked token keys, sorted.
func (s *Store) Tokens() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Tokens()
}

// Len reports how many points are stored for the token.
func (s *Store) Len(token string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Len(token)
}

// ClearOlderThan drops points older than maxAge from every series.
func (s *Store) ClearOlderThan(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.ClearOlderThan(maxAge)
}
