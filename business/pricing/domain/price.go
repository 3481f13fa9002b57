// Package domain contains the core domain types for the pricing context.
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
)

// PricePoint is a single observed price for a token on one venue.
// Immutable once recorded.
type PricePoint struct {
	Venue     venuedomain.ID
	Price     decimal.Decimal
	Timestamp time.Time
}

// DefaultMaxPointsPerToken bounds the series kept for each token.
const DefaultMaxPointsPerToken = 1000

// History holds a capped, append-ordered price series per token plus a
// per-venue latest-price index for O(1) reads on the hot path. Token keys
// are lower-cased so lookups are case-insensitive. Once a series reaches
// the cap the oldest points are evicted first.
//
// History is not safe for concurrent use. The app layer wraps it in a
// store that serializes access.
type History struct {
	maxPoints int
	points    map[string][]PricePoint
	latest    map[string]map[venuedomain.ID]PricePoint

	now func() time.Time
}

// NewHistory creates an empty history. maxPoints <= 0 selects the default cap.
func NewHistory(maxPoints int) *History {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPointsPerToken
	}
	return &History{
		maxPoints: maxPoints,
		points:    make(map[string][]PricePoint),
		latest:    make(map[string]map[venuedomain.ID]PricePoint),
		now:       time.Now,
	}
}

// AddPoint files a point under the token and refreshes the venue's latest
// entry. The oldest point is evicted once the series exceeds the cap.
func (h *History) AddPoint(token string, point PricePoint) {
	key := normalizeToken(token)

	series := append(h.points[key], point)
	if over := len(series) - h.maxPoints; over > 0 {
		series = series[over:]
	}
	h.points[key] = series

	byVenue := h.latest[key]
	if byVenue == nil {
		byVenue = make(map[venuedomain.ID]PricePoint)
		h.latest[key] = byVenue
	}
	// Polling and streaming can both feed a venue; an out-of-order arrival
	// must not regress the latest entry.
	if prev, ok := byVenue[point.Venue]; ok && prev.Timestamp.After(point.Timestamp) {
		return
	}
	byVenue[point.Venue] = point
}

// LatestPrice returns the most recent point recorded for the token on the
// given venue.
func (h *History) LatestPrice(token string, venueID venuedomain.ID) (PricePoint, bool) {
	byVenue, ok := h.latest[normalizeToken(token)]
	if !ok {
		return PricePoint{}, false
	}
	point, ok := byVenue[venueID]
	return point, ok
}

// LatestPriceAnyVenue returns the newest point for the token across all
// venues. Venue IDs break timestamp ties so the result is deterministic.
func (h *History) LatestPriceAnyVenue(token string) (PricePoint, bool) {
	byVenue, ok := h.latest[normalizeToken(token)]
	if !ok || len(byVenue) == 0 {
		return PricePoint{}, false
	}

	ids := make([]venuedomain.ID, 0, len(byVenue))
	for id := range byVenue {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	best := byVenue[ids[0]]
	for _, id := range ids[1:] {
		if point := byVenue[id]; point.Timestamp.After(best.Timestamp) {
			best = point
		}
	}
	return best, true
}

// LatestByVenue returns the latest point per venue for the token, sorted by
// venue ID.
func (h *History) LatestByVenue(token string) []PricePoint {
	byVenue := h.latest[normalizeToken(token)]
	if len(byVenue) == 0 {
		return nil
	}

	out := make([]PricePoint, 0, len(byVenue))
	for _, point := range byVenue {
		out = append(out, point)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}

// Points returns a copy of the token's series in append order.
func (h *History) Points(token string) []PricePoint {
	series := h.points[normalizeToken(token)]
	if len(series) == 0 {
		return nil
	}
	out := make([]PricePoint, len(series))
	copy(out, series)
	return out
}

// Tokens returns the tracked token keys, sorted.
func (h *History) Tokens() []string {
	out := make([]string, 0, len(h.points))
	for token := range h.points {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// Len reports how many points are stored for the token.
func (h *History) Len(token string) int {
	return len(h.points[normalizeToken(token)])
}

// Volatility estimates price volatility for the token over the trailing
// window as (max-min)/mean * 100. A range estimator, not a standard
// deviation. Returns 0 when fewer than two points fall inside the window.
func (h *History) Volatility(token string, window time.Duration) decimal.Decimal {
	series := h.points[normalizeToken(token)]
	cutoff := h.now().Add(-window)

	var (
		count    int
		min, max decimal.Decimal
		sum      decimal.Decimal
	)
	for _, point := range series {
		if point.Timestamp.Before(cutoff) {
			continue
		}
		if count == 0 {
			min, max = point.Price, point.Price
		} else {
			if point.Price.LessThan(min) {
				min = point.Price
			}
			if point.Price.GreaterThan(max) {
				max = point.Price
			}
		}
		sum = sum.Add(point.Price)
		count++
	}

	if count < 2 {
		return decimal.Zero
	}
	mean := sum.Div(decimal.NewFromInt(int64(count)))
	if mean.IsZero() {
		return decimal.Zero
	}
	return max.Sub(min).Div(mean).Mul(decimal.NewFromInt(100))
}

// ClearOlderThan drops every point older than maxAge from all series and
// from the latest index.
func (h *History) ClearOlderThan(maxAge time.Duration) {
	cutoff := h.now().Add(-maxAge)

	for token, series := range h.points {
		kept := series[:0]
		for _, point := range series {
			if !point.Timestamp.Before(cutoff) {
				kept = append(kept, point)
			}
		}
		if len(kept) == 0 {
			delete(h.points, token)
		} else {
			h.points[token] = kept
		}
	}

	for token, byVenue := range h.latest {
		for id, point := range byVenue {
			if point.Timestamp.Before(cutoff) {
				delete(byVenue, id)
			}
		}
		if len(byVenue) == 0 {
			delete(h.latest, token)
		}
	}
}

func normalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}
