// Package domain defines the venue model: the trading places (DEXes) the
// engine compares and routes orders to.
package domain

import (
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
)

// ID identifies a venue. Valid IDs are short lowercase slugs such as
// "uniswap-v2" or "sushiswap".
type ID string

var idPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ParseID validates raw and returns it as an ID.
func ParseID(raw string) (ID, error) {
	if raw == "" {
		return "", fmt.Errorf("venue id is empty")
	}
	if !idPattern.MatchString(raw) {
		return "", fmt.Errorf("invalid venue id %q: must be a lowercase slug", raw)
	}
	return ID(raw), nil
}

// MustID parses raw, panicking on invalid input. For wiring and tests.
func MustID(raw string) ID {
	id, err := ParseID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string { return string(id) }

// Venue describes one DEX the engine can quote and trade on.
type Venue struct {
	ID         ID
	Name       string
	ChainID    uint64
	Router     common.Address
	Factory    common.Address
	FeeBps     int64 // LP swap fee, basis points (30 = 0.30%)
	Active     bool
	Denylisted bool // still scannable, but opportunities touching it score higher risk
}

// FeePct returns the swap fee as a percentage (30 bps -> 0.30).
func (v *Venue) FeePct() float64 {
	return float64(v.FeeBps) / 100.0
}

// Tradeable reports whether orders may be routed to the venue.
func (v *Venue) Tradeable() bool {
	return v.Active && !v.Denylisted
}
