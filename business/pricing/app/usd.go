package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultEthIndexMaxAge bounds how old a stored point may be before the
// index refuses to quote from it.
const DefaultEthIndexMaxAge = 2 * time.Minute

// EthIndex answers "what is the gas token worth in USD" from the shared
// price store, taking the freshest WETH point across venues. A stale or
// missing point yields no price rather than a guess, so gas costing
// degrades loudly instead of silently mispricing.
type EthIndex struct {
	store  *Store
	token  string // WETH contract address the feeds track
	maxAge time.Duration

	now func() time.Time
}

// NewEthIndex builds an index over store for the given WETH address.
// maxAge <= 0 selects the default.
func NewEthIndex(store *Store, wethAddress string, maxAge time.Duration) *EthIndex {
	if maxAge <= 0 {
		maxAge = DefaultEthIndexMaxAge
	}
	return &EthIndex{
		store:  store,
		token:  wethAddress,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// EthPriceUSD returns the freshest WETH price across venues. The boolean
// is false when no point exists or the freshest one is older than maxAge.
func (ix *EthIndex) EthPriceUSD(_ context.Context) (decimal.Decimal, bool) {
	point, ok := ix.store.LatestPriceAnyVenue(ix.token)
	if !ok {
		return decimal.Zero, false
	}
	if ix.now().Sub(point.Timestamp) > ix.maxAge {
		return decimal.Zero, false
	}
	return point.Price, true
}
