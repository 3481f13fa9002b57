// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
)

// Status tracks an opportunity through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Hop is one swap leg of a route: sell TokenIn for TokenOut on Venue.
type Hop struct {
	Venue    venuedomain.ID
	TokenIn  string
	TokenOut string
}

// Opportunity is a detected cross-venue price discrepancy with its full
// cost-adjusted economics. Created by the detector; only the scanner and
// the execution service move its status afterwards.
type Opportunity struct {
	ID           string
	DiscoveredAt time.Time
	SourceVenue  venuedomain.ID // buy side
	TargetVenue  venuedomain.ID // sell side
	TokenIn      string
	TokenOut     string
	TradeSize    decimal.Decimal // token-in units
	TradeSizeUSD decimal.Decimal
	SpreadPct    decimal.Decimal
	Costs        CostBreakdown
	NetProfitUSD decimal.Decimal
	NetProfitPct decimal.Decimal
	Risk         RiskAssessment
	Status       Status
	Path         []Hop // populated for multi-hop routes
}

// OpportunityID derives a direct trade's identity from its content, so the
// same discrepancy re-detected on a later scan maps to the same entry.
func OpportunityID(src, dst venuedomain.ID, tokenIn, tokenOut string) string {
	return strings.ToLower(fmt.Sprintf("%s>%s:%s/%s", src, dst, tokenIn, tokenOut))
}

// RouteOpportunityID identifies a multi-hop route by its full venue and
// token sequence; two routes through different intermediates stay distinct.
func RouteOpportunityID(path []Hop) string {
	if len(path) == 0 {
		return ""
	}

	venues := make([]string, len(path))
	tokens := make([]string, 0, len(path)+1)
	tokens = append(tokens, path[0].TokenIn)
	for i, hop := range path {
		venues[i] = string(hop.Venue)
		tokens = append(tokens, hop.TokenOut)
	}

	id := fmt.Sprintf("%s:%s:hop%d", strings.Join(venues, ">"), strings.Join(tokens, "/"), len(path))
	return strings.ToLower(id)
}

// Hops returns the number of swap legs. A direct trade is two legs: buy on
// the source venue, sell on the target.
func (o *Opportunity) Hops() int {
	if len(o.Path) > 0 {
		return len(o.Path)
	}
	return 2
}

// Profitable reports whether the net estimate clears zero.
func (o *Opportunity) Profitable() bool {
	return o.NetProfitUSD.IsPositive()
}

// Validate rejects malformed opportunities before they reach execution.
func (o *Opportunity) Validate() error {
	if o == nil {
		return fmt.Errorf("opportunity is nil")
	}
	if o.ID == "" {
		return fmt.Errorf("opportunity id is empty")
	}
	if _, err := venuedomain.ParseID(string(o.SourceVenue)); err != nil {
		return fmt.Errorf("source venue: %w", err)
	}
	if _, err := venuedomain.ParseID(string(o.TargetVenue)); err != nil {
		return fmt.Errorf("target venue: %w", err)
	}
	if o.TokenIn == "" || o.TokenOut == "" {
		return fmt.Errorf("opportunity tokens are empty")
	}
	if !o.TradeSize.IsPositive() {
		return fmt.Errorf("trade size %s is not positive", o.TradeSize)
	}
	return nil
}
