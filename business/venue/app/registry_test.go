package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/venue/domain"
)

// stubAdapter satisfies Adapter for registry tests.
type stubAdapter struct {
	id domain.ID
}

func (s *stubAdapter) VenueID() domain.ID { return s.id }

func (s *stubAdapter) GetTokenPrice(ctx context.Context, tokenIn, tokenOut string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubAdapter) GetExpectedOutput(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (domain.SwapQuote, error) {
	return domain.SwapQuote{}, nil
}

func (s *stubAdapter) GetLiquidity(ctx context.Context, tokenIn, tokenOut string) (domain.Liquidity, error) {
	return domain.Liquidity{}, nil
}

func (s *stubAdapter) GetSwapFee(ctx context.Context, tokenIn, tokenOut string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubAdapter) ExecuteSwap(ctx context.Context, req domain.SwapRequest) (domain.SwapResult, error) {
	return domain.SwapResult{}, nil
}

func venueFor(id string, active bool) *domain.Venue {
	return &domain.Venue{ID: domain.ID(id), Name: id, ChainID: 1, FeeBps: 30, Active: active}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	v := venueFor("uniswap-v2", true)
	if err := r.Register(v, &stubAdapter{id: v.ID}); err != nil {
		t.Fatalf("register: %v", err)
	}

	a, err := r.Adapter(v.ID)
	if err != nil {
		t.Fatalf("adapter lookup: %v", err)
	}
	if a.VenueID() != v.ID {
		t.Errorf("adapter venue = %s, want %s", a.VenueID(), v.ID)
	}

	if _, err := r.Adapter("nope"); err == nil {
		t.Error("unknown venue should error")
	}
}

func TestRegistry_RejectsBadInput(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name  string
		venue *domain.Venue
		adptr Adapter
	}{
		{"nil venue", nil, &stubAdapter{id: "x"}},
		{"invalid id", venueFor("Bad_ID", true), &stubAdapter{id: "Bad_ID"}},
		{"nil adapter", venueFor("okvenue", true), nil},
		{"mismatched adapter", venueFor("venue-a", true), &stubAdapter{id: "venue-b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Register(tt.venue, tt.adptr); err == nil {
				t.Error("expected registration to fail")
			}
		})
	}
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	v := venueFor("sushiswap", true)

	if err := r.Register(v, &stubAdapter{id: v.ID}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(venueFor("sushiswap", true), &stubAdapter{id: v.ID}); err == nil {
		t.Error("duplicate registration should fail")
	}
}

func TestRegistry_ActiveIsSortedAndFiltered(t *testing.T) {
	r := NewRegistry()

	for _, spec := range []struct {
		id     string
		active bool
	}{
		{"zebra-swap", true},
		{"alpha-swap", true},
		{"mid-swap", false},
	} {
		v := venueFor(spec.id, spec.active)
		if err := r.Register(v, &stubAdapter{id: v.ID}); err != nil {
			t.Fatalf("register %s: %v", spec.id, err)
		}
	}

	active := r.Active()
	if len(active) != 2 {
		t.Fatalf("active count = %d, want 2", len(active))
	}
	if active[0].ID != "alpha-swap" || active[1].ID != "zebra-swap" {
		t.Errorf("active order = [%s %s], want sorted", active[0].ID, active[1].ID)
	}
}

func TestRegistry_Denylist(t *testing.T) {
	r := NewRegistry()

	v := venueFor("shady-swap", true)
	v.Denylisted = true
	if err := r.Register(v, &stubAdapter{id: v.ID}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if !r.IsDenylisted("shady-swap") {
		t.Error("flagged venue should report denylisted")
	}
	if !r.IsDenylisted("never-registered") {
		t.Error("unknown venue should count as denylisted")
	}
}
