package ethereum

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

func newTestQuoter(t *testing.T, providers []domain.FlashloanProvider) *FlashloanQuoter {
	t.Helper()

	q, err := NewFlashloanQuoter(FlashloanQuoterConfig{
		RPCURL:    "http://localhost:8545",
		Providers: providers,
		// No refresh so quoting works without a connection.
		RefreshInterval: 0,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewFlashloanQuoter: %v", err)
	}
	return q
}

func TestFlashloanQuoter_PicksCheapestCoveringProvider(t *testing.T) {
	providers := []domain.FlashloanProvider{
		{Name: "aave-v2", FeeBps: 9},
		{Name: "balancer-v2", FeeBps: 0, MaxAmountUSD: decimal.NewFromInt(50_000)},
		{Name: "aave-v3", FeeBps: 5},
	}
	q := newTestQuoter(t, providers)

	tests := []struct {
		name         string
		amountUSD    string
		wantProvider string
		wantFeePct   string
	}{
		{
			name:         "small_borrow_goes_free",
			amountUSD:    "10000",
			wantProvider: "balancer-v2",
			wantFeePct:   "0",
		},
		{
			name:         "at_the_cap_still_free",
			amountUSD:    "50000",
			wantProvider: "balancer-v2",
			wantFeePct:   "0",
		},
		{
			name:         "over_the_cap_falls_to_cheapest_aave",
			amountUSD:    "50001",
			wantProvider: "aave-v3",
			wantFeePct:   "0.05",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amountUSD)

			quote, err := q.Quote(context.Background(), amount, decimal.NewFromInt(100))
			if err != nil {
				t.Fatalf("Quote: %v", err)
			}

			if quote.Provider != tt.wantProvider {
				t.Errorf("Provider = %s, want %s", quote.Provider, tt.wantProvider)
			}

			wantFee := decimal.RequireFromString(tt.wantFeePct)
			if !quote.FeePct.Equal(wantFee) {
				t.Errorf("FeePct = %s, want %s", quote.FeePct, wantFee)
			}
		})
	}
}

func TestFlashloanQuoter_FeeTiesBreakOnName(t *testing.T) {
	providers := []domain.FlashloanProvider{
		{Name: "zeta-pool", FeeBps: 5},
		{Name: "alpha-pool", FeeBps: 5},
	}
	q := newTestQuoter(t, providers)

	quote, err := q.Quote(context.Background(), decimal.NewFromInt(1000), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Provider != "alpha-pool" {
		t.Errorf("Provider = %s, want alpha-pool", quote.Provider)
	}
}

func TestFlashloanQuoter_NoCoveringProvider(t *testing.T) {
	providers := []domain.FlashloanProvider{
		{Name: "small-pool", FeeBps: 0, MaxAmountUSD: decimal.NewFromInt(1000)},
	}
	q := newTestQuoter(t, providers)

	_, err := q.Quote(context.Background(), decimal.NewFromInt(5000), decimal.NewFromInt(10))
	if err == nil {
		t.Fatal("expected an error when no provider covers the amount")
	}
	if apperror.GetCode(err) != apperror.CodeFlashloanQuoteFailed {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeFlashloanQuoteFailed)
	}
}

func TestFlashloanQuoter_RejectsNonPositiveAmount(t *testing.T) {
	q := newTestQuoter(t, []domain.FlashloanProvider{{Name: "pool", FeeBps: 5}})

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-10)} {
		if _, err := q.Quote(context.Background(), amount, decimal.NewFromInt(10)); err == nil {
			t.Errorf("expected an error for amount %s", amount)
		}
	}
}

func TestNewFlashloanQuoter_RequiresProviders(t *testing.T) {
	_, err := NewFlashloanQuoter(FlashloanQuoterConfig{RPCURL: "http://localhost:8545"}, testLogger())
	if err == nil {
		t.Fatal("expected an error with an empty provider table")
	}
}
