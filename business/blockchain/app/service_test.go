package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/blockchain/domain"
)

type fakeQuoter struct {
	quote *domain.FlashloanQuote
	err   error
}

func (f *fakeQuoter) Quote(ctx context.Context, amountUSD, grossProfitUSD decimal.Decimal) (*domain.FlashloanQuote, error) {
	return f.quote, f.err
}

func TestQuoteFlashloan_UsesQuoterWhenAvailable(t *testing.T) {
	want := domain.QuoteFlashloan("aave-v3", decimal.RequireFromString("0.05"),
		decimal.NewFromInt(10_000), decimal.NewFromInt(100))

	svc := NewBlockchainService(nil, nil, &fakeQuoter{quote: want})

	got := svc.QuoteFlashloan(context.Background(), decimal.NewFromInt(10_000), decimal.NewFromInt(100))
	if got.Provider != "aave-v3" {
		t.Errorf("Provider = %s, want aave-v3", got.Provider)
	}
	if !got.FeeUSD.Equal(decimal.NewFromInt(5)) {
		t.Errorf("FeeUSD = %s, want 5", got.FeeUSD)
	}
}

func TestQuoteFlashloan_FallsBackWhenQuoterFails(t *testing.T) {
	svc := NewBlockchainService(nil, nil, &fakeQuoter{err: errors.New("rpc down")})

	got := svc.QuoteFlashloan(context.Background(), decimal.NewFromInt(10_000), decimal.NewFromInt(100))

	if got.Provider != "fallback" {
		t.Errorf("Provider = %s, want fallback", got.Provider)
	}
	// 0.09% of 10000 = 9
	if !got.FeeUSD.Equal(decimal.NewFromInt(9)) {
		t.Errorf("FeeUSD = %s, want 9", got.FeeUSD)
	}
	if !got.NetProfitUSD.Equal(decimal.NewFromInt(91)) {
		t.Errorf("NetProfitUSD = %s, want 91", got.NetProfitUSD)
	}
}

func TestQuoteFlashloan_FallsBackWithNoQuoter(t *testing.T) {
	svc := NewBlockchainService(nil, nil, nil)

	got := svc.QuoteFlashloan(context.Background(), decimal.NewFromInt(50_000), decimal.NewFromInt(10))

	if got.Provider != "fallback" {
		t.Errorf("Provider = %s, want fallback", got.Provider)
	}
	// 0.09% of 50000 = 45, net = 10 - 45 = -35
	if got.Profitable {
		t.Error("expected unprofitable quote after fallback fee")
	}
}
