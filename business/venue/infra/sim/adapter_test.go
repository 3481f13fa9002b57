package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/venue/domain"
)

const (
	tokenWETH = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	tokenUSDC = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
)

func newPooledAdapter(t *testing.T) *Adapter {
	t.Helper()
	a := NewAdapter(domain.MustID("sim-a"), 30)
	// 1000 WETH : 3,500,000 USDC -> mid price 3500
	a.SetPool(tokenWETH, tokenUSDC,
		decimal.RequireFromString("1000"),
		decimal.RequireFromString("3500000"))
	return a
}

func TestAdapter_GetTokenPrice(t *testing.T) {
	a := newPooledAdapter(t)
	ctx := context.Background()

	price, err := a.GetTokenPrice(ctx, tokenWETH, tokenUSDC)
	if err != nil {
		t.Fatalf("GetTokenPrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("3500")) {
		t.Errorf("price = %s, want 3500", price)
	}

	// Inverted direction prices the other side.
	inv, err := a.GetTokenPrice(ctx, tokenUSDC, tokenWETH)
	if err != nil {
		t.Fatalf("GetTokenPrice inverted: %v", err)
	}
	want := decimal.RequireFromString("1").Div(decimal.RequireFromString("3500"))
	if inv.Sub(want).Abs().GreaterThan(decimal.RequireFromString("0.0000001")) {
		t.Errorf("inverted price = %s, want ~%s", inv, want)
	}
}

func TestAdapter_GetExpectedOutput(t *testing.T) {
	a := newPooledAdapter(t)
	ctx := context.Background()

	quote, err := a.GetExpectedOutput(ctx, tokenWETH, tokenUSDC, decimal.RequireFromString("10"))
	if err != nil {
		t.Fatalf("GetExpectedOutput: %v", err)
	}

	// Output must be under spot (fees plus impact) but in the ballpark.
	if quote.AmountOut.GreaterThanOrEqual(decimal.RequireFromString("35000")) {
		t.Errorf("amount out %s should be below zero-impact 35000", quote.AmountOut)
	}
	if quote.AmountOut.LessThan(decimal.RequireFromString("34000")) {
		t.Errorf("amount out %s unexpectedly small", quote.AmountOut)
	}
	if quote.PriceImpactPct.Sign() <= 0 {
		t.Errorf("price impact %s should be positive", quote.PriceImpactPct)
	}
}

func TestAdapter_RejectsNonPositiveAmount(t *testing.T) {
	a := newPooledAdapter(t)

	if _, err := a.GetExpectedOutput(context.Background(), tokenWETH, tokenUSDC, decimal.Zero); err == nil {
		t.Error("zero amount should be rejected")
	}
}

func TestAdapter_UnknownPool(t *testing.T) {
	a := NewAdapter(domain.MustID("sim-b"), 30)

	if _, err := a.GetTokenPrice(context.Background(), tokenWETH, tokenUSDC); err == nil {
		t.Error("missing pool should error")
	}
}

func TestAdapter_ExecuteSwapMovesReserves(t *testing.T) {
	a := newPooledAdapter(t)
	ctx := context.Background()

	before, err := a.GetTokenPrice(ctx, tokenWETH, tokenUSDC)
	if err != nil {
		t.Fatalf("price before: %v", err)
	}

	res, err := a.ExecuteSwap(ctx, domain.SwapRequest{
		VenueID:      a.VenueID(),
		TokenIn:      tokenWETH,
		TokenOut:     tokenUSDC,
		AmountIn:     decimal.RequireFromString("10"),
		MinAmountOut: decimal.RequireFromString("30000"),
		Deadline:     time.Now().Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("ExecuteSwap: %v", err)
	}
	if res.TxHash == "" {
		t.Error("expected a tx hash")
	}

	after, err := a.GetTokenPrice(ctx, tokenWETH, tokenUSDC)
	if err != nil {
		t.Fatalf("price after: %v", err)
	}
	if !after.LessThan(before) {
		t.Errorf("selling WETH should lower its price: before %s, after %s", before, after)
	}
}

func TestAdapter_ExecuteSwapHonorsMinOut(t *testing.T) {
	a := newPooledAdapter(t)

	_, err := a.ExecuteSwap(context.Background(), domain.SwapRequest{
		VenueID:      a.VenueID(),
		TokenIn:      tokenWETH,
		TokenOut:     tokenUSDC,
		AmountIn:     decimal.RequireFromString("10"),
		MinAmountOut: decimal.RequireFromString("36000"), // above any possible output
	})
	if err == nil {
		t.Error("swap below min out should be rejected")
	}
}

func TestAdapter_InjectedSwapError(t *testing.T) {
	a := newPooledAdapter(t)
	a.SetSwapError(errors.New("venue offline"))

	_, err := a.ExecuteSwap(context.Background(), domain.SwapRequest{
		VenueID:  a.VenueID(),
		TokenIn:  tokenWETH,
		TokenOut: tokenUSDC,
		AmountIn: decimal.RequireFromString("1"),
	})
	if err == nil {
		t.Error("injected error should surface")
	}

	a.SetSwapError(nil)
	if _, err := a.ExecuteSwap(context.Background(), domain.SwapRequest{
		VenueID:  a.VenueID(),
		TokenIn:  tokenWETH,
		TokenOut: tokenUSDC,
		AmountIn: decimal.RequireFromString("1"),
	}); err != nil {
		t.Errorf("cleared error should allow swaps: %v", err)
	}
}
