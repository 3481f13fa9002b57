// Package app wires venue adapters behind a common port so the detection
// and execution layers stay venue-agnostic.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/venue/domain"
)

// Adapter is the contract every venue integration satisfies. Token arguments
// are hex contract addresses; amounts are human-unit decimals.
type Adapter interface {
	// VenueID returns the venue this adapter serves.
	VenueID() domain.ID

	// GetTokenPrice returns the mid price of tokenIn denominated in tokenOut.
	GetTokenPrice(ctx context.Context, tokenIn, tokenOut string) (decimal.Decimal, error)

	// GetExpectedOutput quotes amountIn of tokenIn against the pool,
	// including price impact for that size.
	GetExpectedOutput(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (domain.SwapQuote, error)

	// GetLiquidity returns current reserves for the pair.
	GetLiquidity(ctx context.Context, tokenIn, tokenOut string) (domain.Liquidity, error)

	// GetSwapFee returns the venue fee for the pair as a percentage.
	GetSwapFee(ctx context.Context, tokenIn, tokenOut string) (decimal.Decimal, error)

	// ExecuteSwap performs the swap and blocks until the venue accepts or
	// rejects it.
	ExecuteSwap(ctx context.Context, req domain.SwapRequest) (domain.SwapResult, error)
}
