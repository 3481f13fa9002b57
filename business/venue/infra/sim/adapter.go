// Package sim provides a deterministic in-memory venue adapter. It backs
// dry-run mode and tests with constant-product pools whose reserves move as
// swaps execute.
package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/venue/app"
	"github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/internal/apperror"
)

var _ app.Adapter = (*Adapter)(nil)

type pool struct {
	tokenA   string
	tokenB   string
	reserveA decimal.Decimal
	reserveB decimal.Decimal
}

// Adapter is a fully in-memory venue.
type Adapter struct {
	id     domain.ID
	feeBps int64

	mu      sync.RWMutex
	pools   map[string]*pool
	swapErr error

	txSeq atomic.Int64
}

// NewAdapter creates a simulated venue with the given LP fee.
func NewAdapter(id domain.ID, feeBps int64) *Adapter {
	return &Adapter{
		id:     id,
		feeBps: feeBps,
		pools:  make(map[string]*pool),
	}
}

// SetPool installs (or replaces) the pool for a token pair.
func (a *Adapter) SetPool(tokenA, tokenB string, reserveA, reserveB decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pools[poolKey(tokenA, tokenB)] = &pool{
		tokenA:   strings.ToLower(tokenA),
		tokenB:   strings.ToLower(tokenB),
		reserveA: reserveA,
		reserveB: reserveB,
	}
}

// SetSwapError forces ExecuteSwap to fail with err. Pass nil to clear.
func (a *Adapter) SetSwapError(err error) {
	a.mu.Lock()
	a.swapErr = err
	a.mu.Unlock()
}

// VenueID returns the simulated venue id.
func (a *Adapter) VenueID() domain.ID {
	return a.id
}

// GetTokenPrice returns the pool mid price.
func (a *Adapter) GetTokenPrice(ctx context.Context, tokenIn, tokenOut string) (decimal.Decimal, error) {
	rIn, rOut, err := a.reserves(tokenIn, tokenOut)
	if err != nil {
		return decimal.Zero, err
	}
	if rIn.IsZero() {
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext(fmt.Sprintf("empty pool on %s", a.id)))
	}
	return rOut.Div(rIn), nil
}

// GetLiquidity returns the current reserves.
func (a *Adapter) GetLiquidity(ctx context.Context, tokenIn, tokenOut string) (domain.Liquidity, error) {
	rIn, rOut, err := a.reserves(tokenIn, tokenOut)
	if err != nil {
		return domain.Liquidity{}, err
	}
	return domain.Liquidity{
		VenueID:    a.id,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		ReserveIn:  rIn,
		ReserveOut: rOut,
		UpdatedAt:  time.Now(),
	}, nil
}

// GetExpectedOutput quotes through the constant-product curve with fees.
func (a *Adapter) GetExpectedOutput(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (domain.SwapQuote, error) {
	if amountIn.Sign() <= 0 {
		return domain.SwapQuote{}, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext("amount in must be positive"))
	}

	rIn, rOut, err := a.reserves(tokenIn, tokenOut)
	if err != nil {
		return domain.SwapQuote{}, err
	}
	if rIn.IsZero() || rOut.IsZero() {
		return domain.SwapQuote{}, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext(fmt.Sprintf("empty pool on %s", a.id)))
	}

	amountOut := a.amountOut(amountIn, rIn, rOut)

	spot := rOut.Div(rIn)
	effective := amountOut.Div(amountIn)
	impact := decimal.Zero
	if spot.Sign() > 0 {
		impact = spot.Sub(effective).Div(spot).Mul(decimal.NewFromInt(100))
	}

	return domain.SwapQuote{
		VenueID:        a.id,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		PriceImpactPct: impact,
		FeePct:         decimal.NewFromInt(a.feeBps).Div(decimal.NewFromInt(100)),
		QuotedAt:       time.Now(),
	}, nil
}

// GetSwapFee returns the configured LP fee as a percentage.
func (a *Adapter) GetSwapFee(ctx context.Context, tokenIn, tokenOut string) (decimal.Decimal, error) {
	return decimal.NewFromInt(a.feeBps).Div(decimal.NewFromInt(100)), nil
}

// ExecuteSwap applies the swap to the pool, moving its reserves.
func (a *Adapter) ExecuteSwap(ctx context.Context, req domain.SwapRequest) (domain.SwapResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.swapErr != nil {
		return domain.SwapResult{}, apperror.New(apperror.CodeVenueSwapFailed,
			apperror.WithCause(a.swapErr),
			apperror.WithContext(fmt.Sprintf("swap on %s", a.id)))
	}

	p, inverted, ok := a.lookup(req.TokenIn, req.TokenOut)
	if !ok {
		return domain.SwapResult{}, apperror.New(apperror.CodePoolNotFound,
			apperror.WithContext(fmt.Sprintf("%s/%s on %s", req.TokenIn, req.TokenOut, a.id)))
	}

	rIn, rOut := p.reserveA, p.reserveB
	if inverted {
		rIn, rOut = p.reserveB, p.reserveA
	}

	amountOut := a.amountOut(req.AmountIn, rIn, rOut)
	if amountOut.LessThan(req.MinAmountOut) {
		return domain.SwapResult{}, apperror.New(apperror.CodeSwapRejected,
			apperror.WithContext(fmt.Sprintf("output %s below minimum %s", amountOut, req.MinAmountOut)))
	}

	// Apply the trade to the pool.
	if inverted {
		p.reserveB = p.reserveB.Add(req.AmountIn)
		p.reserveA = p.reserveA.Sub(amountOut)
	} else {
		p.reserveA = p.reserveA.Add(req.AmountIn)
		p.reserveB = p.reserveB.Sub(amountOut)
	}

	seq := a.txSeq.Add(1)
	return domain.SwapResult{
		VenueID:   a.id,
		TxHash:    fmt.Sprintf("0xsim%s%012d", a.id, seq),
		AmountIn:  req.AmountIn,
		AmountOut: amountOut,
		GasUsed:   150_000,
		Executed:  time.Now(),
	}, nil
}

// amountOut applies x*y=k with the fee: out = inFee*Rout / (Rin + inFee).
func (a *Adapter) amountOut(amountIn, rIn, rOut decimal.Decimal) decimal.Decimal {
	feeFactor := decimal.NewFromInt(10000 - a.feeBps).Div(decimal.NewFromInt(10000))
	inAfterFee := amountIn.Mul(feeFactor)
	return inAfterFee.Mul(rOut).Div(rIn.Add(inAfterFee))
}

func (a *Adapter) reserves(tokenIn, tokenOut string) (decimal.Decimal, decimal.Decimal, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, inverted, ok := a.lookup(tokenIn, tokenOut)
	if !ok {
		return decimal.Zero, decimal.Zero, apperror.New(apperror.CodePoolNotFound,
			apperror.WithContext(fmt.Sprintf("%s/%s on %s", tokenIn, tokenOut, a.id)))
	}

	if inverted {
		return p.reserveB, p.reserveA, nil
	}
	return p.reserveA, p.reserveB, nil
}

// lookup finds the pool for a pair in either orientation. Callers hold a.mu.
func (a *Adapter) lookup(tokenIn, tokenOut string) (*pool, bool, bool) {
	p, ok := a.pools[poolKey(tokenIn, tokenOut)]
	if !ok {
		return nil, false, false
	}
	inverted := p.tokenA != strings.ToLower(tokenIn)
	return p, inverted, true
}

// poolKey is orientation-independent: both token orders map to one pool.
func poolKey(tokenA, tokenB string) string {
	a := strings.ToLower(tokenA)
	b := strings.ToLower(tokenB)
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
