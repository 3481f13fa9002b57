package asset

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeAmount is returned when converting a negative value to raw units.
	ErrNegativeAmount = errors.New("asset: negative amount")
	// ErrTooManyDecimals is returned when a value carries more fractional
	// digits than the token supports.
	ErrTooManyDecimals = errors.New("asset: more precision than token decimals")
)

// ToDecimal converts a raw smallest-unit amount (wei, token base units)
// into human units.
func ToDecimal(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// ToRaw converts a human-unit amount into smallest units. The conversion is
// exact: a value with more fractional digits than the token supports is
// rejected rather than silently truncated.
func ToRaw(d decimal.Decimal, decimals uint8) (*big.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrTooManyDecimals
	}
	return scaled.BigInt(), nil
}
