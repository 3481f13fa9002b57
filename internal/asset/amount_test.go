package asset_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/internal/asset"
)

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name     string
		raw      *big.Int
		decimals uint8
		want     string
	}{
		{"one eth", big.NewInt(1e18), 18, "1"},
		{"one usdc", big.NewInt(1_000_000), 6, "1"},
		{"fractional", big.NewInt(1_500_000_000_000_000_000), 18, "1.5"},
		{"sub unit", big.NewInt(1), 18, "0.000000000000000001"},
		{"nil raw", nil, 18, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := asset.ToDecimal(tt.raw, tt.decimals)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ToDecimal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToRaw(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		decimals uint8
		want     string
		wantErr  error
	}{
		{name: "one eth", value: "1", decimals: 18, want: "1000000000000000000"},
		{name: "fractional usdc", value: "1.25", decimals: 6, want: "1250000"},
		{name: "zero", value: "0", decimals: 18, want: "0"},
		{name: "too precise", value: "0.0000001", decimals: 6, wantErr: asset.ErrTooManyDecimals},
		{name: "negative", value: "-1", decimals: 18, wantErr: asset.ErrNegativeAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asset.ToRaw(decimal.RequireFromString(tt.value), tt.decimals)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ToRaw() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ToRaw() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRawDecimalRoundTrip(t *testing.T) {
	orig := decimal.RequireFromString("1234.5678")
	raw, err := asset.ToRaw(orig, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back := asset.ToDecimal(raw, 6)
	if !back.Equal(orig) {
		t.Errorf("round trip = %s, want %s", back, orig)
	}
}
