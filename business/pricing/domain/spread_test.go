package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateSpread(t *testing.T) {
	tests := []struct {
		name          string
		priceA        string
		priceB        string
		wantAbsolute  string
		wantPercent   string // rounded to 4 places
		wantDirection SpreadDirection
	}{
		{
			name:          "equal_prices_no_spread",
			priceA:        "3400.00",
			priceB:        "3400.00",
			wantAbsolute:  "0",
			wantPercent:   "0",
			wantDirection: SpreadNone,
		},
		{
			name:          "a_cheaper_buy_on_a",
			priceA:        "3500.00",
			priceB:        "3550.00",
			wantAbsolute:  "50",
			wantPercent:   "1.4286", // 50/3500*100
			wantDirection: SpreadBuyA,
		},
		{
			name:          "b_cheaper_buy_on_b",
			priceA:        "3550.00",
			priceB:        "3500.00",
			wantAbsolute:  "50",
			wantPercent:   "1.4286",
			wantDirection: SpreadBuyB,
		},
		{
			name:          "fifth_of_percent",
			priceA:        "1000.00",
			priceB:        "1002.00",
			wantAbsolute:  "2",
			wantPercent:   "0.2",
			wantDirection: SpreadBuyA,
		},
		{
			name:          "zero_low_side_no_panic",
			priceA:        "0",
			priceB:        "3400.00",
			wantAbsolute:  "3400",
			wantPercent:   "0", // division by zero avoided
			wantDirection: SpreadBuyA,
		},
		{
			name:          "both_zero",
			priceA:        "0",
			priceB:        "0",
			wantAbsolute:  "0",
			wantPercent:   "0",
			wantDirection: SpreadNone,
		},
		{
			name:          "small_numbers",
			priceA:        "0.001",
			priceB:        "0.00101",
			wantAbsolute:  "0.00001",
			wantPercent:   "1",
			wantDirection: SpreadBuyA,
		},
		{
			name:          "large_numbers",
			priceA:        "101000.00",
			priceB:        "100000.00",
			wantAbsolute:  "1000",
			wantPercent:   "1",
			wantDirection: SpreadBuyB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := decimal.RequireFromString(tt.priceA)
			b := decimal.RequireFromString(tt.priceB)

			spread := CalculateSpread(a, b)

			if !spread.PriceA.Equal(a) {
				t.Errorf("PriceA = %s, want %s", spread.PriceA, a)
			}
			if !spread.PriceB.Equal(b) {
				t.Errorf("PriceB = %s, want %s", spread.PriceB, b)
			}

			wantAbsolute := decimal.RequireFromString(tt.wantAbsolute)
			if !spread.Absolute.Equal(wantAbsolute) {
				t.Errorf("Absolute = %s, want %s", spread.Absolute, wantAbsolute)
			}

			wantPercent := decimal.RequireFromString(tt.wantPercent)
			if got := spread.Percent.Round(4); !got.Equal(wantPercent) {
				t.Errorf("Percent = %s (rounded %s), want %s", spread.Percent, got, wantPercent)
			}

			if spread.Direction != tt.wantDirection {
				t.Errorf("Direction = %v, want %v", spread.Direction, tt.wantDirection)
			}
		})
	}
}

func TestCalculateSpread_Symmetry(t *testing.T) {
	// Swapping the sides flips direction but keeps the measured spread,
	// since percent is always against the cheaper price.
	a := decimal.RequireFromString("3400")
	b := decimal.RequireFromString("3434")

	spread1 := CalculateSpread(a, b)
	spread2 := CalculateSpread(b, a)

	if !spread1.Absolute.Equal(spread2.Absolute) {
		t.Errorf("absolutes differ: %s vs %s", spread1.Absolute, spread2.Absolute)
	}
	if !spread1.Percent.Equal(spread2.Percent) {
		t.Errorf("percents differ: %s vs %s", spread1.Percent, spread2.Percent)
	}
	if spread1.Direction == spread2.Direction {
		t.Errorf("directions should be opposite: both are %v", spread1.Direction)
	}
}

func TestCalculateSpread_PercentAgainstCheaperSide(t *testing.T) {
	// Percent = |A-B| / min(A,B) * 100
	a := decimal.RequireFromString("2500")
	b := decimal.RequireFromString("2525")

	spread := CalculateSpread(a, b)

	expected := b.Sub(a).Div(a).Mul(decimal.NewFromInt(100))
	if !spread.Percent.Equal(expected) {
		t.Errorf("Percent = %s, want %s", spread.Percent, expected)
	}
}

func BenchmarkCalculateSpread(b *testing.B) {
	priceA := decimal.RequireFromString("3456.789")
	priceB := decimal.RequireFromString("3460.123")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CalculateSpread(priceA, priceB)
	}
}
