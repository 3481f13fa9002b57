package domain

import (
	"math/big"
	"testing"
)

func TestGasPrice_Gwei(t *testing.T) {
	tests := []struct {
		name string
		wei  string
		want float64
	}{
		{name: "25_gwei", wei: "25000000000", want: 25},
		{name: "1_gwei", wei: "1000000000", want: 1},
		{name: "fractional_gwei", wei: "1500000000", want: 1.5},
		{name: "zero", wei: "0", want: 0},
		{name: "sub_gwei", wei: "500000000", want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wei := new(big.Int)
			wei.SetString(tt.wei, 10)

			price := NewGasPrice(wei)
			if got := price.Gwei(); got != tt.want {
				t.Errorf("Gwei() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGasPrice_Congestion(t *testing.T) {
	tests := []struct {
		name string
		gwei int64
		want Congestion
	}{
		{name: "calm_5_gwei", gwei: 5, want: CongestionLow},
		{name: "just_below_medium", gwei: 24, want: CongestionLow},
		{name: "medium_boundary_25", gwei: 25, want: CongestionMedium},
		{name: "busy_60_gwei", gwei: 60, want: CongestionMedium},
		{name: "just_below_high", gwei: 99, want: CongestionMedium},
		{name: "high_boundary_100", gwei: 100, want: CongestionHigh},
		{name: "spike_400_gwei", gwei: 400, want: CongestionHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wei := new(big.Int).Mul(big.NewInt(tt.gwei), big.NewInt(1_000_000_000))

			price := NewGasPrice(wei)
			if got := price.Congestion(); got != tt.want {
				t.Errorf("Congestion() = %s, want %s (at %d gwei)", got, tt.want, tt.gwei)
			}
		})
	}
}

func TestNewGasPrice_CopiesWei(t *testing.T) {
	wei := big.NewInt(25_000_000_000)
	price := NewGasPrice(wei)

	wei.SetInt64(1) // caller mutates its own value

	if price.Wei.Cmp(big.NewInt(25_000_000_000)) != 0 {
		t.Errorf("Wei = %s, want 25000000000 after caller mutation", price.Wei)
	}
}

func TestGasEstimate_Totals(t *testing.T) {
	price := NewGasPrice(big.NewInt(25_000_000_000)) // 25 gwei
	est := NewGasEstimate(200_000, price)

	// 200000 * 25 gwei = 5e15 wei
	wantWei := new(big.Int).Mul(big.NewInt(200_000), big.NewInt(25_000_000_000))
	if est.TotalWei().Cmp(wantWei) != 0 {
		t.Errorf("TotalWei() = %s, want %s", est.TotalWei(), wantWei)
	}

	wantGwei := 5_000_000.0 // 200000 * 25
	if got := est.TotalGwei(); got != wantGwei {
		t.Errorf("TotalGwei() = %v, want %v", got, wantGwei)
	}
}
