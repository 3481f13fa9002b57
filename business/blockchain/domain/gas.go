// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"math/big"
	"time"
)

// Congestion buckets the current gas market so strategy decisions can key
// off a coarse level instead of raw gwei.
type Congestion string

const (
	CongestionLow    Congestion = "low"
	CongestionMedium Congestion = "medium"
	CongestionHigh   Congestion = "high"
)

// Gwei thresholds for congestion bucketing.
const (
	congestionMediumGwei = 25.0
	congestionHighGwei   = 100.0
)

// GasPrice represents a gas price observation.
type GasPrice struct {
	Wei       *big.Int
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int) *GasPrice {
	return &GasPrice{
		Wei:       new(big.Int).Set(wei),
		Timestamp: time.Now(),
	}
}

// Gwei returns the price in gwei.
func (p *GasPrice) Gwei() float64 {
	gwei := new(big.Float).SetInt(p.Wei)
	gwei.Quo(gwei, big.NewFloat(1e9))
	out, _ := gwei.Float64()
	return out
}

// Congestion buckets the price into low, medium or high.
func (p *GasPrice) Congestion() Congestion {
	gwei := p.Gwei()
	switch {
	case gwei >= congestionHighGwei:
		return CongestionHigh
	case gwei >= congestionMediumGwei:
		return CongestionMedium
	default:
		return CongestionLow
	}
}

// GasEstimate combines a unit estimate with the price it was made at.
type GasEstimate struct {
	GasLimit uint64
	GasPrice *GasPrice
}

// NewGasEstimate creates an estimate for gasLimit units at gasPrice.
func NewGasEstimate(gasLimit uint64, gasPrice *GasPrice) *GasEstimate {
	return &GasEstimate{
		GasLimit: gasLimit,
		GasPrice: gasPrice,
	}
}

// TotalWei returns the estimated total cost in wei.
func (e *GasEstimate) TotalWei() *big.Int {
	return new(big.Int).Mul(e.GasPrice.Wei, new(big.Int).SetUint64(e.GasLimit))
}

// TotalGwei returns the estimated total cost in gwei.
func (e *GasEstimate) TotalGwei() float64 {
	return e.GasPrice.Gwei() * float64(e.GasLimit)
}
