// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/blockchain/domain"
)

// GasOracle defines the interface for gas price information.
type GasOracle interface {
	// GetGasPrice retrieves the current gas price.
	GetGasPrice(ctx context.Context) (*domain.GasPrice, error)

	// EstimateGas estimates the gas needed for a transaction.
	EstimateGas(ctx context.Context, data []byte, to string) (uint64, error)

	// GetGasEstimate bundles a unit estimate with the current price.
	GetGasEstimate(ctx context.Context, data []byte, to string) (*domain.GasEstimate, error)
}

// TxSubmitter signs, submits and confirms transactions.
type TxSubmitter interface {
	// SubmitCall submits a contract call and blocks until confirmation.
	SubmitCall(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (txHash string, gasUsed uint64, err error)

	// CanSign reports whether a signer key is configured.
	CanSign() bool

	// LatestBlock retrieves the most recent block.
	LatestBlock(ctx context.Context) (*domain.Block, error)

	// Status returns the current connection status.
	Status() domain.ConnectionStatus
}

// FlashloanQuoter prices flashloan funding for a trade.
type FlashloanQuoter interface {
	// Quote picks a provider for amountUSD and prices the borrow.
	Quote(ctx context.Context, amountUSD, grossProfitUSD decimal.Decimal) (*domain.FlashloanQuote, error)
}
