// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/blockchain/domain"
)

// BlockchainService coordinates blockchain interactions: gas pricing,
// flashloan quoting and transaction submission.
type BlockchainService struct {
	gasOracle GasOracle
	submitter TxSubmitter
	flashloan FlashloanQuoter
}

// NewBlockchainService creates a new BlockchainService.
func NewBlockchainService(gasOracle GasOracle, submitter TxSubmitter, flashloan FlashloanQuoter) *BlockchainService {
	return &BlockchainService{
		gasOracle: gasOracle,
		submitter: submitter,
		flashloan: flashloan,
	}
}

// GetGasPrice retrieves the current gas price.
func (s *BlockchainService) GetGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	return s.gasOracle.GetGasPrice(ctx)
}

// GetGasEstimate bundles a unit estimate with the current price.
func (s *BlockchainService) GetGasEstimate(ctx context.Context, data []byte, to string) (*domain.GasEstimate, error) {
	return s.gasOracle.GetGasEstimate(ctx, data, to)
}

// QuoteFlashloan prices flashloan funding for amountUSD against the
// expected gross profit. When no provider can be quoted the fallback
// premium applies, so detection never stalls on quoter trouble.
func (s *BlockchainService) QuoteFlashloan(ctx context.Context, amountUSD, grossProfitUSD decimal.Decimal) *domain.FlashloanQuote {
	if s.flashloan != nil {
		if quote, err := s.flashloan.Quote(ctx, amountUSD, grossProfitUSD); err == nil {
			return quote
		}
	}
	return domain.QuoteFlashloan("fallback", domain.FallbackFlashloanFeePct, amountUSD, grossProfitUSD)
}

// SubmitCall submits a contract call and blocks until confirmation.
func (s *BlockchainService) SubmitCall(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (string, uint64, error) {
	return s.submitter.SubmitCall(ctx, to, data, gasLimit)
}

// CanSign reports whether live submission is possible.
func (s *BlockchainService) CanSign() bool {
	return s.submitter != nil && s.submitter.CanSign()
}

// LatestBlock retrieves the most recent block.
func (s *BlockchainService) LatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.submitter.LatestBlock(ctx)
}

// ConnectionStatus returns the submitter's connection status.
func (s *BlockchainService) ConnectionStatus() domain.ConnectionStatus {
	return s.submitter.Status()
}
