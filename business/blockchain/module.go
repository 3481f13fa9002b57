// Package blockchain implements the blockchain bounded context for Ethereum integration.
package blockchain

import (
	"context"

	"github.com/fd1az/dexarb/business/blockchain/app"
	"github.com/fd1az/dexarb/business/blockchain/infra/ethereum"
	"github.com/fd1az/dexarb/internal/monolith"
)

// Module implements the blockchain bounded context. After Startup the
// exported fields carry the handles later modules wire against.
type Module struct {
	Service   *app.BlockchainService
	Submitter *ethereum.Submitter

	oracle *ethereum.GasOracle
	quoter *ethereum.FlashloanQuoter
}

// Startup builds the gas oracle, transaction submitter and flashloan
// quoter, and connects them. Connection failures are logged, not fatal;
// each component retries on first use.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()

	rpcURL := cfg.Ethereum.HTTPURL
	if rpcURL == "" {
		rpcURL = cfg.Ethereum.WebSocketURL
	}

	oracle, err := ethereum.NewGasOracle(ethereum.DefaultGasOracleConfig(rpcURL), log)
	if err != nil {
		return err
	}
	m.oracle = oracle

	subCfg := ethereum.DefaultSubmitterConfig(rpcURL)
	subCfg.PrivateKey = cfg.Ethereum.PrivateKey
	submitter, err := ethereum.NewSubmitter(subCfg, log)
	if err != nil {
		return err
	}
	m.Submitter = submitter

	quoter, err := ethereum.NewFlashloanQuoter(ethereum.DefaultFlashloanQuoterConfig(rpcURL), log)
	if err != nil {
		return err
	}
	m.quoter = quoter

	if err := oracle.Connect(ctx); err != nil {
		log.Error(ctx, "failed to connect gas oracle", "error", err)
	}
	if err := submitter.Connect(ctx); err != nil {
		log.Error(ctx, "failed to connect tx submitter", "error", err)
	}
	if err := quoter.Connect(ctx); err != nil {
		log.Error(ctx, "failed to connect flashloan quoter", "error", err)
	}

	m.Service = app.NewBlockchainService(oracle, submitter, quoter)

	log.Info(ctx, "blockchain module started", "can_sign", m.Service.CanSign())
	return nil
}

// Close releases the module's connections.
func (m *Module) Close() error {
	if m.oracle != nil {
		m.oracle.Close()
	}
	if m.Submitter != nil {
		m.Submitter.Close()
	}
	if m.quoter != nil {
		m.quoter.Close()
	}
	return nil
}
