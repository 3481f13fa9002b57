// Package execution implements the execution bounded context: trade
// validation, simulation, submission and strategy optimization.
package execution

import (
	"context"

	"github.com/shopspring/decimal"

	blockchainapp "github.com/fd1az/dexarb/business/blockchain/app"
	"github.com/fd1az/dexarb/business/execution/app"
	"github.com/fd1az/dexarb/business/execution/domain"
	"github.com/fd1az/dexarb/business/execution/infra/advisor"
	"github.com/fd1az/dexarb/business/execution/infra/archive"
	venueapp "github.com/fd1az/dexarb/business/venue/app"
	"github.com/fd1az/dexarb/internal/monolith"
)

// Module implements the execution bounded context. Venues, Chain and Eth
// are set by main before Startup.
type Module struct {
	Venues *venueapp.Registry
	Chain  *blockchainapp.BlockchainService
	Eth    app.EthPricer

	Service   *app.Service
	Records   *app.RecordStore
	Config    *app.ConfigStore
	Optimizer *app.Optimizer

	archivePath string
}

// Startup builds the execution policy, record history and service. When an
// archive path is configured, prior records are imported so the optimizer
// starts with history.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()

	policy := domain.DefaultConfig()
	policy.AutoExecute = cfg.Execution.AutoExecute
	policy.MinProfitPct = decimal.NewFromFloat(cfg.Execution.MinProfitPct)
	policy.MinProfitUSD = decimal.NewFromFloat(cfg.Execution.MinProfitUSD)
	policy.MaxTradeSizeUSD = decimal.NewFromFloat(cfg.Execution.MaxTradeSizeUSD)
	policy.SlippageTolerance = decimal.NewFromFloat(cfg.Execution.SlippageTolerance)
	policy.GasStrategy = domain.GasStrategy(cfg.Execution.GasStrategy)
	policy.RiskTolerance = domain.RiskTolerance(cfg.Execution.RiskTolerance)
	policy.UseFlashloan = cfg.Execution.UseFlashloan
	policy.DeviationPct = decimal.NewFromFloat(cfg.Execution.DeviationPct)

	store, err := app.NewConfigStore(policy)
	if err != nil {
		return err
	}
	m.Config = store

	m.Records = app.NewRecordStore(domain.NewRecords(domain.DefaultRecordCapacity))

	m.archivePath = cfg.Execution.ArchivePath
	if m.archivePath != "" {
		if records, err := archive.Import(m.archivePath); err == nil {
			m.Records.Replace(records)
			log.Info(ctx, "execution archive imported",
				"path", m.archivePath,
				"records", len(records),
			)
		} else {
			log.Debug(ctx, "no execution archive imported", "path", m.archivePath, "error", err)
		}
	}

	var adv app.AIAdvisor
	if cfg.Advisor.Enabled {
		clientCfg := advisor.DefaultClientConfig(cfg.Advisor.BaseURL)
		clientCfg.APIKey = cfg.Advisor.APIKey
		if cfg.Advisor.Timeout > 0 {
			clientCfg.Timeout = cfg.Advisor.Timeout
		}
		client, err := advisor.NewClient(clientCfg, log)
		if err != nil {
			return err
		}
		adv = client
	}

	m.Service = app.NewService(m.Config, m.Records, m.Venues, m.Chain, m.Eth, mono.RateLimits(), log)
	m.Optimizer = app.NewOptimizer(m.Records, m.Config, adv, log)

	log.Info(ctx, "execution module started",
		"auto_execute", policy.AutoExecute,
		"flashloan", policy.UseFlashloan,
		"advisor", adv != nil,
	)
	return nil
}

// Close archives the retained execution history when a path is configured.
func (m *Module) Close() error {
	if m.archivePath == "" || m.Records == nil {
		return nil
	}
	return archive.Export(m.archivePath, m.Records.All())
}
