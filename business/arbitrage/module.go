// Package arbitrage implements the arbitrage bounded context: cross-venue
// opportunity detection and the scan loop that tracks and dispatches them.
package arbitrage

import (
	"context"

	"github.com/fd1az/dexarb/business/arbitrage/app"
	blockchainapp "github.com/fd1az/dexarb/business/blockchain/app"
	"github.com/fd1az/dexarb/business/pricing"
	pricingapp "github.com/fd1az/dexarb/business/pricing/app"
	pricingdomain "github.com/fd1az/dexarb/business/pricing/domain"
	venueapp "github.com/fd1az/dexarb/business/venue/app"
	"github.com/fd1az/dexarb/internal/monolith"
)

// Module implements the arbitrage bounded context. The collaborator
// fields are set by main before Startup; Executor and Notifier may each
// be nil.
type Module struct {
	Venues   *venueapp.Registry
	Prices   *pricingapp.Store
	Chain    *blockchainapp.BlockchainService
	Eth      app.EthPricer
	Pairs    []pricingdomain.Pair
	Executor app.AutoExecutor
	Notifier app.Notifier

	Detector *app.Detector
	Scanner  *app.Scanner
}

// Startup wires the cost estimator, detector and scanner. The scan loop
// itself is started by main so it can own the lifecycle.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()

	costs := app.NewCostEstimator(m.Venues, m.Chain, m.Eth, log)

	bridges := make([]string, 0, len(cfg.Arbitrage.BridgeTokens))
	for _, token := range cfg.Arbitrage.BridgeTokens {
		addr, err := pricing.ResolveToken(token, mono.AssetRegistry())
		if err != nil {
			return err
		}
		bridges = append(bridges, addr)
	}

	m.Detector = app.NewDetector(m.Venues, m.Prices, costs, mono.AssetRegistry(), app.DetectorConfig{
		Pairs:         m.Pairs,
		BridgeTokens:  bridges,
		MinProfitPct:  cfg.Arbitrage.MinProfitPctDecimal(),
		MinProfitUSD:  cfg.Arbitrage.MinProfitUSDDecimal(),
		MaxPathLength: cfg.Arbitrage.MaxPathLength,
		UseFlashloan:  cfg.Arbitrage.UseFlashloan,
	}, log)

	scanner, err := app.NewScanner(m.Detector, m.Executor, m.Notifier, mono.RateLimits(), app.ScannerConfig{
		ScanInterval: cfg.Arbitrage.ScanInterval,
	}, log)
	if err != nil {
		return err
	}
	m.Scanner = scanner

	log.Info(ctx, "arbitrage module started",
		"pairs", len(m.Pairs),
		"bridge_tokens", len(cfg.Arbitrage.BridgeTokens),
		"auto_execute", m.Executor != nil,
	)
	return nil
}
