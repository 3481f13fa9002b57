// Package venue implements the venue bounded context: the catalog of AMM
// venues the engine quotes and trades against.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/venue/app"
	"github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/business/venue/infra/evm"
	"github.com/fd1az/dexarb/business/venue/infra/sim"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/monolith"
)

// Module implements the venue bounded context. Sender is set by main
// before Startup; nil leaves every adapter quote-only. DryRun swaps the
// on-chain adapters for seeded in-memory ones.
type Module struct {
	Sender evm.TxSender
	DryRun bool

	Registry *app.Registry
}

// Startup builds one adapter per configured venue and registers it.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()

	m.Registry = app.NewRegistry()

	for i, vc := range cfg.Venues {
		v := &domain.Venue{
			ID:         domain.ID(vc.ID),
			Name:       vc.Name,
			ChainID:    cfg.Ethereum.ChainID,
			Router:     vc.RouterHex(),
			Factory:    vc.FactoryHex(),
			FeeBps:     vc.FeeBps,
			Active:     vc.Active,
			Denylisted: vc.Denylisted,
		}

		var adapter app.Adapter
		if m.DryRun {
			adapter = m.simAdapter(v, i)
		} else {
			evmAdapter, err := evm.NewAdapter(mono.EthClient(), v, m.Sender, cfg.Ethereum.RPCPerSecond, log)
			if err != nil {
				return err
			}
			adapter = evmAdapter
		}
		if err := m.Registry.Register(v, adapter); err != nil {
			return err
		}

		log.Info(ctx, "venue registered",
			"venue", v.ID,
			"fee_bps", v.FeeBps,
			"active", v.Active,
			"denylisted", v.Denylisted,
			"dry_run", m.DryRun,
		)
	}

	log.Info(ctx, "venue module started", "venues", len(cfg.Venues))
	return nil
}

// simAdapter seeds a deterministic WETH/USDC pool. Each venue quotes a
// slightly different price so scans have spreads to find.
func (m *Module) simAdapter(v *domain.Venue, index int) *sim.Adapter {
	a := sim.NewAdapter(v.ID, v.FeeBps)

	price := decimal.NewFromInt(3500 + int64(index)*50)
	reserveWETH := decimal.NewFromInt(1000)
	a.SetPool(
		asset.AddrWETHEthereum.Hex(),
		asset.AddrUSDCEthereum.Hex(),
		reserveWETH,
		reserveWETH.Mul(price),
	)
	return a
}
