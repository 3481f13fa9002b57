// Package pricing implements the pricing bounded context: cross-venue
// price history, polling and streaming ingestion, and the USD index for
// the gas token.
package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/fd1az/dexarb/business/pricing/app"
	"github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/business/pricing/infra/stream"
	venueapp "github.com/fd1az/dexarb/business/venue/app"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/monolith"
)

// Module implements the pricing bounded context. Venues is set by main
// before Startup.
type Module struct {
	Venues *venueapp.Registry

	Store    *app.Store
	Feed     *app.FeedService
	EthIndex *app.EthIndex

	Pairs []domain.Pair
}

// Startup builds the price store and feed, attaches per-venue streams
// where configured, and starts ingestion.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()

	pairs, err := resolvePairs(cfg.Arbitrage.Pairs, mono.AssetRegistry())
	if err != nil {
		return err
	}
	m.Pairs = pairs

	m.Store = app.NewStore(domain.NewHistory(0))

	feed, err := app.NewFeedService(app.FeedConfig{
		Pairs:          pairs,
		PollingEnabled: cfg.Pricing.PollingEnabled,
		PollInterval:   cfg.Pricing.PollInterval,
		Retention:      cfg.Pricing.Retention,
		SweepInterval:  cfg.Pricing.SweepInterval,
	}, m.Store, m.Venues, mono.RateLimits(), log)
	if err != nil {
		return err
	}
	m.Feed = feed

	for _, vc := range cfg.Venues {
		if vc.StreamURL == "" {
			continue
		}
		client, err := stream.NewClient(stream.DefaultClientConfig(vc.StreamURL, venuedomain.ID(vc.ID)), log)
		if err != nil {
			return err
		}
		if err := client.Subscribe(ctx, pairs...); err != nil {
			return err
		}
		feed.RegisterStream(client)
	}

	if err := feed.Start(ctx); err != nil {
		return err
	}

	m.EthIndex = app.NewEthIndex(m.Store, asset.AddrWETHEthereum.Hex(), app.DefaultEthIndexMaxAge)

	log.Info(ctx, "pricing module started",
		"pairs", len(pairs),
		"polling", cfg.Pricing.PollingEnabled,
	)
	return nil
}

// Close stops feed ingestion.
func (m *Module) Close() error {
	if m.Feed != nil {
		return m.Feed.Stop()
	}
	return nil
}

// resolvePairs turns "BASE:QUOTE" symbol pairs into address pairs via the
// asset registry. Entries already written as addresses pass through.
func resolvePairs(raw []string, assets *asset.Registry) ([]domain.Pair, error) {
	pairs := make([]domain.Pair, 0, len(raw))
	for _, entry := range raw {
		base, quote, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("malformed pair %q, want BASE:QUOTE", entry)
		}
		baseAddr, err := ResolveToken(base, assets)
		if err != nil {
			return nil, err
		}
		quoteAddr, err := ResolveToken(quote, assets)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, domain.NewPair(baseAddr, quoteAddr))
	}
	return pairs, nil
}

// ResolveToken maps a token symbol to its mainnet contract address via the
// asset registry. Addresses pass through unchanged.
func ResolveToken(token string, assets *asset.Registry) (string, error) {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, "0x") {
		return token, nil
	}
	matches := assets.GetBySymbol(strings.ToUpper(token))
	for _, a := range matches {
		if a.IsToken() {
			return a.ID().Address().Hex(), nil
		}
	}
	return "", fmt.Errorf("unknown token symbol %q", token)
}
