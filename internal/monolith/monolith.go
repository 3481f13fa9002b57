// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/config"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

// Monolith gives modules access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	AssetRegistry() *asset.Registry
	RateLimits() *ratelimit.Registry
}

// Module represents a bounded context that wires itself from shared
// infrastructure and the modules started before it. Cross-module handles
// are passed explicitly by main, in startup order.
type Module interface {
	Startup(context.Context, Monolith) error
}

// App implements the Monolith interface and owns shared resources.
type App struct {
	config        *config.Config
	logger        logger.LoggerInterface
	ethClient     *ethclient.Client
	assetRegistry *asset.Registry
	rateLimits    *ratelimit.Registry
}

// New creates the application container. The Ethereum client dials the
// HTTP endpoint; per-venue websocket streams are owned by the pricing
// module.
func New(cfg *config.Config, log logger.LoggerInterface) (*App, error) {
	rpcURL := cfg.Ethereum.HTTPURL
	if rpcURL == "" {
		rpcURL = cfg.Ethereum.WebSocketURL
	}
	ethClient, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, err
	}

	limits := ratelimit.NewDefaultRegistry()
	if cfg.Limits.PricePollsPerMinute > 0 {
		limits.Register(ratelimit.ResourcePricePoll, ratelimit.Budget{MaxRequests: cfg.Limits.PricePollsPerMinute, Window: time.Minute})
	}
	if cfg.Limits.TradesPerMinute > 0 {
		limits.Register(ratelimit.ResourceTradeExecution, ratelimit.Budget{MaxRequests: cfg.Limits.TradesPerMinute, Window: time.Minute})
	}
	if cfg.Limits.FlashloansPerMinute > 0 {
		limits.Register(ratelimit.ResourceFlashloanExecution, ratelimit.Budget{MaxRequests: cfg.Limits.FlashloansPerMinute, Window: time.Minute})
	}
	if cfg.Limits.ScansPerMinute > 0 {
		limits.Register(ratelimit.ResourceOpportunityScan, ratelimit.Budget{MaxRequests: cfg.Limits.ScansPerMinute, Window: time.Minute})
	}

	return &App{
		config:        cfg,
		logger:        log,
		ethClient:     ethClient,
		assetRegistry: asset.DefaultRegistry(),
		rateLimits:    limits,
	}, nil
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *App) EthClient() *ethclient.Client {
	return a.ethClient
}

func (a *App) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *App) RateLimits() *ratelimit.Registry {
	return a.rateLimits
}

// StartModules starts modules in order, failing fast on the first error.
func (a *App) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all shared resources.
func (a *App) Close() error {
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return nil
}
