// Package main is the entry point for the DEX Arbitrage Engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/dexarb/business/arbitrage"
	arbitrageInfra "github.com/fd1az/dexarb/business/arbitrage/infra"
	"github.com/fd1az/dexarb/business/blockchain"
	blockchaindomain "github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/business/execution"
	"github.com/fd1az/dexarb/business/pricing"
	"github.com/fd1az/dexarb/business/venue"
	"github.com/fd1az/dexarb/internal/apm"
	"github.com/fd1az/dexarb/internal/config"
	"github.com/fd1az/dexarb/internal/health"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/metrics"
	"github.com/fd1az/dexarb/internal/monolith"
	"github.com/fd1az/dexarb/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Parse flags
	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	dryRun := flag.Bool("dry-run", false, "Use seeded in-memory venues instead of on-chain adapters")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dexarb %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	// Run application
	if err := run(ctx, *configPath, tuiMode, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode, dryRun bool) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set TUI mode in config so modules know
	cfg.Arbitrage.TUIMode = tuiMode

	// Setup logger (only log to stderr in CLI mode)
	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		// In TUI mode, suppress logs (discard output)
		log = logger.New(io.Discard, logLevel, cfg.App.Name, apm.TraceID)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, apm.TraceID)
		log.Info(ctx, "starting DEX Arbitrage Engine",
			"version", version,
			"environment", cfg.App.Environment,
		)
	}

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		// Set service name env var for OTEL
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		// Initialize tracing with Zipkin (local dev friendly)
		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin", "endpoint", cfg.Telemetry.OTLPEndpoint)

		// Initialize metrics with Prometheus
		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)

		// Start Prometheus metrics server in background
		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Start health check server on port 8081
	healthServer := health.NewServer(8081, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", 8081)
	}
	defer healthServer.Stop(ctx)

	// Create monolith (application container)
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Modules in dependency order, wired explicitly
	blockchainMod := &blockchain.Module{}
	venueMod := &venue.Module{DryRun: dryRun}
	pricingMod := &pricing.Module{}
	executionMod := &execution.Module{}
	arbitrageMod := &arbitrage.Module{}

	startFunc := func() error {
		if err := mono.StartModules(ctx, blockchainMod); err != nil {
			return fmt.Errorf("failed to start blockchain module: %w", err)
		}

		venueMod.Sender = blockchainMod.Submitter
		if err := mono.StartModules(ctx, venueMod); err != nil {
			return fmt.Errorf("failed to start venue module: %w", err)
		}

		pricingMod.Venues = venueMod.Registry
		if err := mono.StartModules(ctx, pricingMod); err != nil {
			return fmt.Errorf("failed to start pricing module: %w", err)
		}

		executionMod.Venues = venueMod.Registry
		executionMod.Chain = blockchainMod.Service
		executionMod.Eth = pricingMod.EthIndex
		if err := mono.StartModules(ctx, executionMod); err != nil {
			return fmt.Errorf("failed to start execution module: %w", err)
		}

		arbitrageMod.Venues = venueMod.Registry
		arbitrageMod.Prices = pricingMod.Store
		arbitrageMod.Chain = blockchainMod.Service
		arbitrageMod.Eth = pricingMod.EthIndex
		arbitrageMod.Pairs = pricingMod.Pairs
		if cfg.Execution.AutoExecute {
			arbitrageMod.Executor = executionMod.Service
		}
		if tuiMode {
			arbitrageMod.Notifier = arbitrageInfra.NewTUINotifier()
		} else {
			arbitrageMod.Notifier = arbitrageInfra.NewConsoleNotifier()
		}
		if err := mono.StartModules(ctx, arbitrageMod); err != nil {
			return fmt.Errorf("failed to start arbitrage module: %w", err)
		}

		healthServer.RegisterCheck("price_feed", func(ctx context.Context) (bool, string) {
			maxAge := cfg.Pricing.StaleTimeout + cfg.Pricing.PollInterval
			for _, token := range pricingMod.Store.Tokens() {
				if p, ok := pricingMod.Store.LatestPriceAnyVenue(token); ok && time.Since(p.Timestamp) <= maxAge {
					return true, ""
				}
			}
			return false, "no fresh prices"
		})
		healthServer.RegisterCheck("ethereum", func(ctx context.Context) (bool, string) {
			status := blockchainMod.Service.ConnectionStatus()
			return status.State == blockchaindomain.StateConnected, string(status.State)
		})
		healthServer.RegisterCheck("circuit_breaker", func(ctx context.Context) (bool, string) {
			tripped, event := executionMod.Service.CircuitBreakerTripped()
			if tripped && event != nil {
				return false, event.Reason
			}
			return !tripped, ""
		})

		go arbitrageMod.Scanner.Run(ctx)
		return nil
	}

	stopFunc := func() {
		executionMod.Close()
		pricingMod.Close()
		blockchainMod.Close()
	}

	if tuiMode {
		return runTUI(ctx, mono, startFunc, stopFunc, blockchainMod, pricingMod, executionMod)
	}

	// CLI mode: Start modules synchronously
	if err := startFunc(); err != nil {
		return err
	}
	defer stopFunc()

	log.Info(ctx, "all modules started, scanning for opportunities")
	<-ctx.Done()
	log.Info(ctx, "shutting down")
	return nil
}

func runTUI(
	ctx context.Context,
	mono *monolith.App,
	startFunc func() error,
	stopFunc func(),
	blockchainMod *blockchain.Module,
	pricingMod *pricing.Module,
	executionMod *execution.Module,
) error {
	// Channel to receive StartModulesMsg signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Create and start the TUI program IMMEDIATELY (shows welcome screen)
	p := tea.NewProgram(ui.New(), tea.WithAltScreen())
	ui.Program = p

	// Run engine logic in background (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		// Wait for welcome screen to complete (StartModulesMsg signal)
		select {
		case <-startSignal:
			// Welcome complete, start modules
		case <-ctx.Done():
			errCh <- nil
			return
		}

		ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
		ui.Send(ui.StartupMsg{Step: "ethereum", Status: "connecting"})

		// Start modules (connections happen here, TUI shows progress)
		if err := startFunc(); err != nil {
			ui.Send(ui.StartupMsg{Step: "ethereum", Status: "failed"})
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		ui.Send(ui.StartupMsg{Step: "ethereum", Status: "connected"})
		ui.Send(ui.StartupMsg{Step: "venues", Status: "done"})
		ui.Send(ui.StartupMsg{Step: "feeds", Status: "done"})

		// Push engine state into the dashboard until cancelled
		reportLoop(ctx, mono, blockchainMod, pricingMod, executionMod)

		stopFunc()
		errCh <- nil
	}()

	// Run TUI (blocking) - shows immediately with welcome screen
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// Check for engine errors
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// reportLoop periodically samples engine state and forwards it to the
// dashboard. Opportunities arrive through the notifier; everything else is
// polled here.
func reportLoop(
	ctx context.Context,
	mono *monolith.App,
	blockchainMod *blockchain.Module,
	pricingMod *pricing.Module,
	executionMod *execution.Module,
) {
	notifier := arbitrageInfra.NewTUINotifier()
	prices := pricingMod.Store

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Connection state
		status := blockchainMod.Service.ConnectionStatus()
		notifier.UpdateConnectionStatus("Ethereum",
			status.State == blockchaindomain.StateConnected, status.Latency)

		// Gas market
		if gas, err := blockchainMod.Service.GetGasPrice(ctx); err == nil {
			notifier.GasPrice(gas.Gwei(), string(gas.Congestion()))
		}

		// Latest quotes per monitored token
		for _, token := range prices.Tokens() {
			symbol := token
			if a, ok := mono.AssetRegistry().GetByAddress(token); ok {
				symbol = a.Symbol()
			}
			for _, point := range prices.LatestByVenue(token) {
				notifier.PriceTick(token, symbol, string(point.Venue), point.Price, point.Timestamp)
			}
		}

		// Execution history
		notifier.ExecutionStats(executionMod.Records.Stats())

		// Safety state
		tripped, event := executionMod.Service.CircuitBreakerTripped()
		reason := ""
		if event != nil {
			reason = event.Reason
		}
		notifier.BreakerChanged(tripped, reason)
		notifier.EmergencyStopChanged(executionMod.Service.EmergencyStopped(), "")
	}
}
