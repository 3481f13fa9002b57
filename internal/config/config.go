// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Venues    []VenueConfig   `mapstructure:"venues"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Arbitrage ArbitrageConfig `mapstructure:"arbitrage"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Advisor   AdvisorConfig   `mapstructure:"advisor"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	PrivateKey     string        `mapstructure:"private_key"` // hex, no 0x prefix; empty = quote-only
	RPCPerSecond   float64       `mapstructure:"rpc_per_second"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// VenueConfig describes one AMM venue to quote and trade against.
type VenueConfig struct {
	ID         string `mapstructure:"id"`
	Name       string `mapstructure:"name"`
	Router     string `mapstructure:"router"`
	Factory    string `mapstructure:"factory"`
	FeeBps     int64  `mapstructure:"fee_bps"`
	Active     bool   `mapstructure:"active"`
	Denylisted bool   `mapstructure:"denylisted"`
	StreamURL  string `mapstructure:"stream_url"` // optional price gateway websocket
}

// RouterHex returns the router address as common.Address.
func (v *VenueConfig) RouterHex() common.Address {
	return common.HexToAddress(v.Router)
}

// FactoryHex returns the factory address as common.Address.
func (v *VenueConfig) FactoryHex() common.Address {
	return common.HexToAddress(v.Factory)
}

// PricingConfig holds price feed configuration.
type PricingConfig struct {
	PollingEnabled bool          `mapstructure:"polling_enabled"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Retention      time.Duration `mapstructure:"retention"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	StaleTimeout   time.Duration `mapstructure:"stale_timeout"`
}

// ArbitrageConfig holds arbitrage detection configuration.
type ArbitrageConfig struct {
	Pairs         []string      `mapstructure:"pairs"`         // "WETH:USDC" token address pairs resolved via the asset registry
	BridgeTokens  []string      `mapstructure:"bridge_tokens"` // multi-hop route starting tokens
	MinProfitPct  float64       `mapstructure:"min_profit_pct"`
	MinProfitUSD  float64       `mapstructure:"min_profit_usd"`
	MaxPathLength int           `mapstructure:"max_path_length"`
	ScanInterval  time.Duration `mapstructure:"scan_interval"`
	UseFlashloan  bool          `mapstructure:"use_flashloan"`
	TUIMode       bool          `mapstructure:"-"` // Set at runtime, not from config file
}

// MinProfitPctDecimal returns the profit floor as a decimal percent.
func (c *ArbitrageConfig) MinProfitPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitPct)
}

// MinProfitUSDDecimal returns the USD floor as a decimal.
func (c *ArbitrageConfig) MinProfitUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitUSD)
}

// ExecutionConfig holds trade execution policy overrides.
type ExecutionConfig struct {
	AutoExecute       bool    `mapstructure:"auto_execute"`
	MinProfitPct      float64 `mapstructure:"min_profit_pct"`
	MinProfitUSD      float64 `mapstructure:"min_profit_usd"`
	MaxTradeSizeUSD   float64 `mapstructure:"max_trade_size_usd"`
	SlippageTolerance float64 `mapstructure:"slippage_tolerance"`
	GasStrategy       string  `mapstructure:"gas_strategy"` // safe | standard | fast
	RiskTolerance     string  `mapstructure:"risk_tolerance"`
	UseFlashloan      bool    `mapstructure:"use_flashloan"`
	DeviationPct      float64 `mapstructure:"deviation_pct"`
	ArchivePath       string  `mapstructure:"archive_path"`
}

// AdvisorConfig holds the optional trade advisory service.
type AdvisorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LimitsConfig holds per-resource rate limit budgets (requests per minute).
type LimitsConfig struct {
	PricePollsPerMinute int `mapstructure:"price_polls_per_minute"`
	TradesPerMinute     int `mapstructure:"trades_per_minute"`
	FlashloansPerMinute int `mapstructure:"flashloans_per_minute"`
	ScansPerMinute      int `mapstructure:"scans_per_minute"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("DEXARB")
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "DEXARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "DEXARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "DEXARB_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "DEXARB_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "DEXARB_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "DEXARB_ETH_CHAIN_ID", "ETH_CHAIN_ID")
	v.BindEnv("ethereum.private_key", "DEXARB_ETH_PRIVATE_KEY", "ETH_PRIVATE_KEY")

	// Arbitrage
	v.BindEnv("arbitrage.pairs", "DEXARB_PAIRS")
	v.BindEnv("arbitrage.min_profit_pct", "DEXARB_MIN_PROFIT_PCT")
	v.BindEnv("arbitrage.min_profit_usd", "DEXARB_MIN_PROFIT_USD")
	v.BindEnv("arbitrage.use_flashloan", "DEXARB_USE_FLASHLOAN")

	// Execution
	v.BindEnv("execution.auto_execute", "DEXARB_AUTO_EXECUTE")
	v.BindEnv("execution.archive_path", "DEXARB_ARCHIVE_PATH")

	// Advisor
	v.BindEnv("advisor.enabled", "DEXARB_ADVISOR_ENABLED")
	v.BindEnv("advisor.base_url", "DEXARB_ADVISOR_URL")
	v.BindEnv("advisor.api_key", "DEXARB_ADVISOR_API_KEY")

	// Telemetry
	v.BindEnv("telemetry.enabled", "DEXARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "DEXARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "DEXARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "dexarb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Ethereum defaults
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.rpc_per_second", 10)
	v.SetDefault("ethereum.max_reconnects", 0) // infinite
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")

	// Mainnet V2-style venue defaults
	v.SetDefault("venues", []map[string]any{
		{
			"id":      "uniswap-v2",
			"name":    "Uniswap V2",
			"router":  "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
			"factory": "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
			"fee_bps": 30,
			"active":  true,
		},
		{
			"id":      "sushiswap",
			"name":    "SushiSwap",
			"router":  "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F",
			"factory": "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac",
			"fee_bps": 30,
			"active":  true,
		},
	})

	// Pricing defaults
	v.SetDefault("pricing.polling_enabled", true)
	v.SetDefault("pricing.poll_interval", "10s")
	v.SetDefault("pricing.retention", "1h")
	v.SetDefault("pricing.sweep_interval", "10m")
	v.SetDefault("pricing.stale_timeout", "5s")

	// Arbitrage defaults
	v.SetDefault("arbitrage.pairs", []string{"WETH:USDC"})
	v.SetDefault("arbitrage.min_profit_pct", 0.5)
	v.SetDefault("arbitrage.min_profit_usd", 5)
	v.SetDefault("arbitrage.max_path_length", 3)
	v.SetDefault("arbitrage.scan_interval", "1m")
	v.SetDefault("arbitrage.use_flashloan", false)

	// Execution defaults mirror the conservative starting policy
	v.SetDefault("execution.auto_execute", false)
	v.SetDefault("execution.min_profit_pct", 0.5)
	v.SetDefault("execution.min_profit_usd", 5)
	v.SetDefault("execution.max_trade_size_usd", 10000)
	v.SetDefault("execution.slippage_tolerance", 1)
	v.SetDefault("execution.gas_strategy", "standard")
	v.SetDefault("execution.risk_tolerance", "low")
	v.SetDefault("execution.use_flashloan", false)
	v.SetDefault("execution.deviation_pct", 5)

	// Advisor defaults
	v.SetDefault("advisor.enabled", false)
	v.SetDefault("advisor.timeout", "10s")

	// Rate limit defaults
	v.SetDefault("limits.price_polls_per_minute", 60)
	v.SetDefault("limits.trades_per_minute", 10)
	v.SetDefault("limits.flashloans_per_minute", 6)
	v.SetDefault("limits.scans_per_minute", 30)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "dexarb")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.WebSocketURL == "" && c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("one of ethereum.websocket_url or ethereum.http_url is required")
	}
	if len(c.Venues) < 2 {
		return fmt.Errorf("at least two venues are required, got %d", len(c.Venues))
	}
	seen := make(map[string]bool, len(c.Venues))
	for _, venue := range c.Venues {
		if venue.ID == "" {
			return fmt.Errorf("venue id cannot be empty")
		}
		if seen[venue.ID] {
			return fmt.Errorf("duplicate venue id: %s", venue.ID)
		}
		seen[venue.ID] = true
		if !common.IsHexAddress(venue.Router) {
			return fmt.Errorf("invalid router for venue %s: %s", venue.ID, venue.Router)
		}
		if !common.IsHexAddress(venue.Factory) {
			return fmt.Errorf("invalid factory for venue %s: %s", venue.ID, venue.Factory)
		}
	}
	if len(c.Arbitrage.Pairs) == 0 {
		return fmt.Errorf("arbitrage.pairs cannot be empty")
	}
	if c.Advisor.Enabled && c.Advisor.BaseURL == "" {
		return fmt.Errorf("advisor.base_url is required when the advisor is enabled")
	}
	return nil
}
