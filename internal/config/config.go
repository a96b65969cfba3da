package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"tradesim/internal/chain"
)

// Config holds the overall configuration for the trading server. It is
// loaded once at startup and treated as immutable afterwards.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Trading   TradingConfig   `yaml:"trading"`
	Snapshots SnapshotConfig  `yaml:"snapshots"`
	Admin     AdminConfig     `yaml:"admin"`

	// EVMChains is the ordered list of specific EVM chains tried during
	// price discovery for tokens whose chain is not yet known.
	EVMChains []string `yaml:"evmChains"`

	// InitialBalances maps specificChain -> symbol -> amount seeded when a
	// team registers.
	InitialBalances map[string]map[string]float64 `yaml:"initialBalances"`

	// SpecificChainTokens maps specificChain -> symbol -> token address. It
	// resolves seed symbols to addresses and lets the aggregator skip chain
	// discovery for well-known tokens.
	SpecificChainTokens map[string]map[string]string `yaml:"specificChainTokens"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// DatabaseConfig holds the SQLite database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // e.g. "debug", "info", "warn", "error"
}

// PricingConfig holds the price aggregation configuration.
type PricingConfig struct {
	CacheTTLSeconds   int               `yaml:"cacheTTLSeconds"`   // in-memory price cache TTL
	ChainMemoTTLMins  int               `yaml:"chainMemoTTLMins"`  // token -> specific chain memo TTL
	FreshnessMillis   int64             `yaml:"freshnessMillis"`   // stored prices younger than this are served without a network call
	DexScreener       UpstreamConfig    `yaml:"dexScreener"`
	Jupiter           UpstreamConfig    `yaml:"jupiter"`
	MultiChain        UpstreamConfig    `yaml:"multiChain"`
}

// UpstreamConfig holds the configuration for one upstream price feed. An
// upstream that requires a key and has none configured is disabled.
type UpstreamConfig struct {
	BaseURL              string `yaml:"baseURL"`
	APIKey               string `yaml:"apiKey"`
	RequiresAPIKey       bool   `yaml:"requiresAPIKey"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
}

// Enabled reports whether the upstream can be used at all.
func (u UpstreamConfig) Enabled() bool {
	return !u.RequiresAPIKey || u.APIKey != ""
}

// TradingConfig holds the trade engine policy knobs.
type TradingConfig struct {
	AllowCrossChainTrading bool    `yaml:"allowCrossChainTrading"`
	MaxPortfolioFraction   float64 `yaml:"maxPortfolioFraction"`
	MinTradeFromAmount     float64 `yaml:"minTradeFromAmount"`
}

// SnapshotConfig holds the portfolio snapshot scheduler configuration.
type SnapshotConfig struct {
	IntervalMillis int64 `yaml:"intervalMillis"`
	// StopOnError makes the scheduler halt on the first failed tick instead
	// of logging and continuing. Only used by tests.
	StopOnError bool `yaml:"stopOnError"`
}

// AdminConfig holds credentials for the administrative endpoints.
type AdminConfig struct {
	RootAPIKey string `yaml:"rootApiKey"`
}

// DefaultSpecificChainTokens are the token addresses the server knows out of
// the box, keyed by specific chain then symbol.
func DefaultSpecificChainTokens() map[string]map[string]string {
	return map[string]map[string]string{
		"eth": {
			"USDC": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			"USDT": "0xdAC17F958D2ee523a2206206994597C13D831ec7",
			"WETH": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		},
		"polygon": {
			"USDC": "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		},
		"arbitrum": {
			"USDC": "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		},
		"optimism": {
			"USDC": "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		},
		"base": {
			"USDC":  "0xd9aAEc86B65D86f6A7B5B1b0c42FFA531710b6CA",
			"WETH":  "0x4200000000000000000000000000000000000006",
			"DEGEN": "0x3992B27dA26848C2b19CeA6Fd25ad5568B68AB98",
		},
		"svm": {
			"USDC": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			"SOL":  "So11111111111111111111111111111111111111112",
		},
	}
}

// DefaultInitialBalances are the synthetic balances seeded for a new team,
// keyed by specific chain then symbol.
func DefaultInitialBalances() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"eth":  {"USDC": 5000},
		"base": {"USDC": 5000},
		"svm":  {"USDC": 5000, "SOL": 10},
	}
}

// LoadConfig loads configuration from a YAML file, applies defaults for
// anything unset and folds in the recognized environment overrides. A missing
// file is not an error; the defaults alone form a working configuration.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		logrus.Infof("Loading configuration from path: %s", path)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
			return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
		}
	case os.IsNotExist(err):
		logrus.Warnf("Config file %s not found, using defaults", path)
	default:
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":3000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "tradesim.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Pricing.CacheTTLSeconds == 0 {
		cfg.Pricing.CacheTTLSeconds = 30
		logrus.Infof("Pricing.CacheTTLSeconds not set, defaulting to %d", cfg.Pricing.CacheTTLSeconds)
	}
	if cfg.Pricing.ChainMemoTTLMins == 0 {
		cfg.Pricing.ChainMemoTTLMins = 60
		logrus.Infof("Pricing.ChainMemoTTLMins not set, defaulting to %d", cfg.Pricing.ChainMemoTTLMins)
	}
	if cfg.Pricing.FreshnessMillis == 0 {
		cfg.Pricing.FreshnessMillis = 600_000
		logrus.Infof("Pricing.FreshnessMillis not set, defaulting to %d ms", cfg.Pricing.FreshnessMillis)
	}
	if cfg.Pricing.DexScreener.BaseURL == "" {
		cfg.Pricing.DexScreener.BaseURL = "https://api.dexscreener.com"
		logrus.Infof("Pricing.DexScreener.BaseURL not set, defaulting to %s", cfg.Pricing.DexScreener.BaseURL)
	}
	if cfg.Pricing.DexScreener.RequestTimeoutMillis == 0 {
		cfg.Pricing.DexScreener.RequestTimeoutMillis = 10_000
	}
	if cfg.Pricing.Jupiter.BaseURL == "" {
		cfg.Pricing.Jupiter.BaseURL = "https://lite-api.jup.ag"
		logrus.Infof("Pricing.Jupiter.BaseURL not set, defaulting to %s", cfg.Pricing.Jupiter.BaseURL)
	}
	if cfg.Pricing.Jupiter.RequestTimeoutMillis == 0 {
		cfg.Pricing.Jupiter.RequestTimeoutMillis = 5_000
	}
	if cfg.Pricing.MultiChain.BaseURL == "" {
		cfg.Pricing.MultiChain.BaseURL = "https://pricing.noves.fi"
		logrus.Infof("Pricing.MultiChain.BaseURL not set, defaulting to %s", cfg.Pricing.MultiChain.BaseURL)
	}
	if cfg.Pricing.MultiChain.RequestTimeoutMillis == 0 {
		cfg.Pricing.MultiChain.RequestTimeoutMillis = 10_000
	}
	// The multi-chain feed is keyed; without a key it drops out of the
	// provider chain and DexScreener carries EVM discovery alone.
	cfg.Pricing.MultiChain.RequiresAPIKey = true

	if cfg.Trading.MaxPortfolioFraction == 0 {
		cfg.Trading.MaxPortfolioFraction = 0.25
	}
	if cfg.Trading.MinTradeFromAmount == 0 {
		cfg.Trading.MinTradeFromAmount = 0.000001
	}

	if cfg.Snapshots.IntervalMillis == 0 {
		cfg.Snapshots.IntervalMillis = 120_000
		logrus.Infof("Snapshots.IntervalMillis not set, defaulting to %d ms", cfg.Snapshots.IntervalMillis)
	}

	if len(cfg.EVMChains) == 0 {
		for _, sc := range chain.AllEVMChains {
			cfg.EVMChains = append(cfg.EVMChains, string(sc))
		}
	}
	if cfg.SpecificChainTokens == nil {
		cfg.SpecificChainTokens = DefaultSpecificChainTokens()
	}
	if cfg.InitialBalances == nil {
		cfg.InitialBalances = DefaultInitialBalances()
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = ":" + v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("MULTICHAIN_API_KEY"); v != "" {
		cfg.Pricing.MultiChain.APIKey = v
	}
	if v := os.Getenv("JUPITER_API_KEY"); v != "" {
		cfg.Pricing.Jupiter.APIKey = v
	}
	if v := os.Getenv("ROOT_API_KEY"); v != "" {
		cfg.Admin.RootAPIKey = v
	}
}

func validate(cfg *Config) error {
	for _, name := range cfg.EVMChains {
		sc, ok := chain.ParseSpecificChain(name)
		if !ok || sc == chain.SpecificSVM || sc == "" {
			return fmt.Errorf("evmChains contains invalid chain %q", name)
		}
	}
	for scName := range cfg.SpecificChainTokens {
		if _, ok := chain.ParseSpecificChain(scName); !ok {
			return fmt.Errorf("specificChainTokens contains unknown chain %q", scName)
		}
	}
	for scName := range cfg.InitialBalances {
		if _, ok := chain.ParseSpecificChain(scName); !ok {
			return fmt.Errorf("initialBalances contains unknown chain %q", scName)
		}
	}
	if cfg.Trading.MaxPortfolioFraction < 0 || cfg.Trading.MaxPortfolioFraction > 1 {
		return fmt.Errorf("trading.maxPortfolioFraction must be in [0, 1], got %v", cfg.Trading.MaxPortfolioFraction)
	}
	return nil
}

// EVMChainOrder returns the configured discovery order as typed chains.
func (c *Config) EVMChainOrder() []chain.SpecificChain {
	out := make([]chain.SpecificChain, 0, len(c.EVMChains))
	for _, name := range c.EVMChains {
		sc, _ := chain.ParseSpecificChain(name)
		out = append(out, sc)
	}
	return out
}

// KnownTokenChain reports the specific chain a token address is configured
// on, if any. Lookup is by normalized address.
func (c *Config) KnownTokenChain(address string) (chain.SpecificChain, bool) {
	needle := chain.NormalizeAddress(address)
	for scName, tokens := range c.SpecificChainTokens {
		for _, addr := range tokens {
			if chain.NormalizeAddress(addr) == needle {
				sc, _ := chain.ParseSpecificChain(scName)
				return sc, true
			}
		}
	}
	return "", false
}
