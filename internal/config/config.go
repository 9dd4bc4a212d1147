// Package config provides configuration management for the options engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Engine       EngineConfig       `mapstructure:"engine"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Volatilities []VolatilityConfig `mapstructure:"volatility"`
	Sim          SimConfig          `mapstructure:"sim"`
}

// EngineConfig holds the engine's identities and fee schedule.
type EngineConfig struct {
	Account      string   `mapstructure:"account"`       // the engine's own ledger account
	Operator     string   `mapstructure:"operator"`      // privileged admin account
	FeeRecipient string   `mapstructure:"fee_recipient"` // empty disables fees
	FeeBps       uint64   `mapstructure:"fee_bps"`       // flat fee in basis points
	Markets      []string `mapstructure:"markets"`       // approved collateral markets
	Settlers     []string `mapstructure:"settlers"`      // approved settler accounts
}

// DatabaseConfig holds persistence configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// VolatilityConfig seeds one time-to-live with a volatility id and the
// sigma the simulated pricer quotes for it.
type VolatilityConfig struct {
	TTL   time.Duration `mapstructure:"ttl"`
	ID    uint64        `mapstructure:"id"`
	Sigma float64       `mapstructure:"sigma"` // annualized
}

// SimConfig describes the simulated market world: assets, pools,
// starting balances, and withdrawable liquidity.
type SimConfig struct {
	PoolAccount string           `mapstructure:"pool_account"` // position manager's ledger account
	SwapAccount string           `mapstructure:"swap_account"` // swap executor's ledger account
	Assets      []AssetConfig    `mapstructure:"asset"`
	Pools       []PoolConfig     `mapstructure:"pool"`
	Balances    []BalanceConfig  `mapstructure:"balance"`
	Positions   []PositionConfig `mapstructure:"position"`
}

// AssetConfig registers one fungible asset.
type AssetConfig struct {
	Name     string `mapstructure:"name"`
	Decimals uint8  `mapstructure:"decimals"`
}

// PoolConfig registers one concentrated-liquidity market.
type PoolConfig struct {
	Market       string `mapstructure:"market"`
	CallAsset    string `mapstructure:"call_asset"`
	PutAsset     string `mapstructure:"put_asset"`
	CallIsToken0 bool   `mapstructure:"call_is_token0"`
	SqrtPriceX96 string `mapstructure:"sqrt_price_x96"` // decimal string
}

// BalanceConfig seeds one account balance.
type BalanceConfig struct {
	Asset   string `mapstructure:"asset"`
	Account string `mapstructure:"account"`
	Amount  string `mapstructure:"amount"` // decimal string
}

// PositionConfig seeds withdrawable liquidity in one tick range.
type PositionConfig struct {
	Handler   string `mapstructure:"handler"`
	Market    string `mapstructure:"market"`
	TickLower int    `mapstructure:"tick_lower"`
	TickUpper int    `mapstructure:"tick_upper"`
	Liquidity string `mapstructure:"liquidity"` // decimal string
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/clamm-options"
	}
	return filepath.Join(home, ".config", "clamm-options")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := createTemplateConfig(configDir); err != nil {
				return nil, fmt.Errorf("creating config.toml template: %w", err)
			}
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("loading config.toml template: %w", err)
			}
		} else {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("engine.account", "engine")
	v.SetDefault("engine.operator", "operator")
	v.SetDefault("engine.fee_bps", 0)
	v.SetDefault("database.path", filepath.Join(configDir, "engine.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("sim.pool_account", "amm")
	v.SetDefault("sim.swap_account", "swapper")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLAMM_OPERATOR"); v != "" {
		cfg.Engine.Operator = v
	}
	if v := os.Getenv("CLAMM_FEE_RECIPIENT"); v != "" {
		cfg.Engine.FeeRecipient = v
	}
	if v := os.Getenv("CLAMM_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CLAMM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.Account == "" {
		return fmt.Errorf("engine.account is required")
	}
	if c.Engine.Operator == "" {
		return fmt.Errorf("engine.operator is required")
	}
	if c.Engine.FeeBps > 10_000 {
		return fmt.Errorf("engine.fee_bps must be at most 10000")
	}
	seen := make(map[uint64]bool)
	for _, vol := range c.Volatilities {
		if vol.TTL <= 0 {
			return fmt.Errorf("volatility ttl must be positive")
		}
		if vol.ID == 0 {
			return fmt.Errorf("volatility id must be non-zero")
		}
		if seen[vol.ID] {
			return fmt.Errorf("duplicate volatility id %d", vol.ID)
		}
		seen[vol.ID] = true
		if vol.Sigma <= 0 {
			return fmt.Errorf("volatility sigma must be positive")
		}
	}
	pools := make(map[string]bool)
	for _, pool := range c.Sim.Pools {
		if pool.Market == "" {
			return fmt.Errorf("pool market is required")
		}
		if pools[pool.Market] {
			return fmt.Errorf("duplicate pool %s", pool.Market)
		}
		pools[pool.Market] = true
		if pool.CallAsset == "" || pool.PutAsset == "" {
			return fmt.Errorf("pool %s: call_asset and put_asset are required", pool.Market)
		}
	}
	return nil
}
