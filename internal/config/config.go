// Package config loads process configuration from the environment, an
// optional .env file and an optional config.yaml.
package config

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"arcade-pot/internal/evm"
	"arcade-pot/internal/solana"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Session    SessionConfig    `mapstructure:"session"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Solana     SolanaConfig     `mapstructure:"solana"`
	Base       BaseConfig       `mapstructure:"base"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	LogLevel   string           `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	Port          string `mapstructure:"port"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
	AdminKey      string `mapstructure:"admin_key"`
}

// SessionConfig holds credential signing configuration.
type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// StorageConfig selects the persistence backends.
type StorageConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
	UseMemory     bool   `mapstructure:"use_memory"`
}

// SolanaConfig holds Solana network configuration.
type SolanaConfig struct {
	RPCURL      string `mapstructure:"rpc_url"`
	WSURL       string `mapstructure:"ws_url"`
	HouseWallet string `mapstructure:"house_wallet"`
	PrivateKey  string `mapstructure:"private_key"`

	// Key is the parsed PrivateKey, nil when automated payouts are off.
	Key ed25519.PrivateKey `mapstructure:"-"`
}

// BaseConfig holds Base network configuration.
type BaseConfig struct {
	RPCURL      string `mapstructure:"rpc_url"`
	ChainID     int64  `mapstructure:"chain_id"`
	HouseWallet string `mapstructure:"house_wallet"`
	PrivateKey  string `mapstructure:"private_key"`

	// Key is the parsed PrivateKey, nil when automated payouts are off.
	Key *secp256k1.PrivateKey `mapstructure:"-"`
}

// PricingConfig holds price feed configuration.
type PricingConfig struct {
	CoinGeckoURL string        `mapstructure:"coingecko_url"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	EntryFeeUSD  float64       `mapstructure:"entry_fee_usd"`
}

// SettlementConfig holds daily settlement configuration.
type SettlementConfig struct {
	Schedule        string        `mapstructure:"schedule"`
	Enabled         bool          `mapstructure:"enabled"`
	TransferTimeout time.Duration `mapstructure:"transfer_timeout"`
}

// envBindings maps configuration keys to environment variables.
var envBindings = map[string][]string{
	"server.addr":                 {"HTTP_ADDR"},
	"server.port":                 {"PORT"},
	"server.allowed_origin":       {"ALLOWED_ORIGIN"},
	"server.admin_key":            {"ADMIN_KEY"},
	"session.secret":              {"JWT_SECRET"},
	"session.ttl":                 {"SESSION_TTL"},
	"storage.postgres_dsn":        {"POSTGRES_DSN", "DATABASE_URL"},
	"storage.clickhouse_dsn":      {"CLICKHOUSE_DSN"},
	"storage.use_memory":          {"USE_MEMORY"},
	"solana.rpc_url":              {"SOLANA_RPC_URL"},
	"solana.ws_url":               {"SOLANA_WS_URL"},
	"solana.house_wallet":         {"HOUSE_WALLET_SOLANA"},
	"solana.private_key":          {"HOUSE_PRIVATE_KEY_SOLANA"},
	"base.rpc_url":                {"BASE_RPC_URL"},
	"base.chain_id":               {"BASE_CHAIN_ID"},
	"base.house_wallet":           {"HOUSE_WALLET_BASE"},
	"base.private_key":            {"HOUSE_PRIVATE_KEY_BASE"},
	"pricing.coingecko_url":       {"COINGECKO_URL"},
	"pricing.cache_ttl":           {"PRICE_CACHE_TTL"},
	"pricing.entry_fee_usd":       {"ENTRY_FEE_USD"},
	"settlement.schedule":         {"SETTLEMENT_CRON"},
	"settlement.enabled":          {"SETTLEMENT_ENABLED"},
	"settlement.transfer_timeout": {"TRANSFER_TIMEOUT"},
	"log_level":                   {"LOG_LEVEL"},
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3001")
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("storage.use_memory", false)
	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("base.rpc_url", "https://mainnet.base.org")
	v.SetDefault("base.chain_id", evm.BaseChainID)
	v.SetDefault("pricing.coingecko_url", "https://api.coingecko.com/api/v3/simple/price?ids=solana,ethereum&vs_currencies=usd")
	v.SetDefault("pricing.cache_ttl", 5*time.Minute)
	v.SetDefault("pricing.entry_fee_usd", 0.25)
	v.SetDefault("settlement.schedule", "0 0 * * *")
	v.SetDefault("settlement.enabled", true)
	v.SetDefault("settlement.transfer_timeout", 15*time.Second)
	v.SetDefault("log_level", "info")
}

// Load reads .env (if present), config.yaml (if present) and the
// environment, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper binds environment variables and defaults onto v and decodes it.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(cfg.Server.Port, ":")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every missing required key and parses wallets and keys.
func (c *Config) Validate() error {
	var missing []string
	require := func(value, env string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, env)
		}
	}
	require(c.Server.AdminKey, "ADMIN_KEY")
	require(c.Session.Secret, "JWT_SECRET")
	require(c.Solana.HouseWallet, "HOUSE_WALLET_SOLANA")
	require(c.Base.HouseWallet, "HOUSE_WALLET_BASE")
	if !c.Storage.UseMemory {
		require(c.Storage.PostgresDSN, "POSTGRES_DSN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	var errs []error
	if err := solana.ValidateWalletAddress(c.Solana.HouseWallet); err != nil {
		errs = append(errs, fmt.Errorf("HOUSE_WALLET_SOLANA: %w", err))
	}
	c.Solana.HouseWallet = strings.TrimSpace(c.Solana.HouseWallet)

	if addr, err := evm.NormalizeAddress(c.Base.HouseWallet); err != nil {
		errs = append(errs, fmt.Errorf("HOUSE_WALLET_BASE: %w", err))
	} else {
		c.Base.HouseWallet = addr
	}

	if c.Solana.PrivateKey != "" {
		key, err := solana.ParseKeypair(c.Solana.PrivateKey)
		if err != nil {
			errs = append(errs, fmt.Errorf("HOUSE_PRIVATE_KEY_SOLANA: %w", err))
		}
		c.Solana.Key = key
	}
	if c.Base.PrivateKey != "" {
		key, err := evm.ParsePrivateKey(c.Base.PrivateKey)
		if err != nil {
			errs = append(errs, fmt.Errorf("HOUSE_PRIVATE_KEY_BASE: %w", err))
		}
		c.Base.Key = key
	}

	if c.Base.ChainID <= 0 {
		errs = append(errs, fmt.Errorf("BASE_CHAIN_ID: must be positive, got %d", c.Base.ChainID))
	}
	if c.Pricing.EntryFeeUSD <= 0 {
		errs = append(errs, fmt.Errorf("ENTRY_FEE_USD: must be positive, got %v", c.Pricing.EntryFeeUSD))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL: must be positive, got %s", c.Session.TTL))
	}
	return errors.Join(errs...)
}

// String renders the configuration without secrets.
func (c *Config) String() string {
	storage := "postgres"
	if c.Storage.UseMemory {
		storage = "memory"
	}
	return fmt.Sprintf("addr=%s storage=%s attempts=%t solana_payouts=%t base_payouts=%t chain_id=%d fee=$%.2f schedule=%q",
		c.Server.Addr, storage, c.Storage.ClickHouseDSN != "", c.Solana.Key != nil, c.Base.Key != nil,
		c.Base.ChainID, c.Pricing.EntryFeeUSD, c.Settlement.Schedule)
}
