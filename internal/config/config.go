package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultVaultAddress is the Vault deployment shared by every supported network.
const DefaultVaultAddress = "0xBA12222222228d8Ba445958a75a0704d566BF2C8"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL             string
	Network            string
	VaultAddress       string
	Factories          []string
	RewardDistributors []string

	FromBlock       uint64
	ToBlock         uint64
	BatchSize       uint64
	Confirmations   uint64
	Follow          bool
	PollInterval    time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RPCRPS          float64
	RPCBurst        int
	PrefetchWorkers int

	RawLogOutput string
	Input        string
	Offline      bool

	StoreBackend   string
	MemorySnapshot string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	PGDSN      string
	ExportCron string

	IPFSGateway string
	IPFSTimeout time.Duration

	MinPoolLiquidityUSD decimal.Decimal
	MinSwapValueUSD     decimal.Decimal
	FailOnInvariant     bool
	PricingAssets       []string
	StableAssets        []string

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("network", "mainnet")
	v.SetDefault("vault-address", DefaultVaultAddress)
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("confirmations", uint64(6))
	v.SetDefault("poll-interval", 12*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-base-delay", 500*time.Millisecond)
	v.SetDefault("rpc-burst", 1)
	v.SetDefault("prefetch-workers", 4)
	v.SetDefault("store-backend", "memory")
	v.SetDefault("redis-addr", "localhost:6379")
	v.SetDefault("ipfs-gateway", "https://ipfs.io")
	v.SetDefault("ipfs-timeout", 30*time.Second)
	v.SetDefault("min-pool-liquidity-usd", "2000")
	v.SetDefault("min-swap-value-usd", "1")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	minLiquidity, err := getDecimal(v, "min-pool-liquidity-usd")
	if err != nil {
		return Config{}, err
	}
	minSwap, err := getDecimal(v, "min-swap-value-usd")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:             v.GetString("rpc-url"),
		Network:            strings.ToLower(v.GetString("network")),
		VaultAddress:       v.GetString("vault-address"),
		Factories:          getStringSlice(v, "factories"),
		RewardDistributors: getStringSlice(v, "reward-distributors"),

		FromBlock:       v.GetUint64("from-block"),
		ToBlock:         v.GetUint64("to-block"),
		BatchSize:       v.GetUint64("batch-size"),
		Confirmations:   v.GetUint64("confirmations"),
		Follow:          v.GetBool("follow"),
		PollInterval:    v.GetDuration("poll-interval"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBaseDelay:  v.GetDuration("retry-base-delay"),
		RPCRPS:          v.GetFloat64("rpc-rps"),
		RPCBurst:        v.GetInt("rpc-burst"),
		PrefetchWorkers: v.GetInt("prefetch-workers"),

		RawLogOutput: v.GetString("raw-log-output"),
		Input:        v.GetString("in"),
		Offline:      v.GetBool("offline"),

		StoreBackend:   strings.ToLower(v.GetString("store-backend")),
		MemorySnapshot: v.GetString("memory-snapshot"),
		RedisAddr:      v.GetString("redis-addr"),
		RedisPassword:  v.GetString("redis-password"),
		RedisDB:        v.GetInt("redis-db"),

		PGDSN:      v.GetString("pg-dsn"),
		ExportCron: v.GetString("export-cron"),

		IPFSGateway: v.GetString("ipfs-gateway"),
		IPFSTimeout: v.GetDuration("ipfs-timeout"),

		MinPoolLiquidityUSD: minLiquidity,
		MinSwapValueUSD:     minSwap,
		FailOnInvariant:     v.GetBool("fail-on-invariant"),
		PricingAssets:       getStringSlice(v, "pricing-assets"),
		StableAssets:        getStringSlice(v, "stable-assets"),

		LogLevel: v.GetString("log-level"),
	}

	switch cfg.StoreBackend {
	case "memory", "redis":
	default:
		return Config{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
