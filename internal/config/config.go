package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL    string
	Addresses []string
	Contracts []string
	FromBlock uint64
	ToBlock   uint64

	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	CallTimeout  time.Duration
	Workers      int

	USD          bool
	FilterPolicy string

	PriceURL     string
	PriceAPIKey  string
	PriceTimeout time.Duration

	In                string
	Out               string
	Checkpoint        string
	CheckpointEnabled bool
	PGDSN             string

	Listen   string
	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APPROVALS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", uint64(5000))
	v.SetDefault("max-retries", 0)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("call-timeout", 10*time.Second)
	v.SetDefault("workers", 8)
	v.SetDefault("filter-policy", "drop")
	v.SetDefault("price-url", "https://api.coingecko.com/api/v3")
	v.SetDefault("price-timeout", 10*time.Second)
	v.SetDefault("out", "./data/approvals.jsonl")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("listen", ":8080")
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

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		Addresses:         getStringSlice(v, "address"),
		Contracts:         getStringSlice(v, "contract"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		CallTimeout:       v.GetDuration("call-timeout"),
		Workers:           v.GetInt("workers"),
		USD:               v.GetBool("usd"),
		FilterPolicy:      v.GetString("filter-policy"),
		PriceURL:          v.GetString("price-url"),
		PriceAPIKey:       v.GetString("price-api-key"),
		PriceTimeout:      v.GetDuration("price-timeout"),
		In:                v.GetString("in"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		PGDSN:             v.GetString("pg-dsn"),
		Listen:            v.GetString("listen"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks numeric bounds and the block range.
func (c Config) Validate() error {
	if c.BatchSize == 0 {
		return fmt.Errorf("batch-size must be greater than zero")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be greater than zero")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call-timeout must be positive")
	}
	if c.PriceTimeout <= 0 {
		return fmt.Errorf("price-timeout must be positive")
	}
	if c.ToBlock != 0 && c.ToBlock < c.FromBlock {
		return fmt.Errorf("to block must be >= from block")
	}
	return nil
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
