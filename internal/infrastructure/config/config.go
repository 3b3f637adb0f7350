package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"basketsync/internal/domain/model"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "BASKETSYNC_"

type Config struct {
	App struct {
		PrintEveryMin int    `toml:"print_every_min"`
		LogLevel      string `toml:"log_level"`
		Color         bool   `toml:"color"`
	} `toml:"app"`

	PriceSource struct {
		URL        string  `toml:"url"`
		TimeoutSec int     `toml:"timeout_sec"`
		RatePerSec float64 `toml:"rate_per_sec"`
		Burst      int     `toml:"burst"`
	} `toml:"price_source"`

	Polling struct {
		OpenIntervalSec   int `toml:"open_interval_sec"`
		ClosedIntervalSec int `toml:"closed_interval_sec"`
		FailureThreshold  int `toml:"failure_threshold"`
	} `toml:"polling"`

	Session struct {
		Timezone string `toml:"timezone"`
	} `toml:"session"`

	Storage struct {
		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`

		Redis struct {
			Enabled      bool   `toml:"enabled"`
			Addr         string `toml:"addr"`
			Password     string `toml:"password"`
			DB           int    `toml:"db"`
			Prefix       string `toml:"prefix"`
			TTLSeconds   int    `toml:"ttl_seconds"`
			Stream       string `toml:"stream"`
			StreamMaxLen int64  `toml:"stream_max_len"`
			Channel      string `toml:"channel"`
		} `toml:"redis"`
	} `toml:"storage"`

	HTTP struct {
		Enabled        bool     `toml:"enabled"`
		Addr           string   `toml:"addr"`
		AllowedOrigins []string `toml:"allowed_origins"`
	} `toml:"http"`

	// seed data, written to the repository on startup
	Baskets    []model.Basket          `toml:"baskets"`
	References []model.ReferenceRecord `toml:"references"`
}

// Load reads the TOML file, then a .env file if present, then BASKETSYNC_*
// environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	// .env 可选，不存在时忽略
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.PriceSource.URL = getEnv("PRICE_URL", cfg.PriceSource.URL)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.Storage.SQLite.Path = getEnv("SQLITE_PATH", cfg.Storage.SQLite.Path)
	cfg.Storage.Redis.Addr = getEnv("REDIS_ADDR", cfg.Storage.Redis.Addr)
	cfg.Storage.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Storage.Redis.Password)
	cfg.Storage.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", cfg.Storage.Redis.Enabled)
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Polling.FailureThreshold = getEnvAsInt("FAILURE_THRESHOLD", cfg.Polling.FailureThreshold)
	if dsn := getEnv("POSTGRES_DSN", ""); dsn != "" {
		cfg.Storage.Postgres.DSN = dsn
		cfg.Storage.Postgres.Enabled = true
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.PrintEveryMin <= 0 {
		cfg.App.PrintEveryMin = 5
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.PriceSource.TimeoutSec <= 0 {
		cfg.PriceSource.TimeoutSec = 10
	}
	if cfg.PriceSource.RatePerSec <= 0 {
		cfg.PriceSource.RatePerSec = 5
	}
	if cfg.PriceSource.Burst <= 0 {
		cfg.PriceSource.Burst = int(cfg.PriceSource.RatePerSec)
		if cfg.PriceSource.Burst < 1 {
			cfg.PriceSource.Burst = 1
		}
	}
	if cfg.Polling.OpenIntervalSec <= 0 {
		cfg.Polling.OpenIntervalSec = 30
	}
	if cfg.Polling.ClosedIntervalSec <= 0 {
		cfg.Polling.ClosedIntervalSec = 300
	}
	if cfg.Polling.FailureThreshold <= 0 {
		cfg.Polling.FailureThreshold = 3
	}
	if cfg.Session.Timezone == "" {
		cfg.Session.Timezone = "America/New_York"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/basketsync.db"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "basketsync"
	}
	if cfg.Storage.Redis.Stream == "" {
		cfg.Storage.Redis.Stream = "basketsync:snapshots"
	}
	if cfg.Storage.Redis.StreamMaxLen <= 0 {
		cfg.Storage.Redis.StreamMaxLen = 10000
	}
	if cfg.Storage.Redis.Channel == "" {
		cfg.Storage.Redis.Channel = "basketsync:snapshots"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.PriceSource.URL) == "" {
		return errors.New("price_source.url is empty")
	}
	if cfg.Storage.SQLite.Enabled && cfg.Storage.Postgres.Enabled {
		return errors.New("storage.sqlite and storage.postgres are mutually exclusive")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}

	seen := map[string]struct{}{}
	for i := range cfg.Baskets {
		b := &cfg.Baskets[i]
		b.ID = strings.TrimSpace(b.ID)
		if b.ID == "" {
			return fmt.Errorf("baskets[%d].id is empty", i)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("duplicate basket id %q", b.ID)
		}
		seen[b.ID] = struct{}{}
		b.Positions = normalizePositions(b.Positions)
	}
	for i := range cfg.References {
		cfg.References[i].Ticker = model.NormalizeTicker(cfg.References[i].Ticker)
		if cfg.References[i].Ticker == "" {
			return fmt.Errorf("references[%d].ticker is empty", i)
		}
	}
	return nil
}

// normalizePositions upper-cases tickers and drops empty or repeated ones.
func normalizePositions(in []model.Position) []model.Position {
	out := make([]model.Position, 0, len(in))
	seen := map[string]struct{}{}
	for _, p := range in {
		p.Ticker = model.NormalizeTicker(p.Ticker)
		if p.Ticker == "" {
			continue
		}
		if _, ok := seen[p.Ticker]; ok {
			continue
		}
		seen[p.Ticker] = struct{}{}
		out = append(out, p)
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
