// Package config loads ~/.smsync/config.toml with SMSYNC_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SMSYNC_"

// Config represents the global ~/.smsync/config.toml.
type Config struct {
	DefaultProfile string          `toml:"default_profile" env:"DEFAULT_PROFILE"`
	Sync           SyncConfig      `toml:"sync" envPrefix:"SYNC_"`
	Paging         PagingConfig    `toml:"paging" envPrefix:"PAGING_"`
	Transport      TransportConfig `toml:"transport" envPrefix:"TRANSPORT_"`
	Scheduler      SchedulerConfig `toml:"scheduler" envPrefix:"SCHEDULER_"`
	Log            LogConfig       `toml:"log" envPrefix:"LOG_"`
	Provider       ProviderConfig  `toml:"provider" envPrefix:"PROVIDER_"`
}

// SyncConfig tunes conversation rebuilds.
type SyncConfig struct {
	DebounceMs int `toml:"debounce_ms" env:"DEBOUNCE_MS"`
	RecencyCap int `toml:"recency_cap" env:"RECENCY_CAP"`
}

// Debounce returns the rebuild debounce as a duration.
func (c SyncConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// PagingConfig tunes thread reads.
type PagingConfig struct {
	PageSize int `toml:"page_size" env:"PAGE_SIZE"`
}

// TransportConfig selects and throttles the delivery transport. An empty
// GatewayURL confirms deliveries locally.
type TransportConfig struct {
	GatewayURL    string  `toml:"gateway_url" env:"GATEWAY_URL"`
	RatePerSecond float64 `toml:"rate_per_second" env:"RATE_PER_SECOND"`
	Burst         int     `toml:"burst" env:"BURST"`
}

// SchedulerConfig controls the scheduled message sweep.
type SchedulerConfig struct {
	Sweep string `toml:"sweep" env:"SWEEP"`
}

// LogConfig controls the daemon log.
type LogConfig struct {
	Level      string `toml:"level" env:"LEVEL"`
	MaxSizeMB  int    `toml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `toml:"max_backups" env:"MAX_BACKUPS"`
}

// ProviderConfig locates the shared message store. An empty Path uses
// the profile directory.
type ProviderConfig struct {
	Path string `toml:"path" env:"PATH"`
}

// Defaults returns a config with every default filled in.
func Defaults() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Sync.DebounceMs == 0 {
		c.Sync.DebounceMs = 250
	}
	if c.Sync.RecencyCap == 0 {
		c.Sync.RecencyCap = 100
	}
	if c.Paging.PageSize == 0 {
		c.Paging.PageSize = 50
	}
	if c.Transport.RatePerSecond == 0 {
		c.Transport.RatePerSecond = 5
	}
	if c.Transport.Burst == 0 {
		c.Transport.Burst = 3
	}
	if c.Scheduler.Sweep == "" {
		c.Scheduler.Sweep = "@every 1m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 20
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Sync.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("sync.debounce_ms must not be negative, got %d", c.Sync.DebounceMs))
	}
	if c.Sync.RecencyCap < 0 {
		errs = append(errs, fmt.Errorf("sync.recency_cap must not be negative, got %d", c.Sync.RecencyCap))
	}
	if c.Paging.PageSize < 0 {
		errs = append(errs, fmt.Errorf("paging.page_size must not be negative, got %d", c.Paging.PageSize))
	}
	if c.Transport.RatePerSecond < 0 || c.Transport.Burst < 0 {
		errs = append(errs, errors.New("transport rate and burst must not be negative"))
	}
	return errors.Join(errs...)
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve loads path when it exists, applies a .env file from the working
// directory and SMSYNC_* overrides, then fills defaults.
func Resolve(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing config environment: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
