package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Queue     QueueConfig     `toml:"queue"`
	Job       JobConfig       `toml:"job"`
	Providers ProvidersConfig `toml:"providers"`
	Extract   ExtractConfig   `toml:"extract"`
	Cache     CacheConfig     `toml:"cache"`
}

// QueueConfig contains work queue connection settings.
type QueueConfig struct {
	BaseURL      string `toml:"base_url"`
	FetchLimit   int    `toml:"fetch_limit"`
	BatchSize    int    `toml:"batch_size"`
	WorkerIndex  int    `toml:"worker_index"`
	TotalWorkers int    `toml:"total_workers"`
}

// JobConfig contains run-level budget and pacing settings.
type JobConfig struct {
	MaxRuntimeSeconds int     `toml:"max_runtime_seconds"`
	ProcessLimit      int     `toml:"process_limit"` // 0 runs continuously until the budget expires
	PacePerSecond     float64 `toml:"pace_per_second"`
}

// ProvidersConfig contains resolver selection and cooldown/retry tuning.
type ProvidersConfig struct {
	CooldownSeconds     int            `toml:"cooldown_seconds"`
	BreakerPauseSeconds int            `toml:"breaker_pause_seconds"`
	MaxAttempts         int            `toml:"max_attempts"`
	BackoffSeconds      []int          `toml:"backoff_seconds"`
	BackoffCapSeconds   int            `toml:"backoff_cap_seconds"`
	TieBreak            string         `toml:"tie_break"` // "earliest" or "latest"
	Odesli              ProviderConfig `toml:"odesli"`
	Songlink            ProviderConfig `toml:"songlink"`
	Tapelink            ProviderConfig `toml:"tapelink"`
	Squigly             ProviderConfig `toml:"squigly"`
}

// ProviderConfig enables a single resolver and assigns its dispatch role.
type ProviderConfig struct {
	Enabled bool   `toml:"enabled"`
	Role    string `toml:"role"` // "primary" or "fallback"
}

// ExtractConfig contains Apple Music page scraping settings.
type ExtractConfig struct {
	KeepWhole  []string `toml:"keep_whole"` // genre names never split on "/"
	Storefront string   `toml:"storefront"` // locale segment canonical URLs use
}

// CacheConfig contains local resolution cache settings.
type CacheConfig struct {
	Enabled      bool   `toml:"enabled"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified
// path, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// applyEnv overrides file values with environment variables where set.
// WORKER_URL carries the work queue base URL in scheduled job environments.
func (c *Config) applyEnv() {
	if url := os.Getenv("WORKER_URL"); url != "" {
		c.Queue.BaseURL = url
	}
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
