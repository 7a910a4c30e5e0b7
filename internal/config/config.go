package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "FEED_DIGEST_CONFIG"
	webhookURLEnv   = "FEISHU_WEBHOOK_URL"
	proxyURLEnv     = "FEED_DIGEST_PROXY"
	dataDirEnv      = "FEED_DIGEST_DATA_DIR"
	logLevelEnv     = "FEED_DIGEST_LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Sources   []SourceConfig  `yaml:"sources"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Selection SelectionConfig `yaml:"selection"`
	Keywords  KeywordConfig   `yaml:"keywords"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Storage   StorageConfig   `yaml:"storage"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SourceConfig describes a single feed with its scanner strategy.
type SourceConfig struct {
	Name     string            `yaml:"name"`
	Scanner  string            `yaml:"scanner"`
	URL      string            `yaml:"url"`
	MaxItems int               `yaml:"max_items"`
	Options  map[string]string `yaml:"options"`
}

// FetchConfig controls how sources are read from the network.
type FetchConfig struct {
	MaxItems    int           `yaml:"max_items"`
	Timeout     time.Duration `yaml:"timeout"`
	ProxyURL    string        `yaml:"proxy_url"`
	UserAgent   string        `yaml:"user_agent"`
	MinInterval time.Duration `yaml:"min_interval"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// SelectionConfig holds caps and scoring weights for the ranking engine.
type SelectionConfig struct {
	PerSourceCap   *int     `yaml:"per_source_cap"`
	TotalCap       *int     `yaml:"total_cap"`
	BaseScore      *float64 `yaml:"base_score"`
	PositiveWeight *float64 `yaml:"positive_weight"`
	NegativeWeight *float64 `yaml:"negative_weight"`
}

// KeywordConfig lists case-insensitive title terms.
type KeywordConfig struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// ScheduleConfig defines when the daemon runs.
type ScheduleConfig struct {
	PushTime   string         `yaml:"push_time"`
	Timezone   string         `yaml:"timezone"`
	RunOnStart bool           `yaml:"run_on_start"`
	location   *time.Location `yaml:"-"`
	hour       int
	minute     int
}

// Location resolves the schedule timezone string to a time.Location.
func (s ScheduleConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// Clock returns the validated hour and minute of the daily trigger.
func (s ScheduleConfig) Clock() (int, int) {
	return s.hour, s.minute
}

// DeliveryConfig describes the outbound webhook.
type DeliveryConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Title      string        `yaml:"title"`
}

// LedgerConfig controls dedup retention.
type LedgerConfig struct {
	Retention time.Duration `yaml:"retention"`
}

// StorageConfig places all persisted state under one directory.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LedgerPath is the SQLite file holding delivered ids.
func (s StorageConfig) LedgerPath() string { return filepath.Join(s.DataDir, "ledger.db") }

// RecordsDir holds one RunRecord per run.
func (s StorageConfig) RecordsDir() string { return filepath.Join(s.DataDir, "records") }

// FallbackDir holds digests that could not be delivered.
func (s StorageConfig) FallbackDir() string { return filepath.Join(s.DataDir, "fallback") }

// CacheDir holds per-source feed cache entries.
func (s StorageConfig) CacheDir() string { return filepath.Join(s.DataDir, "cache") }

// LockPath guards against overlapping runs.
func (s StorageConfig) LockPath() string { return filepath.Join(s.DataDir, "feeddigest.lock") }

// PerSourceCapValue returns the configured per-source selection cap.
func (s SelectionConfig) PerSourceCapValue() int { return intOr(s.PerSourceCap, 0) }

// TotalCapValue returns the configured global selection cap.
func (s SelectionConfig) TotalCapValue() int { return intOr(s.TotalCap, 0) }

// Weights returns base score, positive and negative keyword weights.
func (s SelectionConfig) Weights() (base, positive, negative float64) {
	return floatOr(s.BaseScore, 0), floatOr(s.PositiveWeight, 0), floatOr(s.NegativeWeight, 0)
}

// Load reads YAML configuration (if present), applies environment overrides
// and validates the result. Any problem is reported as a *ConfigError.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &ConfigError{Field: "config", Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, &ConfigError{Field: "config", Reason: fmt.Sprintf("cannot parse %s: %v", path, err)}
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()
	cfg.applySourceDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(webhookURLEnv); v != "" {
		c.Delivery.WebhookURL = v
	}

	if v := os.Getenv(proxyURLEnv); v != "" {
		c.Fetch.ProxyURL = v
	}

	if v := os.Getenv(dataDirEnv); v != "" {
		c.Storage.DataDir = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) applySourceDefaults() {
	for i := range c.Sources {
		src := &c.Sources[i]
		src.Name = strings.TrimSpace(src.Name)
		src.Scanner = strings.ToLower(strings.TrimSpace(src.Scanner))
		if src.Scanner == "" {
			src.Scanner = ScannerReddit
		}
		if src.MaxItems == 0 {
			src.MaxItems = c.Fetch.MaxItems
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	if override.Fetch.MaxItems != 0 {
		base.Fetch.MaxItems = override.Fetch.MaxItems
	}
	if override.Fetch.Timeout != 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.ProxyURL != "" {
		base.Fetch.ProxyURL = override.Fetch.ProxyURL
	}
	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}
	if override.Fetch.MinInterval != 0 {
		base.Fetch.MinInterval = override.Fetch.MinInterval
	}
	if override.Fetch.CacheTTL != 0 {
		base.Fetch.CacheTTL = override.Fetch.CacheTTL
	}

	if override.Selection.PerSourceCap != nil {
		base.Selection.PerSourceCap = override.Selection.PerSourceCap
	}
	if override.Selection.TotalCap != nil {
		base.Selection.TotalCap = override.Selection.TotalCap
	}
	if override.Selection.BaseScore != nil {
		base.Selection.BaseScore = override.Selection.BaseScore
	}
	if override.Selection.PositiveWeight != nil {
		base.Selection.PositiveWeight = override.Selection.PositiveWeight
	}
	if override.Selection.NegativeWeight != nil {
		base.Selection.NegativeWeight = override.Selection.NegativeWeight
	}

	if override.Keywords.Positive != nil {
		base.Keywords.Positive = override.Keywords.Positive
	}
	if override.Keywords.Negative != nil {
		base.Keywords.Negative = override.Keywords.Negative
	}

	if override.Schedule.PushTime != "" {
		base.Schedule.PushTime = override.Schedule.PushTime
	}
	if override.Schedule.Timezone != "" {
		base.Schedule.Timezone = override.Schedule.Timezone
	}
	if override.Schedule.RunOnStart {
		base.Schedule.RunOnStart = true
	}

	if override.Delivery.WebhookURL != "" {
		base.Delivery.WebhookURL = override.Delivery.WebhookURL
	}
	if override.Delivery.Timeout != 0 {
		base.Delivery.Timeout = override.Delivery.Timeout
	}
	if override.Delivery.Title != "" {
		base.Delivery.Title = override.Delivery.Title
	}

	if override.Ledger.Retention != 0 {
		base.Ledger.Retention = override.Ledger.Retention
	}

	if override.Storage.DataDir != "" {
		base.Storage.DataDir = override.Storage.DataDir
	}

	return base
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func floatOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
