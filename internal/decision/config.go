package decision

import (
	"fmt"
	"strings"
)

const (
	DefaultPrimaryTimeoutMs  = 3000
	DefaultCacheTTLSec       = 900
	DefaultCacheMaxEntries   = 100
	DefaultWatcherDebounceMs = 300
)

type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	Journal JournalConfig `yaml:"journal"`
	Watcher WatcherConfig `yaml:"watcher"`
}

type EngineConfig struct {
	PrimaryTimeoutMs   int                `yaml:"primary_timeout_ms"`
	PrimaryConfidence  float64            `yaml:"primary_confidence"`
	FallbackConfidence FallbackConfidence `yaml:"fallback_confidence"`
}

type FallbackConfidence struct {
	Prioritize float64 `yaml:"prioritize"`
	Predict    float64 `yaml:"predict"`
	Conflict   float64 `yaml:"conflict"`
}

type CacheConfig struct {
	TTLSec     int `yaml:"ttl_sec"`
	MaxEntries int `yaml:"max_entries"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type JournalConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type WatcherConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.PrimaryTimeoutMs < 0 {
		return fmt.Errorf("engine.primary_timeout_ms must not be negative")
	}
	if c.Engine.PrimaryConfidence < 0 || c.Engine.PrimaryConfidence > 1 {
		return fmt.Errorf("engine.primary_confidence must be between 0 and 1")
	}
	for name, v := range map[string]float64{
		"prioritize": c.Engine.FallbackConfidence.Prioritize,
		"predict":    c.Engine.FallbackConfidence.Predict,
		"conflict":   c.Engine.FallbackConfidence.Conflict,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("engine.fallback_confidence.%s must be between 0 and 1", name)
		}
	}
	if c.Cache.TTLSec < 0 {
		return fmt.Errorf("cache.ttl_sec must not be negative")
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative")
	}
	if c.Journal.MaxBytes < 0 {
		return fmt.Errorf("journal.max_bytes must not be negative")
	}
	if c.Watcher.DebounceMs < 0 {
		return fmt.Errorf("watcher.debounce_ms must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}

	return nil
}

// applyDefaults fills unset fields with engine defaults.
func (c *Config) applyDefaults() {
	if c.Engine.PrimaryTimeoutMs == 0 {
		c.Engine.PrimaryTimeoutMs = DefaultPrimaryTimeoutMs
	}
	if c.Engine.PrimaryConfidence == 0 {
		c.Engine.PrimaryConfidence = 0.85
	}
	if c.Engine.FallbackConfidence.Prioritize == 0 {
		c.Engine.FallbackConfidence.Prioritize = 0.7
	}
	if c.Engine.FallbackConfidence.Predict == 0 {
		c.Engine.FallbackConfidence.Predict = 0.6
	}
	if c.Engine.FallbackConfidence.Conflict == 0 {
		c.Engine.FallbackConfidence.Conflict = 0.7
	}
	if c.Cache.TTLSec == 0 {
		c.Cache.TTLSec = DefaultCacheTTLSec
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = ".foreman/journal/decisions.jsonl"
	}
	if c.Journal.MaxBytes == 0 {
		c.Journal.MaxBytes = 10 * 1024 * 1024
	}
	if c.Watcher.DebounceMs == 0 {
		c.Watcher.DebounceMs = DefaultWatcherDebounceMs
	}
}
