package decision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3000, cfg.Engine.PrimaryTimeoutMs)
	assert.Equal(t, 0.85, cfg.Engine.PrimaryConfidence)
	assert.Equal(t, 0.7, cfg.Engine.FallbackConfidence.Prioritize)
	assert.Equal(t, 0.6, cfg.Engine.FallbackConfidence.Predict)
	assert.Equal(t, 0.7, cfg.Engine.FallbackConfidence.Conflict)
	assert.Equal(t, 900, cfg.Cache.TTLSec)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, int64(10485760), cfg.Journal.MaxBytes)
	assert.Equal(t, 300, cfg.Watcher.DebounceMs)
}

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `engine:
  primary_timeout_ms: 500
cache:
  max_entries: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Engine.PrimaryTimeoutMs)
	assert.Equal(t, 10, cfg.Cache.MaxEntries)
	// Unset fields fall back to defaults.
	assert.Equal(t, 900, cfg.Cache.TTLSec)
	assert.Equal(t, 0.85, cfg.Engine.PrimaryConfidence)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `engine:
  primary_timeout_ms: 500
  retries: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries")
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [broken"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Engine.PrimaryTimeoutMs = -1 },
			wantErr: "primary_timeout_ms",
		},
		{
			name:    "confidence above one",
			mutate:  func(c *Config) { c.Engine.PrimaryConfidence = 1.5 },
			wantErr: "primary_confidence",
		},
		{
			name:    "fallback confidence below zero",
			mutate:  func(c *Config) { c.Engine.FallbackConfidence.Predict = -0.1 },
			wantErr: "fallback_confidence.predict",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *Config) { c.Cache.TTLSec = -5 },
			wantErr: "ttl_sec",
		},
		{
			name:    "negative capacity",
			mutate:  func(c *Config) { c.Cache.MaxEntries = -5 },
			wantErr: "max_entries",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:   "warn level accepted",
			mutate: func(c *Config) { c.Logging.Level = "warn" },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	// A second write must refuse to clobber the file.
	err = WriteDefaultConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
