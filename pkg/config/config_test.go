package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Contains(t, cfg.API.BaseURL, IDPlaceholder)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)

	assert.Equal(t, 1000, cfg.Pipeline.BatchSize)
	assert.Equal(t, 150, cfg.Pipeline.Concurrency)
	assert.Equal(t, 5, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Pipeline.BackoffBase)
	assert.Equal(t, 3*time.Second, cfg.Pipeline.RateLimitFallbackMin)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.RateLimitFallbackMax)
	assert.Zero(t, cfg.Pipeline.RequestsPerMinute)

	assert.Equal(t, ".", cfg.Output.Directory)
	assert.Equal(t, "products", cfg.Output.FilePrefix)
	assert.Equal(t, "errors.json", cfg.Output.ErrorsFile)
	assert.Equal(t, "checkpoint.json", cfg.Output.CheckpointFile)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CATALOGFETCH_BASE_URL", "http://localhost:8080/products/{id}")
	t.Setenv("CATALOGFETCH_BATCH_SIZE", "50")
	t.Setenv("CATALOGFETCH_CONCURRENCY", "8")
	t.Setenv("CATALOGFETCH_BACKOFF_BASE", "250ms")
	t.Setenv("CATALOGFETCH_OUTPUT_DIR", "/tmp/catalog")
	t.Setenv("CATALOGFETCH_METRICS_ENABLED", "TRUE")
	t.Setenv("CATALOGFETCH_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "http://localhost:8080/products/{id}", cfg.API.BaseURL)
	assert.Equal(t, 50, cfg.Pipeline.BatchSize)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.BackoffBase)
	assert.Equal(t, "/tmp/catalog", cfg.Output.Directory)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("CATALOGFETCH_BATCH_SIZE", "lots")
	t.Setenv("CATALOGFETCH_TIMEOUT", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CATALOGFETCH_BATCH_SIZE")
	assert.Contains(t, err.Error(), "CATALOGFETCH_TIMEOUT")
	assert.Equal(t, 1000, cfg.Pipeline.BatchSize)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: "http://catalog.local/p/{id}"
  timeout: 5s
  headers:
    Accept-Language: vi
pipeline:
  batch_size: 200
  concurrency: 20
  max_attempts: 3
  backoff_base: 500ms
output:
  directory: ./out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "http://catalog.local/p/{id}", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "vi", cfg.API.Headers["Accept-Language"])
	assert.Equal(t, 200, cfg.Pipeline.BatchSize)
	assert.Equal(t, 20, cfg.Pipeline.Concurrency)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.BackoffBase)
	assert.Equal(t, "./out", cfg.Output.Directory)
	// untouched sections keep defaults
	assert.Equal(t, "products", cfg.Output.FilePrefix)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("pipeline: [unclosed"), 0644))
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }, "base URL is required"},
		{"base url without placeholder", func(c *Config) { c.API.BaseURL = "http://x/products" }, "must contain"},
		{"base url trailing slash", func(c *Config) { c.API.BaseURL = "http://x/products/" }, ""},
		{"zero batch size", func(c *Config) { c.Pipeline.BatchSize = 0 }, "batch size"},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, "concurrency"},
		{"zero attempts", func(c *Config) { c.Pipeline.MaxAttempts = 0 }, "max attempts"},
		{"inverted fallback", func(c *Config) {
			c.Pipeline.RateLimitFallbackMin = 10 * time.Second
			c.Pipeline.RateLimitFallbackMax = time.Second
		}, "fallback range"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "log level"},
		{"metrics without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Address = ""
		}, "metrics address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.BatchSize = -1
	cfg.Pipeline.Concurrency = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch size")
	assert.Contains(t, err.Error(), "concurrency")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"batch-size":   25,
		"concurrency":  0, // zero values are ignored
		"backoff-base": 2 * time.Second,
		"output":       "./results",
		"metrics":      true,
	})

	assert.Equal(t, 25, cfg.Pipeline.BatchSize)
	assert.Equal(t, 150, cfg.Pipeline.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.BackoffBase)
	assert.Equal(t, "./results", cfg.Output.Directory)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  batch_size: 10\n  concurrency: 4\n  max_attempts: 2\n"), 0644))

	t.Setenv("CATALOGFETCH_CONCURRENCY", "6")

	cfg, err := Load(path, map[string]interface{}{"max-attempts": 9})
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Pipeline.BatchSize, "file overrides default")
	assert.Equal(t, 6, cfg.Pipeline.Concurrency, "env overrides file")
	assert.Equal(t, 9, cfg.Pipeline.MaxAttempts, "flag overrides env and file")
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  concurrency: -1\n"), 0644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Pipeline.BatchSize = 77

	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 77, loaded.Pipeline.BatchSize)
	assert.Equal(t, cfg.Pipeline.BackoffBase, loaded.Pipeline.BackoffBase)
}

func TestCheckpointPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Directory = "out"
	assert.Equal(t, filepath.Join("out", "checkpoint.json"), cfg.CheckpointPath())

	cfg.Output.CheckpointFile = "/var/lib/catalogfetch/state.json"
	assert.Equal(t, "/var/lib/catalogfetch/state.json", cfg.CheckpointPath())
}
