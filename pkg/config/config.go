package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// IDPlaceholder is replaced by the product identifier in APIConfig.BaseURL
const IDPlaceholder = "{id}"

// Config holds all configuration options for catalogfetch
type Config struct {
	// Remote catalog API
	API APIConfig `yaml:"api" json:"api"`

	// Batching, concurrency and retry policy
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Output files
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// APIConfig holds catalog API configuration
type APIConfig struct {
	BaseURL   string            `yaml:"base_url" json:"base_url"`
	Timeout   time.Duration     `yaml:"timeout" json:"timeout"`
	UserAgent string            `yaml:"user_agent" json:"user_agent"`
	Headers   map[string]string `yaml:"headers" json:"headers"`
}

// PipelineConfig holds batching, concurrency and retry configuration
type PipelineConfig struct {
	BatchSize            int           `yaml:"batch_size" json:"batch_size"`
	Concurrency          int           `yaml:"concurrency" json:"concurrency"`
	MaxAttempts          int           `yaml:"max_attempts" json:"max_attempts"`
	BackoffBase          time.Duration `yaml:"backoff_base" json:"backoff_base"`
	MaxBackoff           time.Duration `yaml:"max_backoff" json:"max_backoff"`
	RateLimitFallbackMin time.Duration `yaml:"rate_limit_fallback_min" json:"rate_limit_fallback_min"`
	RateLimitFallbackMax time.Duration `yaml:"rate_limit_fallback_max" json:"rate_limit_fallback_max"`
	RequestsPerMinute    int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	Directory      string `yaml:"directory" json:"directory"`
	FilePrefix     string `yaml:"file_prefix" json:"file_prefix"`
	ErrorsFile     string `yaml:"errors_file" json:"errors_file"`
	CheckpointFile string `yaml:"checkpoint_file" json:"checkpoint_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://api.tiki.vn/product-detail/api/v1/products/{id}",
			Timeout:   30 * time.Second,
			UserAgent: "catalogfetch/1.0",
			Headers:   map[string]string{},
		},
		Pipeline: PipelineConfig{
			BatchSize:            1000,
			Concurrency:          150,
			MaxAttempts:          5,
			BackoffBase:          time.Second,
			MaxBackoff:           0, // 0 means unbounded
			RateLimitFallbackMin: 3 * time.Second,
			RateLimitFallbackMax: 10 * time.Second,
			RequestsPerMinute:    0, // 0 disables client-side pacing
		},
		Output: OutputConfig{
			Directory:      ".",
			FilePrefix:     "products",
			ErrorsFile:     "errors.json",
			CheckpointFile: "checkpoint.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("CATALOGFETCH_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("CATALOGFETCH_USER_AGENT"); v != "" {
		c.API.UserAgent = v
	}
	if v := os.Getenv("CATALOGFETCH_TIMEOUT"); v != "" {
		envDuration(&errs, "CATALOGFETCH_TIMEOUT", v, &c.API.Timeout)
	}

	if v := os.Getenv("CATALOGFETCH_BATCH_SIZE"); v != "" {
		envInt(&errs, "CATALOGFETCH_BATCH_SIZE", v, &c.Pipeline.BatchSize)
	}
	if v := os.Getenv("CATALOGFETCH_CONCURRENCY"); v != "" {
		envInt(&errs, "CATALOGFETCH_CONCURRENCY", v, &c.Pipeline.Concurrency)
	}
	if v := os.Getenv("CATALOGFETCH_MAX_ATTEMPTS"); v != "" {
		envInt(&errs, "CATALOGFETCH_MAX_ATTEMPTS", v, &c.Pipeline.MaxAttempts)
	}
	if v := os.Getenv("CATALOGFETCH_BACKOFF_BASE"); v != "" {
		envDuration(&errs, "CATALOGFETCH_BACKOFF_BASE", v, &c.Pipeline.BackoffBase)
	}
	if v := os.Getenv("CATALOGFETCH_REQUESTS_PER_MINUTE"); v != "" {
		envInt(&errs, "CATALOGFETCH_REQUESTS_PER_MINUTE", v, &c.Pipeline.RequestsPerMinute)
	}

	if v := os.Getenv("CATALOGFETCH_OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("CATALOGFETCH_CHECKPOINT_FILE"); v != "" {
		c.Output.CheckpointFile = v
	}

	if v := os.Getenv("CATALOGFETCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CATALOGFETCH_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	if v := os.Getenv("CATALOGFETCH_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("CATALOGFETCH_METRICS_ADDRESS"); v != "" {
		c.Metrics.Address = v
	}

	return errors.Join(errs...)
}

func envInt(errs *[]error, name, raw string, dst *int) {
	var val int
	if _, err := fmt.Sscanf(raw, "%d", &val); err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", name, raw))
		return
	}
	*dst = val
}

func envDuration(errs *[]error, name, raw string, dst *time.Duration) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = d
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".catalogfetch.yaml",
		".catalogfetch.yml",
		filepath.Join(home, ".config", "catalogfetch", "config.yaml"),
		filepath.Join(home, ".config", "catalogfetch", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	} else if !strings.Contains(c.API.BaseURL, IDPlaceholder) && !strings.HasSuffix(c.API.BaseURL, "/") {
		errs = append(errs, fmt.Errorf("API base URL must contain %s or end with /", IDPlaceholder))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}

	p := c.Pipeline
	if p.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if p.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if p.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if p.BackoffBase < 0 {
		errs = append(errs, errors.New("backoff base cannot be negative"))
	}
	if p.MaxBackoff < 0 {
		errs = append(errs, errors.New("max backoff cannot be negative"))
	}
	if p.RateLimitFallbackMin < 0 || p.RateLimitFallbackMax < p.RateLimitFallbackMin {
		errs = append(errs, errors.New("rate limit fallback range is invalid"))
	}
	if p.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.FilePrefix == "" {
		errs = append(errs, errors.New("output file prefix is required"))
	}
	if c.Output.ErrorsFile == "" {
		errs = append(errs, errors.New("errors file name is required"))
	}
	if c.Output.CheckpointFile == "" {
		errs = append(errs, errors.New("checkpoint file is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validFormats := map[string]bool{"": true, "auto": true, "json": true, "pretty": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, errors.New("invalid log format"))
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, errors.New("metrics address is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// CheckpointPath resolves the checkpoint file against the output directory
// unless it is already absolute.
func (c *Config) CheckpointPath() string {
	if filepath.IsAbs(c.Output.CheckpointFile) {
		return c.Output.CheckpointFile
	}
	return filepath.Join(c.Output.Directory, c.Output.CheckpointFile)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags present in the map with non-zero values are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.API.Timeout = v
	}
	if v, ok := flags["batch-size"].(int); ok && v > 0 {
		c.Pipeline.BatchSize = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Pipeline.Concurrency = v
	}
	if v, ok := flags["max-attempts"].(int); ok && v > 0 {
		c.Pipeline.MaxAttempts = v
	}
	if v, ok := flags["backoff-base"].(time.Duration); ok && v > 0 {
		c.Pipeline.BackoffBase = v
	}
	if v, ok := flags["requests-per-minute"].(int); ok && v > 0 {
		c.Pipeline.RequestsPerMinute = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["checkpoint"].(string); ok && v != "" {
		c.Output.CheckpointFile = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-format"].(string); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := flags["metrics"].(bool); ok && v {
		c.Metrics.Enabled = true
	}
	if v, ok := flags["metrics-address"].(string); ok && v != "" {
		c.Metrics.Address = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".catalogfetch.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
