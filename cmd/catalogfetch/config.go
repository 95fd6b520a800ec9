package main

import (
	"fmt"
	"os"

	"catalogfetch/pkg/config"
	"catalogfetch/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage catalogfetch configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CATALOGFETCH_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.catalogfetch.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging the configuration
file, environment variables and defaults.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Endpoint template and timeouts
  - Batch size, concurrency and retry policy ranges`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# catalogfetch configuration file
#
# Every option can also be set with an environment variable prefixed with
# CATALOGFETCH_, for example CATALOGFETCH_CONCURRENCY or CATALOGFETCH_OUTPUT_DIR.

# Catalog API
api:
  # Product endpoint, {id} is replaced by the identifier
  base_url: "https://api.tiki.vn/product-detail/api/v1/products/{id}"

  # Per-request timeout
  timeout: 30s

  # User agent sent with every request
  user_agent: "catalogfetch/1.0"

  # Extra request headers
  headers: {}

# Batching, concurrency and retries
pipeline:
  # Identifiers per products_<n>.json file
  batch_size: 1000

  # Maximum concurrent requests
  concurrency: 150

  # Attempts per identifier, including the first one
  max_attempts: 5

  # Exponential backoff: base * 2^(attempt-1)
  backoff_base: 1s

  # Upper bound for a single backoff, 0 means unbounded
  max_backoff: 0s

  # Wait range used when a 429 response carries no Retry-After header
  rate_limit_fallback_min: 3s
  rate_limit_fallback_max: 10s

  # Client-side pacing across all workers, 0 disables it
  requests_per_minute: 0

# Output files
output:
  directory: "."
  file_prefix: "products"
  errors_file: "errors.json"

  # Relative paths are resolved against the output directory
  checkpoint_file: "checkpoint.json"

# Logging
logging:
  # debug, info, warn, error
  level: "info"

  # auto, json, pretty
  format: "auto"

  # Optional log file, empty logs to stderr only
  file: ""

# Prometheus endpoint
metrics:
  enabled: false
  address: ":9090"
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".catalogfetch.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file for your catalog endpoint")
	fmt.Println("2. Run 'catalogfetch config validate' to check the configuration")
	fmt.Println("3. Start fetching with 'catalogfetch fetch --input <file>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return err
	}
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		ui.PrintError("Configuration is invalid")
		return err
	}

	ui.PrintSuccess("Configuration is valid")
	return nil
}
