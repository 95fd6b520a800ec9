package main

import (
	"fmt"
	"strconv"
	"time"

	"catalogfetch/pkg/checkpoint"
	"catalogfetch/pkg/config"
	"catalogfetch/pkg/logger"
	"catalogfetch/pkg/pipeline"
	"catalogfetch/pkg/ui"

	"github.com/spf13/cobra"
)

var checkpointOutputDir string

// checkpointCmd represents the checkpoint command
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or maintain the run checkpoint",
	Long: `Inspect or maintain the checkpoint that records which identifiers
have been fetched and written to a batch file.`,
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show checkpoint status",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointShow,
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Back up and delete the checkpoint",
	Long: `Copy the checkpoint to <checkpoint>.backup and delete it. The next
fetch starts from the beginning of the input.`,
	Args: cobra.NoArgs,
	RunE: runCheckpointReset,
}

var checkpointReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Add identifiers found in batch files to the checkpoint",
	Long: `Scan the products_<n>.json files in the output directory and record
every identifier they contain in the checkpoint. Use this after a crash
between writing a batch file and saving the checkpoint.`,
	Args: cobra.NoArgs,
	RunE: runCheckpointReconcile,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointResetCmd)
	checkpointCmd.AddCommand(checkpointReconcileCmd)

	checkpointCmd.PersistentFlags().StringVarP(&checkpointOutputDir, "output", "o", "", "output directory holding the checkpoint")
}

// loadCheckpointConfig loads the configuration for checkpoint subcommands
func loadCheckpointConfig() (*config.Config, error) {
	flags := globalFlags()
	if checkpointOutputDir != "" {
		flags["output"] = checkpointOutputDir
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func runCheckpointShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadCheckpointConfig()
	if err != nil {
		return err
	}

	store := checkpoint.NewStore(cfg.CheckpointPath(), logger.GetLogger())
	ui.PrintInfo("Checkpoint", store.Path())
	if !store.Exists() {
		ui.PrintWarning("No checkpoint found")
		return nil
	}

	state := store.Load()
	ui.PrintInfo("Processed", strconv.Itoa(state.Len()))
	if !state.UpdatedAt.IsZero() {
		ui.PrintInfo("Updated", state.UpdatedAt.Local().Format(time.RFC3339))
	}
	if state.RunID != "" {
		ui.PrintInfo("Run", state.RunID)
	}
	return nil
}

func runCheckpointReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadCheckpointConfig()
	if err != nil {
		return err
	}

	store := checkpoint.NewStore(cfg.CheckpointPath(), logger.GetLogger())
	if !store.Exists() {
		ui.PrintWarning("No checkpoint found", store.Path())
		return nil
	}

	backup, err := store.Backup()
	if err != nil {
		return err
	}
	if err := store.Delete(); err != nil {
		return err
	}

	ui.PrintSuccess("Checkpoint reset")
	ui.PrintInfo("Backup", backup)
	return nil
}

func runCheckpointReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadCheckpointConfig()
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, pipeline.WithLogger(logger.GetLogger()))
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	store := p.Checkpoint()
	state := store.Load()
	added, err := p.Reconcile(state)
	if err != nil {
		return err
	}
	if added == 0 {
		ui.PrintSuccess("Checkpoint already up to date")
		return nil
	}

	if err := store.Save(state); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Added %d identifiers, %d recorded in total", added, state.Len()))
	return nil
}
