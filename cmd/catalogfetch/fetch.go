package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalogfetch/pkg/config"
	"catalogfetch/pkg/input"
	"catalogfetch/pkg/logger"
	"catalogfetch/pkg/metrics"
	"catalogfetch/pkg/pipeline"
	"catalogfetch/pkg/ui"
	"catalogfetch/pkg/ui/tui"

	"github.com/spf13/cobra"
)

var (
	// Fetch command flags
	inputPath         string
	inputFormat       string
	outputDir         string
	checkpointFile    string
	baseURL           string
	batchSize         int
	concurrency       int
	maxAttempts       int
	backoffBase       time.Duration
	requestsPerMinute int
	limit             int
	resumeRun         bool
	forceRestart      bool
	reconcileOutput   bool
	enableMetrics     bool
	metricsAddress    string
	useTUI            bool
	notify            bool
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch product details for a list of identifiers",
	Long: `Fetch product detail records for every identifier in the input file.

Identifiers are read from the first column of a CSV, TSV, plain text or
XLSX file. They are fetched in batches; each batch is written to its own
products_<n>.json file and recorded in the checkpoint before the next batch
starts. Failed identifiers are collected in errors.json.

Pressing Ctrl+C stops after the batch in progress. Rerunning the same
command resumes from the checkpoint.`,
	Example: `  # Fetch all identifiers from a CSV export
  catalogfetch fetch --input products.csv

  # Smaller batches, fewer concurrent requests, custom output directory
  catalogfetch fetch -i ids.txt --batch-size 200 --concurrency 20 -o ./out

  # Start over, ignoring the checkpoint
  catalogfetch fetch -i products.csv --force-restart

  # Rebuild the checkpoint from existing output files before fetching
  catalogfetch fetch -i products.csv --reconcile

  # Interactive dashboard with Prometheus metrics on :9090
  catalogfetch fetch -i products.xlsx --tui --metrics`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&inputPath, "input", "i", "", "file with product identifiers, or - for stdin")
	fetchCmd.Flags().StringVar(&inputFormat, "format", "", "input format (csv, tsv, text, xlsx); detected from the extension by default")
	fetchCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for batch files")
	fetchCmd.Flags().StringVar(&checkpointFile, "checkpoint", "", "checkpoint file, relative to the output directory")
	fetchCmd.Flags().StringVar(&baseURL, "base-url", "", "product endpoint, {id} is replaced by the identifier")
	fetchCmd.Flags().IntVar(&batchSize, "batch-size", 0, "identifiers per batch file")
	fetchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum concurrent requests")
	fetchCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "maximum attempts per identifier")
	fetchCmd.Flags().DurationVar(&backoffBase, "backoff-base", 0, "base delay of the exponential backoff")
	fetchCmd.Flags().IntVar(&requestsPerMinute, "requests-per-minute", 0, "client-side request pacing, 0 disables it")
	fetchCmd.Flags().IntVar(&limit, "limit", 0, "only fetch the first n identifiers of the input")
	fetchCmd.Flags().BoolVar(&resumeRun, "resume", true, "skip identifiers recorded in the checkpoint")
	fetchCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "delete the checkpoint and fetch everything")
	fetchCmd.Flags().BoolVar(&reconcileOutput, "reconcile", false, "add identifiers found in existing batch files to the checkpoint")
	fetchCmd.Flags().BoolVar(&enableMetrics, "metrics", false, "serve Prometheus metrics during the run")
	fetchCmd.Flags().StringVar(&metricsAddress, "metrics-address", "", "listen address of the metrics endpoint")
	fetchCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	fetchCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when the run ends")

	_ = fetchCmd.MarkFlagRequired("input")
}

// fetchFlags builds the config overrides from the flags set on cmd
func fetchFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags()
	changed := cmd.Flags().Changed

	if changed("output") {
		flags["output"] = outputDir
	}
	if changed("checkpoint") {
		flags["checkpoint"] = checkpointFile
	}
	if changed("base-url") {
		flags["base-url"] = baseURL
	}
	if changed("batch-size") {
		flags["batch-size"] = batchSize
	}
	if changed("concurrency") {
		flags["concurrency"] = concurrency
	}
	if changed("max-attempts") {
		flags["max-attempts"] = maxAttempts
	}
	if changed("backoff-base") {
		flags["backoff-base"] = backoffBase
	}
	if changed("requests-per-minute") {
		flags["requests-per-minute"] = requestsPerMinute
	}
	if changed("metrics") {
		flags["metrics"] = enableMetrics
	}
	if changed("metrics-address") {
		flags["metrics-address"] = metricsAddress
	}

	// The dashboard owns the terminal, keep the log stream to errors
	if useTUI && logLevel == "" {
		flags["log-level"] = "error"
	}
	return flags
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, fetchFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("catalogfetch starting")

	ids, err := input.Load(inputPath, input.Format(inputFormat))
	if err != nil {
		return fmt.Errorf("failed to read identifiers: %w", err)
	}
	if !quiet && !useTUI {
		ui.PrintInfo("Input", fmt.Sprintf("%s (%d identifiers)", inputPath, len(ids)))
		ui.PrintInfo("Output", cfg.Output.Directory)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	total := len(ids)
	if limit > 0 && limit < total {
		total = limit
	}

	observers := pipeline.MultiObserver{pipeline.NewLoggingObserver(log)}

	if cfg.Metrics.Enabled {
		m := metrics.New()
		observers = append(observers, m)

		server := metrics.NewServer(cfg.Metrics.Address, m, log)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Metrics server shutdown failed")
			}
		}()
	}

	var terminal *tui.TUI
	switch {
	case useTUI:
		terminal = tui.NewTUI(total, stop)
		observers = append(observers, terminal)
	case !quiet:
		observers = append(observers, ui.NewProgressDisplay(total, verbose))
	}

	p, err := pipeline.New(cfg, pipeline.WithObserver(observers), pipeline.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	opts := pipeline.RunOptions{
		Resume:       resumeRun,
		ForceRestart: forceRestart,
		Reconcile:    reconcileOutput,
		Limit:        limit,
	}

	var summary pipeline.Summary
	if terminal != nil {
		summary, err = runWithTUI(ctx, p, terminal, ids, opts)
	} else {
		summary, err = p.Run(ctx, ids, opts)
	}

	// An empty run id means the run never started
	if summary.RunID == "" {
		return err
	}

	if !quiet {
		printFinalSummary(observers, summary)
	}
	if notify {
		ui.NewNotifier().NotifyRun(summary)
	}

	if err != nil {
		if summary.Interrupted {
			log.WithField("run_id", summary.RunID).Warn("Run interrupted")
		} else {
			log.WithError(err).Error("Run failed")
		}
		return err
	}

	log.WithFields(map[string]interface{}{
		"run_id":    summary.RunID,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("Run completed")
	return nil
}

// runWithTUI runs the pipeline in the background while the dashboard owns
// the terminal. Quitting the dashboard cancels the run; the pipeline still
// finishes the batch in progress before returning.
func runWithTUI(ctx context.Context, p *pipeline.Pipeline, terminal *tui.TUI, ids []string, opts pipeline.RunOptions) (pipeline.Summary, error) {
	type result struct {
		summary pipeline.Summary
		err     error
	}

	runDone := make(chan result, 1)
	go func() {
		summary, err := p.Run(ctx, ids, opts)
		runDone <- result{summary: summary, err: err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- terminal.Start()
	}()

	select {
	case r := <-runDone:
		terminal.Stop()
		if err := <-tuiDone; err != nil {
			logger.WithError(err).Warn("TUI failed")
		}
		return r.summary, r.err
	case err := <-tuiDone:
		if err != nil {
			logger.WithError(err).Warn("TUI failed")
		}
		ui.PrintWarning("Finishing the current batch before exit")
		r := <-runDone
		return r.summary, r.err
	}
}

// printFinalSummary prints the run summary unless an attached progress
// display already did so on RunCompleted. The dashboard clears the screen on
// exit, so the TUI path always ends up here.
func printFinalSummary(observers pipeline.MultiObserver, summary pipeline.Summary) {
	for _, o := range observers {
		if _, ok := o.(*ui.ProgressDisplay); ok {
			return
		}
	}
	ui.PrintSummary(summary)
}

// exitCode maps a command error to a process exit status
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}
