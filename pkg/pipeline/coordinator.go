package pipeline

import (
	"context"
	"time"

	"catalogfetch/pkg/checkpoint"
	"catalogfetch/pkg/errors"
	"catalogfetch/pkg/logger"
	"catalogfetch/pkg/models"

	"github.com/google/uuid"
)

// BatchRunner fetches one batch and returns once every identifier is terminal
type BatchRunner interface {
	RunBatch(ctx context.Context, ids []string) models.BatchResult
}

// BatchRunnerFunc adapts a function to BatchRunner
type BatchRunnerFunc func(ctx context.Context, ids []string) models.BatchResult

func (f BatchRunnerFunc) RunBatch(ctx context.Context, ids []string) models.BatchResult {
	return f(ctx, ids)
}

// BatchWriter persists batch output
type BatchWriter interface {
	WriteBatch(index int, records []models.ProductRecord) (string, error)
	WriteErrors(failures []models.FetchFailure) (string, error)
	MaxBatchIndex() int
}

// CheckpointSaver persists the processed-id state
type CheckpointSaver interface {
	Save(state *checkpoint.State) error
}

// BatchReport describes one finished batch
type BatchReport struct {
	Number          int
	Total           int
	FileIndex       int
	Size            int
	Succeeded       int
	Failed          int
	File            string
	Duration        time.Duration
	WriteError      error
	CheckpointError error
}

// Summary describes a whole run
type Summary struct {
	RunID            string
	TotalIDs         int
	Skipped          int
	Batches          int
	BatchesCompleted int
	Succeeded        int
	Failed           int
	Cancelled        int
	WriteErrors      int
	CheckpointErrors int
	Files            []string
	ErrorsFile       string
	Duration         time.Duration
	Interrupted      bool
}

// Coordinator drives batches sequentially: fetch, write, checkpoint
type Coordinator struct {
	runner   BatchRunner
	writer   BatchWriter
	store    CheckpointSaver
	state    *checkpoint.State
	observer Observer
	logger   logger.Logger
	runID    string
	skipped  int
}

// CoordinatorOptions holds the optional collaborators
type CoordinatorOptions struct {
	Observer Observer
	Logger   logger.Logger
	RunID    string
	// Skipped is the number of ids filtered out by the checkpoint before Run
	Skipped int
}

// NewCoordinator creates a coordinator. state is owned by the coordinator
// from here on and is appended to after every batch.
func NewCoordinator(runner BatchRunner, writer BatchWriter, store CheckpointSaver, state *checkpoint.State, opts CoordinatorOptions) *Coordinator {
	if state == nil {
		state = checkpoint.NewState()
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	return &Coordinator{
		runner:   runner,
		writer:   writer,
		store:    store,
		state:    state,
		observer: opts.Observer,
		logger:   opts.Logger.WithField("run_id", opts.RunID),
		runID:    opts.RunID,
		skipped:  opts.Skipped,
	}
}

// RunID returns the identifier stamped on logs and the checkpoint
func (c *Coordinator) RunID() string {
	return c.runID
}

// State returns the checkpoint state the coordinator maintains
func (c *Coordinator) State() *checkpoint.State {
	return c.state
}

// Split cuts ids into consecutive batches of size; the last may be shorter
func Split(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

// Run processes ids in batches of batchSize. Per-identifier failures and
// storage problems never abort the run; the only error returned is the
// context's, when cancellation stopped it before every batch ran.
func (c *Coordinator) Run(ctx context.Context, ids []string, batchSize int) (Summary, error) {
	start := time.Now()
	batches := Split(ids, batchSize)
	offset := c.writer.MaxBatchIndex()

	summary := Summary{
		RunID:    c.runID,
		TotalIDs: len(ids),
		Skipped:  c.skipped,
		Batches:  len(batches),
	}

	c.logger.InfoWithFields("Run started", map[string]interface{}{
		"ids":        len(ids),
		"batches":    len(batches),
		"batch_size": batchSize,
		"first_file": offset + 1,
	})

	var failures []models.FetchFailure
	for i, batch := range batches {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		report := c.runBatch(ctx, i+1, len(batches), offset+i+1, batch)
		failures = append(failures, report.failures...)

		summary.BatchesCompleted++
		summary.Succeeded += report.Succeeded
		summary.Failed += report.Failed
		if report.File != "" {
			summary.Files = append(summary.Files, report.File)
		}
		if report.WriteError != nil {
			summary.WriteErrors++
		}
		if report.CheckpointError != nil {
			summary.CheckpointErrors++
		}

		c.observer.BatchCompleted(report.BatchReport)
	}

	for _, f := range failures {
		if f.Reason == string(errors.ErrorTypeCancelled) {
			summary.Cancelled++
		}
	}

	if len(failures) > 0 {
		path, err := c.writer.WriteErrors(failures)
		if err != nil {
			c.logger.WithError(err).ErrorWithFields("Failed to write errors file", map[string]interface{}{
				"failures": len(failures),
			})
		} else {
			summary.ErrorsFile = path
		}
	}

	if ctx.Err() != nil && summary.BatchesCompleted < len(batches) {
		summary.Interrupted = true
	}
	summary.Duration = time.Since(start)
	c.observer.RunCompleted(summary)

	if summary.Interrupted {
		return summary, ctx.Err()
	}
	return summary, nil
}

type batchOutcome struct {
	BatchReport
	failures []models.FetchFailure
}

func (c *Coordinator) runBatch(ctx context.Context, number, total, fileIndex int, ids []string) batchOutcome {
	start := time.Now()
	c.observer.BatchStarted(number, total, len(ids))

	result := c.runner.RunBatch(ctx, ids)

	out := batchOutcome{
		BatchReport: BatchReport{
			Number:    number,
			Total:     total,
			FileIndex: fileIndex,
			Size:      len(ids),
			Succeeded: len(result.Successes),
			Failed:    len(result.Failures),
		},
		failures: result.Failures,
	}

	// empty batches produce no file
	if len(result.Successes) > 0 {
		path, err := c.writer.WriteBatch(fileIndex, result.Successes)
		if err != nil {
			// records not on disk must not enter the checkpoint
			c.logger.WithError(err).ErrorWithFields("Failed to write batch", map[string]interface{}{
				"batch": number,
				"file":  fileIndex,
			})
			out.WriteError = err
		} else {
			out.File = path
			c.state.Add(result.SucceededIDs...)
		}
	}

	c.state.RunID = c.runID
	if err := c.store.Save(c.state); err != nil {
		c.logger.WithError(err).ErrorWithFields("Failed to save checkpoint", map[string]interface{}{
			"batch":     number,
			"processed": c.state.Len(),
		})
		out.CheckpointError = err
	}

	out.Duration = time.Since(start)
	return out
}
