package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"catalogfetch/pkg/catalog"
	"catalogfetch/pkg/models"
	"catalogfetch/pkg/pipeline"
)

// ProgressDisplay prints a single updating progress line per batch and a
// summary at the end of the run. It implements pipeline.Observer.
type ProgressDisplay struct {
	pipeline.NopObserver

	mu           sync.Mutex
	totalIDs     int
	batch        int
	totalBatches int
	batchSize    int
	batchDone    int
	succeeded    int
	failed       int
	rateLimited  int
	startTime    time.Time
	lastPrint    time.Time
	minInterval  time.Duration
	isDebug      bool
}

// NewProgressDisplay creates a display for a run over totalIDs identifiers.
// In debug mode the updating line is suppressed, since log lines would
// interleave with it.
func NewProgressDisplay(totalIDs int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		totalIDs:    totalIDs,
		startTime:   time.Now(),
		minInterval: 100 * time.Millisecond,
		isDebug:     debug,
	}
}

func (p *ProgressDisplay) AttemptFinished(id string, attempt int, outcome catalog.Outcome, elapsed time.Duration) {
	if outcome.Kind != catalog.RateLimited {
		return
	}
	p.mu.Lock()
	p.rateLimited++
	p.mu.Unlock()
}

func (p *ProgressDisplay) Finished(result models.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.batchDone++
	if result.Failed() {
		p.failed++
	} else {
		p.succeeded++
	}

	if !p.isDebug && time.Since(p.lastPrint) >= p.minInterval {
		p.printProgress()
	}
}

func (p *ProgressDisplay) BatchStarted(number, total, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.batch = number
	p.totalBatches = total
	p.batchSize = size
	p.batchDone = 0
}

func (p *ProgressDisplay) BatchCompleted(report pipeline.BatchReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isDebug {
		p.printProgress()
	}

	status := Green("✓")
	if report.WriteError != nil || report.CheckpointError != nil {
		status = Red("✗")
	}
	line := fmt.Sprintf("%s batch %d/%d • %d ok • %d failed • %s",
		status, report.Number, report.Total, report.Succeeded, report.Failed, FormatDuration(report.Duration))
	if report.WriteError != nil {
		line += " • " + Red("write failed: "+report.WriteError.Error())
	}
	if report.CheckpointError != nil {
		line += " • " + Red("checkpoint failed: "+report.CheckpointError.Error())
	}
	fmt.Fprintf(output, "\n%s\n", line)
}

func (p *ProgressDisplay) RunCompleted(summary pipeline.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	PrintSummary(summary)
}

// printProgress prints the minimal progress line. Callers hold p.mu.
func (p *ProgressDisplay) printProgress() {
	p.lastPrint = time.Now()
	elapsed := time.Since(p.startTime)
	done := p.succeeded + p.failed

	line := fmt.Sprintf("%s %d/%d [%s] %d/%d • %d ok • %.1f/s • ETA %s",
		Cyan("batch"),
		p.batch,
		p.totalBatches,
		RenderBar(p.batchDone, p.batchSize),
		p.batchDone,
		p.batchSize,
		p.succeeded,
		Rate(done, elapsed),
		ETA(done, p.totalIDs-done, elapsed),
	)
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}
	if p.rateLimited > 0 {
		line += " • " + Yellow(fmt.Sprintf("%d throttled", p.rateLimited))
	}

	fmt.Fprintf(output, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// PrintSummary prints the result of a run
func PrintSummary(summary pipeline.Summary) {
	mark := Green("✓")
	if summary.Interrupted {
		mark = Yellow("⚠")
	}
	fmt.Fprintf(output, "\n%s Fetched %d of %d products in %d/%d batches\n",
		mark, summary.Succeeded, summary.TotalIDs, summary.BatchesCompleted, summary.Batches)

	fmt.Fprintf(output, "  %s %s (%.1f products/s)\n",
		Dim("•"), FormatDuration(summary.Duration), Rate(summary.Succeeded+summary.Failed, summary.Duration))
	if summary.Skipped > 0 {
		fmt.Fprintf(output, "  %s %d already processed, skipped\n", Dim("•"), summary.Skipped)
	}
	if summary.Failed > 0 {
		fmt.Fprintf(output, "  %s %s\n", Dim("•"), Red(fmt.Sprintf("%d failed, see %s", summary.Failed, summary.ErrorsFile)))
	}
	if summary.Cancelled > 0 {
		fmt.Fprintf(output, "  %s %d cancelled, will be retried on resume\n", Dim("•"), summary.Cancelled)
	}
	if summary.WriteErrors > 0 || summary.CheckpointErrors > 0 {
		fmt.Fprintf(output, "  %s %s\n", Dim("•"),
			Red(fmt.Sprintf("%d batch write errors, %d checkpoint errors", summary.WriteErrors, summary.CheckpointErrors)))
	}
	if summary.Interrupted {
		fmt.Fprintf(output, "  %s %s\n", Dim("•"), Yellow("interrupted, rerun with --resume to continue"))
	}
}
