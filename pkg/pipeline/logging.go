package pipeline

import (
	"time"

	"catalogfetch/pkg/catalog"
	"catalogfetch/pkg/logger"
	"catalogfetch/pkg/models"
)

// LoggingObserver writes pipeline events to a Logger
type LoggingObserver struct {
	logger logger.Logger
}

// NewLoggingObserver creates a LoggingObserver; nil uses the global logger
func NewLoggingObserver(log logger.Logger) *LoggingObserver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &LoggingObserver{logger: log}
}

func (o *LoggingObserver) AttemptStarted(id string, attempt int) {}

func (o *LoggingObserver) AttemptFinished(id string, attempt int, outcome catalog.Outcome, elapsed time.Duration) {
	if outcome.Kind == catalog.TransientFailure {
		o.logger.WithError(outcome.Err).DebugWithFields("Catalog request failed", map[string]interface{}{
			"product_id": id,
			"attempt":    attempt,
		})
		return
	}
	logger.LogRequest(o.logger, id, outcome.Status, elapsed)
}

func (o *LoggingObserver) RetryScheduled(id string, attempt int, reason catalog.OutcomeKind, wait time.Duration) {
	logger.LogRetry(o.logger, id, attempt, reason.String(), wait)
}

func (o *LoggingObserver) Finished(result models.Result) {
	if !result.Failed() {
		return
	}
	o.logger.WarnWithFields("Product fetch failed", map[string]interface{}{
		"product_id": result.ID,
		"reason":     result.Failure.Reason,
		"error":      result.Failure.Error,
		"attempts":   result.Attempts,
	})
}

func (o *LoggingObserver) BatchStarted(number, total, size int) {
	o.logger.DebugWithFields("Batch started", map[string]interface{}{
		"batch":   number,
		"batches": total,
		"size":    size,
	})
}

func (o *LoggingObserver) BatchCompleted(report BatchReport) {
	logger.LogBatchProgress(o.logger, report.Number, report.Total, report.Succeeded, report.Failed)
}

func (o *LoggingObserver) RunCompleted(summary Summary) {
	o.logger.InfoWithFields("Run completed", map[string]interface{}{
		"run_id":      summary.RunID,
		"ids":         summary.TotalIDs,
		"batches":     summary.BatchesCompleted,
		"succeeded":   summary.Succeeded,
		"failed":      summary.Failed,
		"duration":    summary.Duration,
		"interrupted": summary.Interrupted,
	})
}
