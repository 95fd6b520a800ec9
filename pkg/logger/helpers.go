package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs catalog HTTP request information
func LogRequest(l Logger, id string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"product_id":  id,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("Catalog request completed", fields)
	case statusCode == 429:
		l.WarnWithFields("Catalog request rate limited", fields)
	case statusCode >= 500:
		l.ErrorWithFields("Catalog request server error", fields)
	default:
		l.WarnWithFields("Catalog request rejected", fields)
	}
}

// LogRetry logs a scheduled retry for one identifier
func LogRetry(l Logger, id string, attempt int, kind string, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"product_id": id,
		"attempt":    attempt,
		"kind":       kind,
		"wait":       wait,
	}).Debug("Retrying product fetch")
}

// LogBatchProgress logs the completion of one batch
func LogBatchProgress(l Logger, batch, totalBatches, succeeded, failed int) {
	l.WithFields(map[string]interface{}{
		"batch":     batch,
		"batches":   totalBatches,
		"succeeded": succeeded,
		"failed":    failed,
	}).Info("Batch completed")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l = l.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
