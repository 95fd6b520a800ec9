package pipeline

import (
	"time"

	"catalogfetch/pkg/catalog"
	"catalogfetch/pkg/fetcher"
	"catalogfetch/pkg/models"
)

// Observer receives fetch events plus batch and run milestones
type Observer interface {
	fetcher.Observer
	BatchStarted(number, total, size int)
	BatchCompleted(report BatchReport)
	RunCompleted(summary Summary)
}

// NopObserver ignores every event. Embed it to implement only some hooks.
type NopObserver struct {
	fetcher.NopObserver
}

func (NopObserver) BatchStarted(int, int, int) {}
func (NopObserver) BatchCompleted(BatchReport) {}
func (NopObserver) RunCompleted(Summary)       {}

// MultiObserver fans every event out to each observer in order
type MultiObserver []Observer

func (m MultiObserver) AttemptStarted(id string, attempt int) {
	for _, o := range m {
		o.AttemptStarted(id, attempt)
	}
}

func (m MultiObserver) AttemptFinished(id string, attempt int, outcome catalog.Outcome, elapsed time.Duration) {
	for _, o := range m {
		o.AttemptFinished(id, attempt, outcome, elapsed)
	}
}

func (m MultiObserver) RetryScheduled(id string, attempt int, reason catalog.OutcomeKind, wait time.Duration) {
	for _, o := range m {
		o.RetryScheduled(id, attempt, reason, wait)
	}
}

func (m MultiObserver) Finished(result models.Result) {
	for _, o := range m {
		o.Finished(result)
	}
}

func (m MultiObserver) BatchStarted(number, total, size int) {
	for _, o := range m {
		o.BatchStarted(number, total, size)
	}
}

func (m MultiObserver) BatchCompleted(report BatchReport) {
	for _, o := range m {
		o.BatchCompleted(report)
	}
}

func (m MultiObserver) RunCompleted(summary Summary) {
	for _, o := range m {
		o.RunCompleted(summary)
	}
}
