package fetcher

import (
	"time"

	"catalogfetch/pkg/catalog"
	"catalogfetch/pkg/models"
)

// Observer receives per-identifier events. Implementations must be safe for
// concurrent use since every in-flight fetch reports to the same observer.
type Observer interface {
	AttemptStarted(id string, attempt int)
	AttemptFinished(id string, attempt int, outcome catalog.Outcome, elapsed time.Duration)
	RetryScheduled(id string, attempt int, reason catalog.OutcomeKind, wait time.Duration)
	Finished(result models.Result)
}

// NopObserver ignores every event. Embed it to implement only some hooks.
type NopObserver struct{}

func (NopObserver) AttemptStarted(string, int)                                     {}
func (NopObserver) AttemptFinished(string, int, catalog.Outcome, time.Duration)    {}
func (NopObserver) RetryScheduled(string, int, catalog.OutcomeKind, time.Duration) {}
func (NopObserver) Finished(models.Result)                                         {}
