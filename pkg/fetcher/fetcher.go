package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"catalogfetch/pkg/catalog"
	"catalogfetch/pkg/errors"
	"catalogfetch/pkg/models"
	"catalogfetch/pkg/retry"
)

// Client performs one catalog request per call
type Client interface {
	Fetch(ctx context.Context, id string) catalog.Outcome
}

// Config holds the retry policy
type Config struct {
	// MaxAttempts bounds the number of requests per identifier
	MaxAttempts int
	// Backoff computes transient-failure delays; rate-limit waits bypass it
	Backoff retry.BackoffStrategy
	// Sleep pauses between attempts; defaults to retry.Wait
	Sleep retry.SleepFunc
	// Observer receives attempt events; defaults to NopObserver
	Observer Observer
}

// DefaultConfig returns five attempts with a 1s doubling backoff
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		Backoff:     retry.NewExponentialBackoff(time.Second, 0),
	}
}

// Fetcher turns catalog outcomes into terminal per-identifier results
type Fetcher struct {
	client      Client
	maxAttempts int
	backoff     retry.BackoffStrategy
	sleep       retry.SleepFunc
	observer    Observer
}

// New creates a Fetcher around client
func New(client Client, cfg Config) *Fetcher {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Backoff == nil {
		cfg.Backoff = def.Backoff
	}
	if cfg.Sleep == nil {
		cfg.Sleep = retry.Wait
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}

	return &Fetcher{
		client:      client,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		sleep:       cfg.Sleep,
		observer:    cfg.Observer,
	}
}

// Fetch retrieves one product. It never returns an error: every outcome,
// including cancellation, is folded into the Result.
func (f *Fetcher) Fetch(ctx context.Context, id string) models.Result {
	result := f.fetch(ctx, id)
	f.observer.Finished(result)
	return result
}

func (f *Fetcher) fetch(ctx context.Context, id string) models.Result {
	transientFailures := 0

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return cancelled(id, err, attempt-1)
		}

		f.observer.AttemptStarted(id, attempt)
		start := time.Now()
		outcome := f.client.Fetch(ctx, id)
		f.observer.AttemptFinished(id, attempt, outcome, time.Since(start))

		var wait time.Duration
		switch outcome.Kind {
		case catalog.Success:
			record, err := catalog.ParseProduct(outcome.Body)
			if err != nil {
				return models.FailedWith(id, string(errors.ErrorTypeInvalidPayload), payloadMessage(err), attempt)
			}
			return models.Succeeded(id, record, attempt)

		case catalog.HardFailure:
			return models.FailedWith(id, string(errors.ErrorTypeHard), errors.HardStatusMessage(outcome.Status), attempt)

		case catalog.RateLimited:
			wait = outcome.RetryAfter

		default:
			// a request torn down by cancellation is not a transient fault
			if err := ctx.Err(); err != nil {
				return cancelled(id, err, attempt)
			}
			wait = f.backoff.NextDelay(transientFailures)
			transientFailures++
		}

		if attempt == f.maxAttempts {
			break
		}

		f.observer.RetryScheduled(id, attempt, outcome.Kind, wait)
		if err := f.sleep(ctx, wait); err != nil {
			return cancelled(id, err, attempt)
		}
	}

	return models.FailedWith(id, string(errors.ErrorTypeRetriesExhausted), errors.MsgMaxRetriesExceeded, f.maxAttempts)
}

func cancelled(id string, cause error, attempts int) models.Result {
	return models.FailedWith(id, string(errors.ErrorTypeCancelled), fmt.Sprintf("%s: %v", errors.MsgCancelled, cause), attempts)
}

func payloadMessage(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
