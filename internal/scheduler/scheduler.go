package scheduler

import (
	"context"
	"fmt"
	"sync"

	"catalogfetch/pkg/errors"
	"catalogfetch/pkg/logger"
	"catalogfetch/pkg/models"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the in-flight request cap used when none is given
const DefaultConcurrency = 150

// Fetcher resolves one identifier to a terminal result
type Fetcher interface {
	Fetch(ctx context.Context, id string) models.Result
}

// Scheduler fans a batch out to concurrent fetches under a fixed cap. The
// semaphore is shared by every batch the scheduler runs.
type Scheduler struct {
	fetcher     Fetcher
	sem         *semaphore.Weighted
	concurrency int
	logger      logger.Logger
}

// New creates a scheduler allowing at most concurrency fetches in flight
func New(fetcher Fetcher, concurrency int, log logger.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Scheduler{
		fetcher:     fetcher,
		sem:         semaphore.NewWeighted(int64(concurrency)),
		concurrency: concurrency,
		logger:      log,
	}
}

// Concurrency returns the in-flight cap
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// RunBatch launches one task per identifier and returns once every task is
// terminal. Each identifier yields exactly one result; the order within the
// partitions follows completion, not input.
func (s *Scheduler) RunBatch(ctx context.Context, ids []string) models.BatchResult {
	results := make(chan models.Result, len(ids))

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			results <- s.run(ctx, id)
		}(id)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var batch models.BatchResult
	for r := range results {
		batch.Add(r)
	}

	s.logger.DebugWithFields("Batch fetched", map[string]interface{}{
		"ids":       len(ids),
		"succeeded": len(batch.Successes),
		"failed":    len(batch.Failures),
	})
	return batch
}

// run holds a permit for the duration of one fetch
func (s *Scheduler) run(ctx context.Context, id string) (result models.Result) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return models.FailedWith(id, string(errors.ErrorTypeCancelled),
			fmt.Sprintf("%s: %v", errors.MsgCancelled, err), 0)
	}
	defer s.sem.Release(1)

	defer func() {
		if p := recover(); p != nil {
			s.logger.ErrorWithFields("Fetch task panicked", map[string]interface{}{
				"product_id": id,
				"panic":      fmt.Sprint(p),
			})
			result = models.FailedWith(id, "internal", fmt.Sprintf("Internal error: %v", p), 0)
		}
	}()

	return s.fetcher.Fetch(ctx, id)
}
