package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"catalogfetch/pkg/logger"
	"catalogfetch/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchFunc func(ctx context.Context, id string) models.Result

func (f fetchFunc) Fetch(ctx context.Context, id string) models.Result { return f(ctx, id) }

// gaugeFetcher tracks the peak number of concurrent calls
type gaugeFetcher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	fail     func(id string) bool
}

func (g *gaugeFetcher) Fetch(ctx context.Context, id string) models.Result {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(g.delay)

	if g.fail != nil && g.fail(id) {
		return models.FailedWith(id, "hard", "API returned status 404", 1)
	}
	return models.Succeeded(id, &models.ProductRecord{ID: id}, 1)
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%d", i+1)
	}
	return out
}

func TestRunBatchRespectsConcurrencyCap(t *testing.T) {
	f := &gaugeFetcher{delay: 5 * time.Millisecond}
	s := New(f, 4, logger.NewNopLogger())

	batch := s.RunBatch(context.Background(), ids(40))

	assert.Len(t, batch.Successes, 40)
	assert.LessOrEqual(t, f.peak.Load(), int32(4))
	assert.Equal(t, int32(4), f.peak.Load(), "cap should be reached with enough work")
	assert.Equal(t, int32(0), f.inFlight.Load())
}

func TestRunBatchPartitionCoversInput(t *testing.T) {
	f := &gaugeFetcher{fail: func(id string) bool { return len(id) == 2 && id[1] == '3' }}
	s := New(f, 8, logger.NewNopLogger())
	input := ids(50)

	batch := s.RunBatch(context.Background(), input)

	got := batch.IDs()
	assert.ElementsMatch(t, input, got, "every id exactly once")
	assert.Len(t, batch.Failures, 4) // 13, 23, 33, 43
	for _, failure := range batch.Failures {
		assert.Equal(t, "API returned status 404", failure.Error)
	}
	assert.Len(t, batch.Successes, 46)
	assert.Len(t, batch.SucceededIDs, 46)
}

func TestRunBatchEmpty(t *testing.T) {
	s := New(&gaugeFetcher{}, 3, logger.NewNopLogger())
	batch := s.RunBatch(context.Background(), nil)
	assert.Empty(t, batch.Successes)
	assert.Empty(t, batch.Failures)
}

func TestRunBatchWaitsForAllTasks(t *testing.T) {
	var done atomic.Int32
	f := fetchFunc(func(ctx context.Context, id string) models.Result {
		if id == "1" {
			time.Sleep(30 * time.Millisecond)
		}
		done.Add(1)
		return models.Succeeded(id, &models.ProductRecord{ID: id}, 1)
	})
	s := New(f, 10, logger.NewNopLogger())

	s.RunBatch(context.Background(), ids(5))
	assert.Equal(t, int32(5), done.Load())
}

func TestRunBatchPanicReleasesPermit(t *testing.T) {
	f := fetchFunc(func(ctx context.Context, id string) models.Result {
		if id == "2" {
			panic("decoder exploded")
		}
		return models.Succeeded(id, &models.ProductRecord{ID: id}, 1)
	})
	log := logger.NewTestLogger()
	s := New(f, 1, log)

	batch := s.RunBatch(context.Background(), ids(3))

	require.Len(t, batch.Failures, 1)
	assert.Equal(t, "2", batch.Failures[0].ID)
	assert.Contains(t, batch.Failures[0].Error, "decoder exploded")
	assert.Len(t, batch.Successes, 2, "later tasks still get the permit")
	assert.True(t, log.HasMessage("Fetch task panicked"))
}

func TestRunBatchCancelledContext(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	f := fetchFunc(func(ctx context.Context, id string) models.Result {
		if id == "1" {
			started.Done()
			<-release
		}
		return models.Succeeded(id, &models.ProductRecord{ID: id}, 1)
	})
	s := New(f, 1, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := make(chan models.BatchResult)
	go func() { resultCh <- s.RunBatch(ctx, ids(4)) }()

	started.Wait()
	cancel()
	// give waiters a moment to observe cancellation before the holder finishes
	time.Sleep(10 * time.Millisecond)
	close(release)

	batch := <-resultCh
	assert.ElementsMatch(t, ids(4), batch.IDs())
	assert.Contains(t, batch.SucceededIDs, "1")
	for _, failure := range batch.Failures {
		assert.Equal(t, "cancelled", failure.Reason)
	}
}

func TestNewDefaults(t *testing.T) {
	s := New(&gaugeFetcher{}, 0, nil)
	assert.Equal(t, DefaultConcurrency, s.Concurrency())
}
