package fetcher

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"catalogfetch/pkg/catalog"
	"catalogfetch/pkg/config"
	errs "catalogfetch/pkg/errors"
	"catalogfetch/pkg/models"
	"catalogfetch/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient replays outcomes in order, repeating the last one
type scriptedClient struct {
	mu       sync.Mutex
	outcomes []catalog.Outcome
	calls    int
}

func (c *scriptedClient) Fetch(ctx context.Context, id string) catalog.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.outcomes) {
		i = len(c.outcomes) - 1
	}
	c.calls++
	return c.outcomes[i]
}

type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

type recordingObserver struct {
	NopObserver
	mu       sync.Mutex
	started  int
	retries  []catalog.OutcomeKind
	finished []models.Result
}

func (o *recordingObserver) AttemptStarted(id string, attempt int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) RetryScheduled(id string, attempt int, reason catalog.OutcomeKind, wait time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries = append(o.retries, reason)
}

func (o *recordingObserver) Finished(r models.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, r)
}

func success(body string) catalog.Outcome {
	return catalog.Outcome{Kind: catalog.Success, Status: http.StatusOK, Body: []byte(body)}
}

func transient() catalog.Outcome {
	return catalog.Outcome{Kind: catalog.TransientFailure, Err: errors.New("connection reset")}
}

func rateLimited(d time.Duration) catalog.Outcome {
	return catalog.Outcome{Kind: catalog.RateLimited, Status: http.StatusTooManyRequests, RetryAfter: d}
}

func newTestFetcher(client Client, sleep *recordingSleep, obs Observer) *Fetcher {
	return New(client, Config{
		MaxAttempts: 5,
		Backoff:     retry.NewExponentialBackoff(time.Second, 0),
		Sleep:       sleep.sleep,
		Observer:    obs,
	})
}

func TestFetchSuccessFirstAttempt(t *testing.T) {
	client := &scriptedClient{outcomes: []catalog.Outcome{
		success(`{"id": 7, "name": "Lamp", "images": [{"base_url": "a"}, {"x": 1}]}`),
	}}
	sleep := &recordingSleep{}
	obs := &recordingObserver{}

	r := newTestFetcher(client, sleep, obs).Fetch(context.Background(), "7")

	require.False(t, r.Failed())
	assert.Equal(t, "7", r.Record.ID)
	assert.Equal(t, []string{"a"}, r.Record.ImagesURL)
	assert.Equal(t, 1, r.Attempts)
	assert.Empty(t, sleep.delays)
	assert.Equal(t, 1, obs.started)
	require.Len(t, obs.finished, 1)
	assert.Equal(t, "7", obs.finished[0].ID)
}

func TestFetchTransientExhaustsBudget(t *testing.T) {
	client := &scriptedClient{outcomes: []catalog.Outcome{transient()}}
	sleep := &recordingSleep{}

	r := newTestFetcher(client, sleep, nil).Fetch(context.Background(), "9")

	require.True(t, r.Failed())
	assert.Equal(t, errs.MsgMaxRetriesExceeded, r.Failure.Error)
	assert.Equal(t, string(errs.ErrorTypeRetriesExhausted), r.Failure.Reason)
	assert.Equal(t, 5, client.calls, "exactly max attempts")
	assert.Equal(t, 5, r.Attempts)
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
	}, sleep.delays, "no sleep after the final attempt")
}

func TestFetchHardFailureStopsImmediately(t *testing.T) {
	client := &scriptedClient{outcomes: []catalog.Outcome{
		{Kind: catalog.HardFailure, Status: http.StatusNotFound},
	}}
	sleep := &recordingSleep{}

	r := newTestFetcher(client, sleep, nil).Fetch(context.Background(), "404")

	require.True(t, r.Failed())
	assert.Equal(t, "API returned status 404", r.Failure.Error)
	assert.Equal(t, "404", r.Failure.ID)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, sleep.delays)
}

func TestFetchRateLimitDoesNotAdvanceBackoff(t *testing.T) {
	client := &scriptedClient{outcomes: []catalog.Outcome{
		transient(),
		rateLimited(7 * time.Second),
		rateLimited(3 * time.Second),
		transient(),
		success(`{"id": "1"}`),
	}}
	sleep := &recordingSleep{}
	obs := &recordingObserver{}

	r := newTestFetcher(client, sleep, obs).Fetch(context.Background(), "1")

	require.False(t, r.Failed())
	assert.Equal(t, 5, r.Attempts)
	assert.Equal(t, []time.Duration{
		1 * time.Second, // first transient
		7 * time.Second, // server-suggested
		3 * time.Second,
		2 * time.Second, // second transient continues the schedule
	}, sleep.delays)
	assert.Equal(t, []catalog.OutcomeKind{
		catalog.TransientFailure, catalog.RateLimited, catalog.RateLimited, catalog.TransientFailure,
	}, obs.retries)
}

func TestFetchRateLimitCountsTowardBudget(t *testing.T) {
	client := &scriptedClient{outcomes: []catalog.Outcome{rateLimited(time.Second)}}
	sleep := &recordingSleep{}

	r := newTestFetcher(client, sleep, nil).Fetch(context.Background(), "1")

	require.True(t, r.Failed())
	assert.Equal(t, errs.MsgMaxRetriesExceeded, r.Failure.Error)
	assert.Equal(t, 5, client.calls)
	assert.Len(t, sleep.delays, 4)
}

func TestFetchRateLimitThenSuccess(t *testing.T) {
	client := &scriptedClient{outcomes: []catalog.Outcome{
		rateLimited(4 * time.Second),
		success(`{"id": 10}`),
	}}
	sleep := &recordingSleep{}

	r := newTestFetcher(client, sleep, nil).Fetch(context.Background(), "10")

	require.False(t, r.Failed())
	assert.Equal(t, 2, r.Attempts)
	assert.Equal(t, []time.Duration{4 * time.Second}, sleep.delays)
}

func TestFetchMissingIDIsFailure(t *testing.T) {
	client := &scriptedClient{outcomes: []catalog.Outcome{success(`{"name": "ghost"}`)}}

	r := newTestFetcher(client, &recordingSleep{}, nil).Fetch(context.Background(), "5")

	require.True(t, r.Failed())
	assert.Equal(t, errs.MsgMissingID, r.Failure.Error)
	assert.Equal(t, string(errs.ErrorTypeInvalidPayload), r.Failure.Reason)
	assert.Equal(t, 1, client.calls)
}

func TestFetchMalformedPayloadIsFailure(t *testing.T) {
	client := &scriptedClient{outcomes: []catalog.Outcome{success(`<html>`)}}

	r := newTestFetcher(client, &recordingSleep{}, nil).Fetch(context.Background(), "5")

	require.True(t, r.Failed())
	assert.Contains(t, r.Failure.Error, "Invalid JSON payload")
}

func TestFetchSleepCancelled(t *testing.T) {
	client := &scriptedClient{outcomes: []catalog.Outcome{transient()}}
	sleep := &recordingSleep{err: context.Canceled}

	r := newTestFetcher(client, sleep, nil).Fetch(context.Background(), "3")

	require.True(t, r.Failed())
	assert.Equal(t, string(errs.ErrorTypeCancelled), r.Failure.Reason)
	assert.Contains(t, r.Failure.Error, errs.MsgCancelled)
	assert.Equal(t, 1, client.calls)
}

func TestFetchContextAlreadyCancelled(t *testing.T) {
	client := &scriptedClient{outcomes: []catalog.Outcome{success(`{"id": 1}`)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestFetcher(client, &recordingSleep{}, nil).Fetch(ctx, "1")

	require.True(t, r.Failed())
	assert.Equal(t, string(errs.ErrorTypeCancelled), r.Failure.Reason)
	assert.Equal(t, 0, client.calls)
}

func TestFetchDefaultsApplied(t *testing.T) {
	f := New(&scriptedClient{outcomes: []catalog.Outcome{success(`{"id": 1}`)}}, Config{})
	assert.Equal(t, 5, f.maxAttempts)
	assert.NotNil(t, f.backoff)
	assert.NotNil(t, f.sleep)
	assert.NotNil(t, f.observer)
}

func TestFetchAgainstHTTPServer(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	server := newScriptedServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		n := hits[r.URL.Path]
		mu.Unlock()

		if r.URL.Path == "/p/flaky" && n == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id": "flaky", "description": "<b>ok</b>"}`))
	})

	client := catalog.NewClient(config.APIConfig{BaseURL: server + "/p/{id}", Timeout: time.Second})
	sleep := &recordingSleep{}
	r := newTestFetcher(client, sleep, nil).Fetch(context.Background(), "flaky")

	require.False(t, r.Failed())
	assert.Equal(t, "ok", r.Record.Description)
	assert.Equal(t, []time.Duration{time.Second}, sleep.delays)
	assert.Equal(t, 2, hits["/p/flaky"])
}
