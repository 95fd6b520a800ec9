package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"catalogfetch/pkg/checkpoint"
	"catalogfetch/pkg/config"
	"catalogfetch/pkg/logger"
	"catalogfetch/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// catalogServer serves /products/{id}. Ids in notFound get 404, ids in
// throttled get one 429 before succeeding.
type catalogServer struct {
	mu        sync.Mutex
	notFound  map[string]bool
	throttled map[string]bool
	hits      map[string]int
}

func newCatalogServer(t *testing.T, notFound, throttled []string) (*catalogServer, *httptest.Server) {
	cs := &catalogServer{
		notFound:  make(map[string]bool),
		throttled: make(map[string]bool),
		hits:      make(map[string]int),
	}
	for _, id := range notFound {
		cs.notFound[id] = true
	}
	for _, id := range throttled {
		cs.throttled[id] = true
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/products/")

		cs.mu.Lock()
		cs.hits[id]++
		hits := cs.hits[id]
		cs.mu.Unlock()

		switch {
		case cs.notFound[id]:
			w.WriteHeader(http.StatusNotFound)
		case cs.throttled[id] && hits == 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id": %s, "name": "Product %s", "url_key": "p-%s", "price": 1000,
				"description": "<p>Item <b>%s</b></p>", "images": [{"base_url": "https://img/%s.jpg"}]}`, id, id, id, id, id)
		}
	}))
	t.Cleanup(srv.Close)
	return cs, srv
}

func (cs *catalogServer) hitCount(id string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.hits[id]
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL + "/products/{id}"
	cfg.API.Timeout = 5 * time.Second
	cfg.Pipeline.BatchSize = 4
	cfg.Pipeline.Concurrency = 3
	cfg.Pipeline.BackoffBase = time.Millisecond
	cfg.Output.Directory = t.TempDir()
	return cfg
}

func numberedIDs(from, to int) []string {
	var ids []string
	for i := from; i <= to; i++ {
		ids = append(ids, fmt.Sprintf("%d", i))
	}
	return ids
}

func readRecords(t *testing.T, path string) []models.ProductRecord {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []models.ProductRecord
	require.NoError(t, json.Unmarshal(data, &records))
	return records
}

func TestPipelineEndToEnd(t *testing.T) {
	cs, srv := newCatalogServer(t, []string{"5"}, []string{"8"})
	cfg := testConfig(t, srv.URL)

	p, err := New(cfg, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), numberedIDs(1, 10), RunOptions{Resume: true})
	require.NoError(t, err)

	assert.Equal(t, 9, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 2, cs.hitCount("8"), "rate-limited id is retried once")
	assert.Equal(t, 1, cs.hitCount("5"), "hard failure is not retried")

	var written []string
	for i := 1; i <= 3; i++ {
		for _, r := range readRecords(t, filepath.Join(cfg.Output.Directory, fmt.Sprintf("products_%d.json", i))) {
			written = append(written, r.ID)
		}
	}
	sort.Strings(written)
	assert.Equal(t, []string{"1", "10", "2", "3", "4", "6", "7", "8", "9"}, written)

	first := readRecords(t, filepath.Join(cfg.Output.Directory, "products_1.json"))
	require.NotEmpty(t, first)
	assert.Equal(t, "Item "+first[0].ID, first[0].Description)
	assert.Equal(t, []string{"https://img/" + first[0].ID + ".jpg"}, first[0].ImagesURL)

	data, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "errors.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": "5", "error": "API returned status 404"}]`, string(data))

	state := checkpoint.NewStore(cfg.CheckpointPath(), logger.NewNopLogger()).Load()
	processed := append([]string(nil), state.ProcessedIDs...)
	sort.Strings(processed)
	assert.Equal(t, written, processed)
	assert.Equal(t, summary.RunID, state.RunID)
}

func TestPipelineEndToEndSingleDefaultBatch(t *testing.T) {
	_, srv := newCatalogServer(t, []string{"5"}, []string{"8"})
	cfg := testConfig(t, srv.URL)
	cfg.Pipeline.BatchSize = config.DefaultConfig().Pipeline.BatchSize

	p, err := New(cfg, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), numberedIDs(1, 10), RunOptions{Resume: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 9, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Files, 1)
	assert.Equal(t, filepath.Join(cfg.Output.Directory, "products_1.json"), summary.Files[0])

	_, err = os.Stat(filepath.Join(cfg.Output.Directory, "products_2.json"))
	assert.True(t, os.IsNotExist(err))

	records := readRecords(t, summary.Files[0])
	require.Len(t, records, 9)
	var written []string
	for _, r := range records {
		assert.True(t, r.NumericID)
		written = append(written, r.ID)
	}
	sort.Strings(written)
	assert.Equal(t, []string{"1", "10", "2", "3", "4", "6", "7", "8", "9"}, written)

	state := checkpoint.NewStore(cfg.CheckpointPath(), logger.NewNopLogger()).Load()
	processed := append([]string(nil), state.ProcessedIDs...)
	sort.Strings(processed)
	assert.Equal(t, written, processed)
}

func TestPipelineResumeSkipsProcessed(t *testing.T) {
	cs, srv := newCatalogServer(t, nil, nil)
	cfg := testConfig(t, srv.URL)

	p, err := New(cfg, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), numberedIDs(1, 4), RunOptions{Resume: true})
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), numberedIDs(1, 6), RunOptions{Resume: true})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Skipped)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, cs.hitCount("1"), "processed ids are not fetched again")

	// new output continues after the existing file
	second := readRecords(t, filepath.Join(cfg.Output.Directory, "products_2.json"))
	assert.Len(t, second, 2)
}

func TestPipelineForceRestart(t *testing.T) {
	cs, srv := newCatalogServer(t, nil, nil)
	cfg := testConfig(t, srv.URL)

	p, err := New(cfg, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), numberedIDs(1, 2), RunOptions{Resume: true})
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), numberedIDs(1, 2), RunOptions{Resume: true, ForceRestart: true})
	require.NoError(t, err)

	assert.Zero(t, summary.Skipped)
	assert.Equal(t, 2, cs.hitCount("1"))
}

func TestPipelineReconcileFromOutputFiles(t *testing.T) {
	cs, srv := newCatalogServer(t, nil, nil)
	cfg := testConfig(t, srv.URL)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Output.Directory, "products_1.json"),
		[]byte(`[{"id": "1"}, {"id": 2}]`), 0644))

	p, err := New(cfg, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), numberedIDs(1, 3), RunOptions{Resume: true, Reconcile: true})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, cs.hitCount("1"))
	assert.Equal(t, 1, cs.hitCount("3"))
	assert.Len(t, readRecords(t, filepath.Join(cfg.Output.Directory, "products_2.json")), 1)
}

func TestPipelineLimit(t *testing.T) {
	_, srv := newCatalogServer(t, nil, nil)
	cfg := testConfig(t, srv.URL)

	p, err := New(cfg, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), numberedIDs(1, 10), RunOptions{Limit: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalIDs)
	assert.Equal(t, 3, summary.Succeeded)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Pipeline.Concurrency = 0

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
