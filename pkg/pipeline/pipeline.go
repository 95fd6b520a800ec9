package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"catalogfetch/internal/scheduler"
	"catalogfetch/pkg/catalog"
	"catalogfetch/pkg/checkpoint"
	"catalogfetch/pkg/config"
	"catalogfetch/pkg/fetcher"
	"catalogfetch/pkg/logger"
	"catalogfetch/pkg/ratelimit"
	"catalogfetch/pkg/retry"
	"catalogfetch/pkg/storage"
)

// Pipeline wires every component of a fetch run from a Config
type Pipeline struct {
	config    *config.Config
	client    *catalog.Client
	fetcher   *fetcher.Fetcher
	scheduler *scheduler.Scheduler
	storage   *storage.Manager
	store     *checkpoint.Store
	observer  Observer
	logger    logger.Logger
}

// RunOptions controls how the checkpoint is treated before a run
type RunOptions struct {
	Resume       bool
	ForceRestart bool
	Reconcile    bool
	Limit        int
	RunID        string
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithObserver sets the observer that receives fetch, batch and run events
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// WithLogger sets the logger used by the pipeline components
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithHTTPClient replaces the HTTP client of the catalog client
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Pipeline) {
		p.client = newClient(p.config, catalog.WithHTTPClient(hc))
	}
}

// New creates a Pipeline from cfg
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p := &Pipeline{
		config:   cfg,
		client:   newClient(cfg),
		observer: NopObserver{},
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	mgr, err := storage.NewManager(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output directory: %w", err)
	}
	p.storage = mgr
	p.store = checkpoint.NewStore(cfg.CheckpointPath(), p.logger)

	p.fetcher = fetcher.New(p.client, fetcher.Config{
		MaxAttempts: cfg.Pipeline.MaxAttempts,
		Backoff:     retry.NewExponentialBackoff(cfg.Pipeline.BackoffBase, cfg.Pipeline.MaxBackoff),
		Observer:    p.observer,
	})
	p.scheduler = scheduler.New(p.fetcher, cfg.Pipeline.Concurrency, p.logger)

	logger.LogComponentStart(p.logger, "pipeline", map[string]interface{}{
		"base_url":    cfg.API.BaseURL,
		"batch_size":  cfg.Pipeline.BatchSize,
		"concurrency": cfg.Pipeline.Concurrency,
		"attempts":    cfg.Pipeline.MaxAttempts,
		"output":      mgr.GetOutputDir(),
		"checkpoint":  p.store.Path(),
	})

	return p, nil
}

func newClient(cfg *config.Config, extra ...catalog.Option) *catalog.Client {
	opts := []catalog.Option{
		catalog.WithRateLimitFallback(cfg.Pipeline.RateLimitFallbackMin, cfg.Pipeline.RateLimitFallbackMax),
	}
	if bucket := ratelimit.PerMinute(cfg.Pipeline.RequestsPerMinute); bucket != nil {
		opts = append(opts, catalog.WithPacer(bucket))
	}
	opts = append(opts, extra...)
	return catalog.NewClient(cfg.API, opts...)
}

// Storage returns the output manager
func (p *Pipeline) Storage() *storage.Manager {
	return p.storage
}

// Checkpoint returns the checkpoint store
func (p *Pipeline) Checkpoint() *checkpoint.Store {
	return p.store
}

// Reconcile merges the ids found in existing batch files into state and
// returns how many were new
func (p *Pipeline) Reconcile(state *checkpoint.State) (int, error) {
	ids, skipped, err := p.storage.ScanProcessedIDs()
	if err != nil {
		return 0, fmt.Errorf("failed to scan output files: %w", err)
	}
	for _, path := range skipped {
		p.logger.WarnWithFields("Skipping unreadable batch file", map[string]interface{}{
			"file": path,
		})
	}
	added := state.Add(ids...)
	p.logger.InfoWithFields("Checkpoint reconciled with output files", map[string]interface{}{
		"found": len(ids),
		"added": added,
	})
	return added, nil
}

// PrepareState resolves the checkpoint state a run starts from
func (p *Pipeline) PrepareState(opts RunOptions) (*checkpoint.State, error) {
	if opts.ForceRestart {
		if p.store.Exists() {
			if err := p.store.Delete(); err != nil {
				p.logger.WithError(err).Warn("Failed to delete existing checkpoint")
			} else {
				p.logger.Info("Force restart, existing checkpoint removed")
			}
		}
		return checkpoint.NewState(), nil
	}

	state := checkpoint.NewState()
	if opts.Resume {
		state = p.store.Load()
	}

	if opts.Reconcile {
		if _, err := p.Reconcile(state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// Run fetches ids according to opts. The returned summary is populated even
// when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, ids []string, opts RunOptions) (Summary, error) {
	if opts.Limit > 0 && opts.Limit < len(ids) {
		ids = ids[:opts.Limit]
	}

	state, err := p.PrepareState(opts)
	if err != nil {
		return Summary{}, err
	}

	pending := state.Pending(ids)
	skipped := len(ids) - len(pending)
	if skipped > 0 {
		p.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
			"processed": skipped,
			"remaining": len(pending),
		})
	}

	coord := NewCoordinator(p.scheduler, p.storage, p.store, state, CoordinatorOptions{
		Observer: p.observer,
		Logger:   p.logger,
		RunID:    opts.RunID,
		Skipped:  skipped,
	})

	return coord.Run(ctx, pending, p.config.Pipeline.BatchSize)
}
