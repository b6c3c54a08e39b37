package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
	"github.com/ledgerline/offline-core/internal/core/ports/driving"
)

const (
	// DefaultProbeInterval is how often connectivity is re-checked.
	DefaultProbeInterval = 15 * time.Second

	// DefaultPreloadInterval is how often reference data is refreshed
	// while online.
	DefaultPreloadInterval = time.Hour

	// DefaultCleanupInterval is how often old data is swept.
	DefaultCleanupInterval = 24 * time.Hour
)

// Worker runs the background maintenance loops: it watches connectivity,
// replays the operation queue as soon as the backend comes back, refreshes
// reference data periodically, and sweeps old rows.
type Worker struct {
	cache        driving.CacheManager
	sync         driving.SyncManager
	connectivity driven.Connectivity
	logger       *slog.Logger

	// Configuration
	probeInterval   time.Duration
	preloadInterval time.Duration
	cleanupInterval time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	online  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config holds configuration for the worker.
type Config struct {
	Cache        driving.CacheManager
	Sync         driving.SyncManager
	Connectivity driven.Connectivity
	Logger       *slog.Logger

	ProbeInterval   time.Duration
	PreloadInterval time.Duration
	CleanupInterval time.Duration
}

// New creates a new background worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.PreloadInterval <= 0 {
		cfg.PreloadInterval = DefaultPreloadInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	return &Worker{
		cache:           cfg.Cache,
		sync:            cfg.Sync,
		connectivity:    cfg.Connectivity,
		logger:          logger,
		probeInterval:   cfg.ProbeInterval,
		preloadInterval: cfg.PreloadInterval,
		cleanupInterval: cfg.CleanupInterval,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.online = w.connectivity.Online(ctx)
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"probe_interval", w.probeInterval,
		"preload_interval", w.preloadInterval,
		"cleanup_interval", w.cleanupInterval,
	)

	go w.run(ctx)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// Running reports whether the worker loop is active.
func (w *Worker) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Health returns health status of the worker.
type Health struct {
	Running bool `json:"running"`
	Online  bool `json:"online"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	return Health{
		Running: running,
		Online:  w.connectivity.Online(ctx),
	}
}

// Online reports the last observed connectivity state.
func (w *Worker) Online() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.online
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	probeTicker := time.NewTicker(w.probeInterval)
	defer probeTicker.Stop()
	preloadTicker := time.NewTicker(w.preloadInterval)
	defer preloadTicker.Stop()
	cleanupTicker := time.NewTicker(w.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			w.logger.Info("worker stop signal received")
			return
		case <-probeTicker.C:
			w.probe(ctx)
		case <-preloadTicker.C:
			w.refresh(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

// probe re-checks connectivity and reacts to an offline-to-online
// transition by replaying queued operations and refreshing the cache.
func (w *Worker) probe(ctx context.Context) {
	online := w.connectivity.Online(ctx)

	w.mu.Lock()
	wasOnline := w.online
	w.online = online
	w.mu.Unlock()

	if online == wasOnline {
		return
	}

	if !online {
		w.logger.Warn("backend went offline, queueing mutations locally")
		return
	}

	w.logger.Info("backend back online, replaying queued operations")
	w.replay(ctx)
	w.refresh(ctx)
}

func (w *Worker) replay(ctx context.Context) {
	report, err := w.sync.ProcessPending(ctx)
	if err != nil {
		// Another instance or an API call already holds the replay.
		if errors.Is(err, domain.ErrSyncInProgress) {
			w.logger.Debug("replay already running elsewhere")
			return
		}
		w.logger.Error("replay failed", "error", err)
		return
	}
	if report.Processed > 0 {
		w.logger.Info("replay finished",
			"processed", report.Processed,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"duration", report.Duration,
		)
	}
}

func (w *Worker) refresh(ctx context.Context) {
	if !w.Online() {
		return
	}
	if err := w.cache.PreloadAll(ctx); err != nil {
		w.logger.Error("periodic preload failed", "error", err)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	report, err := w.cache.CleanOldData(ctx)
	if err != nil {
		w.logger.Error("cleanup failed", "error", err)
		return
	}
	w.logger.Info("cleanup finished",
		"tombstones_removed", report.TombstonesRemoved,
		"operations_removed", report.OperationsRemoved,
		"failed_retained", report.FailedRetained,
	)
}
