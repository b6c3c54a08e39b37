package probe

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ledgerline/offline-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Connectivity = (*Connectivity)(nil)

const (
	defaultProbeTimeout = 3 * time.Second
	defaultCacheTTL     = 10 * time.Second
)

// Config holds probe configuration
type Config struct {
	// URL is probed with a HEAD request; any HTTP response counts as
	// online, only transport failures count as offline.
	URL string

	// Timeout bounds one probe.
	Timeout time.Duration

	// CacheTTL is how long a probe result is reused before re-probing.
	// Enqueue paths call Online on every mutation, so probes are
	// deliberately coarse.
	CacheTTL time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Connectivity probes the backend with HEAD requests and caches the answer
// briefly.
type Connectivity struct {
	url      string
	timeout  time.Duration
	cacheTTL time.Duration
	client   *http.Client
	logger   *slog.Logger

	mu        sync.Mutex
	online    bool
	probedAt  time.Time
}

// NewConnectivity creates an HTTP connectivity probe.
func NewConnectivity(cfg Config) *Connectivity {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProbeTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Connectivity{
		url:      cfg.URL,
		timeout:  cfg.Timeout,
		cacheTTL: cfg.CacheTTL,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
	}
}

// Online reports whether the backend answered a recent probe.
func (c *Connectivity) Online(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.probedAt) < c.cacheTTL {
		return c.online
	}

	c.online = c.probe(ctx)
	c.probedAt = time.Now()
	return c.online
}

// Invalidate drops the cached result so the next Online call re-probes.
func (c *Connectivity) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probedAt = time.Time{}
}

func (c *Connectivity) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		c.logger.Warn("invalid probe url", "url", c.url, "error", err)
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("connectivity probe failed", "url", c.url, "error", err)
		return false
	}
	resp.Body.Close()

	// A 5xx still means the network path works; the gateway will surface
	// its own errors per request.
	return true
}
