package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EntityGateway = (*Gateway)(nil)

const (
	defaultTimeout  = 15 * time.Second
	defaultPageSize = 100
)

// Config holds gateway configuration
type Config struct {
	// BaseURL is the backend API root, e.g. https://erp.example.com/api/v1
	BaseURL string

	// Token is an optional bearer token attached to every request.
	Token string

	// Timeout bounds each individual request so a hung call stalls one
	// operation, never a whole replay batch.
	Timeout time.Duration

	// PageSize is how many records FetchAll requests per page.
	PageSize int

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Gateway talks to the backend's per-collection CRUD API over HTTP.
type Gateway struct {
	baseURL  string
	token    string
	timeout  time.Duration
	pageSize int
	client   *http.Client
	logger   *slog.Logger
}

// NewGateway creates a REST-backed entity gateway.
func NewGateway(cfg Config) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{
		baseURL:  cfg.BaseURL,
		token:    cfg.Token,
		timeout:  cfg.Timeout,
		pageSize: cfg.PageSize,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
	}
}

// listResponse is the backend's paginated list envelope.
type listResponse struct {
	Data []json.RawMessage `json:"data"`
	Meta struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
}

// recordResponse is the backend's single-record envelope.
type recordResponse struct {
	Data json.RawMessage `json:"data"`
}

// FetchAll retrieves the full remote set for a collection, walking
// pagination until the backend reports the last page.
func (g *Gateway) FetchAll(ctx context.Context, collection domain.Collection) ([]driven.RemoteRecord, error) {
	var records []driven.RemoteRecord

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(g.pageSize))

		body, err := g.do(ctx, http.MethodGet, "/"+string(collection)+"?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("fetch %s page %d: %w", collection, page, err)
		}

		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode %s page %d: %w", collection, page, err)
		}

		for _, raw := range resp.Data {
			rec, err := toRecord(raw)
			if err != nil {
				return nil, fmt.Errorf("decode %s record: %w", collection, err)
			}
			records = append(records, rec)
		}

		if resp.Meta.TotalPages == 0 || page >= resp.Meta.TotalPages || len(resp.Data) == 0 {
			return records, nil
		}
	}
}

// Create persists a new entity and returns the server-assigned record.
func (g *Gateway) Create(ctx context.Context, collection domain.Collection, payload json.RawMessage) (*driven.RemoteRecord, error) {
	body, err := g.do(ctx, http.MethodPost, "/"+string(collection), payload)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}

	var resp recordResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode created %s: %w", collection, err)
	}
	rec, err := toRecord(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decode created %s: %w", collection, err)
	}
	return &rec, nil
}

// Update replays an update against an existing remote entity.
func (g *Gateway) Update(ctx context.Context, collection domain.Collection, id string, payload json.RawMessage) error {
	if _, err := g.do(ctx, http.MethodPut, "/"+string(collection)+"/"+url.PathEscape(id), payload); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes a remote entity.
func (g *Gateway) Delete(ctx context.Context, collection domain.Collection, id string) error {
	if _, err := g.do(ctx, http.MethodDelete, "/"+string(collection)+"/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Ping checks whether the backend is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	if _, err := g.do(ctx, http.MethodGet, "/health", nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// do issues one request with the configured timeout and auth header and
// returns the response body.
func (g *Gateway) do(ctx context.Context, method, path string, payload json.RawMessage) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", domain.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(data, 200))
	}
}

// toRecord splits a raw backend object into its id and opaque data.
func toRecord(raw json.RawMessage) (driven.RemoteRecord, error) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return driven.RemoteRecord{}, err
	}
	if probe.ID == "" {
		return driven.RemoteRecord{}, fmt.Errorf("record has no id")
	}
	return driven.RemoteRecord{ID: probe.ID, Data: raw}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
