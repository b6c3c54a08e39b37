package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ledgerline/offline-core/internal/core/domain"
)

func TestGateway_FetchAll_WalksPages(t *testing.T) {
	var authHeaders []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		if r.URL.Path != "/providers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "1":
			fmt.Fprint(w, `{"data":[{"id":"p-1","name":"Acme"},{"id":"p-2","name":"Globex"}],"meta":{"page":1,"total_pages":2}}`)
		case "2":
			fmt.Fprint(w, `{"data":[{"id":"p-3","name":"Initech"}],"meta":{"page":2,"total_pages":2}}`)
		default:
			t.Errorf("unexpected page %s", page)
		}
	}))
	defer srv.Close()

	g := NewGateway(Config{BaseURL: srv.URL, Token: "tok-123", PageSize: 2})

	records, err := g.FetchAll(context.Background(), domain.CollectionProviders)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].ID != "p-1" || records[2].ID != "p-3" {
		t.Errorf("unexpected ids: %s, %s", records[0].ID, records[2].ID)
	}

	var name struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(records[0].Data, &name); err != nil || name.Name != "Acme" {
		t.Errorf("record data not preserved: %s", records[0].Data)
	}

	for _, h := range authHeaders {
		if h != "Bearer tok-123" {
			t.Errorf("missing bearer token, got %q", h)
		}
	}
}

func TestGateway_FetchAll_SinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"c-1"}],"meta":{"page":1,"total_pages":1}}`)
	}))
	defer srv.Close()

	g := NewGateway(Config{BaseURL: srv.URL})

	records, err := g.FetchAll(context.Background(), domain.CollectionClients)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
}

func TestGateway_Create(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/clients" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"cli-88","name":"Nadia"}}`)
	}))
	defer srv.Close()

	g := NewGateway(Config{BaseURL: srv.URL})

	rec, err := g.Create(context.Background(), domain.CollectionClients, []byte(`{"name":"Nadia"}`))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID != "cli-88" {
		t.Errorf("id: got %s, want cli-88", rec.ID)
	}
}

func TestGateway_UpdateAndDelete(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	g := NewGateway(Config{BaseURL: srv.URL})
	ctx := context.Background()

	if err := g.Update(ctx, domain.CollectionProducts, "sku-1", []byte(`{"stock":5}`)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/products/sku-1" {
		t.Errorf("update routed to %s %s", gotMethod, gotPath)
	}

	if err := g.Delete(ctx, domain.CollectionProducts, "sku-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/products/sku-1" {
		t.Errorf("delete routed to %s %s", gotMethod, gotPath)
	}
}

func TestGateway_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusInternalServerError, domain.ErrGatewayUnavailable},
		{http.StatusBadGateway, domain.ErrGatewayUnavailable},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		g := NewGateway(Config{BaseURL: srv.URL})
		err := g.Update(context.Background(), domain.CollectionProviders, "p-1", []byte(`{}`))
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: got %v, want %v", tt.status, err, tt.want)
		}
		srv.Close()
	}
}

func TestGateway_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // listener gone, dial will fail

	g := NewGateway(Config{BaseURL: srv.URL})
	if err := g.Ping(context.Background()); !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Errorf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestGateway_RequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	g := NewGateway(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	if err := g.Ping(context.Background()); err == nil {
		t.Error("expected timeout error")
	}
}

func TestGateway_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	g := NewGateway(Config{BaseURL: srv.URL})
	if err := g.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
