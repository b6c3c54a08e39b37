package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestConnectivity_OnlineWhenReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
	}))
	defer srv.Close()

	c := NewConnectivity(Config{URL: srv.URL})
	if !c.Online(context.Background()) {
		t.Error("expected online")
	}
}

func TestConnectivity_OfflineWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewConnectivity(Config{URL: srv.URL})
	if c.Online(context.Background()) {
		t.Error("expected offline after connection failure")
	}
}

func TestConnectivity_ServerErrorStillOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewConnectivity(Config{URL: srv.URL})
	if !c.Online(context.Background()) {
		t.Error("a responding backend counts as online even on 5xx")
	}
}

func TestConnectivity_CachesProbeResult(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
	}))
	defer srv.Close()

	c := NewConnectivity(Config{URL: srv.URL, CacheTTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Online(ctx)
	}
	if got := probes.Load(); got != 1 {
		t.Errorf("probes: got %d, want 1", got)
	}

	c.Invalidate()
	c.Online(ctx)
	if got := probes.Load(); got != 2 {
		t.Errorf("probes after invalidate: got %d, want 2", got)
	}
}
