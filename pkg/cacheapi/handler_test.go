package cacheapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"poolview/pkg/process"
	"poolview/pkg/query"
)

type pool struct {
	Name string `json:"name"`
}

func seed(t *testing.T, c *query.Client, names ...string) {
	t.Helper()
	for _, n := range names {
		name := n
		q := query.Query[pool]{
			Key:   query.Key{"work-pools", "details", name},
			Fetch: func(ctx context.Context) (pool, error) { return pool{Name: name}, nil },
		}
		if _, err := query.EnsureQueryData(context.Background(), c, q); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
}

func newRouter(t *testing.T) (*gin.Engine, *query.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	qc := query.NewClient(query.Options{StaleTime: query.StaleNever})
	proc := process.New()
	proc.Start()
	t.Cleanup(func() { _ = proc.Stop(context.Background()) })

	r := gin.New()
	RegisterRoutes(r.Group("/api"), &Handler{Cache: qc, Process: proc})
	return r, qc
}

func do(r http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestStats(t *testing.T) {
	r, qc := newRouter(t)
	seed(t, qc, "default-pool")

	w, body := do(r, http.MethodGet, "/api/pool/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	cache, ok := body["cache"].(map[string]any)
	if !ok {
		t.Fatalf("missing cache stats: %s", w.Body.String())
	}
	if cache["entries"] != float64(1) || cache["fetches"] != float64(1) {
		t.Errorf("unexpected cache stats %v", cache)
	}
	if _, ok := body["pool"]; !ok {
		t.Error("missing pool stats")
	}
}

func TestInvalidateAndRemove(t *testing.T) {
	r, qc := newRouter(t)
	seed(t, qc, "a", "b")

	w, body := do(r, http.MethodPost, "/api/cache/invalidate?prefix=work-pools/details/a")
	if w.Code != http.StatusOK || body["invalidated"] != float64(1) {
		t.Fatalf("invalidate: %d %s", w.Code, w.Body.String())
	}
	if qc.State(query.Key{"work-pools", "details", "a"}) != query.StatusReady {
		t.Error("invalidated entries keep their data")
	}

	w, body = do(r, http.MethodDelete, "/api/cache?prefix=work-pools")
	if w.Code != http.StatusOK || body["removed"] != float64(2) {
		t.Fatalf("remove: %d %s", w.Code, w.Body.String())
	}
	if qc.Stats().Entries != 0 {
		t.Errorf("entries = %d, want 0", qc.Stats().Entries)
	}
}

func TestListEntries(t *testing.T) {
	r, qc := newRouter(t)
	seed(t, qc, "default-pool")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cache?prefix=work-pools", nil))
	var body struct {
		Entries []query.EntryInfo `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 1 || body.Entries[0].Key != "work-pools/details/default-pool" {
		t.Errorf("unexpected entries %+v", body.Entries)
	}
}

func TestBadPrefix(t *testing.T) {
	r, _ := newRouter(t)
	if w, _ := do(r, http.MethodPost, "/api/cache/invalidate?prefix=%25zz"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSystem(t *testing.T) {
	r, _ := newRouter(t)
	w, body := do(r, http.MethodGet, "/api/system")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if _, ok := body["uptime_ms"]; !ok {
		t.Errorf("missing uptime: %v", body)
	}
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	if err := query.RegisterMetrics(reg); err != nil {
		t.Fatalf("RegisterMetrics: %v", err)
	}
	r := gin.New()
	RegisterMetrics(r, reg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "poolview_query_cache_hits_total") {
		t.Errorf("expected query metrics in exposition:\n%s", w.Body.String())
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, tc := range []struct {
		name    string
		backend Pinger
		status  int
	}{
		{"no backend", nil, http.StatusOK},
		{"backend up", pingFunc(func(ctx context.Context) error { return nil }), http.StatusOK},
		{"backend down", pingFunc(func(ctx context.Context) error { return errors.New("refused") }), http.StatusServiceUnavailable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			RegisterRoutes(r.Group("/api"), &Handler{Cache: query.NewClient(query.Options{}), Process: process.New(), Backend: tc.backend})
			if w, _ := do(r, http.MethodGet, "/api/health"); w.Code != tc.status {
				t.Errorf("status = %d, want %d", w.Code, tc.status)
			}
		})
	}
}
