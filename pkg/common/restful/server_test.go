package restful

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"poolview/pkg/common/logger"
)

// initTestLogger sets a global logger that writes to the provided buffer
func initTestLogger(buf *bytes.Buffer) {
	cfg := logger.DefaultConfig()
	cfg.Level = "debug"
	cfg.Format = "json"
	cfg.Output = "discard"
	_ = logger.Init(cfg)
	logger.SetOutput(buf)
}

func TestNewServerDefaults(t *testing.T) {
	var buf bytes.Buffer
	initTestLogger(&buf)
	gin.SetMode(gin.TestMode)

	s := NewServer()
	if s.Engine == nil {
		t.Fatal("Engine should not be nil")
	}
	if s.addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", s.addr)
	}
	if s.shutdownDur != 5*time.Second {
		t.Errorf("expected default shutdown duration 5s, got %v", s.shutdownDur)
	}
}

func TestNewServerWithOptions(t *testing.T) {
	var buf bytes.Buffer
	initTestLogger(&buf)
	gin.SetMode(gin.TestMode)

	called := false
	s := NewServer(
		WithAddress(":12345"),
		WithShutdownTimeout(2*time.Second),
		WithMiddleware(func(c *gin.Context) { called = true; c.Next() }),
	)
	if s.addr != ":12345" {
		t.Errorf("expected addr :12345, got %s", s.addr)
	}
	if s.shutdownDur != 2*time.Second {
		t.Errorf("expected shutdownDur 2s, got %v", s.shutdownDur)
	}

	s.Engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if !called {
		t.Error("extra middleware was not applied")
	}
}

func TestRequestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	initTestLogger(&buf)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	id := w.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatal("expected a generated request id")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry %q: %v", buf.String(), err)
	}
	if entry["path"] != "/ping" || entry["request_id"] != id {
		t.Errorf("unexpected log entry %v", entry)
	}
}

func TestRequestLoggerKeepsIncomingID(t *testing.T) {
	var buf bytes.Buffer
	initTestLogger(&buf)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

var errMissing = errors.New("missing")

func boundaryRouter(err error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorBoundary(func(err error) int {
		if errors.Is(err, errMissing) {
			return http.StatusNotFound
		}
		return 0
	}))
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(err)
		c.Abort()
	})
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })
	return r
}

func TestErrorBoundary(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"classified", fmt.Errorf("wrap: %w", errMissing), http.StatusNotFound},
		{"timeout", fmt.Errorf("fetch: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			boundaryRouter(tc.err).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
				t.Errorf("expected html error page, got %q", w.Header().Get("Content-Type"))
			}
			if !strings.Contains(w.Body.String(), http.StatusText(tc.status)) {
				t.Errorf("page should carry the status text: %s", w.Body.String())
			}
		})
	}
}

func TestErrorBoundaryHidesServerErrors(t *testing.T) {
	w := httptest.NewRecorder()
	boundaryRouter(errors.New("dial tcp 10.0.0.1: refused")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if strings.Contains(w.Body.String(), "10.0.0.1") {
		t.Errorf("internal error leaked to the page: %s", w.Body.String())
	}
}

func TestErrorBoundaryJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	boundaryRouter(errMissing).ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", w.Body.String(), err)
	}
	if body["status"] != float64(http.StatusNotFound) || body["message"] != "missing" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestErrorBoundaryPassesThrough(t *testing.T) {
	w := httptest.NewRecorder()
	boundaryRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusOK || w.Body.String() != "fine" {
		t.Errorf("unexpected response %d %q", w.Code, w.Body.String())
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	var buf bytes.Buffer
	initTestLogger(&buf)
	gin.SetMode(gin.TestMode)

	// Use :0 to let OS choose a free port
	s := NewServer(WithAddress("127.0.0.1:0"), WithShutdownTimeout(1*time.Second))

	if err := s.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "REST server started") {
		t.Error("start message not found in logs")
	}
}

// Benchmark to gauge middleware overhead
func BenchmarkRequestLogger(b *testing.B) {
	var buf bytes.Buffer
	initTestLogger(&buf)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
	}
}
