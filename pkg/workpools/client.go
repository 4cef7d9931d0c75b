package workpools

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"resty.dev/v3"

	"poolview/pkg/common/file"
)

// Getter is the read the work pool query needs.
type Getter interface {
	GetWorkPool(ctx context.Context, name string) (WorkPool, error)
}

// ClientConfig holds the backend connection settings.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	Token      string
	// Transport is wrapped with otelhttp; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client reads work pools from the backend API.
type Client struct {
	http *resty.Client
}

// NewClient builds a resty client with tracing on every outgoing request.
func NewClient(cfg ClientConfig) *Client {
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	transport := otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTransport(transport).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}
	return &Client{http: rc}
}

// GetWorkPool fetches one pool by name. A 404 maps to ErrNotFound.
func (c *Client) GetWorkPool(ctx context.Context, name string) (WorkPool, error) {
	const path = "/work_pools/{name}"
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("name", name).
		Get(path)
	if err != nil {
		return WorkPool{}, fmt.Errorf("GET work pool %q: %w", name, err)
	}

	body := resp.String()
	if resp.StatusCode() == http.StatusNotFound {
		return WorkPool{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !resp.IsSuccess() {
		return WorkPool{}, &APIError{
			Method:     http.MethodGet,
			Path:       "/work_pools/" + name,
			StatusCode: resp.StatusCode(),
			Body:       truncate(body, 200),
		}
	}
	if !isJSON(resp.Header().Get("Content-Type"), []byte(body)) {
		return WorkPool{}, fmt.Errorf("GET work pool %q: expected JSON, got %s", name, file.DetectMIME([]byte(body)))
	}

	var wp WorkPool
	if err := json.Unmarshal([]byte(body), &wp); err != nil {
		return WorkPool{}, fmt.Errorf("GET work pool %q: parsing response: %w", name, err)
	}
	if wp.Name == "" {
		return WorkPool{}, fmt.Errorf("GET work pool %q: response has no name", name)
	}
	return wp, nil
}

// Ping checks that the backend answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("GET /health: %w", err)
	}
	if !resp.IsSuccess() {
		return &APIError{Method: http.MethodGet, Path: "/health", StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 200)}
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// isJSON trusts a JSON Content-Type and otherwise sniffs the body.
func isJSON(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if mt == "application/json" || (len(mt) > 5 && mt[len(mt)-5:] == "+json") {
			return true
		}
	}
	return file.IsJSON(body)
}
