package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"poolview/pkg/common/file"
	"poolview/pkg/common/tracing"
	"poolview/pkg/query"
)

// Route binds a path to a loader and a view. The loader runs to completion
// before the component is called, and the component only ever sees data that
// loaded successfully.
type Route[P, T any] struct {
	Name      string
	Path      string
	Params    func(c *gin.Context) (P, error)
	Loader    func(ctx context.Context, params P) (query.Ready[T], error)
	Component func(w io.Writer, data query.Ready[T]) error
}

// Registrar is any route that can mount itself.
type Registrar interface {
	Register(rg gin.IRoutes)
}

// Mount registers every route on rg.
func Mount(rg gin.IRoutes, routes ...Registrar) {
	for _, r := range routes {
		r.Register(rg)
	}
}

// Register mounts the route as a GET handler.
func (r Route[P, T]) Register(rg gin.IRoutes) {
	rg.GET(r.Path, r.Handle)
}

// ParamError reports a path or query parameter the route could not use.
type ParamError struct {
	Route string
	Err   error
}

func (e *ParamError) Error() string { return fmt.Sprintf("%s: bad parameters: %v", e.Route, e.Err) }
func (e *ParamError) Unwrap() error { return e.Err }

// LoadError wraps a loader failure with the route that hit it.
type LoadError struct {
	Route string
	Err   error
}

func (e *LoadError) Error() string { return fmt.Sprintf("%s: %v", e.Route, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Handle runs params, loader and component in order. Failures are attached
// with c.Error and left to the error boundary.
func (r Route[P, T]) Handle(c *gin.Context) {
	ctx, span := tracing.Tracer("poolview/routes").Start(c.Request.Context(), "route "+r.Name)
	defer span.End()

	params, err := r.Params(c)
	if err != nil {
		r.abort(c, &ParamError{Route: r.Name, Err: err})
		return
	}

	start := time.Now()
	data, err := r.Loader(ctx, params)
	observeLoad(r.Name, start, err)
	if err == nil && !data.Valid() {
		err = errors.New("loader returned no data")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.abort(c, &LoadError{Route: r.Name, Err: err})
		return
	}
	span.SetAttributes(attribute.String("query.key", data.Key().Hash()))

	var (
		body        []byte
		contentType string
	)
	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		body, err = json.Marshal(data.Data())
		contentType = "application/json; charset=utf-8"
	} else {
		var buf bytes.Buffer
		err = r.Component(&buf, data)
		body = buf.Bytes()
		contentType = "text/html; charset=utf-8"
	}
	if err != nil {
		r.abort(c, fmt.Errorf("%s: render: %w", r.Name, err))
		return
	}

	etag := file.ETag(body)
	c.Header("ETag", etag)
	c.Header("Vary", "Accept")
	if !data.UpdatedAt().IsZero() {
		c.Header("Last-Modified", data.UpdatedAt().UTC().Format(http.TimeFormat))
	}
	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, contentType, body)
}

func (r Route[P, T]) abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
