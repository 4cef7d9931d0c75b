package restful

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"poolview/pkg/common/logger"
)

// Server wraps gin.Engine with graceful shutdown support
type Server struct {
	Engine      *gin.Engine
	httpServer  *http.Server
	addr        string
	shutdownDur time.Duration
	middleware  []gin.HandlerFunc
}

// Option pattern for server configuration
type Option func(*Server)

func WithAddress(addr string) Option             { return func(s *Server) { s.addr = addr } }
func WithShutdownTimeout(d time.Duration) Option { return func(s *Server) { s.shutdownDur = d } }

// WithMiddleware appends handlers after the built-in recovery, CORS and request logging.
func WithMiddleware(h ...gin.HandlerFunc) Option {
	return func(s *Server) { s.middleware = append(s.middleware, h...) }
}

// NewServer creates a new RESTful server instance
func NewServer(opts ...Option) *Server {
	g := gin.New()
	// route panics to zerolog
	g.Use(RecoveryWithLogger())
	g.Use(CORSMiddleware())
	g.Use(RequestLogger())
	// direct gin internal output to zerolog (avoid duplicate default logger middleware)
	gin.DefaultWriter = zerologWriter{}
	gin.DefaultErrorWriter = zerologWriter{}

	s := &Server{
		Engine:      g,
		addr:        ":8080",
		shutdownDur: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	g.Use(s.middleware...)

	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Engine, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler exposes the engine as an http.Handler, for httptest.
func (s *Server) Handler() http.Handler { return s.Engine }

// zerologWriter adapts gin's writer to zerolog
type zerologWriter struct{}

func (zerologWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		logger.GetLogger().Info().Msg(msg)
	}
	return len(p), nil
}

// RecoveryWithLogger logs panic with stack/latency via zerolog (simplified)
func RecoveryWithLogger() gin.HandlerFunc {
	return gin.RecoveryWithWriter(zerologWriter{})
}

// Start runs the server asynchronously
func (s *Server) Start() error {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.GetLogger().Error().Err(err).Msg("server error")
		}
	}()
	logger.GetLogger().Info().Str("addr", s.addr).Msg("REST server started")
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, s.shutdownDur)
	defer cancel()
	return s.httpServer.Shutdown(ctxTimeout)
}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id and logs status, latency and attached errors.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		ev := logger.GetLogger().Info()
		if status >= http.StatusInternalServerError {
			ev = logger.GetLogger().Error()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("error", c.Errors.Last().Error())
		}
		ev.Int("status", status).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", id).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, If-None-Match")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
