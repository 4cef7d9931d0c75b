package cacheapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"poolview/pkg/common/worker"
	"poolview/pkg/process"
	"poolview/pkg/query"
)

// Pinger checks that the work pool backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves operational endpoints for the query cache and worker pool.
type Handler struct {
	Cache   *query.Client
	Process *process.Process
	// Backend is optional; without it /health only reports the server itself.
	Backend Pinger
}

// RegisterRoutes registers stats, cache and system endpoints under rg (usually /api).
func RegisterRoutes(rg *gin.RouterGroup, h *Handler) {
	rg.GET("/pool/stats", h.stats)
	rg.GET("/system", h.system)
	rg.GET("/health", h.health)

	cache := rg.Group("/cache")
	cache.GET("", h.listEntries)
	cache.POST("/invalidate", h.invalidate)
	cache.DELETE("", h.remove)
}

// RegisterMetrics exposes g in the Prometheus text format at /metrics.
func RegisterMetrics(r gin.IRoutes, g prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pool":  worker.Snapshot(),
		"cache": h.Cache.Stats(),
	})
}

func (h *Handler) system(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime_ms":  h.Process.Uptime().Milliseconds(),
		"started_at": h.Process.StartedAt().Format(time.RFC3339),
		"ts":         time.Now().UnixMilli(),
	})
}

func (h *Handler) health(c *gin.Context) {
	if h.Backend == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Backend.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "backend": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": "ok"})
}

func prefixParam(c *gin.Context) (query.Key, bool) {
	prefix, err := query.ParseKey(c.Query("prefix"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return prefix, true
}

func (h *Handler) listEntries(c *gin.Context) {
	prefix, ok := prefixParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": h.Cache.Entries(prefix)})
}

func (h *Handler) invalidate(c *gin.Context) {
	prefix, ok := prefixParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"prefix": prefix.Hash(), "invalidated": h.Cache.InvalidateQueries(prefix)})
}

func (h *Handler) remove(c *gin.Context) {
	prefix, ok := prefixParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"prefix": prefix.Hash(), "removed": h.Cache.RemoveQueries(prefix)})
}
