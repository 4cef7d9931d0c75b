package query

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poolview_query_cache_hits_total",
		Help: "Loads answered from the query cache",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poolview_query_cache_misses_total",
		Help: "Loads that required a fetch",
	})
	cacheDedups = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poolview_query_fetch_dedup_total",
		Help: "Loads that joined a fetch already in flight",
	})
	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poolview_query_cache_evictions_total",
		Help: "Entries removed by garbage collection",
	})
	fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poolview_query_fetch_total",
		Help: "Fetches executed, by result",
	}, []string{"result"})

	registerOnce sync.Once
)

// RegisterMetrics adds the query collectors to reg. Repeated calls are no-ops.
func RegisterMetrics(reg prometheus.Registerer) error {
	var err error
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{cacheHits, cacheMisses, cacheDedups, cacheEvictions, fetchTotal} {
			if rerr := reg.Register(c); rerr != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(rerr, &are) {
					err = rerr
					return
				}
			}
		}
	})
	return err
}
