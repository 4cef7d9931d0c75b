package routes

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var loadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "poolview_route_load_seconds",
	Help:    "Time spent in route loaders before rendering.",
	Buckets: prometheus.DefBuckets,
}, []string{"route", "result"})

var registerOnce sync.Once

// RegisterMetrics adds route collectors to reg. Later calls are no-ops.
func RegisterMetrics(reg prometheus.Registerer) error {
	var err error
	registerOnce.Do(func() {
		if rerr := reg.Register(loadDuration); rerr != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(rerr, &already) {
				err = rerr
			}
		}
	})
	return err
}

func observeLoad(route string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	loadDuration.WithLabelValues(route, result).Observe(time.Since(start).Seconds())
}
