package worker

import (
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"poolview/pkg/common/logger"
)

// Job is a unit of background work, e.g. revalidating a stale query.
type Job func()

// ErrNotInitialized is returned by Submit before Init.
var ErrNotInitialized = errors.New("worker pool not initialized")

// Stats is a point-in-time view of the pool.
type Stats struct {
	Capacity       int       `json:"capacity"`
	Running        int       `json:"running"`
	Free           int       `json:"free"`
	Submitted      uint64    `json:"submitted"`
	Completed      uint64    `json:"completed"`
	Rejected       uint64    `json:"rejected"`
	Panics         uint64    `json:"panics"`
	LastDurationMs int64     `json:"last_duration_ms"`
	LastFinishedAt time.Time `json:"last_finished_at"`
}

var (
	pool     *ants.Pool
	initOnce sync.Once
	mu       sync.Mutex
	stats    Stats
)

// Init creates the global non-blocking pool with the given size. Safe to call multiple times.
func Init(size int) error {
	var err error
	initOnce.Do(func() {
		pool, err = ants.NewPool(size, ants.WithNonblocking(true))
	})
	return err
}

// Submit enqueues a job. With a saturated pool the job is rejected with ants.ErrPoolOverload.
func Submit(j Job) error {
	if pool == nil {
		return ErrNotInitialized
	}
	err := pool.Submit(func() {
		start := time.Now()
		defer func() {
			r := recover()
			mu.Lock()
			if r != nil {
				stats.Panics++
			}
			stats.Completed++
			stats.LastDurationMs = time.Since(start).Milliseconds()
			stats.LastFinishedAt = time.Now()
			mu.Unlock()
			if r != nil {
				logger.WithComponent("worker").Error().Interface("panic", r).Msg("worker panic recovered")
			}
		}()
		j()
	})
	mu.Lock()
	if err != nil {
		stats.Rejected++
	} else {
		stats.Submitted++
	}
	mu.Unlock()
	return err
}

// Snapshot returns a copy of current pool statistics.
func Snapshot() Stats {
	mu.Lock()
	s := stats
	mu.Unlock()
	if pool != nil {
		s.Capacity = pool.Cap()
		s.Running = pool.Running()
		s.Free = pool.Free()
	}
	return s
}

// Release waits up to timeout for running jobs, then frees the pool.
func Release(timeout time.Duration) error {
	if pool == nil {
		return nil
	}
	return pool.ReleaseTimeout(timeout)
}
