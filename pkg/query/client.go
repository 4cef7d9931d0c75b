package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"poolview/pkg/common/logger"
)

// Options configures a Client.
type Options struct {
	// StaleTime is how long fetched data counts as fresh. Zero means stale immediately.
	StaleTime time.Duration
	// GCTime drops entries nobody has read for this long. Zero disables collection.
	GCTime time.Duration
	// FetchTimeout bounds a single fetch, independent of any caller's context.
	FetchTimeout time.Duration
	// RevalidateIfStale makes EnsureQueryData refetch stale hits in the background.
	RevalidateIfStale bool
	// Submit runs background work; nil starts a goroutine.
	Submit func(func()) error
	Now    func() time.Time
	Logger *zerolog.Logger
}

type entry struct {
	key        Key
	hasData    bool
	data       any
	raw        json.RawMessage // hydrated and not decoded yet
	err        error
	fetching   bool
	stale      bool // explicitly invalidated
	updatedAt  time.Time
	lastAccess time.Time
	fetches    int
}

type counters struct {
	hits, misses, fetches, failures, dedups, evictions, revalidations atomic.Uint64
}

// Client is a shared cache of asynchronous fetch results. It is safe for concurrent use.
type Client struct {
	opts    Options
	log     *zerolog.Logger
	tracer  trace.Tracer
	group   singleflight.Group
	stats   counters
	baseCtx atomic.Value // context.Context for background work

	mu      sync.Mutex
	entries map[string]*entry
}

// NewClient creates an empty cache.
func NewClient(opts Options) *Client {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Submit == nil {
		opts.Submit = func(f func()) error { go f(); return nil }
	}
	l := opts.Logger
	if l == nil {
		l = logger.WithComponent("query")
	}
	c := &Client{
		opts:    opts,
		log:     l,
		tracer:  otel.Tracer("poolview/query"),
		entries: make(map[string]*entry),
	}
	c.baseCtx.Store(context.Background())
	return c
}

// EnsureQueryData returns cached data when present, fresh or not, and otherwise
// fetches it. Concurrent callers for the same key share a single fetch. A failed
// fetch caches no data, so the next call fetches again.
func EnsureQueryData[T any](ctx context.Context, c *Client, q Query[T]) (Ready[T], error) {
	if err := validate(q); err != nil {
		return Ready[T]{}, err
	}
	r, ok, stale, err := cached[T](c, q)
	if err != nil {
		return Ready[T]{}, err
	}
	if ok {
		c.stats.hits.Add(1)
		cacheHits.Inc()
		if stale && c.opts.RevalidateIfStale {
			c.revalidate(q.Key, func(ctx context.Context) error {
				_, err := fetch(ctx, c, q, r.UpdatedAt())
				return err
			})
		}
		return r, nil
	}
	c.stats.misses.Add(1)
	cacheMisses.Inc()
	return fetch(ctx, c, q, r.UpdatedAt())
}

// FetchQuery returns cached data only while it is fresh and fetches otherwise.
func FetchQuery[T any](ctx context.Context, c *Client, q Query[T]) (Ready[T], error) {
	if err := validate(q); err != nil {
		return Ready[T]{}, err
	}
	r, ok, stale, err := cached[T](c, q)
	if err != nil {
		return Ready[T]{}, err
	}
	if ok && !stale {
		c.stats.hits.Add(1)
		cacheHits.Inc()
		return r, nil
	}
	c.stats.misses.Add(1)
	cacheMisses.Inc()
	return fetch(ctx, c, q, r.UpdatedAt())
}

// GetQueryData reads the cache without fetching.
func GetQueryData[T any](c *Client, key Key) (T, bool) {
	var zero T
	r, ok, _, err := cached[T](c, Query[T]{Key: key, StaleTime: StaleNever})
	if err != nil || !ok {
		return zero, false
	}
	return r.Data(), true
}

// SetQueryData stores v under key as freshly fetched data.
func SetQueryData[T any](c *Client, key Key, v T) Ready[T] {
	now := c.resolve(key, v)
	return Ready[T]{key: key, value: v, updatedAt: now}
}

func validate[T any](q Query[T]) error {
	if len(q.Key) == 0 {
		return ErrEmptyKey
	}
	if q.Fetch == nil {
		return ErrNoFetch
	}
	return nil
}

func (c *Client) staleTime(override time.Duration) time.Duration {
	if override != 0 {
		return override
	}
	return c.opts.StaleTime
}

func (c *Client) isStale(e *entry, staleTime time.Duration) bool {
	if e.stale {
		return true
	}
	if staleTime == StaleNever {
		return false
	}
	return c.opts.Now().Sub(e.updatedAt) >= staleTime
}

// cached returns the entry's data if it has any, decoding hydrated JSON on first use.
func cached[T any](c *Client, q Query[T]) (r Ready[T], ok bool, stale bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[q.Key.Hash()]
	if e == nil || !e.hasData {
		return r, false, false, nil
	}

	if e.raw != nil {
		var v T
		if err := json.Unmarshal(e.raw, &v); err != nil {
			// unreadable snapshot data counts as a miss
			c.log.Warn().Err(err).Str("key", q.Key.Hash()).Msg("dropping hydrated query data")
			e.hasData, e.data, e.raw = false, nil, nil
			return r, false, false, nil
		}
		e.data, e.raw = v, nil
	}
	e.lastAccess = c.opts.Now()
	v, typed := e.data.(T)
	if !typed {
		return r, false, false, fmt.Errorf("%w: key %s holds %T", ErrTypeMismatch, q.Key, e.data)
	}
	stale = c.isStale(e, c.staleTime(q.StaleTime))
	return Ready[T]{key: e.key, value: v, updatedAt: e.updatedAt}, true, stale, nil
}

// fetch runs q.Fetch through singleflight. The fetch itself runs on a context
// detached from ctx, so a caller giving up does not fail other waiters. seen is
// the updatedAt the caller observed; data resolved after it is reused instead
// of fetched again.
func fetch[T any](ctx context.Context, c *Client, q Query[T], seen time.Time) (Ready[T], error) {
	hash := q.Key.Hash()
	if joined := c.markFetching(q.Key); joined {
		c.stats.dedups.Add(1)
		cacheDedups.Inc()
	}

	ch := c.group.DoChan(hash, func() (v any, err error) {
		if r, ok := resolvedSince[T](c, q.Key, seen); ok {
			c.stats.dedups.Add(1)
			cacheDedups.Inc()
			return r, nil
		}
		c.stats.fetches.Add(1)
		fctx, cancel := c.fetchContext(ctx)
		defer cancel()
		fctx, span := c.tracer.Start(fctx, "query.fetch", trace.WithAttributes(attribute.String("query.key", hash)))
		defer span.End()

		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("query %s: fetch panicked: %v", hash, p)
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				c.fail(q.Key, err)
				fetchTotal.WithLabelValues("error").Inc()
			}
		}()

		data, err := q.Fetch(fctx)
		if err != nil {
			return nil, err
		}
		now := c.resolve(q.Key, data)
		fetchTotal.WithLabelValues("success").Inc()
		return Ready[T]{key: q.Key, value: data, updatedAt: now}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Ready[T]{}, res.Err
		}
		r, ok := res.Val.(Ready[T])
		if !ok {
			return Ready[T]{}, fmt.Errorf("%w: key %s", ErrTypeMismatch, q.Key)
		}
		return r, nil
	case <-ctx.Done():
		return Ready[T]{}, ctx.Err()
	}
}

// resolvedSince returns the entry's data when a flight that finished after seen
// already stored it. It must run inside the key's flight.
func resolvedSince[T any](c *Client, key Key, seen time.Time) (Ready[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key.Hash()]
	if e == nil || !e.hasData || e.raw != nil || e.stale || !e.updatedAt.After(seen) {
		return Ready[T]{}, false
	}
	v, ok := e.data.(T)
	if !ok {
		return Ready[T]{}, false
	}
	e.fetching = false
	return Ready[T]{key: e.key, value: v, updatedAt: e.updatedAt}, true
}

func (c *Client) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.opts.FetchTimeout > 0 {
		return context.WithTimeout(detached, c.opts.FetchTimeout)
	}
	return context.WithCancel(detached)
}

// markFetching flags the entry as in flight and reports whether a fetch was already running.
func (c *Client) markFetching(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.getOrCreate(key)
	e.lastAccess = c.opts.Now()
	joined := e.fetching
	e.fetching = true
	return joined
}

func (c *Client) getOrCreate(key Key) *entry {
	h := key.Hash()
	e := c.entries[h]
	if e == nil {
		e = &entry{key: key}
		c.entries[h] = e
	}
	return e
}

func (c *Client) resolve(key Key, data any) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.opts.Now()
	e := c.getOrCreate(key)
	e.hasData = true
	e.data, e.raw, e.err = data, nil, nil
	e.fetching, e.stale = false, false
	e.updatedAt, e.lastAccess = now, now
	e.fetches++
	return now
}

// fail records err and keeps any previously fetched data.
func (c *Client) fail(key Key, err error) {
	c.stats.failures.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.getOrCreate(key)
	e.err = err
	e.fetching = false
	e.fetches++
}

func (c *Client) revalidate(key Key, run func(ctx context.Context) error) {
	c.mu.Lock()
	e := c.entries[key.Hash()]
	busy := e != nil && e.fetching
	c.mu.Unlock()
	if busy {
		return
	}
	ctx := c.baseCtx.Load().(context.Context)
	err := c.opts.Submit(func() {
		if err := run(ctx); err != nil {
			c.log.Warn().Err(err).Str("key", key.Hash()).Msg("background revalidation failed")
		}
	})
	if err != nil {
		c.log.Debug().Err(err).Str("key", key.Hash()).Msg("revalidation not scheduled")
		return
	}
	c.stats.revalidations.Add(1)
}

// State reports the entry's status. An entry that has data is Ready even while it refetches.
func (c *Client) State(key Key) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key.Hash()].status()
}

func (e *entry) status() Status {
	switch {
	case e == nil:
		return StatusIdle
	case e.hasData:
		return StatusReady
	case e.fetching:
		return StatusLoading
	case e.err != nil:
		return StatusFailed
	default:
		return StatusIdle
	}
}

// EntryInfo describes one cache entry for inspection.
type EntryInfo struct {
	Key       string    `json:"key"`
	Status    string    `json:"status"`
	Stale     bool      `json:"stale"`
	Fetching  bool      `json:"fetching"`
	Fetches   int       `json:"fetches"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Entries lists entries under prefix sorted by key.
func (c *Client) Entries(prefix Key) []EntryInfo {
	c.mu.Lock()
	out := make([]EntryInfo, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		info := EntryInfo{
			Key:       e.key.Hash(),
			Status:    e.status().String(),
			Stale:     e.hasData && c.isStale(e, c.opts.StaleTime),
			Fetching:  e.fetching,
			Fetches:   e.fetches,
			UpdatedAt: e.updatedAt,
		}
		if e.err != nil {
			info.Error = e.err.Error()
		}
		out = append(out, info)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Err returns the last fetch error recorded for key.
func (c *Client) Err(key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.entries[key.Hash()]; e != nil {
		return e.err
	}
	return nil
}

// InvalidateQueries marks every entry under prefix stale and returns how many matched.
func (c *Client) InvalidateQueries(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.stale = true
			n++
		}
	}
	return n
}

// RemoveQueries drops every idle entry under prefix. In-flight entries are kept.
func (c *Client) RemoveQueries(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for h, e := range c.entries {
		if e.key.HasPrefix(prefix) && !e.fetching {
			delete(c.entries, h)
			n++
		}
	}
	return n
}

// Sweep evicts entries that have not been read for GCTime.
func (c *Client) Sweep() int {
	if c.opts.GCTime <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.opts.Now()
	n := 0
	for h, e := range c.entries {
		if !e.fetching && now.Sub(e.lastAccess) >= c.opts.GCTime {
			delete(c.entries, h)
			n++
		}
	}
	if n > 0 {
		c.stats.evictions.Add(uint64(n))
		cacheEvictions.Add(float64(n))
	}
	return n
}

// Start runs garbage collection until ctx is done. ctx also becomes the parent
// of background revalidations.
func (c *Client) Start(ctx context.Context) {
	c.baseCtx.Store(ctx)
	if c.opts.GCTime <= 0 {
		return
	}
	interval := c.opts.GCTime / 2
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					c.log.Debug().Int("evicted", n).Msg("query cache sweep")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries       int    `json:"entries"`
	Fetching      int    `json:"fetching"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Fetches       uint64 `json:"fetches"`
	Failures      uint64 `json:"failures"`
	Dedups        uint64 `json:"dedups"`
	Evictions     uint64 `json:"evictions"`
	Revalidations uint64 `json:"revalidations"`
}

func (c *Client) Stats() Stats {
	c.mu.Lock()
	s := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		if e.fetching {
			s.Fetching++
		}
	}
	c.mu.Unlock()
	s.Hits = c.stats.hits.Load()
	s.Misses = c.stats.misses.Load()
	s.Fetches = c.stats.fetches.Load()
	s.Failures = c.stats.failures.Load()
	s.Dedups = c.stats.dedups.Load()
	s.Evictions = c.stats.evictions.Load()
	s.Revalidations = c.stats.revalidations.Load()
	return s
}
