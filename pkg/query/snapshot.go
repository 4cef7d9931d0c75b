package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is bumped whenever the dehydrated layout changes; older snapshots are discarded.
const SnapshotVersion = 1

// DehydratedQuery is one persisted entry.
type DehydratedQuery struct {
	Key       Key             `json:"key"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Snapshot is the serializable form of a cache.
type Snapshot struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Queries   []DehydratedQuery `json:"queries"`
}

// Dehydrate serializes every entry that holds data. Errors and in-flight state are not kept.
func (c *Client) Dehydrate() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{Version: SnapshotVersion, CreatedAt: c.opts.Now()}
	for _, e := range c.entries {
		if !e.hasData {
			continue
		}
		raw := e.raw
		if raw == nil {
			b, err := json.Marshal(e.data)
			if err != nil {
				return Snapshot{}, fmt.Errorf("dehydrate %s: %w", e.key, err)
			}
			raw = b
		}
		s.Queries = append(s.Queries, DehydratedQuery{Key: e.key, Data: raw, UpdatedAt: e.updatedAt})
	}
	return s, nil
}

// Hydrate loads entries from s. Entries older than maxAge (when positive) are
// skipped, as are keys the cache already holds newer data for. Hydrated data is
// decoded lazily on first read. It returns the number of entries restored.
func (c *Client) Hydrate(s Snapshot, maxAge time.Duration) int {
	if s.Version != SnapshotVersion {
		c.log.Info().Int("version", s.Version).Msg("discarding query snapshot with foreign version")
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	n := 0
	for _, q := range s.Queries {
		if len(q.Key) == 0 || len(q.Data) == 0 {
			continue
		}
		if maxAge > 0 && now.Sub(q.UpdatedAt) > maxAge {
			continue
		}
		e := c.getOrCreate(q.Key)
		if e.hasData && !e.updatedAt.Before(q.UpdatedAt) {
			continue
		}
		e.hasData = true
		e.data, e.raw, e.err = nil, q.Data, nil
		e.updatedAt, e.lastAccess = q.UpdatedAt, now
		n++
	}
	return n
}

// Persister stores and restores cache snapshots.
type Persister interface {
	Persist(ctx context.Context, s Snapshot) error
	// Restore returns an empty Snapshot with the current version when nothing is stored.
	Restore(ctx context.Context) (Snapshot, error)
	Remove(ctx context.Context) error
}

// PersistClient dehydrates c into p.
func PersistClient(ctx context.Context, c *Client, p Persister) error {
	s, err := c.Dehydrate()
	if err != nil {
		return err
	}
	if err := p.Persist(ctx, s); err != nil {
		return fmt.Errorf("persist query snapshot: %w", err)
	}
	c.log.Info().Int("queries", len(s.Queries)).Msg("query cache persisted")
	return nil
}

// RestoreClient hydrates c from p and returns how many entries were restored.
func RestoreClient(ctx context.Context, c *Client, p Persister, maxAge time.Duration) (int, error) {
	s, err := p.Restore(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore query snapshot: %w", err)
	}
	n := c.Hydrate(s, maxAge)
	c.log.Info().Int("queries", n).Msg("query cache restored")
	return n, nil
}
