package query

import (
	"context"
	"errors"
	"math"
	"time"
)

// StaleNever keeps data fresh until it is invalidated.
const StaleNever = time.Duration(math.MaxInt64)

// Query describes how to load one cache entry.
type Query[T any] struct {
	Key   Key
	Fetch func(ctx context.Context) (T, error)
	// StaleTime overrides the client default when non-zero.
	StaleTime time.Duration
}

// Status is the observable state of a cache entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Ready is resolved query data. Only this package constructs non-zero values,
// so holding a Ready means the load already succeeded.
type Ready[T any] struct {
	key       Key
	value     T
	updatedAt time.Time
}

// Data returns the loaded value.
func (r Ready[T]) Data() T { return r.value }

// Key returns the key the data was loaded under.
func (r Ready[T]) Key() Key { return r.key }

// UpdatedAt returns when the data was last fetched or hydrated.
func (r Ready[T]) UpdatedAt() time.Time { return r.updatedAt }

// Valid is false for the zero Ready.
func (r Ready[T]) Valid() bool { return r.key != nil }

var (
	// ErrTypeMismatch means two queries with different result types share a key.
	ErrTypeMismatch = errors.New("query: cached value has a different type")
	// ErrNoFetch is returned for a Query without a Fetch function.
	ErrNoFetch = errors.New("query: missing fetch function")
	// ErrEmptyKey is returned for a Query without a key.
	ErrEmptyKey = errors.New("query: empty key")
)
