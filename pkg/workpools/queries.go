package workpools

import (
	"context"

	"poolview/pkg/query"
)

type keys struct{}

// Keys builds cache keys for work pool queries.
var Keys keys

// All matches every work pool entry.
func (keys) All() query.Key { return query.Key{"work-pools"} }

// Details matches every single-pool entry.
func (keys) Details() query.Key { return append(Keys.All(), "details") }

// Detail is the key for one pool.
func (keys) Detail(name string) query.Key { return append(Keys.Details(), name) }

// BuildGetWorkPoolQuery describes loading the pool called name through api.
func BuildGetWorkPoolQuery(api Getter, name string) query.Query[WorkPool] {
	return query.Query[WorkPool]{
		Key: Keys.Detail(name),
		Fetch: func(ctx context.Context) (WorkPool, error) {
			return api.GetWorkPool(ctx, name)
		},
	}
}
