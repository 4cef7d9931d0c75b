package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"poolview/pkg/common/fs"
	"poolview/pkg/common/logger"
	"poolview/pkg/query"
)

// DefaultFileName is the snapshot object inside the runtime directory.
const DefaultFileName = "query-cache.snapshot"

// FilePersister keeps the snapshot as one compressed JSON object in the runtime directory.
type FilePersister struct {
	fsys *fs.FileSystem
	name string
}

func NewFilePersister(fsys *fs.FileSystem, name string) *FilePersister {
	if name == "" {
		name = DefaultFileName
	}
	return &FilePersister{fsys: fsys, name: name}
}

func (p *FilePersister) Persist(ctx context.Context, s query.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := p.fsys.WriteObject(p.name, data); err != nil {
		return err
	}
	if size, err := p.fsys.GetObjectSize(p.name); err == nil {
		logger.WithComponent("persist").Debug().
			Str("object", p.name).
			Int("raw_bytes", len(data)).
			Int64("stored_bytes", size).
			Msg("query snapshot written")
	}
	return nil
}

func (p *FilePersister) Restore(ctx context.Context) (query.Snapshot, error) {
	exists, err := p.fsys.ObjectExists(p.name)
	if err != nil {
		return query.Snapshot{}, err
	}
	if !exists {
		return query.Snapshot{Version: query.SnapshotVersion}, nil
	}
	data, err := p.fsys.ReadObject(p.name)
	if err != nil {
		return query.Snapshot{}, err
	}
	var s query.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return query.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", p.name, err)
	}
	return s, nil
}

func (p *FilePersister) Remove(ctx context.Context) error {
	return p.fsys.DeleteObject(p.name)
}
