package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"poolview/pkg/query"
)

// DefaultDBName is the sqlite file used by the sqlite backend.
const DefaultDBName = "querycache.db"

// QuerySnapshot is one dehydrated query row.
type QuerySnapshot struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Hash      string    `gorm:"uniqueIndex;size:512" json:"hash"`
	Key       string    `gorm:"type:text" json:"key"` // JSON array of key parts
	Data      string    `gorm:"type:text" json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// DBPersister stores one row per query. Persist replaces the whole table.
type DBPersister struct {
	db *gorm.DB
}

// NewDBPersister migrates the snapshot table on db.
func NewDBPersister(db *gorm.DB) (*DBPersister, error) {
	if err := db.AutoMigrate(&QuerySnapshot{}); err != nil {
		return nil, fmt.Errorf("auto migrate query snapshots: %w", err)
	}
	return &DBPersister{db: db}, nil
}

func (p *DBPersister) Persist(ctx context.Context, s query.Snapshot) error {
	rows := make([]QuerySnapshot, 0, len(s.Queries))
	for _, q := range s.Queries {
		key, err := json.Marshal(q.Key)
		if err != nil {
			return fmt.Errorf("marshal key %s: %w", q.Key, err)
		}
		rows = append(rows, QuerySnapshot{
			Hash:      q.Key.Hash(),
			Key:       string(key),
			Data:      string(q.Data),
			FetchedAt: q.UpdatedAt,
			Version:   s.Version,
		})
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&QuerySnapshot{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

func (p *DBPersister) Restore(ctx context.Context) (query.Snapshot, error) {
	var rows []QuerySnapshot
	if err := p.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return query.Snapshot{}, err
	}
	s := query.Snapshot{Version: query.SnapshotVersion}
	for _, r := range rows {
		if r.Version != query.SnapshotVersion {
			s.Version = r.Version
		}
		var key query.Key
		if err := json.Unmarshal([]byte(r.Key), &key); err != nil {
			return query.Snapshot{}, fmt.Errorf("decode key of row %d: %w", r.ID, err)
		}
		s.Queries = append(s.Queries, query.DehydratedQuery{
			Key:       key,
			Data:      json.RawMessage(r.Data),
			UpdatedAt: r.FetchedAt,
		})
		if r.CreatedAt.After(s.CreatedAt) {
			s.CreatedAt = r.CreatedAt
		}
	}
	return s, nil
}

func (p *DBPersister) Remove(ctx context.Context) error {
	return p.db.WithContext(ctx).Where("1 = 1").Delete(&QuerySnapshot{}).Error
}
