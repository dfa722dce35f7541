package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbt "tracker/db/db"
	"tracker/segment"
)

// DefaultScope names the snapshot row used when a store is created without one.
const DefaultScope = "default"

// GORMSnapshotStore is a GORM-based implementation of dbt.SnapshotStore.
// The optimistic check runs inside the UPDATE statement itself.
type GORMSnapshotStore struct {
	db    *gorm.DB
	scope string
}

// NewGORMSnapshotStore creates a store for one scope (row) of route_snapshots.
func NewGORMSnapshotStore(db *gorm.DB, scope string) *GORMSnapshotStore {
	if scope == "" {
		scope = DefaultScope
	}
	return &GORMSnapshotStore{
		db:    db,
		scope: scope,
	}
}

// Fetch returns nil when no row exists or when the stored JSON is malformed.
func (pgdb *GORMSnapshotStore) Fetch(ctx context.Context) (*dbt.Snapshot, error) {
	return pgdb.fetch(pgdb.db.WithContext(ctx))
}

func (pgdb *GORMSnapshotStore) fetch(tx *gorm.DB) (*dbt.Snapshot, error) {
	var model SnapshotModel
	result := tx.Where("scope = ?", pgdb.scope).Limit(1).Find(&model)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch snapshot %s: %w", pgdb.scope, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var segments []segment.Segment
	if err := json.Unmarshal([]byte(model.Segments), &segments); err != nil {
		log.Printf("[storage] snapshot %s holds malformed segments, treating as absent: %v", pgdb.scope, err)
		return nil, nil
	}
	if segments == nil {
		segments = []segment.Segment{}
	}
	return &dbt.Snapshot{Segments: segments, UpdatedAt: model.SnapshotUpdatedAt}, nil
}

// Save writes the snapshot unless dbt.CheckConflict rejects it.
func (pgdb *GORMSnapshotStore) Save(ctx context.Context, snapshot dbt.Snapshot, opts dbt.SaveOptions) (dbt.Snapshot, error) {
	if snapshot.Segments == nil {
		snapshot.Segments = []segment.Segment{}
	}
	encoded, err := json.Marshal(snapshot.Segments)
	if err != nil {
		return dbt.Snapshot{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	model := SnapshotModel{
		Scope:             pgdb.scope,
		Segments:          string(encoded),
		SnapshotUpdatedAt: snapshot.UpdatedAt,
	}

	err = pgdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if opts.Force || opts.BaseUpdatedAt == "" {
			return pgdb.upsert(tx, &model)
		}

		result := tx.Model(&SnapshotModel{}).
			Where("scope = ? AND snapshot_updated_at = ?", pgdb.scope, opts.BaseUpdatedAt).
			Updates(map[string]interface{}{
				"segments":            model.Segments,
				"snapshot_updated_at": model.SnapshotUpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update snapshot %s: %w", pgdb.scope, result.Error)
		}
		if result.RowsAffected == 1 {
			return nil
		}

		stored, err := pgdb.fetch(tx)
		if err != nil {
			return err
		}
		if err := dbt.CheckConflict(stored, opts); err != nil {
			return err
		}
		return pgdb.upsert(tx, &model)
	})
	if err != nil {
		return dbt.Snapshot{}, err
	}
	return dbt.CloneSnapshot(snapshot), nil
}

func (pgdb *GORMSnapshotStore) upsert(tx *gorm.DB, model *SnapshotModel) error {
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{"segments", "snapshot_updated_at", "updated_at"}),
	}).Create(model)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert snapshot %s: %w", pgdb.scope, result.Error)
	}
	return nil
}

// Delete removes the scope's row. Missing rows are not an error.
func (pgdb *GORMSnapshotStore) Delete(ctx context.Context) error {
	result := pgdb.db.WithContext(ctx).Where("scope = ?", pgdb.scope).Delete(&SnapshotModel{})
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to delete snapshot %s: %w", pgdb.scope, result.Error)
	}
	return nil
}
