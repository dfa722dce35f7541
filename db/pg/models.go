package pg

import (
	"time"
)

// SnapshotModel stores one remote snapshot per scope. Segments is the JSON
// encoded segment list.
type SnapshotModel struct {
	Scope             string `gorm:"size:64;primaryKey"`
	Segments          string `gorm:"type:text;not null"`
	SnapshotUpdatedAt string `gorm:"size:64;not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for SnapshotModel.
func (SnapshotModel) TableName() string {
	return "route_snapshots"
}
