package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddSnapshotSegmentsCheck, downAddSnapshotSegmentsCheck)
}

// The store writes a JSON array; reject anything else at the database level.
func upAddSnapshotSegmentsCheck(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		ALTER TABLE route_snapshots
		ADD CONSTRAINT route_snapshots_segments_is_array
		CHECK (json_typeof(segments::json) = 'array');
	`)
	if err != nil {
		return err
	}

	return nil
}

func downAddSnapshotSegmentsCheck(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		ALTER TABLE route_snapshots
		DROP CONSTRAINT IF EXISTS route_snapshots_segments_is_array;
	`)
	if err != nil {
		return err
	}

	return nil
}
