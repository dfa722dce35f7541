package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateRouteSnapshots, downCreateRouteSnapshots)
}

func upCreateRouteSnapshots(ctx context.Context, tx *sql.Tx) error {
	// One row per scope; segments holds the JSON encoded segment list and
	// snapshot_updated_at is the optimistic concurrency token.
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE route_snapshots (
			scope VARCHAR(64) PRIMARY KEY,
			segments TEXT NOT NULL,
			snapshot_updated_at VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	return nil
}

func downCreateRouteSnapshots(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		DROP TABLE IF EXISTS route_snapshots;
	`)
	if err != nil {
		return err
	}

	return nil
}
