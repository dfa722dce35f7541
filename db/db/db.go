package db

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// KVStore is the local durable key-value contract. Get returns ErrNotFound for
// missing keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SnapshotStore is the remote snapshot contract. Fetch returns nil when nothing
// has been stored yet. Save returns a *ConflictError when CheckConflict rejects
// the write.
type SnapshotStore interface {
	Fetch(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot, opts SaveOptions) (Snapshot, error)
}
