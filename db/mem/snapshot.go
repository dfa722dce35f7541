package mem

import (
	"context"
	"sync"

	dbt "tracker/db/db"
)

// inMemorySnapshotStore is an in-memory implementation of dbt.SnapshotStore.
type inMemorySnapshotStore struct {
	stored *dbt.Snapshot

	mu sync.Mutex
}

// NewInMemorySnapshotStore creates an empty remote snapshot store.
func NewInMemorySnapshotStore() dbt.SnapshotStore {
	return &inMemorySnapshotStore{}
}

func (db *inMemorySnapshotStore) Fetch(_ context.Context) (*dbt.Snapshot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.stored == nil {
		return nil, nil
	}
	snapshot := dbt.CloneSnapshot(*db.stored)
	return &snapshot, nil
}

// Save checks and writes under one lock, so concurrent saves cannot both pass the check.
func (db *inMemorySnapshotStore) Save(_ context.Context, snapshot dbt.Snapshot, opts dbt.SaveOptions) (dbt.Snapshot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := dbt.CheckConflict(db.stored, opts); err != nil {
		return dbt.Snapshot{}, err
	}
	stored := dbt.CloneSnapshot(snapshot)
	db.stored = &stored
	return dbt.CloneSnapshot(stored), nil
}
