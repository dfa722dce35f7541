package mem

import (
	"context"
	"sync"

	dbt "tracker/db/db"
)

// inMemoryKVStore is an in-memory implementation of dbt.KVStore.
// It doubles as the fallback when the durable store is unavailable.
type inMemoryKVStore struct {
	values map[string][]byte

	mu sync.RWMutex
}

// NewInMemoryKVStore creates and returns a new instance of inMemoryKVStore.
func NewInMemoryKVStore() dbt.KVStore {
	return &inMemoryKVStore{
		values: make(map[string][]byte),
	}
}

func (db *inMemoryKVStore) Get(_ context.Context, key string) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	value, exists := db.values[key]
	if !exists {
		return nil, dbt.ErrNotFound
	}
	// Return a copy so callers cannot modify the stored bytes
	return append([]byte(nil), value...), nil
}

func (db *inMemoryKVStore) Put(_ context.Context, key string, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.values[key] = append([]byte(nil), value...)
	return nil
}

func (db *inMemoryKVStore) Delete(_ context.Context, key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.values, key)
	return nil
}
