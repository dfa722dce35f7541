package web

import (
	"sync"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	dbt "tracker/db/db"
	"tracker/db/mem"
	"tracker/db/pg"
	"tracker/db/rdb"
)

// StoreProvider returns the snapshot store for a scope.
type StoreProvider interface {
	Store(scope string) dbt.SnapshotStore
}

// scopedStores builds one store per scope on first use.
type scopedStores struct {
	newStore func(scope string) dbt.SnapshotStore

	mu     sync.Mutex
	stores map[string]dbt.SnapshotStore
}

func (s *scopedStores) Store(scope string) dbt.SnapshotStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	store, ok := s.stores[scope]
	if !ok {
		store = s.newStore(scope)
		s.stores[scope] = store
	}
	return store
}

func newScopedStores(fn func(scope string) dbt.SnapshotStore) StoreProvider {
	return &scopedStores{newStore: fn, stores: make(map[string]dbt.SnapshotStore)}
}

func NewMemoryStoreProvider() StoreProvider {
	return newScopedStores(func(string) dbt.SnapshotStore {
		return mem.NewInMemorySnapshotStore()
	})
}

func NewGORMStoreProvider(db *gorm.DB) StoreProvider {
	return newScopedStores(func(scope string) dbt.SnapshotStore {
		return pg.NewGORMSnapshotStore(db, scope)
	})
}

func NewRedisStoreProvider(client *redis.Client) StoreProvider {
	return newScopedStores(func(scope string) dbt.SnapshotStore {
		return rdb.NewRedisSnapshotStore(client, scope)
	})
}
