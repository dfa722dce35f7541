package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	dbt "tracker/db/db"
	"tracker/db/mem"
)

// LocalStore is the typed view over the local key-value store. When the
// durable store fails it switches to an in-memory substitute for the rest of
// the session instead of failing the caller.
type LocalStore struct {
	primary  dbt.KVStore
	fallback dbt.KVStore

	mu       sync.Mutex
	degraded bool
}

// NewLocalStore wraps primary. A nil primary starts in memory-only mode.
func NewLocalStore(primary dbt.KVStore) *LocalStore {
	return &LocalStore{
		primary:  primary,
		fallback: mem.NewInMemoryKVStore(),
		degraded: primary == nil,
	}
}

// Degraded reports whether writes currently go to memory only.
func (l *LocalStore) Degraded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

func (l *LocalStore) active() dbt.KVStore {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.degraded {
		return l.fallback
	}
	return l.primary
}

func (l *LocalStore) degrade(op, key string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.degraded {
		log.Printf("[storage] local store %s %s failed, continuing in memory: %v", op, key, err)
		l.degraded = true
	}
}

func (l *LocalStore) get(ctx context.Context, key string) ([]byte, error) {
	store := l.active()
	value, err := store.Get(ctx, key)
	if err == nil || errors.Is(err, dbt.ErrNotFound) || store == l.fallback {
		return value, err
	}
	l.degrade("read", key, err)
	return l.fallback.Get(ctx, key)
}

func (l *LocalStore) put(ctx context.Context, key string, value []byte) error {
	store := l.active()
	err := store.Put(ctx, key, value)
	if err == nil || store == l.fallback {
		return err
	}
	l.degrade("write", key, err)
	return l.fallback.Put(ctx, key, value)
}

func (l *LocalStore) delete(ctx context.Context, key string) error {
	store := l.active()
	err := store.Delete(ctx, key)
	if err == nil || store == l.fallback {
		return err
	}
	l.degrade("delete", key, err)
	return l.fallback.Delete(ctx, key)
}

// readJSON decodes key into target. Missing and malformed values both report false.
func (l *LocalStore) readJSON(ctx context.Context, key string, target any) (bool, error) {
	raw, err := l.get(ctx, key)
	if errors.Is(err, dbt.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		log.Printf("[storage] %s holds malformed JSON, treating as absent: %v", key, err)
		return false, nil
	}
	return true, nil
}

func (l *LocalStore) writeJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return l.put(ctx, key, raw)
}

// ReadSnapshot returns nil when no valid snapshot is stored.
func (l *LocalStore) ReadSnapshot(ctx context.Context) (*dbt.Snapshot, error) {
	var snapshot dbt.Snapshot
	ok, err := l.readJSON(ctx, dbt.KeySnapshot, &snapshot)
	if !ok || err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (l *LocalStore) WriteSnapshot(ctx context.Context, snapshot dbt.Snapshot) error {
	return l.writeJSON(ctx, dbt.KeySnapshot, snapshot)
}

func (l *LocalStore) ReadOutbox(ctx context.Context) ([]dbt.OutboxEntry, error) {
	var entries []dbt.OutboxEntry
	if _, err := l.readJSON(ctx, dbt.KeyOutbox, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteOutbox replaces the outbox. An empty list removes the key.
func (l *LocalStore) WriteOutbox(ctx context.Context, entries []dbt.OutboxEntry) error {
	if len(entries) == 0 {
		return l.delete(ctx, dbt.KeyOutbox)
	}
	return l.writeJSON(ctx, dbt.KeyOutbox, entries)
}

// ReadCursor returns the remote updatedAt of the last confirmed sync, or "".
func (l *LocalStore) ReadCursor(ctx context.Context) (string, error) {
	var cursor string
	if _, err := l.readJSON(ctx, dbt.KeyCursor, &cursor); err != nil {
		return "", err
	}
	return cursor, nil
}

func (l *LocalStore) WriteCursor(ctx context.Context, cursor string) error {
	return l.writeJSON(ctx, dbt.KeyCursor, cursor)
}

// ReadUndo returns the last deleted segment, or nil.
func (l *LocalStore) ReadUndo(ctx context.Context) (*dbt.UndoEntry, error) {
	var entry dbt.UndoEntry
	ok, err := l.readJSON(ctx, dbt.KeyUndo, &entry)
	if !ok || err != nil {
		return nil, err
	}
	return &entry, nil
}

func (l *LocalStore) WriteUndo(ctx context.Context, entry dbt.UndoEntry) error {
	return l.writeJSON(ctx, dbt.KeyUndo, entry)
}

func (l *LocalStore) ClearUndo(ctx context.Context) error {
	return l.delete(ctx, dbt.KeyUndo)
}

// ReadConflict returns the unresolved conflict of an earlier session, or nil.
func (l *LocalStore) ReadConflict(ctx context.Context) (*Conflict, error) {
	var c Conflict
	ok, err := l.readJSON(ctx, dbt.KeyConflict, &c)
	if !ok || err != nil {
		return nil, err
	}
	return &c, nil
}

func (l *LocalStore) WriteConflict(ctx context.Context, c Conflict) error {
	return l.writeJSON(ctx, dbt.KeyConflict, c)
}

func (l *LocalStore) ClearConflict(ctx context.Context) error {
	return l.delete(ctx, dbt.KeyConflict)
}
