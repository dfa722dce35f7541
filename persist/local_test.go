package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "tracker/db/db"
	"tracker/db/mem"
	"tracker/segment"
)

var errUnavailable = errors.New("storage unavailable")

// brokenKV fails every call.
type brokenKV struct{}

func (brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errUnavailable }
func (brokenKV) Put(context.Context, string, []byte) error { return errUnavailable }
func (brokenKV) Delete(context.Context, string) error { return errUnavailable }

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStore(mem.NewInMemoryKVStore())

	snapshot, err := local.ReadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	stored := dbt.Snapshot{
		Segments:  []segment.Segment{{ID: "seg-1", TeamID: "A", LegNo: 1, Type: segment.TypeBus}},
		UpdatedAt: "2025-10-27T08:00:00.000Z",
	}
	require.NoError(t, local.WriteSnapshot(ctx, stored))
	snapshot, err = local.ReadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, stored, *snapshot)

	require.NoError(t, local.WriteOutbox(ctx, []dbt.OutboxEntry{{Snapshot: stored, QueuedAt: stored.UpdatedAt}}))
	outbox, err := local.ReadOutbox(ctx)
	require.NoError(t, err)
	assert.Len(t, outbox, 1)

	require.NoError(t, local.WriteOutbox(ctx, nil))
	outbox, err = local.ReadOutbox(ctx)
	require.NoError(t, err)
	assert.Empty(t, outbox)

	require.NoError(t, local.WriteCursor(ctx, "2025-10-27T09:00:00.000Z"))
	cursor, err := local.ReadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-10-27T09:00:00.000Z", cursor)

	require.NoError(t, local.WriteUndo(ctx, dbt.UndoEntry{Segment: stored.Segments[0], Index: 2}))
	undo, err := local.ReadUndo(ctx)
	require.NoError(t, err)
	require.NotNil(t, undo)
	assert.Equal(t, 2, undo.Index)
	require.NoError(t, local.ClearUndo(ctx))
	undo, err = local.ReadUndo(ctx)
	require.NoError(t, err)
	assert.Nil(t, undo)

	assert.False(t, local.Degraded())
}

func TestLocalStoreConflict(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStore(mem.NewInMemoryKVStore())

	c, err := local.ReadConflict(ctx)
	require.NoError(t, err)
	assert.Nil(t, c)

	stored := Conflict{RemoteUpdatedAt: "2025-10-27T12:00:00.000Z", LocalUpdatedAt: "2025-10-27T11:00:00.000Z"}
	require.NoError(t, local.WriteConflict(ctx, stored))
	c, err = local.ReadConflict(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, stored.RemoteUpdatedAt, c.RemoteUpdatedAt)
	assert.Equal(t, stored.LocalUpdatedAt, c.LocalUpdatedAt)

	require.NoError(t, local.ClearConflict(ctx))
	require.NoError(t, local.ClearConflict(ctx))
	c, err = local.ReadConflict(ctx)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestLocalStoreMalformedDataIsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := mem.NewInMemoryKVStore()
	require.NoError(t, kv.Put(ctx, dbt.KeySnapshot, []byte("{not json")))
	require.NoError(t, kv.Put(ctx, dbt.KeyOutbox, []byte(`{"segments":`)))

	local := NewLocalStore(kv)
	snapshot, err := local.ReadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	outbox, err := local.ReadOutbox(ctx)
	require.NoError(t, err)
	assert.Empty(t, outbox)
}

func TestLocalStoreDegradesToMemory(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStore(brokenKV{})

	snapshot, err := local.ReadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
	assert.True(t, local.Degraded())

	stored := dbt.Snapshot{UpdatedAt: "2025-10-27T08:00:00.000Z"}
	require.NoError(t, local.WriteSnapshot(ctx, stored))
	snapshot, err = local.ReadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, stored.UpdatedAt, snapshot.UpdatedAt)
}

func TestLocalStoreWithoutPrimary(t *testing.T) {
	local := NewLocalStore(nil)
	assert.True(t, local.Degraded())
	require.NoError(t, local.WriteCursor(context.Background(), "c"))
}
