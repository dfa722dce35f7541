package rdb

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "tracker/db/db"
	"tracker/segment"
)

func newTestStore(t *testing.T) *RedisSnapshotStore {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping redis tests")
	}
	client, err := NewClient(url)
	require.NoError(t, err)
	store := NewRedisSnapshotStore(client, "test-"+uuid.NewString())
	t.Cleanup(func() {
		_ = store.Delete(context.Background())
		_ = client.Close()
	})
	return store
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)
}

func TestRedisSnapshotStoreConflictRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	fetched, err := store.Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, fetched)

	a := dbt.Snapshot{UpdatedAt: "2025-10-27T10:00:00Z", Segments: []segment.Segment{{ID: "a", TeamID: "A", LegNo: 1}}}
	_, err = store.Save(ctx, a, dbt.SaveOptions{})
	require.NoError(t, err)

	b := dbt.Snapshot{UpdatedAt: "2025-10-27T11:00:00Z", Segments: []segment.Segment{{ID: "b", TeamID: "A", LegNo: 1}}}
	_, err = store.Save(ctx, b, dbt.SaveOptions{BaseUpdatedAt: a.UpdatedAt})
	require.NoError(t, err)

	c := dbt.Snapshot{UpdatedAt: "2025-10-27T12:00:00Z", Segments: []segment.Segment{}}
	_, err = store.Save(ctx, c, dbt.SaveOptions{BaseUpdatedAt: a.UpdatedAt})
	conflict, ok := dbt.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, b, conflict.Existing)
}
