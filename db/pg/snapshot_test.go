package pg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbt "tracker/db/db"
	"tracker/segment"
)

func initTest(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := InitSQLiteGORM(":memory:")
	require.NoError(t, err, "failed to initialize test database")
	t.Cleanup(func() { CloseGORM(testDB) })
	return testDB
}

func snapshotAt(updatedAt string, ids ...string) dbt.Snapshot {
	s := dbt.Snapshot{UpdatedAt: updatedAt, Segments: []segment.Segment{}}
	for i, id := range ids {
		cost := 12.5
		s.Segments = append(s.Segments, segment.Segment{
			ID: id, TeamID: "A", LegNo: 1, Type: segment.TypeBus,
			FromCity: "Lisbon", ToCity: "Porto",
			DepTime: "2025-10-27T08:00:00Z", ArrTime: "2025-10-27T10:00:00Z",
			Cost: &cost, Currency: "EUR", OrderIdx: i,
		})
	}
	return s
}

func TestGORMSnapshotStoreFetchEmpty(t *testing.T) {
	store := NewGORMSnapshotStore(initTest(t), "")

	snapshot, err := store.Fetch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestGORMSnapshotStoreConflictRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewGORMSnapshotStore(initTest(t), "team-a")

	a := snapshotAt("2025-10-27T10:00:00Z", "a")
	_, err := store.Save(ctx, a, dbt.SaveOptions{})
	require.NoError(t, err)

	b := snapshotAt("2025-10-27T11:00:00Z", "a", "b")
	saved, err := store.Save(ctx, b, dbt.SaveOptions{BaseUpdatedAt: a.UpdatedAt})
	require.NoError(t, err)
	assert.Equal(t, b, saved)

	c := snapshotAt("2025-10-27T12:00:00Z", "c")
	_, err = store.Save(ctx, c, dbt.SaveOptions{BaseUpdatedAt: a.UpdatedAt})
	conflict, ok := dbt.AsConflict(err)
	require.True(t, ok, "stale base must be rejected, got %v", err)
	assert.Equal(t, b, conflict.Existing)

	fetched, err := store.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, b, *fetched)

	_, err = store.Save(ctx, c, dbt.SaveOptions{BaseUpdatedAt: a.UpdatedAt, Force: true})
	require.NoError(t, err)
	fetched, err = store.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, c, *fetched)
}

func TestGORMSnapshotStoreBaseOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := NewGORMSnapshotStore(initTest(t), "")

	a := snapshotAt("2025-10-27T10:00:00Z", "a")
	_, err := store.Save(ctx, a, dbt.SaveOptions{BaseUpdatedAt: "2025-10-26T00:00:00Z"})
	require.NoError(t, err, "nothing stored means nothing to conflict with")

	fetched, err := store.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, *fetched)
}

func TestGORMSnapshotStoreScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	testDB := initTest(t)
	first := NewGORMSnapshotStore(testDB, "one")
	second := NewGORMSnapshotStore(testDB, "two")

	_, err := first.Save(ctx, snapshotAt("2025-10-27T10:00:00Z", "a"), dbt.SaveOptions{})
	require.NoError(t, err)

	fetched, err := second.Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, fetched)

	require.NoError(t, first.Delete(ctx))
	fetched, err = first.Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestGORMSnapshotStoreMalformedRow(t *testing.T) {
	ctx := context.Background()
	testDB := initTest(t)
	require.NoError(t, testDB.Create(&SnapshotModel{Scope: DefaultScope, Segments: "{oops", SnapshotUpdatedAt: "x"}).Error)

	snapshot, err := NewGORMSnapshotStore(testDB, "").Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}
