package mem_test // Use _test suffix for test package

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "tracker/db/db"
	"tracker/db/mem"
)

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	store := mem.NewInMemoryKVStore()

	// Test 1: missing key
	_, err := store.Get(ctx, dbt.KeySnapshot)
	assert.ErrorIs(t, err, dbt.ErrNotFound)

	// Test 2: put then get
	value := []byte(`{"segments":[]}`)
	require.NoError(t, store.Put(ctx, dbt.KeySnapshot, value))
	got, err := store.Get(ctx, dbt.KeySnapshot)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	// Test 3: stored bytes are not aliased
	value[0] = 'X'
	got[1] = 'Y'
	again, err := store.Get(ctx, dbt.KeySnapshot)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"segments":[]}`), again)

	// Test 4: delete, including a missing key
	require.NoError(t, store.Delete(ctx, dbt.KeySnapshot))
	require.NoError(t, store.Delete(ctx, dbt.KeyOutbox))
	_, err = store.Get(ctx, dbt.KeySnapshot)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}
