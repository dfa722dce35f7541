package disk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "tracker/db/db"
)

func TestDiskKVStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewDiskKVStore(dir)
	require.NoError(t, err)

	_, err = store.Get(ctx, dbt.KeyOutbox)
	assert.ErrorIs(t, err, dbt.ErrNotFound)

	require.NoError(t, store.Put(ctx, dbt.KeyOutbox, []byte(`[]`)))
	got, err := store.Get(ctx, dbt.KeyOutbox)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)

	_, err = os.Stat(filepath.Join(dir, "segments", "outbox"))
	assert.NoError(t, err, "keys are laid out as collection/name")

	// a second store on the same directory sees the data
	reopened, err := NewDiskKVStore(dir)
	require.NoError(t, err)
	got, err = reopened.Get(ctx, dbt.KeyOutbox)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)

	require.NoError(t, store.Delete(ctx, dbt.KeyOutbox))
	require.NoError(t, store.Delete(ctx, dbt.KeyOutbox))
	_, err = store.Get(ctx, dbt.KeyOutbox)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestPathTransformRoundTrip(t *testing.T) {
	for _, key := range []string{dbt.KeySnapshot, "plain", "a:b:c"} {
		assert.Equal(t, key, pathToKeyTransform(keyToPathTransform(key)))
	}
}
