package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_SetGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Set(ctx, "primary/profile", []byte(`{"id":"t1"}`)))
	got, err = store.Get(ctx, "primary/profile")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"t1"}`), got)

	// overwrite
	require.NoError(t, store.Set(ctx, "primary/profile", []byte(`{"id":"t2"}`)))
	got, err = store.Get(ctx, "primary/profile")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"t2"}`), got)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	require.NoError(t, store.Delete(ctx, "k"))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	// deleting an absent key is fine
	require.NoError(t, store.Delete(ctx, "k"))
}

func TestSQLiteStore_DeleteMany(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(ctx, k, []byte(k)))
	}
	require.NoError(t, store.DeleteMany(ctx, []string{"a", "c", "nope"}))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)

	require.NoError(t, store.DeleteMany(ctx, nil))
}

func TestSQLiteStore_List(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "archive/t1/profile", []byte("p")))
	require.NoError(t, store.Set(ctx, "archive/t1/rewards", []byte("r")))
	require.NoError(t, store.Set(ctx, "archive/t2/profile", []byte("x")))
	require.NoError(t, store.Set(ctx, "primary/profile", []byte("y")))

	got, err := store.List(ctx, "archive/t1/")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"archive/t1/profile": []byte("p"),
		"archive/t1/rewards": []byte("r"),
	}, got)
}
