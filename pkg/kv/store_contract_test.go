package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		ctx := testContext(t)

		value, found, err := store.Get(ctx, "host1:cpu")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, value)

		entry, err := store.GetEntry(ctx, "host1:cpu")
		require.NoError(t, err)
		assert.False(t, entry.Found)
	})

	t.Run("set and get", func(t *testing.T) {
		store := newStore(t)
		ctx := testContext(t)

		require.NoError(t, store.Set(ctx, "host1:cpu", []byte(`{"a":1}`)))
		require.NoError(t, store.Set(ctx, "host1:cpu", []byte(`{"a":2}`)))

		value, found, err := store.Get(ctx, "host1:cpu")
		require.NoError(t, err)
		assert.True(t, found)
		assert.JSONEq(t, `{"a":2}`, string(value))
	})

	t.Run("create and update", func(t *testing.T) {
		store := newStore(t)
		ctx := testContext(t)

		rev, err := store.Create(ctx, "host1:cpu", []byte("one"))
		require.NoError(t, err)

		_, err = store.Create(ctx, "host1:cpu", []byte("again"))
		require.ErrorIs(t, err, ErrKeyExists)

		next, err := store.Update(ctx, "host1:cpu", []byte("two"), rev)
		require.NoError(t, err)
		assert.NotEqual(t, rev, next)

		_, err = store.Update(ctx, "host1:cpu", []byte("stale"), rev)
		require.ErrorIs(t, err, ErrCASMismatch)

		value, _, err := store.Get(ctx, "host1:cpu")
		require.NoError(t, err)
		assert.Equal(t, "two", string(value))
	})

	t.Run("sets", func(t *testing.T) {
		store := newStore(t)
		ctx := testContext(t)

		members, err := store.SetMembers(ctx, "cpu")
		require.NoError(t, err)
		assert.Empty(t, members)

		require.NoError(t, store.SetAdd(ctx, "cpu", "host2"))
		require.NoError(t, store.SetAdd(ctx, "cpu", "host1", "host2"))

		members, err = store.SetMembers(ctx, "cpu")
		require.NoError(t, err)
		assert.Equal(t, []string{"host1", "host2"}, members)
	})

	t.Run("scan and delete", func(t *testing.T) {
		store := newStore(t)
		ctx := testContext(t)

		require.NoError(t, store.Set(ctx, "host1:cpu", []byte("x")))
		require.NoError(t, store.Set(ctx, "host1:mem", []byte("x")))
		require.NoError(t, store.Set(ctx, "host2:cpu", []byte("x")))
		require.NoError(t, store.SetAdd(ctx, "cpu", "host1", "host2"))

		keys, err := store.Scan(ctx, "host1:*")
		require.NoError(t, err)
		assert.Equal(t, []string{"host1:cpu", "host1:mem"}, keys)

		keys, err = store.Scan(ctx, "*")
		require.NoError(t, err)
		assert.Equal(t, []string{"cpu", "host1:cpu", "host1:mem", "host2:cpu"}, keys)

		removed, err := store.Delete(ctx, "host1:cpu", "cpu", "missing")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		keys, err = store.Scan(ctx, "*")
		require.NoError(t, err)
		assert.Equal(t, []string{"host1:mem", "host2:cpu"}, keys)
	})

	t.Run("create after delete", func(t *testing.T) {
		store := newStore(t)
		ctx := testContext(t)

		require.NoError(t, store.Set(ctx, "host1:cpu", []byte("x")))

		_, err := store.Delete(ctx, "host1:cpu")
		require.NoError(t, err)

		_, err = store.Create(ctx, "host1:cpu", []byte("y"))
		require.NoError(t, err)
	})

	t.Run("flush", func(t *testing.T) {
		store := newStore(t)
		ctx := testContext(t)

		require.NoError(t, store.Set(ctx, "host1:cpu", []byte("x")))
		require.NoError(t, store.SetAdd(ctx, "cpu", "host1"))
		require.NoError(t, store.Flush(ctx))

		keys, err := store.Scan(ctx, "*")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}
