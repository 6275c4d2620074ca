// Package storetest holds the behavioural contract every store.Store backend
// is expected to satisfy.
package storetest

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/kvcomments/internal/store"
)

// Factory returns a fresh, empty store. The contract closes it.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store.Store contract. maxValue is the size limit
// the factory configured, or 0 when the backend was built without one.
func Run(t *testing.T, newStore Factory, maxValue int) {
	t.Run("GetMissing", func(t *testing.T) {
		s := open(t, newStore)
		_, err := s.Get(context.Background(), "absent")
		assert.ErrorIs(t, err, store.ErrKeyNotFound)
	})

	t.Run("PutThenGet", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		rev, err := s.Put(ctx, "comment_list", []byte(`[]`))
		require.NoError(t, err)
		require.NotEmpty(t, rev)

		e, err := s.Get(ctx, "comment_list")
		require.NoError(t, err)
		assert.Equal(t, "comment_list", e.Key)
		assert.Equal(t, `[]`, string(e.Value))
		assert.Equal(t, rev, e.Revision)
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		first, err := s.Put(ctx, "k", []byte("one"))
		require.NoError(t, err)
		second, err := s.Put(ctx, "k", []byte("two"))
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		e, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "two", string(e.Value))
	})

	t.Run("CreateOnlyOnce", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		_, err := s.Create(ctx, "k", []byte("one"))
		require.NoError(t, err)
		_, err = s.Create(ctx, "k", []byte("two"))
		assert.ErrorIs(t, err, store.ErrKeyExists)
		assert.True(t, store.IsConflict(err))

		e, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "one", string(e.Value))
	})

	t.Run("UpdateChecksRevision", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		rev, err := s.Create(ctx, "k", []byte("one"))
		require.NoError(t, err)

		next, err := s.Update(ctx, "k", []byte("two"), rev)
		require.NoError(t, err)
		assert.NotEqual(t, rev, next)

		// The old revision is stale now.
		_, err = s.Update(ctx, "k", []byte("three"), rev)
		assert.ErrorIs(t, err, store.ErrRevisionMismatch)
		assert.True(t, store.IsConflict(err))

		e, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "two", string(e.Value))
		assert.Equal(t, next, e.Revision)
	})

	t.Run("DeleteRemoves", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		_, err := s.Put(ctx, "k", []byte("v"))
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, "k"))

		_, err = s.Get(ctx, "k")
		assert.ErrorIs(t, err, store.ErrKeyNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "k"), store.ErrKeyNotFound)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		_, err := s.Put(ctx, "comment_list", []byte("a"))
		require.NoError(t, err)
		_, err = s.Put(ctx, "page_comments", []byte("b"))
		require.NoError(t, err)

		e, err := s.Get(ctx, "comment_list")
		require.NoError(t, err)
		assert.Equal(t, "a", string(e.Value))
	})

	if maxValue > 0 {
		t.Run("RejectsOversizedValue", func(t *testing.T) {
			s := open(t, newStore)
			_, err := s.Put(context.Background(), "k", bytes.Repeat([]byte("x"), maxValue+1))
			assert.ErrorIs(t, err, store.ErrValueTooLarge)
		})
	}
}

func open(t *testing.T, newStore Factory) store.Store {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
