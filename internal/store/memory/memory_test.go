package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/kvcomments/internal/store"
	"github.com/alfredjeanlab/kvcomments/internal/store/storetest"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New(64) }, 64)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	_, err := s.Put(ctx, "k", []byte("abc"))
	require.NoError(t, err)

	e, err := s.Get(ctx, "k")
	require.NoError(t, err)
	e.Value[0] = 'z'

	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again.Value))
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Put(ctx, "k", []byte("v"))
	assert.ErrorIs(t, err, context.Canceled)
}
