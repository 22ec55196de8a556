package repository

import (
	"context"
	"testing"

	"taskboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBindingStore(t *testing.T) {
	store := NewMemoryBindingStore()
	ctx := context.Background()

	_, ok, err := store.GetBinding(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetBinding(ctx, "alice", "1001"))
	require.NoError(t, store.SetBinding(ctx, "alice", "2002"))

	addr, ok, err := store.GetBinding(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2002", addr)
}

func TestMemoryCursorStore(t *testing.T) {
	store := NewMemoryCursorStore()
	ctx := context.Background()

	cursor, ok, err := store.LoadCursor(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.NoCursor, cursor)

	require.NoError(t, store.StoreCursor(ctx, 42))
	cursor, ok, err = store.LoadCursor(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, cursor)
}
