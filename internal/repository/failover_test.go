package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetBinding(ctx context.Context, identity string) (string, bool, error) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockStore) SetBinding(ctx context.Context, identity, address string) error {
	args := m.Called(ctx, identity, address)
	return args.Error(0)
}

func TestFailoverBindingStore(t *testing.T) {
	primary := new(mockStore)
	fallback := NewMemoryBindingStore()
	logger := zerolog.New(io.Discard)
	store := NewFailoverBindingStore(primary, fallback, &logger)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("GetBinding", ctx, "alice").Return("1001", true, nil).Once()

		addr, ok, err := store.GetBinding(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "1001", addr)
		assert.False(t, store.Degraded())
	})

	t.Run("PrimaryFailsOnWrite", func(t *testing.T) {
		primary.On("SetBinding", ctx, "bob", "2002").Return(errors.New("connection refused")).Once()

		require.NoError(t, store.SetBinding(ctx, "bob", "2002"))
		assert.True(t, store.Degraded())

		addr, ok, _ := fallback.GetBinding(ctx, "bob")
		assert.True(t, ok)
		assert.Equal(t, "2002", addr)
	})

	t.Run("DegradedSkipsPrimary", func(t *testing.T) {
		addr, ok, err := store.GetBinding(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "2002", addr)
	})

	t.Run("RecoversAfterWindow", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("GetBinding", ctx, "bob").Return("", false, nil).Once()

		// primary is back but does not know bob: the outage write is still served
		addr, ok, err := store.GetBinding(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "2002", addr)
		assert.False(t, store.Degraded())
	})

	primary.AssertExpectations(t)
}

func TestFailoverBindingStore_LogsSecondaryFallback(t *testing.T) {
	primary := new(mockStore)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	store := NewFailoverBindingStore(primary, NewMemoryBindingStore(), &logger)
	ctx := context.Background()

	primary.On("SetBinding", ctx, "dave", "9").Return(errors.New("timeout")).Once()
	require.NoError(t, store.SetBinding(ctx, "dave", "9"))

	assert.Contains(t, buf.String(), "falling back to secondary store")
	assert.NotContains(t, buf.String(), "memory")
	primary.AssertExpectations(t)
}
