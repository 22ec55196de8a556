package repository

import (
	"context"
	"sync"
	"sync/atomic"

	"taskboard/internal/models"
)

// MemoryBindingStore keeps bindings in process memory. Nothing survives a restart.
type MemoryBindingStore struct {
	bindings sync.Map
}

func NewMemoryBindingStore() *MemoryBindingStore {
	return &MemoryBindingStore{}
}

func (r *MemoryBindingStore) GetBinding(ctx context.Context, identity string) (string, bool, error) {
	val, ok := r.bindings.Load(identity)
	if !ok {
		return "", false, nil
	}
	return val.(string), true, nil
}

func (r *MemoryBindingStore) SetBinding(ctx context.Context, identity, address string) error {
	r.bindings.Store(identity, address)
	return nil
}

// MemoryCursorStore holds the cursor for the lifetime of the process.
type MemoryCursorStore struct {
	value atomic.Int64
	set   atomic.Bool
}

func NewMemoryCursorStore() *MemoryCursorStore {
	s := &MemoryCursorStore{}
	s.value.Store(models.NoCursor)
	return s
}

func (s *MemoryCursorStore) LoadCursor(ctx context.Context) (int, bool, error) {
	if !s.set.Load() {
		return models.NoCursor, false, nil
	}
	return int(s.value.Load()), true, nil
}

func (s *MemoryCursorStore) StoreCursor(ctx context.Context, cursor int) error {
	s.value.Store(int64(cursor))
	s.set.Store(true)
	return nil
}
