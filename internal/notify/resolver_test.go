package notify

import (
	"context"
	"errors"
	"testing"

	"taskboard/internal/models"
	"taskboard/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBindings struct {
	mock.Mock
}

func (m *mockBindings) GetBinding(ctx context.Context, identity string) (string, bool, error) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockBindings) SetBinding(ctx context.Context, identity, address string) error {
	return m.Called(ctx, identity, address).Error(0)
}

func bindings(t *testing.T, pairs map[string]string) *repository.MemoryBindingStore {
	t.Helper()
	store := repository.NewMemoryBindingStore()
	for id, addr := range pairs {
		require.NoError(t, store.SetBinding(context.Background(), id, addr))
	}
	return store
}

func TestResolve_Created(t *testing.T) {
	store := bindings(t, map[string]string{"alice": "111", "bob": "222", "carol": "222"})
	r := NewResolver(store, nil)

	snap := models.TaskSnapshot{TaskID: 1, Owner: "alice", Assignees: []string{"bob", "carol", "dave"}}
	got := r.Resolve(context.Background(), models.NewCreatedEvent(snap))
	// shared address collapses, unbound dave contributes nothing
	assert.Equal(t, []string{"111", "222"}, got)
}

func TestResolve_Deleted(t *testing.T) {
	store := bindings(t, map[string]string{"alice": "111", "bob": "222"})
	r := NewResolver(store, nil)

	snap := models.TaskSnapshot{TaskID: 1, Owner: "bob"}
	assert.Equal(t, []string{"222"}, r.Resolve(context.Background(), models.NewDeletedEvent(snap)))
}

func TestResolve_UpdatedUnion(t *testing.T) {
	store := bindings(t, map[string]string{"alice": "111", "bob": "222", "carol": "333"})
	r := NewResolver(store, nil)

	old := models.TaskSnapshot{TaskID: 1, Owner: "alice", Assignees: []string{"bob"}}
	upd := models.TaskSnapshot{TaskID: 1, Owner: "alice", Assignees: []string{"carol"}}
	ev, err := models.NewUpdatedEvent(old, upd)
	require.NoError(t, err)

	// bob was removed and is still told
	assert.Equal(t, []string{"111", "222", "333"}, r.Resolve(context.Background(), ev))
}

func TestResolve_EmbeddedAddressesWin(t *testing.T) {
	store := new(mockBindings)
	store.On("GetBinding", mock.Anything, "bob").Return("222", true, nil)
	r := NewResolver(store, nil)

	snap := models.TaskSnapshot{
		TaskID:    1,
		Owner:     "alice",
		Assignees: []string{"bob"},
		Addresses: map[string]string{"alice": "999"},
	}
	got := r.Resolve(context.Background(), models.NewCreatedEvent(snap))
	assert.Equal(t, []string{"222", "999"}, got)
	store.AssertNotCalled(t, "GetBinding", mock.Anything, "alice")
}

func TestResolve_StoreErrorTreatedAsUnbound(t *testing.T) {
	store := new(mockBindings)
	store.On("GetBinding", mock.Anything, "alice").Return("", false, errors.New("redis down"))
	store.On("GetBinding", mock.Anything, "bob").Return("222", true, nil)
	r := NewResolver(store, nil)

	snap := models.TaskSnapshot{TaskID: 1, Owner: "alice", Assignees: []string{"bob"}}
	assert.Equal(t, []string{"222"}, r.Resolve(context.Background(), models.NewCreatedEvent(snap)))
}

func TestResolve_NoBindingsAndIdempotent(t *testing.T) {
	r := NewResolver(nil, nil)
	snap := models.TaskSnapshot{TaskID: 1, Owner: "alice", Addresses: map[string]string{"alice": "111"}}
	ev := models.NewCreatedEvent(snap)

	first := r.Resolve(context.Background(), ev)
	second := r.Resolve(context.Background(), ev)
	assert.Equal(t, []string{"111"}, first)
	assert.Equal(t, first, second)

	assert.Empty(t, NewResolver(nil, nil).Resolve(context.Background(), models.NewCreatedEvent(models.TaskSnapshot{TaskID: 2, Owner: "x"})))
}
