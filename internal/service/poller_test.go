package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskboard/internal/models"
	"taskboard/internal/repository"
	"taskboard/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticVerifier map[string]string

func (v staticVerifier) VerifyHandshakeToken(ctx context.Context, token string) (string, bool) {
	id, ok := v[token]
	return id, ok
}

// scriptedBot replays one response per GetUpdates call and then blocks until released.
type scriptedBot struct {
	mu       sync.Mutex
	batches  [][]tgbotapi.Update
	errs     []error
	offsets  []int
	timeouts []int
	release  chan struct{}
}

func (b *scriptedBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return tgbotapi.Message{}, nil
}

func (b *scriptedBot) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	b.mu.Lock()
	b.offsets = append(b.offsets, cfg.Offset)
	b.timeouts = append(b.timeouts, cfg.Timeout)
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		b.mu.Unlock()
		return nil, err
	}
	if len(b.batches) > 0 {
		batch := b.batches[0]
		b.batches = b.batches[1:]
		b.mu.Unlock()
		return batch, nil
	}
	b.mu.Unlock()
	if b.release != nil {
		<-b.release
	}
	return nil, nil
}

func (b *scriptedBot) calls() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.offsets...)
}

func textUpdate(id int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message:  &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text},
	}
}

func newTestPoller(bot *scriptedBot, sender *fakeSender) (*Poller, *repository.MemoryBindingStore) {
	bindings := repository.NewMemoryBindingStore()
	p := NewPoller(bot, staticVerifier{"good-token": "alice"}, bindings, sender,
		PollerConfig{Interval: 5 * time.Millisecond, Timeout: 30}, nil)
	return p, bindings
}

func TestPoller_HandshakeBindsAndConfirms(t *testing.T) {
	bot := &scriptedBot{batches: [][]tgbotapi.Update{{textUpdate(10, 4242, "hello good-token")}}}
	sender := &fakeSender{}
	p, bindings := newTestPoller(bot, sender)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))

	addr, ok, err := bindings.GetBinding(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "4242", addr)

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "4242", sent[0].address)
	assert.Contains(t, sent[0].text, "<code>@alice</code>")

	assert.Equal(t, 10, p.Cursor().Value())
	assert.Equal(t, []int{0}, bot.calls())
	assert.Equal(t, []int{30}, bot.timeouts)
}

func TestPoller_ConfirmationEscapesIdentity(t *testing.T) {
	bot := &scriptedBot{batches: [][]tgbotapi.Update{{textUpdate(1, 77, "good-token")}}}
	sender := &fakeSender{}
	p := NewPoller(bot, staticVerifier{"good-token": "r&d<team>"}, repository.NewMemoryBindingStore(), sender,
		PollerConfig{Interval: 5 * time.Millisecond}, nil)

	require.NoError(t, p.PollOnce(context.Background()))

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].text, "<code>@r&amp;d&lt;team&gt;</code>")
	assert.NotContains(t, sent[0].text, "<team>")
}

func TestPoller_CursorOnlyMovesForward(t *testing.T) {
	bot := &scriptedBot{batches: [][]tgbotapi.Update{
		{textUpdate(5, 1, "a"), textUpdate(3, 1, "b"), textUpdate(8, 1, "c")},
		nil,
	}}
	p, _ := newTestPoller(bot, &fakeSender{})
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))
	assert.Equal(t, 8, p.Cursor().Value())

	require.NoError(t, p.PollOnce(ctx))
	assert.Equal(t, []int{0, 9}, bot.calls())
}

func TestPoller_SkipsNoise(t *testing.T) {
	bot := &scriptedBot{batches: [][]tgbotapi.Update{{
		{UpdateID: 1},
		{UpdateID: 2, Message: &tgbotapi.Message{Text: "no chat"}},
		textUpdate(3, 7, "   "),
		textUpdate(4, 7, "good-token is not the last word"),
		textUpdate(5, 7, "bad-token"),
	}}}
	sender := &fakeSender{}
	p, bindings := newTestPoller(bot, sender)

	require.NoError(t, p.PollOnce(context.Background()))

	_, ok, _ := bindings.GetBinding(context.Background(), "alice")
	assert.False(t, ok)
	assert.Empty(t, sender.messages())
	assert.Equal(t, 5, p.Cursor().Value())
}

func TestPoller_ConfirmationFailureKeepsBinding(t *testing.T) {
	bot := &scriptedBot{batches: [][]tgbotapi.Update{{textUpdate(1, 99, "good-token")}}}
	sender := &fakeSender{err: errors.New("blocked")}
	p, bindings := newTestPoller(bot, sender)

	require.NoError(t, p.PollOnce(context.Background()))
	addr, ok, _ := bindings.GetBinding(context.Background(), "alice")
	assert.True(t, ok)
	assert.Equal(t, "99", addr)
}

func TestPoller_BindingFailureSkipsConfirmation(t *testing.T) {
	bot := &scriptedBot{batches: [][]tgbotapi.Update{{textUpdate(1, 99, "good-token")}}}
	sender := &fakeSender{}
	store := new(mockBindingStore)
	store.On("SetBinding", mock.Anything, "alice", "99").Return(errors.New("disk full"))
	p := NewPoller(bot, staticVerifier{"good-token": "alice"}, store, sender, PollerConfig{}, nil)

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Empty(t, sender.messages())
	assert.Equal(t, 1, p.Cursor().Value())
}

func TestPoller_TransportErrorIsTyped(t *testing.T) {
	bot := &scriptedBot{errs: []error{errors.New("connection reset")}}
	p, _ := newTestPoller(bot, &fakeSender{})

	err := p.PollOnce(context.Background())
	var pollErr *PollError
	require.ErrorAs(t, err, &pollErr)
	assert.Equal(t, 0, pollErr.Offset)
	assert.Equal(t, models.NoCursor, p.Cursor().Value())
}

func TestPoller_RunRetriesAndStops(t *testing.T) {
	bot := &scriptedBot{
		errs:    []error{errors.New("timeout"), errors.New("timeout")},
		batches: [][]tgbotapi.Update{{textUpdate(41, 7, "good-token")}},
		release: make(chan struct{}),
	}
	defer close(bot.release)
	sender := &fakeSender{}
	bindings := repository.NewMemoryBindingStore()
	cursors := repository.NewMemoryCursorStore()
	require.NoError(t, cursors.StoreCursor(context.Background(), 40))

	p := NewPoller(bot, staticVerifier{"good-token": "alice"}, bindings, sender, PollerConfig{
		Interval: 5 * time.Millisecond,
		Retry:    worker.RetryPolicy{InitialDelay: time.Millisecond, BackoffFactor: 1},
	}, nil).WithCursorStore(cursors)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(sender.messages()) == 1 }, 2*time.Second, 5*time.Millisecond)
	// the next call blocks in a long poll; cancellation must not wait for it
	require.Eventually(t, func() bool { return len(bot.calls()) >= 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}

	assert.Equal(t, []int{41, 41, 41, 42}, bot.calls()[:4])
	v, ok, err := cursors.LoadCursor(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 41, v)
}

func TestLastWord(t *testing.T) {
	assert.Equal(t, "tok", lastWord("hello  tok"))
	assert.Equal(t, "tok", lastWord("tok\n"))
	assert.Equal(t, "", lastWord("  "))
}

type mockBindingStore struct {
	mock.Mock
}

func (m *mockBindingStore) GetBinding(ctx context.Context, identity string) (string, bool, error) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockBindingStore) SetBinding(ctx context.Context, identity, address string) error {
	return m.Called(ctx, identity, address).Error(0)
}
