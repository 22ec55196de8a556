package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskboard/internal/events"
	"taskboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu      sync.Mutex
	handled []models.ChangeEvent
	delay   time.Duration
	ctxErrs []error
}

func (h *recordingHandler) Handle(ctx context.Context, event models.ChangeEvent) int {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	h.ctxErrs = append(h.ctxErrs, ctx.Err())
	return 1
}

func (h *recordingHandler) snapshot() []models.ChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.ChangeEvent(nil), h.handled...)
}

// flakyQueue fails the first Dequeue calls and counts acks.
type flakyQueue struct {
	*events.MemoryQueue
	mu        sync.Mutex
	failures  int
	acks      int
	recovered bool
}

func (q *flakyQueue) Dequeue(ctx context.Context) (events.Message, error) {
	q.mu.Lock()
	if q.failures > 0 {
		q.failures--
		q.mu.Unlock()
		return events.Message{}, errors.New("backend unavailable")
	}
	q.mu.Unlock()
	return q.MemoryQueue.Dequeue(ctx)
}

func (q *flakyQueue) Ack(ctx context.Context, msg events.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acks++
	return nil
}

func (q *flakyQueue) Recover(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recovered = true
	return 0, nil
}

func (q *flakyQueue) ackCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acks
}

func snap(id int64, title string) models.TaskSnapshot {
	return models.TaskSnapshot{TaskID: id, Title: title, Status: models.StatusTodo, Owner: "alice"}
}

func startWorker(t *testing.T, w *NotificationWorker) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	return cancel, done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNotificationWorker_PerTaskOrder(t *testing.T) {
	q := &flakyQueue{MemoryQueue: events.NewMemoryQueue(100)}
	h := &recordingHandler{}
	w := NewNotificationWorker(q, h, 4, RetryPolicy{}, nil)

	ctx := context.Background()
	var want []string
	for i := 0; i < 10; i++ {
		for _, id := range []int64{1, 2, 3} {
			ev, err := models.NewUpdatedEvent(snap(id, "a"), snap(id, "b"))
			require.NoError(t, err)
			require.NoError(t, q.Enqueue(ctx, ev))
			if id == 2 {
				want = append(want, ev.ID)
			}
		}
	}

	cancel, done := startWorker(t, w)
	require.Eventually(t, func() bool { return len(h.snapshot()) == 30 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	waitDone(t, done)

	var got []string
	for _, ev := range h.snapshot() {
		if ev.TaskID() == 2 {
			got = append(got, ev.ID)
		}
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 30, q.ackCount())
	assert.True(t, q.recovered)
}

func TestNotificationWorker_RetriesDequeueErrors(t *testing.T) {
	q := &flakyQueue{MemoryQueue: events.NewMemoryQueue(10), failures: 2}
	h := &recordingHandler{}
	w := NewNotificationWorker(q, h, 1, RetryPolicy{InitialDelay: time.Millisecond, BackoffFactor: 1}, nil)

	require.NoError(t, q.Enqueue(context.Background(), models.NewCreatedEvent(snap(1, "x"))))

	cancel, done := startWorker(t, w)
	require.Eventually(t, func() bool { return len(h.snapshot()) == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	waitDone(t, done)
}

func TestNotificationWorker_DrainsOnShutdown(t *testing.T) {
	q := &flakyQueue{MemoryQueue: events.NewMemoryQueue(10)}
	h := &recordingHandler{delay: 50 * time.Millisecond}
	w := NewNotificationWorker(q, h, 1, RetryPolicy{}, nil)

	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, models.NewCreatedEvent(snap(i, "x"))))
	}

	cancel, done := startWorker(t, w)
	// wait until the dispatcher has handed everything to the shard
	require.Eventually(t, func() bool { return q.Len() == 0 }, 5*time.Second, time.Millisecond)
	cancel()
	waitDone(t, done)

	assert.Len(t, h.snapshot(), 3)
	for _, err := range h.ctxErrs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 3, q.ackCount())
}

func TestNotificationWorker_InvalidEventAckedNotHandled(t *testing.T) {
	q := &flakyQueue{MemoryQueue: events.NewMemoryQueue(10)}
	h := &recordingHandler{}
	w := NewNotificationWorker(q, h, 2, RetryPolicy{}, nil)

	require.NoError(t, q.Enqueue(context.Background(), models.ChangeEvent{ID: "bad", Kind: models.ChangeCreated}))

	cancel, done := startWorker(t, w)
	require.Eventually(t, func() bool { return q.ackCount() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	waitDone(t, done)
	assert.Empty(t, h.snapshot())
}

func TestShardFor(t *testing.T) {
	assert.Equal(t, 0, shardFor(0, 4))
	assert.Equal(t, 3, shardFor(7, 4))
	assert.Equal(t, shardFor(42, 3), shardFor(42, 3))
	assert.Equal(t, 0, shardFor(5, 1))
}
