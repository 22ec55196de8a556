package database

import (
	"context"
	"testing"
	"time"

	"taskboard/internal/events"
	"taskboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*DB, *EventQueue) {
	db := setupTestDB(t)
	q := db.EventQueue()
	q.wait = 50 * time.Millisecond
	q.pollEvery = 10 * time.Millisecond
	return db, q
}

func createdEvent(id int64, title string) models.ChangeEvent {
	return models.NewCreatedEvent(models.TaskSnapshot{TaskID: id, Title: title, Status: models.StatusTodo, Owner: "alice"})
}

func TestEventQueue_FIFOAndAck(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	first := createdEvent(1, "first")
	second := createdEvent(2, "second")
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))
	// same event id again is ignored
	require.NoError(t, q.Enqueue(ctx, first))

	msg, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, msg.Event.ID)
	assert.Equal(t, "first", msg.Event.New.Title)
	require.NoError(t, q.Ack(ctx, msg))

	msg, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, msg.Event.ID)
	require.NoError(t, q.Ack(ctx, msg))

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, events.ErrNoMessage)

	n, err := q.CountByStatus(ctx, "completed")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEventQueue_Recover(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	ev := createdEvent(7, "crash")
	require.NoError(t, q.Enqueue(ctx, ev))

	_, err := q.Dequeue(ctx)
	require.NoError(t, err)
	// no ack: simulate a crash mid-delivery

	n, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msg, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, msg.Event.ID)

	var attempts int
	require.NoError(t, q.db.QueryRowContext(ctx, `SELECT attempts FROM event_queue WHERE event_id = ?`, ev.ID).Scan(&attempts))
	assert.Equal(t, 2, attempts)
}

func TestEventQueue_DequeueCancelled(t *testing.T) {
	_, q := newTestQueue(t)
	q.wait = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	assert.Error(t, err)
}

func TestEventQueue_BadPayloadIsParked(t *testing.T) {
	db, q := newTestQueue(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO event_queue (event_id, task_id, kind, payload) VALUES ('bad', 1, 'created', '{not json')`)
	require.NoError(t, err)

	_, err = q.Dequeue(ctx)
	assert.Error(t, err)

	n, err := q.CountByStatus(ctx, "failed")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEventQueue_AckInvalidReceipt(t *testing.T) {
	_, q := newTestQueue(t)
	assert.Error(t, q.Ack(context.Background(), events.Message{Receipt: "abc"}))
}

func TestEventQueue_PurgeCompleted(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, createdEvent(1, "a")))
	msg, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, msg))

	n, err := q.PurgeCompleted(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = q.PurgeCompleted(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
