package events

import (
	"context"
	"time"

	"taskboard/internal/models"
)

// MemoryQueue is a buffered channel queue. It does not survive restarts and Ack is a no-op.
type MemoryQueue struct {
	ch   chan models.ChangeEvent
	wait time.Duration
}

// NewMemoryQueue creates a queue holding up to size events.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = models.DefaultQueueSize
	}
	return &MemoryQueue{ch: make(chan models.ChangeEvent, size), wait: time.Second}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, event models.ChangeEvent) error {
	select {
	case q.ch <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Message, error) {
	timer := time.NewTimer(q.wait)
	defer timer.Stop()

	select {
	case ev := <-q.ch:
		return Message{Event: ev, Receipt: ev.ID}, nil
	case <-timer.C:
		return Message{}, ErrNoMessage
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(ctx context.Context, msg Message) error { return nil }

func (q *MemoryQueue) Recover(ctx context.Context) (int, error) { return 0, nil }

// Len reports the number of buffered events.
func (q *MemoryQueue) Len() int { return len(q.ch) }
