package events

import (
	"context"
	"errors"
	"os"

	"taskboard/internal/metrics"
	"taskboard/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrQueueFull is returned by Enqueue when a bounded queue has no room.
	ErrQueueFull = errors.New("notification queue full")
	// ErrNoMessage is returned by Dequeue when nothing arrived within the backend's wait window.
	ErrNoMessage = errors.New("no message")
)

// Message is a dequeued event plus the backend receipt needed to acknowledge it.
type Message struct {
	Event   models.ChangeEvent
	Receipt string
}

// Queue is an at-least-once channel of change events. A message that was dequeued but
// never acknowledged is handed out again after Recover.
type Queue interface {
	Enqueue(ctx context.Context, event models.ChangeEvent) error
	Dequeue(ctx context.Context) (Message, error)
	Ack(ctx context.Context, msg Message) error
	// Recover requeues messages left in flight by a previous run and returns how many.
	Recover(ctx context.Context) (int, error)
}

// Bus is the producer side of the notification pipeline.
type Bus struct {
	queue  Queue
	logger *zerolog.Logger
}

// NewBus constructs a bus over queue.
func NewBus(queue Queue, logger *zerolog.Logger) *Bus {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}
	return &Bus{queue: queue, logger: logger}
}

// OnTaskChanged enqueues a committed mutation. Failures are logged and swallowed: losing a
// notification is acceptable, failing the mutation that produced it is not.
func (b *Bus) OnTaskChanged(ctx context.Context, event models.ChangeEvent) {
	if b == nil || b.queue == nil {
		return
	}

	if err := event.Validate(); err != nil {
		b.logger.Error().Err(err).Str("event_id", event.ID).Msg("event bus: rejected event")
		metrics.IncEnqueueFailed()
		return
	}

	// the request context may be cancelled right after the response is written
	if err := b.queue.Enqueue(context.WithoutCancel(ctx), event); err != nil {
		b.logger.Error().Err(err).
			Str("event_id", event.ID).
			Int64("task_id", event.TaskID()).
			Str("kind", string(event.Kind)).
			Msg("event bus: enqueue failed")
		metrics.IncEnqueueFailed()
		return
	}

	metrics.IncEnqueued(string(event.Kind))
	b.logger.Debug().Str("event_id", event.ID).Int64("task_id", event.TaskID()).Str("kind", string(event.Kind)).Msg("event bus: enqueued")
}
