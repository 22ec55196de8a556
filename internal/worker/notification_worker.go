package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskboard/internal/events"
	"taskboard/internal/models"

	"github.com/rs/zerolog"
)

const (
	shardBuffer         = 64
	purgeInterval       = time.Hour
	purgeCompletedAfter = 24 * time.Hour
)

// EventHandler processes one change event.
type EventHandler interface {
	Handle(ctx context.Context, event models.ChangeEvent) int
}

type completedPurger interface {
	PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NotificationWorker consumes the notification queue. A single dispatcher dequeues and
// routes each event to a shard chosen by task id, so events of one task are handled in the
// order they were enqueued while different tasks proceed in parallel.
type NotificationWorker struct {
	queue       events.Queue
	handler     EventHandler
	shards      int
	retryPolicy RetryPolicy
	logger      *zerolog.Logger
}

// NewNotificationWorker builds a worker with sane defaults.
func NewNotificationWorker(queue events.Queue, handler EventHandler, shards int, retry RetryPolicy, logger *zerolog.Logger) *NotificationWorker {
	if shards <= 0 {
		shards = models.DefaultNotifyWorkers
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 30 * time.Second
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &NotificationWorker{
		queue:       queue,
		handler:     handler,
		shards:      shards,
		retryPolicy: retry,
		logger:      logger,
	}
}

// Start runs until ctx is done. Events already handed to a shard are still delivered after
// cancellation; Start returns once every shard has drained.
func (w *NotificationWorker) Start(ctx context.Context) {
	if n, err := w.queue.Recover(ctx); err != nil {
		w.logger.Error().Err(err).Msg("notification_worker: recover in-flight events")
	} else if n > 0 {
		w.logger.Info().Int("count", n).Msg("notification_worker: requeued in-flight events")
	}

	// deliveries must not be cut short by shutdown
	bg := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	shards := make([]chan events.Message, w.shards)
	for i := range shards {
		shards[i] = make(chan events.Message, shardBuffer)
		wg.Add(1)
		go func(ch <-chan events.Message) {
			defer wg.Done()
			for msg := range ch {
				w.process(bg, msg)
			}
		}(shards[i])
	}

	if p, ok := w.queue.(completedPurger); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.purgeLoop(ctx, p)
		}()
	}

	w.logger.Info().Int("shards", w.shards).Msg("notification_worker: started")
	w.dispatch(ctx, shards)

	for _, ch := range shards {
		close(ch)
	}
	wg.Wait()
	w.logger.Info().Msg("notification_worker: stopped")
}

func (w *NotificationWorker) dispatch(ctx context.Context, shards []chan events.Message) {
	failures := 0
	for ctx.Err() == nil {
		msg, err := w.queue.Dequeue(ctx)
		if errors.Is(err, events.ErrNoMessage) {
			failures = 0
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			delay := w.retryPolicy.NextDelay(failures)
			w.logger.Error().Err(err).Dur("retry_in", delay).Msg("notification_worker: dequeue failed")
			if !Wait(ctx, delay) {
				return
			}
			continue
		}
		failures = 0
		shards[shardFor(msg.Event.TaskID(), len(shards))] <- msg
	}
}

func (w *NotificationWorker) process(ctx context.Context, msg events.Message) {
	if err := msg.Event.Validate(); err != nil {
		w.logger.Error().Err(err).Str("event_id", msg.Event.ID).Msg("notification_worker: dropping invalid event")
	} else {
		w.handler.Handle(ctx, msg.Event)
	}

	if err := w.queue.Ack(ctx, msg); err != nil {
		w.logger.Error().Err(err).Str("event_id", msg.Event.ID).Msg("notification_worker: ack failed")
	}
}

func (w *NotificationWorker) purgeLoop(ctx context.Context, p completedPurger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeCompleted(ctx, purgeCompletedAfter)
			if err != nil {
				w.logger.Error().Err(err).Msg("notification_worker: purge completed events")
				continue
			}
			if n > 0 {
				w.logger.Debug().Int64("count", n).Msg("notification_worker: purged completed events")
			}
		}
	}
}

func shardFor(taskID int64, n int) int {
	return int(uint64(taskID) % uint64(n))
}
