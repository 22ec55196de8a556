package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"taskboard/internal/events"
	"taskboard/internal/models"
)

// EventQueue is an outbox table queue. Rows move pending -> processing -> completed; rows
// still processing at startup are requeued by Recover.
type EventQueue struct {
	db        *DB
	wait      time.Duration
	pollEvery time.Duration
}

// EventQueue returns a queue backed by the event_queue table.
func (db *DB) EventQueue() *EventQueue {
	return &EventQueue{db: db, wait: time.Second, pollEvery: 100 * time.Millisecond}
}

func (q *EventQueue) Enqueue(ctx context.Context, event models.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	// redelivered events keep their id, the unique constraint makes enqueue idempotent
	_, err = q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO event_queue (event_id, task_id, kind, payload, status, created_at)
         VALUES (?, ?, ?, ?, 'pending', ?)`,
		event.ID, event.TaskID(), string(event.Kind), string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

// Dequeue claims the oldest pending row, polling until the wait window elapses.
func (q *EventQueue) Dequeue(ctx context.Context) (events.Message, error) {
	deadline := time.Now().Add(q.wait)
	for {
		msg, err := q.claim(ctx)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, events.ErrNoMessage) {
			return events.Message{}, err
		}
		if time.Now().After(deadline) {
			return events.Message{}, events.ErrNoMessage
		}

		select {
		case <-ctx.Done():
			return events.Message{}, ctx.Err()
		case <-time.After(q.pollEvery):
		}
	}
}

func (q *EventQueue) claim(ctx context.Context) (events.Message, error) {
	var (
		id      int64
		payload string
	)
	err := q.db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT id, payload FROM event_queue WHERE status = 'pending' ORDER BY id ASC LIMIT 1`).
			Scan(&id, &payload)
		if errors.Is(err, sql.ErrNoRows) {
			return events.ErrNoMessage
		}
		if err != nil {
			return fmt.Errorf("failed to select pending event: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE event_queue SET status = 'processing', attempts = attempts + 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to claim event: %w", err)
		}
		return nil
	})
	if err != nil {
		return events.Message{}, err
	}

	receipt := strconv.FormatInt(id, 10)
	var event models.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		q.markFailed(ctx, id)
		return events.Message{}, fmt.Errorf("failed to decode event %s: %w", receipt, err)
	}
	return events.Message{Event: event, Receipt: receipt}, nil
}

func (q *EventQueue) Ack(ctx context.Context, msg events.Message) error {
	id, err := strconv.ParseInt(msg.Receipt, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid receipt %q: %w", msg.Receipt, err)
	}
	_, err = q.db.ExecContext(ctx,
		`UPDATE event_queue SET status = 'completed', processed_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to ack event: %w", err)
	}
	return nil
}

func (q *EventQueue) Recover(ctx context.Context) (int, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE event_queue SET status = 'pending' WHERE status = 'processing'`)
	if err != nil {
		return 0, fmt.Errorf("failed to recover events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n > 0 {
		q.db.logger.Info().Int64("count", n).Msg("Requeued in-flight notification events")
	}
	return int(n), nil
}

// PurgeCompleted deletes acknowledged rows older than the given age.
func (q *EventQueue) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM event_queue WHERE status = 'completed' AND processed_at < ?`, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to purge events: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus reports how many rows are in the given state.
func (q *EventQueue) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_queue WHERE status = ?`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func (q *EventQueue) markFailed(ctx context.Context, id int64) {
	if _, err := q.db.ExecContext(ctx, `UPDATE event_queue SET status = 'failed' WHERE id = ?`, id); err != nil {
		q.db.logger.Error().Err(err).Int64("id", id).Msg("Failed to park undecodable event")
	}
}
