package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskboard/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a reliable list queue: producers LPUSH onto key, the consumer atomically
// moves the tail into a processing list and removes it from there on Ack.
type RedisQueue struct {
	client        *redis.Client
	key           string
	processingKey string
	deadLetterKey string
	wait          time.Duration
}

// NewRedisQueue builds a queue on key; the processing and dead letter lists derive from it.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		client:        client,
		key:           key,
		processingKey: key + ":processing",
		deadLetterKey: key + ":deadletter",
		wait:          time.Second,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, event models.ChangeEvent) error {
	if q.client == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("redis push: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Message, error) {
	if q.client == nil {
		return Message{}, errors.New("redis client is nil")
	}
	raw, err := q.client.BRPopLPush(ctx, q.key, q.processingKey, q.wait).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Message{}, ErrNoMessage
		}
		if ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		return Message{}, fmt.Errorf("redis BRPOPLPUSH: %w", err)
	}

	var event models.ChangeEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		// park undecodable payloads so they are not redelivered forever
		q.deadLetter(ctx, raw)
		return Message{}, fmt.Errorf("decode redis event: %w", err)
	}
	return Message{Event: event, Receipt: raw}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, msg Message) error {
	if err := q.client.LRem(ctx, q.processingKey, 1, msg.Receipt).Err(); err != nil {
		return fmt.Errorf("redis ack: %w", err)
	}
	return nil
}

// Recover moves everything left in the processing list back to the consumer end of the queue.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	if q.client == nil {
		return 0, errors.New("redis client is nil")
	}
	n := 0
	for {
		// newest in-flight goes back first so the oldest ends up next in line
		err := q.client.LMove(ctx, q.processingKey, q.key, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("redis recover: %w", err)
		}
		n++
	}
}

// Len reports the number of queued (not in-flight) events.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) deadLetter(ctx context.Context, raw string) {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey, 1, raw)
	pipe.LPush(ctx, q.deadLetterKey, raw)
	_, _ = pipe.Exec(ctx)
}
