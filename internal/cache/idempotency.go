package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const processedEventPrefix = "events:processed:"

// EventStore records processed event IDs in Redis so every consumer
// instance in a group sees the same history. It satisfies
// kafka.IdempotencyStore.
type EventStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewEventStore(client redis.Cmdable, ttl time.Duration) *EventStore {
	return &EventStore{client: client, ttl: ttl}
}

func (s *EventStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, processedEventPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists event: %w", err)
	}
	return n > 0, nil
}

func (s *EventStore) Add(ctx context.Context, eventID string) error {
	if err := s.client.SetNX(ctx, processedEventPrefix+eventID, time.Now().UTC().Unix(), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx event: %w", err)
	}
	return nil
}
