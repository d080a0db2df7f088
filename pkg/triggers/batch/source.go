package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Source produces candidate items for one polling cycle. Fetch returns at
// most limit items matching the filter; an empty slice means a quiet cycle.
type Source interface {
	Fetch(ctx context.Context, queue string, filter map[string]any, limit int) ([]map[string]any, error)
	Close() error
}

// RedisSource reads candidate items from a Redis list. Each element is a
// JSON object; non-JSON elements are wrapped under a "message" key.
type RedisSource struct {
	client redis.UniversalClient
}

// NewRedisSource connects to Redis and verifies the connection.
func NewRedisSource(ctx context.Context, addr string) (*RedisSource, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSource{client: client}, nil
}

// Fetch pops up to limit elements from the list and applies the filter as
// exact-match constraints on top-level fields.
func (s *RedisSource) Fetch(ctx context.Context, queue string, filter map[string]any, limit int) ([]map[string]any, error) {
	values, err := s.client.LPopCount(ctx, queue, limit).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to pop batch from %s: %w", queue, err)
	}

	items := make([]map[string]any, 0, len(values))

	for _, value := range values {
		var item map[string]any
		if err := json.Unmarshal([]byte(value), &item); err != nil {
			item = map[string]any{"message": value}
		}

		if matchesFilter(item, filter) {
			items = append(items, item)
		}
	}

	return items, nil
}

// Close releases the Redis connection.
func (s *RedisSource) Close() error {
	err := s.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}

func matchesFilter(item, filter map[string]any) bool {
	for key, want := range filter {
		if fmt.Sprintf("%v", item[key]) != fmt.Sprintf("%v", want) {
			return false
		}
	}

	return true
}
