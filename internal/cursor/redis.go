package cursor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs cursors with Redis INCR so concurrent dispatch calls
// across instances never rotate to the same position twice.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed cursor store.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Next returns the current position and advances the cursor by one.
// INCR returns the post-increment value, so the pre-increment position is
// value-1; a fresh key therefore yields position 0.
func (s *RedisStore) Next(ctx context.Context, tenantID string, strategyCode string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	val, err := s.client.Incr(ctx, s.makeKey(tenantID, strategyCode)).Result()
	if err != nil {
		return 0, err
	}
	return val - 1, nil
}

// Peek returns the current position without advancing.
func (s *RedisStore) Peek(ctx context.Context, tenantID string, strategyCode string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	val, err := s.client.Get(ctx, s.makeKey(tenantID, strategyCode)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Delete removes a cursor.
func (s *RedisStore) Delete(ctx context.Context, tenantID string, strategyCode string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	return s.client.Del(ctx, s.makeKey(tenantID, strategyCode)).Err()
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) makeKey(tenantID, strategyCode string) string {
	return "kestrel:" + tenantID + ":cursor:" + strategyCode
}
