package domain

import (
	"context"
)

// CursorStore persists the round-robin cursor, the only state the engine
// itself owns. Next must be atomic: concurrent dispatch calls against the
// same strategy race to advance it, and the guarantee is "monotonic, no
// duplicate allocation".
type CursorStore interface {
	// Next returns the current cursor position for a strategy and
	// advances it by one, atomically.
	Next(ctx context.Context, tenantID string, strategyCode string) (int64, error)

	// Peek returns the current position without advancing.
	Peek(ctx context.Context, tenantID string, strategyCode string) (int64, error)

	// Delete removes a cursor. Called only when its strategy is deleted.
	Delete(ctx context.Context, tenantID string, strategyCode string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CursorConfig holds configuration for cursor store initialization.
type CursorConfig struct {
	// Type is the store type: "memory" or "redis"
	Type string

	// Redis settings (multi-instance deployments)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}
