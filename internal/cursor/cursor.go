// Package cursor provides round-robin cursor store implementations.
// The cursor is the only state the engine owns: a per-strategy counter that
// must advance atomically under concurrent dispatch.
package cursor

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// New creates a cursor store based on configuration.
// Community tier: in-process store. Multi-instance deployments: Redis, so
// every node rotates the same cursor.
func New(cfg domain.CursorConfig) (domain.CursorStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil

	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported cursor store type: %s", cfg.Type)
	}
}
