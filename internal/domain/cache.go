package domain

import (
	"context"
	"time"
)

// Cache defines the interface for snapshot caching.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetPool retrieves a cached candidate pool snapshot for a subject.
	GetPool(ctx context.Context, tenantID string, subjectID string) (*PoolSnapshot, error)

	// SetPool caches a candidate pool snapshot.
	SetPool(ctx context.Context, tenantID string, subjectID string, snap *PoolSnapshot, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// PoolSnapshot holds a materialized candidate pool with its capture time.
type PoolSnapshot struct {
	Candidates []Candidate `json:"candidates"`
	TakenAt    time.Time   `json:"takenAt"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
