package cursor

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a mutex-guarded in-process cursor store.
// Used as the Community tier store; cursors do not survive a restart, which
// round-robin tolerates (the rotation just restarts from zero).
type MemoryStore struct {
	mu      sync.Mutex
	cursors map[string]int64
}

// NewMemoryStore creates an empty in-process cursor store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cursors: make(map[string]int64),
	}
}

// Next returns the current position and advances the cursor by one.
func (s *MemoryStore) Next(ctx context.Context, tenantID string, strategyCode string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	key := s.makeKey(tenantID, strategyCode)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.cursors[key]
	s.cursors[key] = cur + 1
	return cur, nil
}

// Peek returns the current position without advancing.
func (s *MemoryStore) Peek(ctx context.Context, tenantID string, strategyCode string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[s.makeKey(tenantID, strategyCode)], nil
}

// Delete removes a cursor.
func (s *MemoryStore) Delete(ctx context.Context, tenantID string, strategyCode string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, s.makeKey(tenantID, strategyCode))
	return nil
}

// Ping checks store health.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close cleans up the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors = make(map[string]int64)
	return nil
}

func (s *MemoryStore) makeKey(tenantID, strategyCode string) string {
	return tenantID + ":" + strategyCode
}
