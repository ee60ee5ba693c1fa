// Package snapshot materializes candidate pool snapshots.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Service loads the dispatchable candidate pool for a subject, reading
// through the cache so repeated dispatches within the TTL share one
// snapshot.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// NewService creates a new snapshot service.
func NewService(repo domain.Repository, cache domain.Cache, ttlSeconds int) *Service {
	if ttlSeconds <= 0 {
		ttlSeconds = 5
	}
	return &Service{
		repo:  repo,
		cache: cache,
		ttl:   time.Duration(ttlSeconds) * time.Second,
	}
}

// Pool returns the candidate pool for a subject. Cache hits are served
// as-is; misses fall back to the repository and repopulate the cache.
func (s *Service) Pool(ctx context.Context, tenantID, subjectID string) ([]domain.Candidate, error) {
	if tenantID == "" || subjectID == "" {
		return nil, fmt.Errorf("tenantID and subjectID are required")
	}

	if s.cache != nil {
		snap, err := s.cache.GetPool(ctx, tenantID, subjectID)
		if err == nil && snap != nil {
			return snap.Candidates, nil
		}
	}

	candidates, err := s.repo.ListCandidates(ctx, tenantID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate pool: %w", err)
	}

	if s.cache != nil {
		snap := &domain.PoolSnapshot{
			Candidates: candidates,
			TakenAt:    time.Now().UTC(),
		}
		_ = s.cache.SetPool(ctx, tenantID, subjectID, snap, s.ttl)
	}

	return candidates, nil
}

// Invalidate drops the cached snapshot for a subject, forcing the next
// dispatch to reload from the repository.
func (s *Service) Invalidate(ctx context.Context, tenantID, subjectID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, tenantID, "pool:"+subjectID)
}
