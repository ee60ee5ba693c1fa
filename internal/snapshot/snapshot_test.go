package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func newTestService(t *testing.T) (*Service, domain.Repository) {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "snapshot_test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return NewService(repo, cache.NewLRUCache(100), 60), repo
}

func saveCandidate(t *testing.T, repo domain.Repository, subjectID, id string) {
	t.Helper()
	err := repo.SaveCandidate(context.Background(), "tenant-001", &domain.Candidate{
		ID:        id,
		SubjectID: subjectID,
		Score:     0.5,
	})
	if err != nil {
		t.Fatalf("failed to save candidate: %v", err)
	}
}

func TestSnapshotService(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadsFromRepository", func(t *testing.T) {
		svc, repo := newTestService(t)
		saveCandidate(t, repo, "merchant-001", "cand-1")
		saveCandidate(t, repo, "merchant-001", "cand-2")
		saveCandidate(t, repo, "merchant-other", "cand-3")

		pool, err := svc.Pool(ctx, "tenant-001", "merchant-001")
		if err != nil {
			t.Fatalf("Pool failed: %v", err)
		}
		if len(pool) != 2 {
			t.Errorf("expected 2 candidates, got %d", len(pool))
		}
	})

	t.Run("CacheHitSkipsRepository", func(t *testing.T) {
		svc, repo := newTestService(t)
		saveCandidate(t, repo, "merchant-001", "cand-1")

		// Prime the snapshot.
		if _, err := svc.Pool(ctx, "tenant-001", "merchant-001"); err != nil {
			t.Fatalf("Pool failed: %v", err)
		}

		// A new row does not appear while the snapshot is live.
		saveCandidate(t, repo, "merchant-001", "cand-2")

		pool, err := svc.Pool(ctx, "tenant-001", "merchant-001")
		if err != nil {
			t.Fatalf("Pool failed: %v", err)
		}
		if len(pool) != 1 {
			t.Errorf("expected cached snapshot of 1 candidate, got %d", len(pool))
		}
	})

	t.Run("InvalidateForcesReload", func(t *testing.T) {
		svc, repo := newTestService(t)
		saveCandidate(t, repo, "merchant-001", "cand-1")
		svc.Pool(ctx, "tenant-001", "merchant-001")
		saveCandidate(t, repo, "merchant-001", "cand-2")

		if err := svc.Invalidate(ctx, "tenant-001", "merchant-001"); err != nil {
			t.Fatalf("Invalidate failed: %v", err)
		}

		pool, err := svc.Pool(ctx, "tenant-001", "merchant-001")
		if err != nil {
			t.Fatalf("Pool failed: %v", err)
		}
		if len(pool) != 2 {
			t.Errorf("expected 2 candidates after invalidation, got %d", len(pool))
		}
	})

	t.Run("EmptyPool", func(t *testing.T) {
		svc, _ := newTestService(t)
		pool, err := svc.Pool(ctx, "tenant-001", "merchant-empty")
		if err != nil {
			t.Fatalf("Pool failed: %v", err)
		}
		if len(pool) != 0 {
			t.Errorf("expected empty pool, got %d", len(pool))
		}
	})

	t.Run("RequiresTenantAndSubject", func(t *testing.T) {
		svc, _ := newTestService(t)
		if _, err := svc.Pool(ctx, "", "merchant-001"); err == nil {
			t.Error("expected error for empty tenant")
		}
		if _, err := svc.Pool(ctx, "tenant-001", ""); err == nil {
			t.Error("expected error for empty subject")
		}
	})

	t.Run("NilCachePassesThrough", func(t *testing.T) {
		_, repo := newTestService(t)
		svc := NewService(repo, nil, 60)
		saveCandidate(t, repo, "merchant-001", "cand-1")

		pool, err := svc.Pool(ctx, "tenant-001", "merchant-001")
		if err != nil {
			t.Fatalf("Pool failed: %v", err)
		}
		if len(pool) != 1 {
			t.Errorf("expected 1 candidate, got %d", len(pool))
		}
		if err := svc.Invalidate(ctx, "tenant-001", "merchant-001"); err != nil {
			t.Errorf("Invalidate with nil cache should be a no-op, got %v", err)
		}
	})
}
