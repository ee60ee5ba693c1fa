package worker

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/cursor"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/dispatch"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/match"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/snapshot"
)

func newTestStack(t *testing.T) (domain.Repository, *dispatch.Orchestrator, *decision.Processor) {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "worker_test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	resolver, err := match.NewResolver()
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}
	ranker := dispatch.NewRanker(cursor.NewMemoryStore())
	orchestrator := dispatch.NewOrchestrator(resolver, ranker)

	return repo, orchestrator, decision.NewProcessor()
}

func seedDispatchRules(t *testing.T, repo domain.Repository, tenantID string) {
	t.Helper()
	ctx := context.Background()

	strategy := &domain.DispatchStrategy{
		ID:      "strat-001",
		Code:    "std-payin",
		Version: "1.0.0",
		Rules: domain.DispatchRules{
			UserOnlineRequired: true,
			SortBy:             domain.SortScoreDesc,
		},
	}
	if err := repo.SaveDispatchStrategy(ctx, tenantID, strategy); err != nil {
		t.Fatalf("failed to save strategy: %v", err)
	}

	router := &domain.DispatchRouter{
		ID: "router-001",
		Criteria: domain.MatchCriteria{
			TrxType: "payin",
			Status:  domain.StatusActive,
		},
		StrategyCode: "std-payin",
	}
	if err := repo.SaveDispatchRouter(ctx, tenantID, router); err != nil {
		t.Fatalf("failed to save router: %v", err)
	}
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	repo, orchestrator, processor := newTestStack(t)
	seedDispatchRules(t, repo, "tenant-test")

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, repo, orchestrator, nil, processor, false)

		cfg := Config{
			TenantIDs: []string{"tenant-001"},
		}
		if err := w.Start(cfg); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		// One dispatch subscription plus one reload subscription per tenant.
		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions, got %d", stats.SubscriptionCount)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("GlobalWorker", func(t *testing.T) {
		w := NewWorker(eventBus, repo, orchestrator, nil, processor, false)

		if err := w.Start(Config{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 global subscription, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessDispatch", func(t *testing.T) {
		w := NewWorker(eventBus, repo, orchestrator, nil, processor, true)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		var published atomic.Pointer[domain.Decision]

		bus.SubscribeDecisions(context.Background(), eventBus, "tenant-test", func(ctx context.Context, d *domain.Decision) error {
			published.Store(d)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		req := &bus.DispatchRequest{
			TenantID: "tenant-test",
			TraceID:  "trace-001",
			ResolveRequest: domain.ResolveRequest{
				SubjectID: "merchant-001",
				TrxType:   "payin",
				Amount:    500.0,
				Currency:  "USD",
			},
			Candidates: []domain.Candidate{
				{ID: "cand-online", SubjectID: "merchant-001", UserOnline: true, AccountOnline: true, Score: 0.9},
				{ID: "cand-offline", SubjectID: "merchant-001", UserOnline: false, AccountOnline: true, Score: 0.95},
			},
		}

		if err := bus.PublishDispatchRequest(context.Background(), eventBus, "tenant-test", req); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		time.Sleep(100 * time.Millisecond)

		dp := published.Load()
		if dp == nil {
			t.Fatal("expected decision to be published")
		}
		d := *dp

		if d.Status != domain.DecisionOK {
			t.Errorf("expected status %s, got %s", domain.DecisionOK, d.Status)
		}
		if d.RuleID != "router-001" {
			t.Errorf("expected router-001, got %s", d.RuleID)
		}
		if d.StrategyCode != "std-payin" {
			t.Errorf("expected strategy std-payin, got %s", d.StrategyCode)
		}
		if len(d.Ordered) != 1 || d.Ordered[0] != "cand-online" {
			t.Errorf("expected ordered [cand-online], got %v", d.Ordered)
		}
		if d.Metadata.TraceID != "trace-001" {
			t.Errorf("expected traceID 'trace-001', got '%s'", d.Metadata.TraceID)
		}

		// persist=true: the decision is retrievable by id.
		saved, err := repo.GetDecision(context.Background(), "tenant-test", d.ID)
		if err != nil {
			t.Fatalf("expected decision to be persisted: %v", err)
		}
		if saved.Status != domain.DecisionOK {
			t.Errorf("persisted status mismatch: %s", saved.Status)
		}
	})

	t.Run("AlertOnSoftFailure", func(t *testing.T) {
		w := NewWorker(eventBus, repo, orchestrator, nil, processor, false)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		var alert atomic.Pointer[domain.Decision]

		bus.SubscribeAlerts(context.Background(), eventBus, "tenant-test", func(ctx context.Context, d *domain.Decision) error {
			alert.Store(d)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// No router matches payouts; the worker still publishes a decision
		// and mirrors it onto the alert topic.
		req := &bus.DispatchRequest{
			TenantID: "tenant-test",
			ResolveRequest: domain.ResolveRequest{
				SubjectID: "merchant-001",
				TrxType:   "payout",
				Amount:    100.0,
			},
			Candidates: []domain.Candidate{
				{ID: "cand-1", UserOnline: true, AccountOnline: true},
			},
		}
		bus.PublishDispatchRequest(context.Background(), eventBus, "tenant-test", req)

		time.Sleep(100 * time.Millisecond)

		d := alert.Load()
		if d == nil {
			t.Fatal("expected alert for unmatched dispatch request")
		}
		if d.Status != domain.DecisionNoRule {
			t.Errorf("expected status %s, got %s", domain.DecisionNoRule, d.Status)
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, repo, orchestrator, nil, processor, false)

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 4 {
			t.Errorf("expected 4 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

func TestWorkerSnapshotPool(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	repo, orchestrator, processor := newTestStack(t)
	seedDispatchRules(t, repo, "tenant-snap")

	ctx := context.Background()
	if err := repo.SaveCandidate(ctx, "tenant-snap", &domain.Candidate{
		ID: "cand-pool", SubjectID: "merchant-002", UserOnline: true, AccountOnline: true, Score: 0.5,
	}); err != nil {
		t.Fatalf("failed to save candidate: %v", err)
	}

	snapshots := snapshot.NewService(repo, cache.NewLRUCache(100), 60)

	w := NewWorker(eventBus, repo, orchestrator, snapshots, processor, false)
	w.Start(Config{TenantIDs: []string{"tenant-snap"}})
	defer w.Stop()

	var published atomic.Pointer[domain.Decision]
	bus.SubscribeDecisions(ctx, eventBus, "tenant-snap", func(ctx context.Context, d *domain.Decision) error {
		published.Store(d)
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	// No inline candidates: the pool comes from the snapshot service.
	req := &bus.DispatchRequest{
		TenantID: "tenant-snap",
		ResolveRequest: domain.ResolveRequest{
			SubjectID: "merchant-002",
			TrxType:   "payin",
			Amount:    250.0,
		},
	}
	bus.PublishDispatchRequest(ctx, eventBus, "tenant-snap", req)

	time.Sleep(100 * time.Millisecond)

	d := published.Load()
	if d == nil {
		t.Fatal("expected decision to be published")
	}
	if d.Status != domain.DecisionOK {
		t.Fatalf("expected status %s, got %s", domain.DecisionOK, d.Status)
	}
	if len(d.Ordered) != 1 || d.Ordered[0] != "cand-pool" {
		t.Errorf("expected ordered [cand-pool], got %v", d.Ordered)
	}
}
