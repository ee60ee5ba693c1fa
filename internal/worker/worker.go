// Package worker provides async dispatch processing for the Pro tier.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/dispatch"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/snapshot"
)

// Worker consumes dispatch requests from the EventBus and runs them through
// the orchestrator, publishing the resulting decision back on the bus.
type Worker struct {
	bus          domain.EventBus
	repo         domain.Repository
	orchestrator *dispatch.Orchestrator
	snapshots    *snapshot.Service
	processor    *decision.Processor
	persist      bool

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(eventBus domain.EventBus, repo domain.Repository, orchestrator *dispatch.Orchestrator, snapshots *snapshot.Service, processor *decision.Processor, persist bool) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:          eventBus,
		repo:         repo,
		orchestrator: orchestrator,
		snapshots:    snapshots,
		processor:    processor,
		persist:      persist,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := bus.SubscribeDispatchRequests(w.ctx, w.bus, "_global", func(ctx context.Context, msg *domain.Message, req *bus.DispatchRequest) error {
		return w.processDispatch(ctx, msg.TenantID, msg, req)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := bus.SubscribeDispatchRequests(w.ctx, w.bus, tenantID, func(ctx context.Context, msg *domain.Message, req *bus.DispatchRequest) error {
		return w.processDispatch(ctx, tenantID, msg, req)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	// Rule changes invalidate any cached candidate pool for the subject.
	reloadSub, err := bus.SubscribeRuleReloads(w.ctx, w.bus, tenantID, func(ctx context.Context, rel *bus.RuleReload) error {
		return w.handleReload(ctx, tenantID, rel)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, reloadSub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicDispatchRequest,
	)

	return nil
}

// processDispatch runs one dispatch request through the pipeline.
func (w *Worker) processDispatch(ctx context.Context, tenantID string, msg *domain.Message, req *bus.DispatchRequest) error {
	start := time.Now()

	// Use message tenant if provided
	if req.TenantID != "" {
		tenantID = req.TenantID
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	tc := req.ToContext()

	slog.Debug("processing dispatch request",
		"subject_id", tc.SubjectID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	routers, err := w.repo.ListDispatchRouters(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list dispatch routers", "error", err)
		return err
	}

	strategyList, err := w.repo.ListDispatchStrategies(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list dispatch strategies", "error", err)
		return err
	}
	strategies := make(map[string]*domain.DispatchStrategy, len(strategyList))
	for _, s := range strategyList {
		strategies[s.Code] = s
	}

	pool := req.Candidates
	if len(pool) == 0 && w.snapshots != nil {
		pool, err = w.snapshots.Pool(ctx, tenantID, tc.SubjectID)
		if err != nil {
			slog.Error("failed to load candidate pool",
				"subject_id", tc.SubjectID,
				"error", err,
			)
			return err
		}
	}

	result, dispatchErr := w.orchestrator.Dispatch(ctx, tenantID, tc, routers, strategies, pool)
	if dispatchErr != nil && !decision.IsSoftFailure(dispatchErr) {
		slog.Error("dispatch failed",
			"subject_id", tc.SubjectID,
			"error", dispatchErr,
		)
		return dispatchErr
	}

	input := &decision.Input{
		TenantID:     tenantID,
		Kind:         domain.KindDispatch,
		TraceID:      traceID,
		Context:      tc,
		Err:          dispatchErr,
		StartTime:    start,
		CandidatesIn: len(pool),
	}
	if dispatchErr == nil {
		input.RuleID = result.RouterID
		input.StrategyCode = result.StrategyCode
		input.Trace = result.Trace
		input.CandidatesOut = len(result.Ordered)
		input.Ordered = make([]string, 0, len(result.Ordered))
		for _, c := range result.Ordered {
			input.Ordered = append(input.Ordered, c.ID)
		}
	}

	d := w.processor.Process(input)

	if w.persist && w.repo != nil {
		if err := w.repo.SaveDecision(ctx, tenantID, d); err != nil {
			slog.Error("failed to save decision",
				"id", d.ID,
				"error", err,
			)
		}
	}

	if err := bus.PublishDecision(ctx, w.bus, tenantID, d); err != nil {
		slog.Error("failed to publish decision",
			"id", d.ID,
			"error", err,
		)
	}

	// Soft failures go to the alert topic so operators see starved
	// strategies and misconfigured rules.
	if d.Status != domain.DecisionOK {
		if err := bus.PublishAlert(ctx, w.bus, tenantID, d); err != nil {
			slog.Error("failed to publish alert",
				"id", d.ID,
				"error", err,
			)
		}
	}

	slog.Info("dispatch request processed",
		"subject_id", tc.SubjectID,
		"tenant_id", tenantID,
		"status", d.Status,
		"candidates_out", input.CandidatesOut,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// handleReload drops cached candidate pools after a rule change.
func (w *Worker) handleReload(ctx context.Context, tenantID string, rel *bus.RuleReload) error {
	if w.snapshots == nil || rel.SubjectID == "" {
		return nil
	}

	if err := w.snapshots.Invalidate(ctx, tenantID, rel.SubjectID); err != nil {
		slog.Warn("failed to invalidate pool snapshot",
			"subject_id", rel.SubjectID,
			"error", err,
		)
	}
	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
