package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/dispatch"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/match"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/snapshot"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo         domain.Repository
	cache        domain.Cache
	bus          domain.EventBus
	cursors      domain.CursorStore
	resolver     *match.Resolver
	orchestrator *dispatch.Orchestrator
	snapshots    *snapshot.Service
	processor    *decision.Processor
	version      string
	persist      bool
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, eventBus domain.EventBus, cursors domain.CursorStore, resolver *match.Resolver, orchestrator *dispatch.Orchestrator, snapshots *snapshot.Service, processor *decision.Processor, version string, persist bool) *Handler {
	return &Handler{
		repo:         repo,
		cache:        cache,
		bus:          eventBus,
		cursors:      cursors,
		resolver:     resolver,
		orchestrator: orchestrator,
		snapshots:    snapshots,
		processor:    processor,
		version:      version,
		persist:      persist,
	}
}

// decodeResolveRequest parses and validates the shared resolution payload.
func decodeResolveRequest(w http.ResponseWriter, r *http.Request) (*domain.ResolveRequest, bool) {
	var req domain.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return nil, false
	}
	if req.SubjectID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "subjectId is required",
		})
		return nil, false
	}
	if req.TrxType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "trxType is required",
		})
		return nil, false
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return nil, false
	}
	return &req, true
}

// ResolveRouting handles POST /resolve/routing.
func (h *Handler) ResolveRouting(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	req, ok := decodeResolveRequest(w, r)
	if !ok {
		return
	}
	tc := req.ToContext()

	rules, err := h.repo.ListRoutingRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list routing rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load routing rules",
		})
		return
	}

	resolveStart := time.Now()
	winner, resolveErr := match.Resolve(h.resolver, rules, tc)
	resolveMs := time.Since(resolveStart).Milliseconds()

	input := &decision.Input{
		TenantID:  tenantID,
		Kind:      domain.KindRouting,
		TraceID:   traceID,
		Context:   tc,
		Err:       resolveErr,
		StartTime: start,
		ResolveMs: resolveMs,
	}
	if resolveErr == nil {
		input.RuleID = winner.ID
	}

	d := h.processor.Process(input)
	h.saveDecision(r, d)

	resp := domain.ResolveResponse{
		DecisionID: d.ID,
		Status:     d.Status,
		RuleID:     d.RuleID,
		Metadata:   d.Metadata,
	}
	if resolveErr != nil {
		h.respondResolveError(w, resp, resolveErr)
		return
	}

	resp.Payload = map[string]string{
		"targetKind": winner.TargetKind,
		"target":     winner.Target,
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResolveCommission handles POST /resolve/commission.
func (h *Handler) ResolveCommission(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	req, ok := decodeResolveRequest(w, r)
	if !ok {
		return
	}
	tc := req.ToContext()

	configs, err := h.repo.ListCommissionConfigs(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list commission configs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load commission configs",
		})
		return
	}

	resolveStart := time.Now()
	winner, resolveErr := match.Resolve(h.resolver, configs, tc)
	resolveMs := time.Since(resolveStart).Milliseconds()

	input := &decision.Input{
		TenantID:  tenantID,
		Kind:      domain.KindCommission,
		TraceID:   traceID,
		Context:   tc,
		Err:       resolveErr,
		StartTime: start,
		ResolveMs: resolveMs,
	}
	if resolveErr == nil {
		input.RuleID = winner.ID
	}

	d := h.processor.Process(input)
	h.saveDecision(r, d)

	resp := domain.ResolveResponse{
		DecisionID: d.ID,
		Status:     d.Status,
		RuleID:     d.RuleID,
		Metadata:   d.Metadata,
	}
	if resolveErr != nil {
		h.respondResolveError(w, resp, resolveErr)
		return
	}

	resp.Payload = map[string]any{
		"configId":        winner.ID,
		"fee":             winner.Fee(tc.Amount),
		"fixedCommission": winner.FixedCommission,
		"rate":            winner.Rate,
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResolveSettlement handles POST /resolve/settlement. The subject's contract
// supplies the candidate settle configs for the transaction direction.
func (h *Handler) ResolveSettlement(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	req, ok := decodeResolveRequest(w, r)
	if !ok {
		return
	}
	tc := req.ToContext()

	contract, err := h.repo.GetContract(ctx, tenantID, tc.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no contract for subject",
			})
			return
		}
		slog.Error("failed to get contract", "subject_id", tc.SubjectID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load contract",
		})
		return
	}

	binding := contract.Payin
	if tc.TrxType == "payout" {
		binding = contract.Payout
	}

	configs := make([]*domain.ContractSettleConfig, 0, len(binding.SettleConfigs))
	for i := range binding.SettleConfigs {
		configs = append(configs, &binding.SettleConfigs[i])
	}

	resolveStart := time.Now()
	winner, resolveErr := match.Resolve(h.resolver, configs, tc)
	resolveMs := time.Since(resolveStart).Milliseconds()

	input := &decision.Input{
		TenantID:  tenantID,
		Kind:      domain.KindSettlement,
		TraceID:   traceID,
		Context:   tc,
		Err:       resolveErr,
		StartTime: start,
		ResolveMs: resolveMs,
	}
	if resolveErr == nil {
		input.RuleID = winner.ID
	}

	d := h.processor.Process(input)
	h.saveDecision(r, d)

	resp := domain.ResolveResponse{
		DecisionID: d.ID,
		Status:     d.Status,
		RuleID:     d.RuleID,
		Metadata:   d.Metadata,
	}
	if resolveErr != nil {
		h.respondResolveError(w, resp, resolveErr)
		return
	}

	resp.Payload = map[string]any{
		"cycle":         winner.Cycle,
		"strategyCodes": winner.StrategyCodes,
	}
	writeJSON(w, http.StatusOK, resp)
}

// DispatchRequest is the request body for POST /dispatch. Candidates may be
// supplied inline; otherwise the snapshot service loads the subject's pool.
type DispatchRequest struct {
	domain.ResolveRequest
	Candidates []domain.Candidate `json:"candidates,omitempty"`
}

// Dispatch handles POST /dispatch.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.SubjectID == "" || req.TrxType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "subjectId and trxType are required",
		})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return
	}
	tc := req.ToContext()

	routers, err := h.repo.ListDispatchRouters(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list dispatch routers", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load dispatch routers",
		})
		return
	}

	strategyList, err := h.repo.ListDispatchStrategies(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list dispatch strategies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load dispatch strategies",
		})
		return
	}
	strategies := make(map[string]*domain.DispatchStrategy, len(strategyList))
	for _, s := range strategyList {
		strategies[s.Code] = s
	}

	pool := req.Candidates
	if len(pool) == 0 && h.snapshots != nil {
		pool, err = h.snapshots.Pool(ctx, tenantID, tc.SubjectID)
		if err != nil {
			slog.Error("failed to load candidate pool", "subject_id", tc.SubjectID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load candidate pool",
			})
			return
		}
	}

	dispatchStart := time.Now()
	result, dispatchErr := h.orchestrator.Dispatch(ctx, tenantID, tc, routers, strategies, pool)
	dispatchMs := time.Since(dispatchStart).Milliseconds()

	input := &decision.Input{
		TenantID:     tenantID,
		Kind:         domain.KindDispatch,
		TraceID:      traceID,
		Context:      tc,
		Err:          dispatchErr,
		StartTime:    start,
		ResolveMs:    dispatchMs,
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

	d := h.processor.Process(input)
	h.saveDecision(r, d)
	h.publishDecision(r, d)

	resp := domain.DispatchResponse{
		DecisionID:   d.ID,
		Status:       d.Status,
		RouterID:     d.RuleID,
		StrategyCode: d.StrategyCode,
		Candidates:   d.Ordered,
		Trace:        d.Trace,
		Metadata:     d.Metadata,
	}
	if dispatchErr != nil {
		if !decision.IsSoftFailure(dispatchErr) {
			slog.Error("dispatch failed", "error", dispatchErr)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "dispatch failed",
			})
			return
		}
		resp.Error = dispatchErr.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

// respondResolveError finishes a resolution call that ended in an engine
// error. Soft failures still return 200 with the classified status.
func (h *Handler) respondResolveError(w http.ResponseWriter, resp domain.ResolveResponse, err error) {
	if !decision.IsSoftFailure(err) {
		slog.Error("resolution failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "resolution failed",
		})
		return
	}
	resp.Error = err.Error()
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) saveDecision(r *http.Request, d *domain.Decision) {
	if !h.persist || h.repo == nil {
		return
	}
	if err := h.repo.SaveDecision(r.Context(), d.TenantID, d); err != nil {
		slog.Error("failed to save decision", "id", d.ID, "error", err)
	}
}

func (h *Handler) publishDecision(r *http.Request, d *domain.Decision) {
	if h.bus == nil {
		return
	}
	if err := bus.PublishDecision(r.Context(), h.bus, d.TenantID, d); err != nil {
		slog.Error("failed to publish decision", "id", d.ID, "error", err)
	}
}

// GetDecision retrieves a decision audit record by ID.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	decisionID := chi.URLParam(r, "id")

	if decisionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "decision id is required",
		})
		return
	}

	d, err := h.repo.GetDecision(ctx, tenantID, decisionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "decision not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// CreateRoutingRule handles POST /rules/routing.
func (h *Handler) CreateRoutingRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var rule domain.RoutingRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.Target == "" || rule.TargetKind == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "targetKind and target are required",
		})
		return
	}
	if err := rule.Criteria.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if rule.Criteria.Guard != "" {
		if _, err := h.resolver.Matcher().Guards().Compile(rule.Criteria.Guard); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid guard expression: " + err.Error(),
			})
			return
		}
	}
	rule.TenantID = tenantID

	if err := h.repo.SaveRoutingRule(ctx, tenantID, &rule); err != nil {
		slog.Error("failed to save routing rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save routing rule",
		})
		return
	}

	h.publishReload(r, tenantID)
	slog.Info("routing rule created", "id", rule.ID, "owner", rule.Owner)
	writeJSON(w, http.StatusCreated, rule)
}

// ListRoutingRules handles GET /rules/routing.
func (h *Handler) ListRoutingRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	rules, err := h.repo.ListRoutingRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list routing rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list routing rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetRoutingRule handles GET /rules/routing/{id}.
func (h *Handler) GetRoutingRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleID := chi.URLParam(r, "id")

	rule, err := h.repo.GetRoutingRule(ctx, tenantID, ruleID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "routing rule not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// DeleteRoutingRule handles DELETE /rules/routing/{id}.
func (h *Handler) DeleteRoutingRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleID := chi.URLParam(r, "id")

	if err := h.repo.DeleteRoutingRule(ctx, tenantID, ruleID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "routing rule not found",
		})
		return
	}

	h.publishReload(r, tenantID)
	slog.Info("routing rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "routing rule deleted",
	})
}

// CreateCommissionConfig handles POST /rules/commission.
func (h *Handler) CreateCommissionConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var cfg domain.CommissionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if err := cfg.Criteria.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	cfg.TenantID = tenantID

	if err := h.repo.SaveCommissionConfig(ctx, tenantID, &cfg); err != nil {
		slog.Error("failed to save commission config", "id", cfg.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save commission config",
		})
		return
	}

	h.publishReload(r, tenantID)
	slog.Info("commission config created", "id", cfg.ID, "cid", cfg.CID)
	writeJSON(w, http.StatusCreated, cfg)
}

// ListCommissionConfigs handles GET /rules/commission.
func (h *Handler) ListCommissionConfigs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	configs, err := h.repo.ListCommissionConfigs(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list commission configs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list commission configs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"configs": configs,
		"count":   len(configs),
	})
}

// GetCommissionConfig handles GET /rules/commission/{id}.
func (h *Handler) GetCommissionConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	cfgID := chi.URLParam(r, "id")

	cfg, err := h.repo.GetCommissionConfig(ctx, tenantID, cfgID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "commission config not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// DeleteCommissionConfig handles DELETE /rules/commission/{id}.
func (h *Handler) DeleteCommissionConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	cfgID := chi.URLParam(r, "id")

	if err := h.repo.DeleteCommissionConfig(ctx, tenantID, cfgID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "commission config not found",
		})
		return
	}

	h.publishReload(r, tenantID)
	slog.Info("commission config deleted", "id", cfgID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "commission config deleted",
	})
}

// CreateDispatchRouter handles POST /routers.
func (h *Handler) CreateDispatchRouter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var router domain.DispatchRouter
	if err := json.NewDecoder(r.Body).Decode(&router); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if router.ID == "" {
		router.ID = uuid.New().String()
	}
	if router.StrategyCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "strategyCode is required",
		})
		return
	}
	if err := router.Criteria.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	router.TenantID = tenantID

	if err := h.repo.SaveDispatchRouter(ctx, tenantID, &router); err != nil {
		slog.Error("failed to save dispatch router", "id", router.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save dispatch router",
		})
		return
	}

	h.publishReload(r, tenantID)
	slog.Info("dispatch router created", "id", router.ID, "strategy_code", router.StrategyCode)
	writeJSON(w, http.StatusCreated, router)
}

// ListDispatchRouters handles GET /routers.
func (h *Handler) ListDispatchRouters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	routers, err := h.repo.ListDispatchRouters(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list dispatch routers", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list dispatch routers",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"routers": routers,
		"count":   len(routers),
	})
}

// GetDispatchRouter handles GET /routers/{id}.
func (h *Handler) GetDispatchRouter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	routerID := chi.URLParam(r, "id")

	router, err := h.repo.GetDispatchRouter(ctx, tenantID, routerID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dispatch router not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, router)
}

// DeleteDispatchRouter handles DELETE /routers/{id}.
func (h *Handler) DeleteDispatchRouter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	routerID := chi.URLParam(r, "id")

	if err := h.repo.DeleteDispatchRouter(ctx, tenantID, routerID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dispatch router not found",
		})
		return
	}

	h.publishReload(r, tenantID)
	slog.Info("dispatch router deleted", "id", routerID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "dispatch router deleted",
	})
}

// CreateDispatchStrategy handles POST /strategies.
func (h *Handler) CreateDispatchStrategy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var strategy domain.DispatchStrategy
	if err := json.NewDecoder(r.Body).Decode(&strategy); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if strategy.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "code is required",
		})
		return
	}
	if strategy.ID == "" {
		strategy.ID = uuid.New().String()
	}
	if strategy.Version == "" {
		strategy.Version = "1.0.0"
	}
	if err := strategy.Rules.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	strategy.TenantID = tenantID

	if err := h.repo.SaveDispatchStrategy(ctx, tenantID, &strategy); err != nil {
		slog.Error("failed to save dispatch strategy", "code", strategy.Code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save dispatch strategy",
		})
		return
	}

	h.publishReload(r, tenantID)
	slog.Info("dispatch strategy saved", "code", strategy.Code, "version", strategy.Version)
	writeJSON(w, http.StatusCreated, strategy)
}

// ListDispatchStrategies handles GET /strategies.
func (h *Handler) ListDispatchStrategies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	strategies, err := h.repo.ListDispatchStrategies(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list dispatch strategies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list dispatch strategies",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": strategies,
		"count":      len(strategies),
	})
}

// GetDispatchStrategy handles GET /strategies/{code}.
func (h *Handler) GetDispatchStrategy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	code := chi.URLParam(r, "code")

	strategy, err := h.repo.GetDispatchStrategy(ctx, tenantID, code)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dispatch strategy not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, strategy)
}

// DeleteDispatchStrategy handles DELETE /strategies/{code}. The strategy's
// round-robin cursor goes with it so a re-created strategy starts fresh.
func (h *Handler) DeleteDispatchStrategy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	code := chi.URLParam(r, "code")

	if err := h.repo.DeleteDispatchStrategy(ctx, tenantID, code); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dispatch strategy not found",
		})
		return
	}

	if h.cursors != nil {
		if err := h.cursors.Delete(ctx, tenantID, code); err != nil {
			slog.Warn("failed to delete strategy cursor", "code", code, "error", err)
		}
	}

	h.publishReload(r, tenantID)
	slog.Info("dispatch strategy deleted", "code", code)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "dispatch strategy deleted",
	})
}

// SaveContract handles PUT /contracts/{subjectId}.
func (h *Handler) SaveContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	subjectID := chi.URLParam(r, "subjectId")

	var contract domain.Contract
	if err := json.NewDecoder(r.Body).Decode(&contract); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if contract.ID == "" {
		contract.ID = uuid.New().String()
	}
	contract.TenantID = tenantID
	contract.SubjectID = subjectID

	for _, binding := range []domain.SettlementBinding{contract.Payin, contract.Payout} {
		for _, sc := range binding.SettleConfigs {
			if err := sc.Criteria.Validate(); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": err.Error(),
				})
				return
			}
		}
	}

	if err := h.repo.SaveContract(ctx, tenantID, &contract); err != nil {
		slog.Error("failed to save contract", "subject_id", subjectID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save contract",
		})
		return
	}

	slog.Info("contract saved", "subject_id", subjectID)
	writeJSON(w, http.StatusOK, contract)
}

// GetContract handles GET /contracts/{subjectId}.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	subjectID := chi.URLParam(r, "subjectId")

	contract, err := h.repo.GetContract(ctx, tenantID, subjectID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "contract not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, contract)
}

// DeleteContract handles DELETE /contracts/{subjectId}.
func (h *Handler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	subjectID := chi.URLParam(r, "subjectId")

	if err := h.repo.DeleteContract(ctx, tenantID, subjectID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "contract not found",
		})
		return
	}

	slog.Info("contract deleted", "subject_id", subjectID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "contract deleted",
	})
}

// publishReload notifies workers that the tenant's rule set changed.
func (h *Handler) publishReload(r *http.Request, tenantID string) {
	if h.bus == nil {
		return
	}
	if err := bus.PublishRuleReload(r.Context(), h.bus, tenantID, ""); err != nil {
		slog.Warn("failed to publish rule reload", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
