package dispatch

import (
	"context"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/match"
)

// Orchestrator composes the scoped resolver over dispatch routers with the
// candidate filter and ranker, yielding the ordered fallback list. Any stage
// failure short-circuits; no partial results are returned.
type Orchestrator struct {
	resolver *match.Resolver
	filter   Filter
	ranker   *Ranker
}

// NewOrchestrator creates a dispatch orchestrator.
func NewOrchestrator(resolver *match.Resolver, ranker *Ranker) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		ranker:   ranker,
	}
}

// Result is the dispatch outcome.
type Result struct {
	RouterID     string
	StrategyCode string

	// Ordered is the ranked candidate list, best first, after limits.
	Ordered []domain.Candidate

	// Trace is the per-candidate pass/fail record across all gates,
	// including prevent_same_upi drops.
	Trace []domain.CandidateResult
}

// Dispatch resolves the winning router, fetches its strategy, filters and
// ranks the pool, applies the UPI dedup fold and the count limits.
func (o *Orchestrator) Dispatch(ctx context.Context, tenantID string, tc domain.TransactionContext, routers []*domain.DispatchRouter, strategies map[string]*domain.DispatchStrategy, pool []domain.Candidate) (*Result, error) {
	router, err := match.Resolve(o.resolver, routers, tc)
	if err != nil {
		return nil, err
	}

	strategy := strategies[router.StrategyCode]
	if strategy == nil {
		return nil, fmt.Errorf("%w: router %s references unknown strategy %q",
			domain.ErrInvalidRuleConfiguration, router.ID, router.StrategyCode)
	}

	if err := o.checkStrategyGate(strategy, tc); err != nil {
		return nil, err
	}

	if err := strategy.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("strategy %s: %w", strategy.Code, err)
	}

	survivors, trace := o.filter.Apply(strategy.Rules, pool, tc)

	ordered, err := o.ranker.Order(ctx, tenantID, strategy.Code, strategy.Rules, survivors)
	if err != nil {
		return nil, err
	}

	if strategy.Rules.PreventSameUPI {
		var dropped []domain.CandidateResult
		ordered, dropped = DedupeUPI(ordered)
		trace = mergeDrops(trace, dropped)
	}

	ordered, err = o.ranker.Limit(strategy.Rules, ordered)
	if err != nil {
		return nil, err
	}

	return &Result{
		RouterID:     router.ID,
		StrategyCode: strategy.Code,
		Ordered:      ordered,
		Trace:        trace,
	}, nil
}

// checkStrategyGate applies the strategy's own optional criteria. An
// inactive strategy never dispatches; a strategy without criteria accepts
// whatever its routers send.
func (o *Orchestrator) checkStrategyGate(strategy *domain.DispatchStrategy, tc domain.TransactionContext) error {
	if strategy.Criteria.Status == domain.StatusInactive {
		return fmt.Errorf("strategy %s is inactive: %w", strategy.Code, domain.ErrNoMatchingRule)
	}
	if strategy.Criteria.TrxType == "" {
		return nil
	}

	gate := strategyGate{strategy}
	spec := gate.MatchSpec()
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("strategy %s: %w", strategy.Code, err)
	}
	ok, err := o.resolver.Matcher().Matches(gate, tc)
	if err != nil {
		return fmt.Errorf("strategy %s: %w", strategy.Code, err)
	}
	if !ok {
		return fmt.Errorf("strategy %s criteria reject the context: %w",
			strategy.Code, domain.ErrNoMatchingRule)
	}
	return nil
}

// strategyGate adapts a strategy's optional criteria to the Rule contract so
// the shared matcher can evaluate them. Strategies are reusable across
// subjects, so the gate is always global scope.
type strategyGate struct {
	s *domain.DispatchStrategy
}

func (g strategyGate) RuleID() string  { return g.s.ID }
func (g strategyGate) OwnerID() string { return "" }

func (g strategyGate) MatchSpec() domain.MatchCriteria {
	c := g.s.Criteria
	if c.Status == "" {
		c.Status = domain.StatusActive
	}
	return c
}

// mergeDrops flips trace entries for candidates dropped by the UPI fold.
func mergeDrops(trace []domain.CandidateResult, dropped []domain.CandidateResult) []domain.CandidateResult {
	if len(dropped) == 0 {
		return trace
	}
	clauses := make(map[string]string, len(dropped))
	for _, d := range dropped {
		clauses[d.CandidateID] = d.FailedClause
	}
	for i := range trace {
		if clause, ok := clauses[trace[i].CandidateID]; ok {
			trace[i].Pass = false
			trace[i].FailedClause = clause
		}
	}
	return trace
}
