package match

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Resolver picks the single winning rule out of a collection. One resolver
// serves every rule kind: routing rules, commission configs, dispatch routers
// and settlement configs only differ in payload, never in how they match.
type Resolver struct {
	matcher *Matcher
}

// NewResolver creates a resolver with its own guard cache.
func NewResolver() (*Resolver, error) {
	guards, err := NewGuardSet()
	if err != nil {
		return nil, err
	}
	return &Resolver{matcher: NewMatcher(guards)}, nil
}

// Matcher exposes the underlying matcher for callers that need single-rule
// checks (the orchestrator's strategy gate).
func (r *Resolver) Matcher() *Matcher {
	return r.matcher
}

// Resolve filters the rule set through the matcher, ranks the survivors and
// returns the winner. Contradictory rule fields surface eagerly as
// ErrInvalidRuleConfiguration; an empty survivor set is ErrNoMatchingRule.
// For a fixed rule set and context the result is deterministic.
func Resolve[R domain.Rule](r *Resolver, rules []R, tc domain.TransactionContext) (R, error) {
	var zero R

	matched := make([]R, 0, len(rules))
	for _, rule := range rules {
		c := rule.MatchSpec()
		if err := c.Validate(); err != nil {
			return zero, fmt.Errorf("rule %s: %w", rule.RuleID(), err)
		}

		ok, err := r.matcher.Matches(rule, tc)
		if err != nil {
			return zero, fmt.Errorf("rule %s: %w", rule.RuleID(), err)
		}
		if ok {
			matched = append(matched, rule)
		}
	}

	if len(matched) == 0 {
		return zero, domain.ErrNoMatchingRule
	}

	return Rank(matched)[0], nil
}
