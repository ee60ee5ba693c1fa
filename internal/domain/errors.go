package domain

import "errors"

// Engine error taxonomy. All three are business-level "no decision possible"
// outcomes the caller recovers from; the engine never panics on bad input.
var (
	// ErrNoMatchingRule means no rule in the set satisfied the context.
	// Hard failure for routing/commission resolution, soft for settlement.
	ErrNoMatchingRule = errors.New("no matching rule")

	// ErrInsufficientCandidates means the pool after filtering fell below
	// the strategy's configured minimum.
	ErrInsufficientCandidates = errors.New("insufficient candidates")

	// ErrInvalidRuleConfiguration means a rule's own fields are
	// contradictory. Detected eagerly at resolution time, never repaired.
	ErrInvalidRuleConfiguration = errors.New("invalid rule configuration")
)
