package match

import (
	"errors"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestResolve(t *testing.T) {
	r, err := NewResolver()
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}

	t.Run("PicksUniqueWinner", func(t *testing.T) {
		rules := []*domain.RoutingRule{
			rankRule("low", "", 1, 0, 0),
			rankRule("high", "", 10, 0, 0),
		}
		winner, err := Resolve(r, rules, baseContext())
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if winner.ID != "high" {
			t.Errorf("expected high, got %s", winner.ID)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		rules := []*domain.RoutingRule{
			rankRule("rule-c", "", 5, 0, 0),
			rankRule("rule-a", "", 5, 0, 0),
			rankRule("rule-b", "", 5, 0, 0),
		}
		tc := baseContext()
		for i := 0; i < 20; i++ {
			winner, err := Resolve(r, rules, tc)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if winner.ID != "rule-a" {
				t.Fatalf("iteration %d: expected rule-a, got %s", i, winner.ID)
			}
		}
	})

	t.Run("EmptySetIsNoMatchingRule", func(t *testing.T) {
		_, err := Resolve(r, []*domain.RoutingRule{}, baseContext())
		if !errors.Is(err, domain.ErrNoMatchingRule) {
			t.Errorf("expected ErrNoMatchingRule, got %v", err)
		}
	})

	t.Run("NoSurvivorIsNoMatchingRule", func(t *testing.T) {
		rules := []*domain.RoutingRule{
			rankRule("payout-only", "", 1, 0, 0),
		}
		rules[0].Criteria.TrxType = "payout"
		_, err := Resolve(r, rules, baseContext())
		if !errors.Is(err, domain.ErrNoMatchingRule) {
			t.Errorf("expected ErrNoMatchingRule, got %v", err)
		}
	})

	t.Run("ContradictoryRuleFailsEagerly", func(t *testing.T) {
		// A valid matching rule does not mask a broken one elsewhere in the
		// set: contradictions surface on every resolution touching the set.
		rules := []*domain.RoutingRule{
			rankRule("valid", "", 1, 0, 0),
			rankRule("broken", "", 1, 500, 100),
		}
		_, err := Resolve(r, rules, baseContext())
		if !errors.Is(err, domain.ErrInvalidRuleConfiguration) {
			t.Errorf("expected ErrInvalidRuleConfiguration, got %v", err)
		}
	})

	t.Run("MixedRuleKinds", func(t *testing.T) {
		// The same resolver serves commission configs.
		configs := []*domain.CommissionConfig{
			{
				ID:       "fee-global",
				Criteria: domain.MatchCriteria{TrxType: "payin", Status: domain.StatusActive, Priority: 10},
				Rate:     2.0,
			},
			{
				ID:       "fee-exclusive",
				CID:      "merchant-001",
				Criteria: domain.MatchCriteria{TrxType: "payin", Status: domain.StatusActive},
				Rate:     1.0,
			},
		}
		winner, err := Resolve(r, configs, baseContext())
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if winner.ID != "fee-exclusive" {
			t.Errorf("expected fee-exclusive, got %s", winner.ID)
		}
	})
}
