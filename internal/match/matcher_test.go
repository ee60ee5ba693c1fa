package match

import (
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	guards, err := NewGuardSet()
	if err != nil {
		t.Fatalf("failed to create guard set: %v", err)
	}
	return NewMatcher(guards)
}

func baseRule(c domain.MatchCriteria) *domain.RoutingRule {
	return &domain.RoutingRule{
		ID:         "rule-001",
		Criteria:   c,
		TargetKind: domain.TargetChannel,
		Target:     "bank-a",
	}
}

func baseContext() domain.TransactionContext {
	return domain.TransactionContext{
		SubjectID: "merchant-001",
		TrxType:   "payin",
		Amount:    250.0,
		Timestamp: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestMatcherStructuralFields(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name     string
		criteria domain.MatchCriteria
		mutate   func(*domain.TransactionContext)
		want     bool
	}{
		{
			name:     "ActiveRuleMatches",
			criteria: domain.MatchCriteria{TrxType: "payin", Status: domain.StatusActive},
			want:     true,
		},
		{
			name:     "InactiveNeverMatches",
			criteria: domain.MatchCriteria{TrxType: "payin", Status: domain.StatusInactive},
			want:     false,
		},
		{
			name:     "TrxTypeMismatch",
			criteria: domain.MatchCriteria{TrxType: "payout", Status: domain.StatusActive},
			want:     false,
		},
		{
			name:     "TrxMethodExactMatch",
			criteria: domain.MatchCriteria{TrxType: "payin", TrxMethod: "bank_transfer", Status: domain.StatusActive},
			mutate:   func(tc *domain.TransactionContext) { tc.TrxMethod = "bank_transfer" },
			want:     true,
		},
		{
			name:     "TrxMethodMismatch",
			criteria: domain.MatchCriteria{TrxType: "payin", TrxMethod: "bank_transfer", Status: domain.StatusActive},
			mutate:   func(tc *domain.TransactionContext) { tc.TrxMethod = "card" },
			want:     false,
		},
		{
			name:     "CurrencyWildcard",
			criteria: domain.MatchCriteria{TrxType: "payin", Status: domain.StatusActive},
			mutate:   func(tc *domain.TransactionContext) { tc.Currency = "EUR" },
			want:     true,
		},
		{
			name:     "CountryMismatch",
			criteria: domain.MatchCriteria{TrxType: "payin", Country: "BR", Status: domain.StatusActive},
			mutate:   func(tc *domain.TransactionContext) { tc.Country = "MX" },
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := baseContext()
			if tt.mutate != nil {
				tt.mutate(&tc)
			}
			ok, err := m.Matches(baseRule(tt.criteria), tc)
			if err != nil {
				t.Fatalf("Matches failed: %v", err)
			}
			if ok != tt.want {
				t.Errorf("expected %v, got %v", tt.want, ok)
			}
		})
	}
}

func TestMatcherAmountRange(t *testing.T) {
	m := newTestMatcher(t)

	t.Run("InclusiveBounds", func(t *testing.T) {
		criteria := domain.MatchCriteria{
			TrxType:   "payin",
			Status:    domain.StatusActive,
			MinAmount: 100,
			MaxAmount: 500,
		}

		cases := []struct {
			amount float64
			want   bool
		}{
			{99.99, false},
			{100, true},
			{250, true},
			{500, true},
			{500.01, false},
		}
		for _, c := range cases {
			tc := baseContext()
			tc.Amount = c.amount
			ok, err := m.Matches(baseRule(criteria), tc)
			if err != nil {
				t.Fatalf("Matches failed: %v", err)
			}
			if ok != c.want {
				t.Errorf("amount %v: expected %v, got %v", c.amount, c.want, ok)
			}
		}
	})

	t.Run("OneSidedMin", func(t *testing.T) {
		criteria := domain.MatchCriteria{
			TrxType:   "payin",
			Status:    domain.StatusActive,
			MinAmount: 1000,
		}
		tc := baseContext()
		tc.Amount = 1_000_000
		if ok, _ := m.Matches(baseRule(criteria), tc); !ok {
			t.Error("expected open upper bound to match any large amount")
		}
	})

	t.Run("USDFallbackWhenNativeUnrestricted", func(t *testing.T) {
		criteria := domain.MatchCriteria{
			TrxType:      "payin",
			Status:       domain.StatusActive,
			MinUSDAmount: 50,
			MaxUSDAmount: 100,
		}

		tc := baseContext()
		tc.Amount = 400 // native amount is irrelevant here
		tc.USDAmount = 75
		if ok, _ := m.Matches(baseRule(criteria), tc); !ok {
			t.Error("expected USD range to match")
		}

		tc.USDAmount = 150
		if ok, _ := m.Matches(baseRule(criteria), tc); ok {
			t.Error("expected USD range to reject 150")
		}

		// No USD amount supplied: the USD range is skipped entirely.
		tc.USDAmount = 0
		if ok, _ := m.Matches(baseRule(criteria), tc); !ok {
			t.Error("expected USD range to be skipped without a USD amount")
		}
	})

	t.Run("NativeRangeSuppressesUSD", func(t *testing.T) {
		criteria := domain.MatchCriteria{
			TrxType:      "payin",
			Status:       domain.StatusActive,
			MinAmount:    100,
			MaxAmount:    500,
			MinUSDAmount: 1,
			MaxUSDAmount: 2,
		}
		tc := baseContext()
		tc.Amount = 250
		tc.USDAmount = 999 // would fail the USD range
		if ok, _ := m.Matches(baseRule(criteria), tc); !ok {
			t.Error("expected native range to take precedence over USD range")
		}
	})
}

func TestMatcherValidityWindow(t *testing.T) {
	m := newTestMatcher(t)

	tc := baseContext()
	start := tc.Timestamp.Unix()
	end := tc.Timestamp.Add(time.Hour).Unix()

	criteria := domain.MatchCriteria{
		TrxType:   "payin",
		Status:    domain.StatusActive,
		StartAt:   start,
		ExpiredAt: end,
	}

	// Lower bound is inclusive.
	if ok, _ := m.Matches(baseRule(criteria), tc); !ok {
		t.Error("expected match exactly at startAt")
	}

	// Upper bound is exclusive.
	tc.Timestamp = time.Unix(end, 0)
	if ok, _ := m.Matches(baseRule(criteria), tc); ok {
		t.Error("expected no match exactly at expiredAt")
	}

	tc.Timestamp = time.Unix(start-1, 0)
	if ok, _ := m.Matches(baseRule(criteria), tc); ok {
		t.Error("expected no match before startAt")
	}

	// Zero expiredAt is unbounded.
	criteria.ExpiredAt = 0
	tc.Timestamp = time.Unix(end, 0).AddDate(10, 0, 0)
	if ok, _ := m.Matches(baseRule(criteria), tc); !ok {
		t.Error("expected unbounded window to match far future")
	}
}

func TestMatcherDailyWindow(t *testing.T) {
	m := newTestMatcher(t)

	// Business hours 09:00-17:00.
	criteria := domain.MatchCriteria{
		TrxType:    "payin",
		Status:     domain.StatusActive,
		DailyStart: 9 * 3600,
		DailyEnd:   17 * 3600,
	}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"BeforeOpen", time.Date(2026, 3, 10, 8, 59, 59, 0, time.UTC), false},
		{"AtOpen", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), true},
		{"Midday", time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC), true},
		{"AtClose", time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tc := baseContext()
			tc.Timestamp = c.at
			ok, err := m.Matches(baseRule(criteria), tc)
			if err != nil {
				t.Fatalf("Matches failed: %v", err)
			}
			if ok != c.want {
				t.Errorf("at %v: expected %v, got %v", c.at, c.want, ok)
			}
		})
	}
}

func TestMatcherScope(t *testing.T) {
	m := newTestMatcher(t)

	rule := baseRule(domain.MatchCriteria{TrxType: "payin", Status: domain.StatusActive})
	rule.Owner = "merchant-vip"

	tc := baseContext() // subject merchant-001
	if ok, _ := m.Matches(rule, tc); ok {
		t.Error("expected exclusive rule to reject a different subject")
	}

	tc.SubjectID = "merchant-vip"
	if ok, _ := m.Matches(rule, tc); !ok {
		t.Error("expected exclusive rule to match its owner")
	}
}

func TestMatcherGuard(t *testing.T) {
	m := newTestMatcher(t)

	t.Run("GuardPasses", func(t *testing.T) {
		rule := baseRule(domain.MatchCriteria{
			TrxType: "payin",
			Status:  domain.StatusActive,
			Guard:   `amount > 100.0 && ccy == "USD"`,
		})
		tc := baseContext()
		tc.Currency = "USD"
		ok, err := m.Matches(rule, tc)
		if err != nil {
			t.Fatalf("Matches failed: %v", err)
		}
		if !ok {
			t.Error("expected guard to pass")
		}
	})

	t.Run("GuardRejects", func(t *testing.T) {
		rule := baseRule(domain.MatchCriteria{
			TrxType: "payin",
			Status:  domain.StatusActive,
			Guard:   `amount > 10000.0`,
		})
		ok, err := m.Matches(rule, baseContext())
		if err != nil {
			t.Fatalf("Matches failed: %v", err)
		}
		if ok {
			t.Error("expected guard to reject")
		}
	})

	t.Run("CompileErrorIsInvalidConfig", func(t *testing.T) {
		rule := baseRule(domain.MatchCriteria{
			TrxType: "payin",
			Status:  domain.StatusActive,
			Guard:   `amount >>`,
		})
		_, err := m.Matches(rule, baseContext())
		if !errors.Is(err, domain.ErrInvalidRuleConfiguration) {
			t.Errorf("expected ErrInvalidRuleConfiguration, got %v", err)
		}
	})

	t.Run("NonBoolGuardIsInvalidConfig", func(t *testing.T) {
		rule := baseRule(domain.MatchCriteria{
			TrxType: "payin",
			Status:  domain.StatusActive,
			Guard:   `amount + 1.0`,
		})
		_, err := m.Matches(rule, baseContext())
		if !errors.Is(err, domain.ErrInvalidRuleConfiguration) {
			t.Errorf("expected ErrInvalidRuleConfiguration, got %v", err)
		}
	})
}

func TestGuardSetCaching(t *testing.T) {
	guards, err := NewGuardSet()
	if err != nil {
		t.Fatalf("failed to create guard set: %v", err)
	}

	const expr = `trx_type == "payin"`
	first, err := guards.Compile(expr)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	second, err := guards.Compile(expr)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if first == nil || second == nil {
		t.Fatal("expected compiled programs")
	}

	ok, err := guards.Eval(expr, baseContext())
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if !ok {
		t.Error("expected guard to evaluate true")
	}
}
