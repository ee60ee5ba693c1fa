// Package match implements the scoped rule resolution engine: a stateless
// predicate (does one rule apply to one context?), a total ordering over
// matching rules, and a generic resolver that picks the unique winner.
package match

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Matcher decides whether a single rule applies to a transaction context.
// It has no side effects and is safe for concurrent use; the only state it
// touches is the shared guard program cache.
type Matcher struct {
	guards *GuardSet
}

// NewMatcher creates a matcher sharing the given guard cache.
func NewMatcher(guards *GuardSet) *Matcher {
	return &Matcher{guards: guards}
}

// Guards exposes the shared guard cache, used to pre-validate expressions at
// rule creation time.
func (m *Matcher) Guards() *GuardSet {
	return m.guards
}

// Matches reports whether the rule applies to the context. A guard compile or
// evaluation failure surfaces as ErrInvalidRuleConfiguration.
func (m *Matcher) Matches(rule domain.Rule, tc domain.TransactionContext) (bool, error) {
	c := rule.MatchSpec()

	if c.Status != domain.StatusActive {
		return false, nil
	}
	if owner := rule.OwnerID(); owner != "" && owner != tc.SubjectID {
		return false, nil
	}
	if c.TrxType != tc.TrxType {
		return false, nil
	}
	if c.TrxMethod != "" && c.TrxMethod != tc.TrxMethod {
		return false, nil
	}
	if c.Currency != "" && c.Currency != tc.Currency {
		return false, nil
	}
	if c.Country != "" && c.Country != tc.Country {
		return false, nil
	}
	if !amountInRange(c, tc) {
		return false, nil
	}
	if !inValidityWindow(c, tc.Timestamp) {
		return false, nil
	}
	if !inDailyWindow(c, tc.Timestamp) {
		return false, nil
	}

	if c.Guard != "" {
		if m.guards == nil {
			return false, fmt.Errorf("%w: guard present but no guard set configured",
				domain.ErrInvalidRuleConfiguration)
		}
		ok, err := m.guards.Eval(c.Guard, tc)
		if err != nil {
			return false, err
		}
		return ok, nil
	}

	return true, nil
}

// amountInRange applies the native range when it is non-trivial; otherwise
// the USD range, when both the rule and the context carry USD values. Bounds
// are inclusive; a single bound leaves the other side open.
func amountInRange(c domain.MatchCriteria, tc domain.TransactionContext) bool {
	if c.MinAmount > 0 || c.MaxAmount > 0 {
		if c.MinAmount > 0 && tc.Amount < c.MinAmount {
			return false
		}
		if c.MaxAmount > 0 && tc.Amount > c.MaxAmount {
			return false
		}
		return true
	}

	if (c.MinUSDAmount > 0 || c.MaxUSDAmount > 0) && tc.USDAmount > 0 {
		if c.MinUSDAmount > 0 && tc.USDAmount < c.MinUSDAmount {
			return false
		}
		if c.MaxUSDAmount > 0 && tc.USDAmount > c.MaxUSDAmount {
			return false
		}
	}

	return true
}

// inValidityWindow checks [startAt, expiredAt). Zero expiredAt is unbounded;
// zero startAt means already started.
func inValidityWindow(c domain.MatchCriteria, ts time.Time) bool {
	t := ts.Unix()
	if c.StartAt > 0 && t < c.StartAt {
		return false
	}
	if c.ExpiredAt > 0 && t >= c.ExpiredAt {
		return false
	}
	return true
}

// inDailyWindow checks [dailyStart, dailyEnd) against the timestamp's local
// time-of-day. Windows do not wrap midnight.
func inDailyWindow(c domain.MatchCriteria, ts time.Time) bool {
	if c.DailyStart == 0 && c.DailyEnd == 0 {
		return true
	}
	sec := ts.Hour()*3600 + ts.Minute()*60 + ts.Second()
	return sec >= c.DailyStart && sec < c.DailyEnd
}
