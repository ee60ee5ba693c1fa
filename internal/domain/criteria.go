// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"fmt"
	"math"
)

// Rule statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// secondsPerDay bounds the daily time-of-day window fields.
const secondsPerDay = 86400

// MatchCriteria is the common set of optional/required fields shared by every
// rule kind. A zero value on an optional field means "matches anything".
type MatchCriteria struct {
	// TrxType is required and never a wildcard.
	TrxType string `json:"trxType"`

	// Optional exact-match fields.
	TrxMethod string `json:"trxMethod,omitempty"`
	Currency  string `json:"ccy,omitempty"`
	Country   string `json:"country,omitempty"`

	// Native amount range, inclusive on both ends. Both zero means
	// unrestricted; one bound set means open on the other side.
	MinAmount float64 `json:"minAmount,omitempty"`
	MaxAmount float64 `json:"maxAmount,omitempty"`

	// USD-equivalent amount range, applied when the native range is
	// unrestricted and the context supplies a USD amount.
	MinUSDAmount float64 `json:"minUsdAmount,omitempty"`
	MaxUSDAmount float64 `json:"maxUsdAmount,omitempty"`

	// Validity window [StartAt, ExpiredAt) in unix seconds. ExpiredAt zero
	// means unbounded; StartAt zero means already started.
	StartAt   int64 `json:"startAt,omitempty"`
	ExpiredAt int64 `json:"expiredAt,omitempty"`

	// Daily time-of-day window [DailyStart, DailyEnd) in seconds since
	// midnight, computed on the context timestamp's location. Both zero
	// means unrestricted. Windows do not wrap midnight.
	DailyStart int `json:"dailyStartTime,omitempty"`
	DailyEnd   int `json:"dailyEndTime,omitempty"`

	// Priority orders matching rules; higher wins.
	Priority int `json:"priority"`

	// Status gates the rule entirely: only "active" rules ever match.
	Status string `json:"status"`

	// Guard is an optional CEL expression over the transaction context.
	// When present it must evaluate to bool and is ANDed with the
	// structural checks above.
	Guard string `json:"guard,omitempty"`
}

// Validate reports whether the criteria are internally consistent.
// Contradictory criteria surface as ErrInvalidRuleConfiguration and are never
// silently repaired.
func (c *MatchCriteria) Validate() error {
	if c.TrxType == "" {
		return fmt.Errorf("%w: trxType is required", ErrInvalidRuleConfiguration)
	}
	if c.Status != StatusActive && c.Status != StatusInactive {
		return fmt.Errorf("%w: status must be %q or %q, got %q",
			ErrInvalidRuleConfiguration, StatusActive, StatusInactive, c.Status)
	}
	if c.MinAmount < 0 || c.MaxAmount < 0 {
		return fmt.Errorf("%w: negative amount bound", ErrInvalidRuleConfiguration)
	}
	if c.MinAmount > 0 && c.MaxAmount > 0 && c.MinAmount > c.MaxAmount {
		return fmt.Errorf("%w: minAmount %v > maxAmount %v",
			ErrInvalidRuleConfiguration, c.MinAmount, c.MaxAmount)
	}
	if c.MinUSDAmount > 0 && c.MaxUSDAmount > 0 && c.MinUSDAmount > c.MaxUSDAmount {
		return fmt.Errorf("%w: minUsdAmount %v > maxUsdAmount %v",
			ErrInvalidRuleConfiguration, c.MinUSDAmount, c.MaxUSDAmount)
	}
	if c.ExpiredAt != 0 && c.StartAt != 0 && c.ExpiredAt <= c.StartAt {
		return fmt.Errorf("%w: expiredAt %d <= startAt %d",
			ErrInvalidRuleConfiguration, c.ExpiredAt, c.StartAt)
	}
	if c.DailyStart != 0 || c.DailyEnd != 0 {
		if c.DailyStart < 0 || c.DailyEnd < 0 ||
			c.DailyStart >= secondsPerDay || c.DailyEnd > secondsPerDay {
			return fmt.Errorf("%w: daily window [%d, %d) out of bounds",
				ErrInvalidRuleConfiguration, c.DailyStart, c.DailyEnd)
		}
		// No cross-midnight wraparound: the window must be well ordered.
		if c.DailyStart >= c.DailyEnd {
			return fmt.Errorf("%w: daily window [%d, %d) is empty or wraps midnight",
				ErrInvalidRuleConfiguration, c.DailyStart, c.DailyEnd)
		}
	}
	return nil
}

// AmountRangeWidth is the narrowness tie-break key: narrower ranges rank
// higher. One-sided and unrestricted ranges sort as infinitely wide.
func (c *MatchCriteria) AmountRangeWidth() float64 {
	if c.MinAmount == 0 || c.MaxAmount == 0 {
		return math.Inf(1)
	}
	return c.MaxAmount - c.MinAmount
}

// Rule is the accessor contract every resolvable rule kind satisfies.
// The scoped resolver is parameterized over it; the payload type stays with
// the concrete kind.
type Rule interface {
	// RuleID is the unique identifier, the final deterministic tie-break.
	RuleID() string

	// OwnerID is the owning subject. Empty means global scope; non-empty
	// means exclusive to that subject.
	OwnerID() string

	// MatchSpec returns the criteria the rule is matched on.
	MatchSpec() MatchCriteria
}
