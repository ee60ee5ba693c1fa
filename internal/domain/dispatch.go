package domain

import (
	"fmt"
	"time"
)

// SortMode selects the candidate ordering strategy.
type SortMode string

const (
	SortScoreDesc      SortMode = "score_desc"
	SortRandom         SortMode = "random"
	SortRoundRobin     SortMode = "round_robin"
	SortWeightedRandom SortMode = "weighted_random"
)

// DispatchRouter binds a subject and matching criteria to a dispatch
// strategy. The scoped resolver picks the winning router; its StrategyCode is
// then resolved to a DispatchStrategy.
type DispatchRouter struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Owner is the subject the router is exclusive to. Empty means global.
	Owner string `json:"owner,omitempty"`

	Criteria MatchCriteria `json:"criteria"`

	StrategyCode string `json:"strategyCode"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *DispatchRouter) RuleID() string           { return r.ID }
func (r *DispatchRouter) OwnerID() string          { return r.Owner }
func (r *DispatchRouter) MatchSpec() MatchCriteria { return r.Criteria }

// DispatchStrategy is a reusable, versioned rule set shared across many
// router bindings. Its own criteria are an optional extra gate, narrower
// than the router's.
type DispatchStrategy struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Code     string `json:"code"`
	Version  string `json:"version"`

	// Criteria are optional: a zero TrxType means the strategy accepts
	// whatever its routers send it.
	Criteria MatchCriteria `json:"criteria"`

	Rules DispatchRules `json:"rules"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DispatchRules is the sparse clause set a strategy applies to the candidate
// pool. Each clause is typed up front so the filter never guesses a field's
// type at evaluation time; a zero value means the clause is absent.
type DispatchRules struct {
	// Boolean gates
	UserOnlineRequired    bool `json:"userOnlineRequired,omitempty"`
	AccountOnlineRequired bool `json:"accountOnlineRequired,omitempty"`
	PreventSameUPI        bool `json:"preventSameUpi,omitempty"`
	EnforceTrxConfig      bool `json:"enforceTrxConfig,omitempty"`

	// Set-membership gates: acceptable status strings, empty means absent.
	UserStatusRequired    []string `json:"userStatusRequired,omitempty"`
	AccountStatusRequired []string `json:"accountStatusRequired,omitempty"`
	UserPayinStatus       []string `json:"userPayinStatus,omitempty"`
	UserPayoutStatus      []string `json:"userPayoutStatus,omitempty"`
	AccountPayinStatus    []string `json:"accountPayinStatus,omitempty"`
	AccountPayoutStatus   []string `json:"accountPayoutStatus,omitempty"`

	// Numeric gate: candidate passes iff available_balance/amount >= ratio.
	MinBalanceRatio float64 `json:"minBalanceRatio,omitempty"`

	// Ranking controls
	SortBy           SortMode `json:"sortBy,omitempty"`
	SortRandomFactor float64  `json:"sortRandomFactor,omitempty"`

	LimitMinCandidates int `json:"limitMinCandidates,omitempty"`
	LimitMaxCandidates int `json:"limitMaxCandidates,omitempty"`
}

// Validate reports whether the rule set is internally consistent.
func (r *DispatchRules) Validate() error {
	switch r.SortBy {
	case "", SortScoreDesc, SortRandom, SortRoundRobin, SortWeightedRandom:
	default:
		return fmt.Errorf("%w: unknown sortBy %q", ErrInvalidRuleConfiguration, r.SortBy)
	}
	if r.SortRandomFactor < 0 || r.SortRandomFactor > 1 {
		return fmt.Errorf("%w: sortRandomFactor %v out of [0,1]",
			ErrInvalidRuleConfiguration, r.SortRandomFactor)
	}
	if r.MinBalanceRatio < 0 {
		return fmt.Errorf("%w: negative minBalanceRatio", ErrInvalidRuleConfiguration)
	}
	if r.LimitMinCandidates < 0 || r.LimitMaxCandidates < 0 {
		return fmt.Errorf("%w: negative candidate limit", ErrInvalidRuleConfiguration)
	}
	if r.LimitMaxCandidates > 0 && r.LimitMinCandidates > r.LimitMaxCandidates {
		return fmt.Errorf("%w: limitMinCandidates %d > limitMaxCandidates %d",
			ErrInvalidRuleConfiguration, r.LimitMinCandidates, r.LimitMaxCandidates)
	}
	return nil
}

// Clause names used in CandidateResult fail traces.
const (
	ClauseUserOnline       = "user_online_required"
	ClauseAccountOnline    = "account_online_required"
	ClauseUserStatus       = "user_status_required"
	ClauseAccountStatus    = "account_status_required"
	ClauseUserPayin        = "user_payin_status"
	ClauseUserPayout       = "user_payout_status"
	ClauseAccountPayin     = "account_payin_status"
	ClauseAccountPayout    = "account_payout_status"
	ClauseMinBalanceRatio  = "min_balance_ratio"
	ClausePreventSameUPI   = "prevent_same_upi"
	ClauseEnforceTrxConfig = "enforce_trx_config"
)
