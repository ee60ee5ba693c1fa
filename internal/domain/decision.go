package domain

import (
	"time"
)

// Decision kinds.
const (
	KindRouting    = "routing"
	KindCommission = "commission"
	KindSettlement = "settlement"
	KindDispatch   = "dispatch"
)

// Decision statuses.
const (
	DecisionOK           = "OK"
	DecisionNoRule       = "NO_RULE"
	DecisionInsufficient = "INSUFFICIENT"
	DecisionInvalid      = "INVALID_CONFIG"
)

// Decision is the persisted audit record of one resolution or dispatch call.
type Decision struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`

	SubjectID string  `json:"subjectId"`
	TrxType   string  `json:"trxType"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"ccy,omitempty"`

	// RuleID is the winning rule (or router) id, empty on failure.
	RuleID string `json:"ruleId,omitempty"`

	// StrategyCode is set for dispatch decisions.
	StrategyCode string `json:"strategyCode,omitempty"`

	// Ordered is the ranked candidate id list, best first (dispatch only).
	Ordered []string `json:"ordered,omitempty"`

	// Trace is the per-candidate pass/fail record (dispatch only).
	Trace []CandidateResult `json:"trace,omitempty"`

	Timestamp time.Time        `json:"timestamp"`
	Metadata  DecisionMetadata `json:"metadata"`
}

// DecisionMetadata contains processing information.
type DecisionMetadata struct {
	TraceID       string `json:"traceId"`
	ResolveMs     int64  `json:"resolveMs"`
	FilterMs      int64  `json:"filterMs,omitempty"`
	RankMs        int64  `json:"rankMs,omitempty"`
	TotalMs       int64  `json:"totalMs"`
	CandidatesIn  int    `json:"candidatesIn,omitempty"`
	CandidatesOut int    `json:"candidatesOut,omitempty"`
	EngineVersion string `json:"engineVersion"`
}

// ResolveResponse is the API response for a resolution call.
type ResolveResponse struct {
	DecisionID string           `json:"decisionId"`
	Status     string           `json:"status"`
	RuleID     string           `json:"ruleId,omitempty"`
	Payload    any              `json:"payload,omitempty"`
	Error      string           `json:"error,omitempty"`
	Metadata   DecisionMetadata `json:"metadata"`
}

// DispatchResponse is the API response for a dispatch call.
type DispatchResponse struct {
	DecisionID   string            `json:"decisionId"`
	Status       string            `json:"status"`
	RouterID     string            `json:"routerId,omitempty"`
	StrategyCode string            `json:"strategyCode,omitempty"`
	Candidates   []string          `json:"candidates,omitempty"`
	Trace        []CandidateResult `json:"trace,omitempty"`
	Error        string            `json:"error,omitempty"`
	Metadata     DecisionMetadata  `json:"metadata"`
}
