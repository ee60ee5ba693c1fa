// Package decision assembles and classifies decision audit records.
package decision

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

const engineVersion = "kestrel-1.0"

// Processor stamps resolution and dispatch outcomes into Decision records.
type Processor struct{}

// NewProcessor creates a new decision processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Input contains all data needed to assemble a decision.
type Input struct {
	TenantID string
	Kind     string
	TraceID  string

	Context domain.TransactionContext

	// Outcome of the engine call. Err classifies the status; the rest
	// fill the record on success.
	Err          error
	RuleID       string
	StrategyCode string
	Ordered      []string
	Trace        []domain.CandidateResult

	StartTime time.Time
	ResolveMs int64
	FilterMs  int64
	RankMs    int64

	CandidatesIn  int
	CandidatesOut int
}

// Process builds the Decision record for one engine call.
func (p *Processor) Process(input *Input) *domain.Decision {
	d := &domain.Decision{
		ID:           uuid.New().String(),
		TenantID:     input.TenantID,
		Kind:         input.Kind,
		Status:       StatusFor(input.Err),
		SubjectID:    input.Context.SubjectID,
		TrxType:      input.Context.TrxType,
		Amount:       input.Context.Amount,
		Currency:     input.Context.Currency,
		RuleID:       input.RuleID,
		StrategyCode: input.StrategyCode,
		Ordered:      input.Ordered,
		Trace:        input.Trace,
		Timestamp:    time.Now().UTC(),
	}

	totalMs := int64(0)
	if !input.StartTime.IsZero() {
		totalMs = time.Since(input.StartTime).Milliseconds()
	}

	d.Metadata = domain.DecisionMetadata{
		TraceID:       input.TraceID,
		ResolveMs:     input.ResolveMs,
		FilterMs:      input.FilterMs,
		RankMs:        input.RankMs,
		TotalMs:       totalMs,
		CandidatesIn:  input.CandidatesIn,
		CandidatesOut: input.CandidatesOut,
		EngineVersion: engineVersion,
	}

	return d
}

// StatusFor maps an engine error to a decision status.
func StatusFor(err error) string {
	switch {
	case err == nil:
		return domain.DecisionOK
	case errors.Is(err, domain.ErrNoMatchingRule):
		return domain.DecisionNoRule
	case errors.Is(err, domain.ErrInsufficientCandidates):
		return domain.DecisionInsufficient
	case errors.Is(err, domain.ErrInvalidRuleConfiguration):
		return domain.DecisionInvalid
	default:
		return domain.DecisionInvalid
	}
}

// IsSoftFailure reports whether the error is an expected engine outcome
// rather than an infrastructure fault.
func IsSoftFailure(err error) bool {
	return errors.Is(err, domain.ErrNoMatchingRule) ||
		errors.Is(err, domain.ErrInsufficientCandidates) ||
		errors.Is(err, domain.ErrInvalidRuleConfiguration)
}
