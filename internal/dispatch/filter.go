// Package dispatch implements team dispatch: filtering a candidate pool
// against a strategy's rule set, ordering the survivors, and composing both
// with the scoped resolver into a full dispatch decision.
package dispatch

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Filter applies a strategy's clause set to a candidate pool. Each gate is
// evaluated per candidate and short-circuits only that candidate. The
// prevent_same_upi clause is the exception: it needs state across the batch
// and is applied by DedupeUPI over the ranked order instead.
type Filter struct{}

// Apply returns the surviving candidates and the full pass/fail trace.
// Gates run in a fixed order; the first violated clause is recorded.
func (Filter) Apply(rules domain.DispatchRules, pool []domain.Candidate, tc domain.TransactionContext) ([]domain.Candidate, []domain.CandidateResult) {
	survivors := make([]domain.Candidate, 0, len(pool))
	trace := make([]domain.CandidateResult, 0, len(pool))

	for _, cand := range pool {
		if clause := firstViolation(rules, cand, tc); clause != "" {
			trace = append(trace, domain.CandidateResult{
				CandidateID:  cand.ID,
				FailedClause: clause,
			})
			continue
		}
		survivors = append(survivors, cand)
		trace = append(trace, domain.CandidateResult{
			CandidateID: cand.ID,
			Pass:        true,
		})
	}

	return survivors, trace
}

func firstViolation(rules domain.DispatchRules, cand domain.Candidate, tc domain.TransactionContext) string {
	if rules.UserOnlineRequired && !cand.UserOnline {
		return domain.ClauseUserOnline
	}
	if rules.AccountOnlineRequired && !cand.AccountOnline {
		return domain.ClauseAccountOnline
	}
	if !statusAllowed(rules.UserStatusRequired, cand.UserStatus) {
		return domain.ClauseUserStatus
	}
	if !statusAllowed(rules.AccountStatusRequired, cand.AccountStatus) {
		return domain.ClauseAccountStatus
	}
	if !statusAllowed(rules.UserPayinStatus, cand.UserPayinStatus) {
		return domain.ClauseUserPayin
	}
	if !statusAllowed(rules.UserPayoutStatus, cand.UserPayoutStatus) {
		return domain.ClauseUserPayout
	}
	if !statusAllowed(rules.AccountPayinStatus, cand.AccountPayinStatus) {
		return domain.ClauseAccountPayin
	}
	if !statusAllowed(rules.AccountPayoutStatus, cand.AccountPayoutStatus) {
		return domain.ClauseAccountPayout
	}
	if rules.MinBalanceRatio > 0 && tc.Amount > 0 {
		if cand.AvailableBalance/tc.Amount < rules.MinBalanceRatio {
			return domain.ClauseMinBalanceRatio
		}
	}
	if rules.EnforceTrxConfig && !cand.ChannelConfig.Accepts(tc) {
		return domain.ClauseEnforceTrxConfig
	}
	return ""
}

// statusAllowed reports whether the candidate status is in the acceptable
// set. An empty set means the clause is absent.
func statusAllowed(allowed []string, status string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

// DedupeUPI folds over ranked candidates carrying the set of UPI handles
// already chosen, dropping any candidate that shares a handle with an
// earlier-ranked one. Candidates without a handle are never dropped.
func DedupeUPI(ordered []domain.Candidate) ([]domain.Candidate, []domain.CandidateResult) {
	seen := make(map[string]struct{}, len(ordered))
	kept := make([]domain.Candidate, 0, len(ordered))
	var dropped []domain.CandidateResult

	for _, cand := range ordered {
		if cand.UPIID != "" {
			if _, dup := seen[cand.UPIID]; dup {
				dropped = append(dropped, domain.CandidateResult{
					CandidateID:  cand.ID,
					FailedClause: domain.ClausePreventSameUPI,
				})
				continue
			}
			seen[cand.UPIID] = struct{}{}
		}
		kept = append(kept, cand)
	}

	return kept, dropped
}
