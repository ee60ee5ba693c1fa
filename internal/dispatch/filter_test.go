package dispatch

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func onlineCandidate(id string) domain.Candidate {
	return domain.Candidate{
		ID:            id,
		UserOnline:    true,
		AccountOnline: true,
		UserStatus:    "active",
		AccountStatus: "active",
	}
}

func TestFilterApply(t *testing.T) {
	var f Filter
	tc := domain.TransactionContext{TrxType: "payin", Amount: 100}

	t.Run("EmptyRulesPassEverything", func(t *testing.T) {
		pool := []domain.Candidate{
			{ID: "a"}, // offline, no statuses
			onlineCandidate("b"),
		}
		survivors, trace := f.Apply(domain.DispatchRules{}, pool, tc)
		if len(survivors) != 2 {
			t.Errorf("expected 2 survivors, got %d", len(survivors))
		}
		for _, tr := range trace {
			if !tr.Pass {
				t.Errorf("candidate %s unexpectedly failed %s", tr.CandidateID, tr.FailedClause)
			}
		}
	})

	t.Run("FirstViolatedClauseRecorded", func(t *testing.T) {
		rules := domain.DispatchRules{
			UserOnlineRequired:    true,
			AccountOnlineRequired: true,
		}
		// Violates both gates; the user gate runs first.
		pool := []domain.Candidate{{ID: "a"}}
		survivors, trace := f.Apply(rules, pool, tc)
		if len(survivors) != 0 {
			t.Fatalf("expected no survivors, got %d", len(survivors))
		}
		if trace[0].FailedClause != domain.ClauseUserOnline {
			t.Errorf("expected %s, got %s", domain.ClauseUserOnline, trace[0].FailedClause)
		}
	})

	t.Run("StatusSets", func(t *testing.T) {
		rules := domain.DispatchRules{
			UserStatusRequired: []string{"active", "probation"},
		}
		pool := []domain.Candidate{
			{ID: "active", UserStatus: "active"},
			{ID: "probation", UserStatus: "probation"},
			{ID: "frozen", UserStatus: "frozen"},
		}
		survivors, trace := f.Apply(rules, pool, tc)
		if len(survivors) != 2 {
			t.Errorf("expected 2 survivors, got %d", len(survivors))
		}
		for _, tr := range trace {
			if tr.CandidateID == "frozen" && tr.FailedClause != domain.ClauseUserStatus {
				t.Errorf("expected frozen to fail %s, got %s", domain.ClauseUserStatus, tr.FailedClause)
			}
		}
	})

	t.Run("DirectionalStatusOnlyWhenConfigured", func(t *testing.T) {
		// No payin status clause: an empty candidate field is fine.
		pool := []domain.Candidate{{ID: "a", UserOnline: true}}
		rules := domain.DispatchRules{UserOnlineRequired: true}
		survivors, _ := f.Apply(rules, pool, tc)
		if len(survivors) != 1 {
			t.Error("expected candidate to pass with clause absent")
		}

		rules.UserPayinStatus = []string{"enabled"}
		survivors, trace := f.Apply(rules, pool, tc)
		if len(survivors) != 0 {
			t.Error("expected candidate to fail the configured payin clause")
		}
		if trace[0].FailedClause != domain.ClauseUserPayin {
			t.Errorf("expected %s, got %s", domain.ClauseUserPayin, trace[0].FailedClause)
		}
	})

	t.Run("MinBalanceRatio", func(t *testing.T) {
		rules := domain.DispatchRules{MinBalanceRatio: 2.0}
		pool := []domain.Candidate{
			{ID: "rich", AvailableBalance: 500},  // ratio 5.0
			{ID: "exact", AvailableBalance: 200}, // ratio 2.0, boundary passes
			{ID: "poor", AvailableBalance: 199},  // ratio 1.99
		}
		survivors, trace := f.Apply(rules, pool, tc)
		if len(survivors) != 2 {
			t.Errorf("expected 2 survivors, got %d", len(survivors))
		}
		for _, tr := range trace {
			if tr.CandidateID == "poor" && tr.FailedClause != domain.ClauseMinBalanceRatio {
				t.Errorf("expected poor to fail %s, got %s", domain.ClauseMinBalanceRatio, tr.FailedClause)
			}
		}
	})

	t.Run("EnforceTrxConfig", func(t *testing.T) {
		rules := domain.DispatchRules{EnforceTrxConfig: true}
		pool := []domain.Candidate{
			{ID: "accepts", ChannelConfig: domain.ChannelTrxConfig{MaxAmount: 500}},
			{ID: "rejects", ChannelConfig: domain.ChannelTrxConfig{MaxAmount: 50}},
		}
		survivors, trace := f.Apply(rules, pool, tc)
		if len(survivors) != 1 || survivors[0].ID != "accepts" {
			t.Fatalf("expected only accepts to survive, got %+v", survivors)
		}
		if trace[1].FailedClause != domain.ClauseEnforceTrxConfig {
			t.Errorf("expected %s, got %s", domain.ClauseEnforceTrxConfig, trace[1].FailedClause)
		}
	})
}

func TestDedupeUPI(t *testing.T) {
	t.Run("DropsLaterDuplicates", func(t *testing.T) {
		ordered := []domain.Candidate{
			{ID: "first", UPIID: "upi-1"},
			{ID: "other", UPIID: "upi-2"},
			{ID: "dup", UPIID: "upi-1"},
		}
		kept, dropped := DedupeUPI(ordered)
		if len(kept) != 2 || kept[0].ID != "first" || kept[1].ID != "other" {
			t.Errorf("expected [first other], got %+v", kept)
		}
		if len(dropped) != 1 || dropped[0].CandidateID != "dup" {
			t.Fatalf("expected dup dropped, got %+v", dropped)
		}
		if dropped[0].FailedClause != domain.ClausePreventSameUPI {
			t.Errorf("expected %s, got %s", domain.ClausePreventSameUPI, dropped[0].FailedClause)
		}
	})

	t.Run("EmptyHandleNeverDropped", func(t *testing.T) {
		ordered := []domain.Candidate{
			{ID: "a"},
			{ID: "b"},
			{ID: "c"},
		}
		kept, dropped := DedupeUPI(ordered)
		if len(kept) != 3 {
			t.Errorf("expected all kept, got %d", len(kept))
		}
		if len(dropped) != 0 {
			t.Errorf("expected no drops, got %+v", dropped)
		}
	})
}
