package match

import (
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Rank orders rules winner-first. The key, descending: scope specificity
// (exclusive beats global), priority, amount-range narrowness, then rule id
// ascending. Ids are unique, so the order is total and the winner unique.
// The input slice is not modified.
func Rank[R domain.Rule](rules []R) []R {
	out := make([]R, len(rules))
	copy(out, rules)
	sort.Slice(out, func(i, j int) bool {
		return ranksBefore(out[i], out[j])
	})
	return out
}

func ranksBefore(a, b domain.Rule) bool {
	aExcl := a.OwnerID() != ""
	bExcl := b.OwnerID() != ""
	if aExcl != bExcl {
		return aExcl
	}

	ac := a.MatchSpec()
	bc := b.MatchSpec()
	if ac.Priority != bc.Priority {
		return ac.Priority > bc.Priority
	}

	// Narrower amount ranges are more specific. Unrestricted and one-sided
	// ranges compare as infinitely wide, so Inf==Inf falls through to id.
	aw := ac.AmountRangeWidth()
	bw := bc.AmountRangeWidth()
	if aw != bw {
		return aw < bw
	}

	return a.RuleID() < b.RuleID()
}
