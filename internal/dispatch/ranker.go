package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Ranker orders surviving candidates per the strategy's sort mode and
// enforces the min/max candidate limits. All modes but round_robin are
// stateless; round_robin advances the persisted cursor.
type Ranker struct {
	cursors domain.CursorStore
	newRand func() *rand.Rand
}

// NewRanker creates a ranker backed by the given cursor store.
func NewRanker(cursors domain.CursorStore) *Ranker {
	return &Ranker{
		cursors: cursors,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// WithRand overrides the per-call random source. Tests use it for
// deterministic shuffles.
func (r *Ranker) WithRand(newRand func() *rand.Rand) *Ranker {
	r.newRand = newRand
	return r
}

// Rank orders and truncates survivors: Order then Limit.
func (r *Ranker) Rank(ctx context.Context, tenantID, strategyCode string, rules domain.DispatchRules, survivors []domain.Candidate) ([]domain.Candidate, error) {
	ordered, err := r.Order(ctx, tenantID, strategyCode, rules, survivors)
	if err != nil {
		return nil, err
	}
	return r.Limit(rules, ordered)
}

// Order returns the survivors in strategy order, best first. The input slice
// is not modified.
func (r *Ranker) Order(ctx context.Context, tenantID, strategyCode string, rules domain.DispatchRules, survivors []domain.Candidate) ([]domain.Candidate, error) {
	out := make([]domain.Candidate, len(survivors))
	copy(out, survivors)

	switch rules.SortBy {
	case "", domain.SortScoreDesc:
		sort.Slice(out, func(i, j int) bool {
			if out[i].Score != out[j].Score {
				return out[i].Score > out[j].Score
			}
			return out[i].ID < out[j].ID
		})

	case domain.SortRandom:
		rng := r.newRand()
		rng.Shuffle(len(out), func(i, j int) {
			out[i], out[j] = out[j], out[i]
		})

	case domain.SortRoundRobin:
		if len(out) == 0 {
			return out, nil
		}
		// A dispatch that cannot satisfy the minimum must not consume a
		// rotation, so the count bound is enforced before the cursor moves.
		if rules.LimitMinCandidates > 0 && len(out) < rules.LimitMinCandidates {
			return nil, fmt.Errorf("%w: %d passed, %d required",
				domain.ErrInsufficientCandidates, len(out), rules.LimitMinCandidates)
		}
		// Deterministic base order so the rotation is fair across calls
		// regardless of how the pool was supplied.
		sort.Slice(out, func(i, j int) bool {
			return out[i].ID < out[j].ID
		})
		cursor, err := r.cursors.Next(ctx, tenantID, strategyCode)
		if err != nil {
			return nil, fmt.Errorf("failed to advance round-robin cursor: %w", err)
		}
		rot := int(cursor % int64(len(out)))
		out = append(out[rot:], out[:rot]...)

	case domain.SortWeightedRandom:
		out = weightedDraw(out, rules.SortRandomFactor, r.newRand())

	default:
		return nil, fmt.Errorf("%w: unknown sortBy %q", domain.ErrInvalidRuleConfiguration, rules.SortBy)
	}

	return out, nil
}

// Limit enforces the candidate count bounds on an ordered list. Fewer
// survivors than the minimum is ErrInsufficientCandidates; more than the
// maximum truncates, keeping the highest-ranked.
func (r *Ranker) Limit(rules domain.DispatchRules, ordered []domain.Candidate) ([]domain.Candidate, error) {
	if rules.LimitMinCandidates > 0 && len(ordered) < rules.LimitMinCandidates {
		return nil, fmt.Errorf("%w: %d passed, %d required",
			domain.ErrInsufficientCandidates, len(ordered), rules.LimitMinCandidates)
	}
	if rules.LimitMaxCandidates > 0 && len(ordered) > rules.LimitMaxCandidates {
		ordered = ordered[:rules.LimitMaxCandidates]
	}
	return ordered, nil
}

// weightedDraw samples candidates without replacement with probability
// proportional to an effective weight blending the declared weight with
// uniform noise: w_i = (1-f)*norm(weight_i) + f*u_i, f = sortRandomFactor.
// Weights are normalized against the pool maximum; a pool with no declared
// weights degrades to a uniform draw.
func weightedDraw(cands []domain.Candidate, factor float64, rng *rand.Rand) []domain.Candidate {
	if len(cands) <= 1 {
		return cands
	}
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}

	var maxWeight float64
	for _, c := range cands {
		if c.Weight > maxWeight {
			maxWeight = c.Weight
		}
	}

	weights := make([]float64, len(cands))
	for i, c := range cands {
		base := 1.0
		if maxWeight > 0 {
			base = c.Weight / maxWeight
		}
		w := (1-factor)*base + factor*rng.Float64()
		if w <= 0 {
			w = 1e-9
		}
		weights[i] = w
	}

	out := make([]domain.Candidate, 0, len(cands))
	idx := make([]int, len(cands))
	for i := range idx {
		idx[i] = i
	}

	for len(idx) > 0 {
		var total float64
		for _, i := range idx {
			total += weights[i]
		}
		pick := rng.Float64() * total
		chosen := len(idx) - 1
		for k, i := range idx {
			pick -= weights[i]
			if pick <= 0 {
				chosen = k
				break
			}
		}
		out = append(out, cands[idx[chosen]])
		idx = append(idx[:chosen], idx[chosen+1:]...)
	}

	return out
}
