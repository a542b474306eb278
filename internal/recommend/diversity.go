// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package recommend

import (
	"sort"
	"strings"
)

// DiversityFilter re-ranks a score-sorted list to bound how many results
// share a primary category. A single deterministic greedy pass, no
// backtracking.
type DiversityFilter struct {
	// penalty is subtracted per overflow occurrence of a saturated
	// category, folded into ScoreBreakdown.DiversityBonus.
	penalty float64
}

// NewDiversityFilter creates a filter with the given per-overflow penalty.
func NewDiversityFilter(penalty float64) *DiversityFilter {
	return &DiversityFilter{penalty: penalty}
}

// Rerank walks the score-sorted list, demoting candidates whose primary
// category is already saturated (count >= maxPerCategory). Demotion is an
// additive negative DiversityBonus; scores are recomputed through
// CompositeScore and the list re-sorted stably, so equal adjusted scores
// preserve their original order. maxPerCategory <= 0 disables the filter.
//
// The input slice is modified in place and returned.
func (f *DiversityFilter) Rerank(items []Recommendation, maxPerCategory int, w Weights) []Recommendation {
	if maxPerCategory <= 0 || len(items) < 2 {
		return items
	}

	counts := make(map[string]int)
	for i := range items {
		category := strings.ToLower(items[i].Candidate.PrimaryCategory())
		counts[category]++

		overflow := counts[category] - maxPerCategory
		if overflow <= 0 {
			continue
		}

		if items[i].Breakdown == nil {
			items[i].Breakdown = &ScoreBreakdown{}
		}
		items[i].Breakdown.DiversityBonus = -f.penalty * float64(overflow)
		items[i].Score = CompositeScore(*items[i].Breakdown, w)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	return items
}
