// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package recommend

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
)

// ScoringParams hold the neutral defaults and bonus caps for scoring.
// Unknown signals floor to a neutral default rather than failing; the
// engine never rejects a low-information candidate.
type ScoringParams struct {
	// NeutralTemporal is the temporal score when opening hours are unknown.
	NeutralTemporal float64

	// NeutralQuality is the quality score when no rating exists.
	NeutralQuality float64

	// NeutralCategory is the category score when the request names no
	// categories and carries no query.
	NeutralCategory float64

	// AccessMatchBonus is added per satisfied accessibility requirement.
	AccessMatchBonus float64

	// AccessBonusCap bounds the total accessibility bonus.
	AccessBonusCap float64

	// SignificanceThreshold: components above it generate a reason string.
	SignificanceThreshold float64
}

// DefaultScoringParams returns the documented default scoring parameters.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		NeutralTemporal:       0.7,
		NeutralQuality:        0.5,
		NeutralCategory:       0.5,
		AccessMatchBonus:      0.05,
		AccessBonusCap:        0.15,
		SignificanceThreshold: 0.75,
	}
}

// Scorer computes composite scores and breakdowns for candidates. All
// component computations are pure; a Scorer is safe for concurrent use.
type Scorer struct {
	params ScoringParams
	logger zerolog.Logger
}

// NewScorer creates a Scorer with the given parameters.
func NewScorer(params ScoringParams, logger zerolog.Logger) *Scorer {
	return &Scorer{params: params, logger: logger}
}

// Score computes a Recommendation for one candidate given the resolved
// request context and weights. Fails with ValidationError only when the
// context is missing a valid base location.
func (s *Scorer) Score(c Candidate, rctx RequestContext, w Weights) (Recommendation, error) {
	if rctx.Location.IsZero() || !rctx.Location.Valid() {
		return Recommendation{}, NewValidationError("location", "a valid base location is required")
	}

	distance := geo.Haversine(rctx.Location, c.Location)

	breakdown := ScoreBreakdown{
		Category:     s.categoryScore(c, rctx),
		Location:     s.locationScore(distance, rctx.RadiusMeters),
		Temporal:     s.temporalScore(c),
		Quality:      s.qualityScore(c, rctx),
		ContextBonus: s.contextBonus(c, rctx),
	}

	return Recommendation{
		Candidate:      c,
		Score:          CompositeScore(breakdown, w),
		DistanceMeters: distance,
		Breakdown:      &breakdown,
		Reasons:        s.reasons(breakdown, c),
	}, nil
}

// CompositeScore computes the composite score from a breakdown and weights.
// It is the single declared scoring function: the weighted mean of the four
// base components (normalized by the base weight sum), plus the context
// bonus, plus the boosted diversity bonus, clamped to [0,1]. Reproducible
// from breakdown and weights alone, which is what the explain path and the
// diversity re-score rely on.
func CompositeScore(b ScoreBreakdown, w Weights) float64 {
	sum := w.BaseSum()
	if sum <= 0 {
		return clamp01(b.ContextBonus + w.DiversityBoost*b.DiversityBonus)
	}

	base := (w.Category*b.Category + w.Location*b.Location +
		w.Temporal*b.Temporal + w.Quality*b.Quality) / sum

	return clamp01(base + b.ContextBonus + w.DiversityBoost*b.DiversityBonus)
}

// categoryScore is the fraction of requested categories matched by the
// candidate's category set, in [0,1]. A matching free-text query counts as
// a full match. With no requested categories the neutral default applies.
func (s *Scorer) categoryScore(c Candidate, rctx RequestContext) float64 {
	if len(rctx.Categories) == 0 {
		if rctx.Query != "" && matchesQuery(c, rctx.Query) {
			return 1.0
		}
		return s.params.NeutralCategory
	}

	have := make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		have[strings.ToLower(cat)] = struct{}{}
	}

	matched := 0
	for _, want := range rctx.Categories {
		if _, ok := have[strings.ToLower(want)]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(rctx.Categories))
}

// matchesQuery reports whether the candidate's name or categories contain
// the query text.
func matchesQuery(c Candidate, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(c.Name), q) {
		return true
	}
	for _, cat := range c.Categories {
		if strings.Contains(strings.ToLower(cat), q) {
			return true
		}
	}
	return false
}

// locationScore decreases linearly with distance, reaching 0 at the search
// radius. Candidates beyond the radius floor at 0.
func (s *Scorer) locationScore(distanceMeters, radiusMeters float64) float64 {
	if radiusMeters <= 0 {
		return 0
	}
	return clamp01(1 - distanceMeters/radiusMeters)
}

// temporalScore is 1 when the place is known open, 0 when confirmed
// closed, and the neutral default when opening hours are unknown.
func (s *Scorer) temporalScore(c Candidate) float64 {
	switch c.Open {
	case OpenNow:
		return 1.0
	case ClosedNow:
		return 0.0
	default:
		return s.params.NeutralTemporal
	}
}

// qualityScore normalizes the provider rating (0-5) into [0,1], blending
// in price fit when the request caps the price tier. Absent ratings floor
// to the neutral default.
func (s *Scorer) qualityScore(c Candidate, rctx RequestContext) float64 {
	rating := s.params.NeutralQuality
	if c.Rating > 0 {
		rating = clamp01(c.Rating / 5.0)
	}

	if rctx.MaxPriceTier <= 0 || c.PriceTier <= 0 {
		return rating
	}

	priceFit := 1.0
	if c.PriceTier > rctx.MaxPriceTier {
		priceFit = clamp01(1 - float64(c.PriceTier-rctx.MaxPriceTier)/3.0)
	}

	return clamp01(0.8*rating + 0.2*priceFit)
}

// contextBonus adds a fixed increment per accessibility requirement the
// candidate's review summary satisfies, capped.
func (s *Scorer) contextBonus(c Candidate, rctx RequestContext) float64 {
	if len(rctx.AccessNeeds) == 0 || c.Access == nil {
		return 0
	}

	bonus := 0.0
	for _, need := range rctx.AccessNeeds {
		if c.Access.Features[strings.ToLower(need)] {
			bonus += s.params.AccessMatchBonus
		}
	}

	if bonus > s.params.AccessBonusCap {
		bonus = s.params.AccessBonusCap
	}
	return bonus
}

// reasons generates deterministic reasoning strings for components above
// the significance threshold, in fixed component order.
func (s *Scorer) reasons(b ScoreBreakdown, c Candidate) []string {
	var reasons []string
	t := s.params.SignificanceThreshold

	if b.Category > t {
		reasons = append(reasons, "strong category match")
	}
	if b.Location > t {
		reasons = append(reasons, "well within requested radius")
	}
	if b.Temporal >= 1.0 {
		reasons = append(reasons, "open now")
	}
	if b.Quality > t {
		reasons = append(reasons, "highly rated")
	}
	if b.ContextBonus > 0 {
		reasons = append(reasons, "good accessibility match")
	}
	if c.Access != nil && c.Access.ReviewCount > 0 && b.ContextBonus == 0 {
		reasons = append(reasons, "community accessibility reviews available")
	}

	return reasons
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
