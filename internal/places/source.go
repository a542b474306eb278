// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package places

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

// Source implements recommend.CandidateSource: it merges provider results
// with accessibility-review aggregates by normalized place ID. Pure data
// gathering, no ranking.
type Source struct {
	provider Provider
	reviews  ReviewStore
	logger   zerolog.Logger
}

// NewSource creates a Source. reviews may be nil, in which case candidates
// carry no accessibility summaries.
func NewSource(provider Provider, reviews ReviewStore, logger zerolog.Logger) *Source {
	return &Source{provider: provider, reviews: reviews, logger: logger}
}

// Gather returns a deduplicated candidate set for the point and radius,
// with counts of deduplicated and review-only places. Fails with
// ValidationError on a non-positive radius or an out-of-range point, and
// with ProviderError when the external source is unreachable. Review-store
// failures degrade to provider-only candidates, flagged on the result.
func (s *Source) Gather(ctx context.Context, pt geo.Point, radiusMeters float64, filters recommend.Filters) (recommend.GatherResult, error) {
	if radiusMeters <= 0 {
		return recommend.GatherResult{}, recommend.NewValidationError("radius", "must be positive")
	}
	if !pt.Valid() {
		return recommend.GatherResult{}, recommend.NewValidationError("location", "latitude/longitude out of range")
	}

	candidates, err := s.provider.Nearby(ctx, pt, radiusMeters, filters)
	if err != nil {
		return recommend.GatherResult{}, err
	}

	aggregates, degraded := s.gatherAggregates(ctx, pt, radiusMeters)
	result := recommend.GatherResult{Degraded: degraded}

	// Dedup provider results by normalized place ID; when both the
	// provider and the review store know a place, the accessibility
	// summary attaches to the provider record.
	seen := make(map[string]int, len(candidates))
	merged := make([]recommend.Candidate, 0, len(candidates)+len(aggregates))
	for _, c := range candidates {
		id := NormalizePlaceID(c.PlaceID)
		if id == "" {
			continue
		}
		if idx, dup := seen[id]; dup {
			// Keep the first occurrence; backfill the summary if only
			// the duplicate would have received one.
			if merged[idx].Access == nil {
				if agg, ok := aggregates[id]; ok {
					summary := agg.Summary
					merged[idx].Access = &summary
				}
			}
			result.Deduplicated++
			continue
		}

		c.PlaceID = id
		if agg, ok := aggregates[id]; ok {
			summary := agg.Summary
			c.Access = &summary
		}
		seen[id] = len(merged)
		merged = append(merged, c)
	}

	// Review-only places become candidates too, filtered like provider
	// results so the category contract holds for every candidate.
	// Sorted by ID: map iteration order must not leak into the result.
	reviewOnly := make([]string, 0, len(aggregates))
	for id := range aggregates {
		if _, dup := seen[id]; !dup {
			reviewOnly = append(reviewOnly, id)
		}
	}
	sort.Strings(reviewOnly)

	for _, id := range reviewOnly {
		c := aggregateCandidate(aggregates[id])
		if !matchesFilters(c, filters) {
			continue
		}
		if geo.Haversine(pt, c.Location) > radiusMeters {
			continue
		}
		seen[id] = len(merged)
		merged = append(merged, c)
		result.ReviewOnly++
	}

	result.Candidates = merged
	return result, nil
}

// gatherAggregates fetches review aggregates, absorbing store failures.
// The second return reports whether review data was unavailable.
func (s *Source) gatherAggregates(ctx context.Context, pt geo.Point, radiusMeters float64) (map[string]PlaceReviewAggregate, bool) {
	if s.reviews == nil {
		return nil, false
	}
	aggregates, err := s.reviews.Summaries(ctx, pt, radiusMeters)
	if err != nil {
		s.logger.Warn().Err(err).Msg("review store unavailable, candidates carry no accessibility data")
		return nil, true
	}
	return aggregates, false
}

// aggregateCandidate builds a candidate from a review-only place.
func aggregateCandidate(agg PlaceReviewAggregate) recommend.Candidate {
	summary := agg.Summary
	return recommend.Candidate{
		PlaceID:    agg.PlaceID,
		Name:       agg.Name,
		Categories: agg.Categories,
		Location:   agg.Location,
		Open:       recommend.OpenUnknown,
		Access:     &summary,
	}
}

// matchesFilters applies the category/query narrowing the provider would
// have applied to its own results.
func matchesFilters(c recommend.Candidate, filters recommend.Filters) bool {
	if len(filters.Categories) > 0 {
		matched := false
		for _, want := range filters.Categories {
			for _, have := range c.Categories {
				if strings.EqualFold(want, have) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
	}

	if filters.Query != "" {
		q := strings.ToLower(filters.Query)
		if !strings.Contains(strings.ToLower(c.Name), q) {
			inCategory := false
			for _, cat := range c.Categories {
				if strings.Contains(strings.ToLower(cat), q) {
					inCategory = true
					break
				}
			}
			if !inCategory {
				return false
			}
		}
	}

	return true
}
