// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

// Package places implements the candidate source: an HTTP client for the
// external place-data provider (rate limited, circuit broken) merged with
// the community accessibility-review store.
package places

import (
	"context"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

// Provider fetches nearby places from an external place-data source.
type Provider interface {
	Nearby(ctx context.Context, pt geo.Point, radiusMeters float64, filters recommend.Filters) ([]recommend.Candidate, error)
}

// ReviewStore aggregates community accessibility reviews per place.
type ReviewStore interface {
	// Summaries returns accessibility aggregates for places within the
	// radius of pt, keyed by normalized place ID.
	Summaries(ctx context.Context, pt geo.Point, radiusMeters float64) (map[string]PlaceReviewAggregate, error)
}

// PlaceReviewAggregate is a review store record for one place: the
// aggregate plus enough place data to surface review-only places as
// candidates.
type PlaceReviewAggregate struct {
	PlaceID    string                  `json:"place_id"`
	Name       string                  `json:"name,omitempty"`
	Location   geo.Point               `json:"location"`
	Categories []string                `json:"categories,omitempty"`
	Summary    recommend.AccessSummary `json:"summary"`
}
