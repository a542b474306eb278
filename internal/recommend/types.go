// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package recommend

import (
	"time"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
)

// OpenStatus describes whether a place is known to be open at request time.
type OpenStatus int

const (
	// OpenUnknown indicates no opening-hours data is available.
	OpenUnknown OpenStatus = iota
	// OpenNow indicates the place is open at the request's time-of-day.
	OpenNow
	// ClosedNow indicates the place is confirmed closed.
	ClosedNow
)

// String returns a human-readable name for the open status.
func (s OpenStatus) String() string {
	switch s {
	case OpenNow:
		return "open"
	case ClosedNow:
		return "closed"
	default:
		return "unknown"
	}
}

// AccessSummary aggregates community accessibility reviews for one place.
type AccessSummary struct {
	// Features maps an accessibility dimension (e.g. "wheelchair_ramp",
	// "accessible_restroom", "step_free_entry") to whether reviewers
	// reported it available.
	Features map[string]bool `json:"features"`

	// Confidence is the aggregate confidence in the feature map, in [0,1].
	// More reviews and higher agreement raise it.
	Confidence float64 `json:"confidence"`

	// ReviewCount is the number of accessibility reviews aggregated.
	ReviewCount int `json:"review_count"`

	// AvgRating is the mean accessibility rating across reviews (1-5).
	AvgRating float64 `json:"avg_rating"`
}

// Candidate is an unranked place eligible for recommendation. Immutable
// once gathered for a single request.
type Candidate struct {
	// PlaceID is the normalized place identifier (dedup key).
	PlaceID string `json:"place_id"`

	// Name is the display name of the place.
	Name string `json:"name"`

	// Categories is the place's category set, lowercase.
	Categories []string `json:"categories"`

	// Location is the place's coordinate.
	Location geo.Point `json:"location"`

	// Rating is the external provider rating (0-5), 0 when absent.
	Rating float64 `json:"rating,omitempty"`

	// PriceTier is the provider price tier (1-4), 0 when absent.
	PriceTier int `json:"price_tier,omitempty"`

	// Open is the open/closed status at request time.
	Open OpenStatus `json:"open"`

	// Access is the aggregated accessibility summary, nil when no
	// community reviews exist for the place.
	Access *AccessSummary `json:"access,omitempty"`
}

// PrimaryCategory returns the candidate's first category, normalized, or
// "uncategorized" when the set is empty. Used by the diversity filter.
func (c Candidate) PrimaryCategory() string {
	if len(c.Categories) == 0 {
		return "uncategorized"
	}
	return c.Categories[0]
}

// Weights are the caller-supplied scoring weights. The weight sum need not
// be 1; CompositeScore normalizes by the sum of the four base weights.
type Weights struct {
	Category       float64 `json:"category_weight"`
	Location       float64 `json:"location_weight"`
	Temporal       float64 `json:"temporal_weight"`
	Quality        float64 `json:"quality_weight"`
	DiversityBoost float64 `json:"diversity_boost"`
}

// BaseSum returns the sum of the four base component weights.
func (w Weights) BaseSum() float64 {
	return w.Category + w.Location + w.Temporal + w.Quality
}

// ScoreBreakdown holds the named components of a composite score. Each base
// component is in [0,1]; ContextBonus is capped separately; DiversityBonus
// is zero or negative.
type ScoreBreakdown struct {
	Category       float64 `json:"category"`
	Location       float64 `json:"location"`
	Temporal       float64 `json:"temporal"`
	Quality        float64 `json:"quality"`
	ContextBonus   float64 `json:"context_bonus"`
	DiversityBonus float64 `json:"diversity_bonus"`
}

// Recommendation is a Candidate plus its score and explanation. Created
// fresh per scoring pass or reconstructed verbatim from a CacheEntry.
type Recommendation struct {
	Candidate Candidate `json:"candidate"`

	// Score is the composite score in [0,1].
	Score float64 `json:"score"`

	// DistanceMeters is the great-circle distance from the request point.
	DistanceMeters float64 `json:"distance_meters"`

	// Breakdown holds the per-component scores. Always populated in the
	// cache; stripped from responses unless explanations were requested.
	Breakdown *ScoreBreakdown `json:"breakdown,omitempty"`

	// Reasons are deterministic human-readable reasoning strings for
	// components that exceeded the significance threshold.
	Reasons []string `json:"reasons,omitempty"`
}

// RequestContext is the resolved, cacheable context of a recommendation
// request. Stored inside CacheEntry so invalidation predicates can match
// on user and location.
type RequestContext struct {
	UserID       string    `json:"user_id"`
	Location     geo.Point `json:"location"`
	RadiusMeters float64   `json:"radius_meters"`
	Query        string    `json:"query,omitempty"`
	Categories   []string  `json:"categories,omitempty"`
	AccessNeeds  []string  `json:"access_needs,omitempty"`
	MaxResults   int       `json:"max_results"`
	MaxPriceTier int       `json:"max_price_tier,omitempty"`
	Weights      Weights   `json:"weights"`
	Timestamp    time.Time `json:"timestamp"`
}

// CacheEntry is a cached recommendation response. Owned exclusively by the
// cache store; mutated only through its accounting operations.
type CacheEntry struct {
	Key             Key              `json:"key"`
	Recommendations []Recommendation `json:"recommendations"`

	// TotalCandidates is the candidate count before diversity filtering
	// and truncation, reported on every serve of this entry.
	TotalCandidates int `json:"total_candidates"`

	GeneratedAt  time.Time      `json:"generated_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
	HitCount     int64          `json:"hit_count"`
	LastAccessed time.Time      `json:"last_accessed"`
	Context      RequestContext `json:"context"`
}

// Expired reports whether the entry's TTL has elapsed at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Request is an orchestrator request.
type Request struct {
	UserID       string    `json:"user_id"`
	Location     geo.Point `json:"location"`
	RadiusMeters float64   `json:"radius_meters,omitempty"`
	Query        string    `json:"query,omitempty"`
	Categories   []string  `json:"categories,omitempty"`
	AccessNeeds  []string  `json:"access_needs,omitempty"`
	MaxResults   int       `json:"max_results,omitempty"`
	MaxPriceTier int       `json:"max_price_tier,omitempty"`
	ForceRefresh bool      `json:"force_refresh,omitempty"`
	Explain      bool      `json:"explain,omitempty"`

	// Weights overrides the configured default weights when non-nil.
	Weights *Weights `json:"weights,omitempty"`

	// Timestamp is the request time; the zero value means time.Now().
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// UserStats summarizes the requesting user's profile freshness for
// response metadata.
type UserStats struct {
	ProfileCompleteness float64   `json:"profile_completeness"`
	ProfileFreshness    float64   `json:"profile_freshness"`
	VisitCount          int       `json:"visit_count"`
	CategoryDiversity   float64   `json:"category_diversity"`
	LastUpdated         time.Time `json:"last_updated,omitempty"`
}

// ResponseMetadata is the execution metadata attached to every response.
type ResponseMetadata struct {
	FromCache       bool       `json:"from_cache"`
	Stale           bool       `json:"stale,omitempty"`
	CacheKey        string     `json:"cache_key"`
	ExecutionTimeMS float64    `json:"execution_time_ms"`
	TotalCandidates int        `json:"total_candidates"`
	UserStats       *UserStats `json:"user_stats,omitempty"`
}

// Response is the orchestrator's response envelope.
type Response struct {
	Recommendations []Recommendation `json:"recommendations"`
	Metadata        ResponseMetadata `json:"metadata"`
	Debug           *DebugInfo       `json:"debug,omitempty"`
}

// GatherResult is the outcome of candidate gathering: the merged candidate
// set plus the counts the debug trace reports.
type GatherResult struct {
	// Candidates is the merged, deduplicated candidate set.
	Candidates []Candidate `json:"candidates"`

	// ReviewOnly counts candidates known only from community reviews.
	ReviewOnly int `json:"review_only"`

	// Deduplicated counts provider records dropped as duplicates after
	// ID normalization.
	Deduplicated int `json:"deduplicated"`

	// Degraded reports that review data was unavailable and candidates
	// carry no accessibility summaries.
	Degraded bool `json:"degraded,omitempty"`
}

// Filters narrows candidate gathering.
type Filters struct {
	// Query is an optional free-text filter forwarded to the provider.
	Query string `json:"query,omitempty"`

	// Categories restricts results to places matching any of these
	// lowercase categories.
	Categories []string `json:"categories,omitempty"`
}
