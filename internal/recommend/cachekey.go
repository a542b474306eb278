// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package recommend

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
)

// Cache-key bucket widths. Two requests that would legitimately produce
// overlapping results must map to the same key, so continuous inputs are
// quantized:
//
//   - coordinates: 0.005 degree cells (~550m at mid latitudes), matching
//     a short walk before recommendations materially change
//   - radius: 500m steps
//   - time-of-day: 3 hour buckets (morning / midday / evening granularity)
//
// Widening any bucket raises hit rate but risks serving a stale context;
// the property tests pin these values.
const (
	DefaultCoordBucketDeg = 0.005
	DefaultRadiusBucketM  = 500.0
	DefaultHourBucket     = 3
)

// keyVersion is bumped whenever the key derivation changes incompatibly,
// orphaning persisted entries instead of misreading them.
const keyVersion = "v2"

// KeyParams are the bucket widths used for key derivation.
type KeyParams struct {
	CoordBucketDeg float64
	RadiusBucketM  float64
	HourBucket     int
}

// DefaultKeyParams returns the documented default bucket widths.
func DefaultKeyParams() KeyParams {
	return KeyParams{
		CoordBucketDeg: DefaultCoordBucketDeg,
		RadiusBucketM:  DefaultRadiusBucketM,
		HourBucket:     DefaultHourBucket,
	}
}

// Key is the deterministic fingerprint of a request's cacheable context.
type Key struct {
	LatBucket    int          `json:"lat_bucket"`
	LngBucket    int          `json:"lng_bucket"`
	RadiusBucket int          `json:"radius_bucket"`
	DayOfWeek    time.Weekday `json:"day_of_week"`
	HourBucket   int          `json:"hour_bucket"`
	Categories   string       `json:"categories"`
	AccessNeeds  string       `json:"access_needs"`
	PriceTier    int          `json:"price_tier"`
	WeightsFP    string       `json:"weights_fp"`
	UserID       string       `json:"user_id"`
}

// NewKey derives a cache key from a resolved request context.
func NewKey(rctx RequestContext, p KeyParams) Key {
	ts := rctx.Timestamp

	return Key{
		LatBucket:    geo.BucketCoord(rctx.Location.Lat, p.CoordBucketDeg),
		LngBucket:    geo.BucketCoord(geo.NormalizeLng(rctx.Location.Lng), p.CoordBucketDeg),
		RadiusBucket: int(rctx.RadiusMeters / p.RadiusBucketM),
		DayOfWeek:    ts.Weekday(),
		HourBucket:   ts.Hour() / p.HourBucket,
		Categories:   normalizeCategories(rctx.Categories, rctx.Query),
		AccessNeeds:  normalizeNeeds(rctx.AccessNeeds),
		PriceTier:    rctx.MaxPriceTier,
		WeightsFP:    weightsFingerprint(rctx.Weights),
		UserID:       rctx.UserID,
	}
}

// String returns the canonical key form used for single-flight grouping
// and persistence.
func (k Key) String() string {
	return fmt.Sprintf("rec:%s:%s:%d:%d:%d:%d:%d:%s:%s:%d:%s",
		keyVersion, k.UserID, k.LatBucket, k.LngBucket, k.RadiusBucket,
		int(k.DayOfWeek), k.HourBucket, k.Categories, k.AccessNeeds,
		k.PriceTier, k.WeightsFP)
}

// normalizeCategories produces the canonical category-set component:
// lowercase, trimmed, sorted, deduplicated, joined with commas. The free
// text query, when present, is folded in after a pipe so distinct searches
// never collide.
func normalizeCategories(categories []string, query string) string {
	joined := strings.Join(normalizeSet(categories), ",")
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		joined += "|" + q
	}
	if joined == "" {
		return "-"
	}
	return joined
}

// normalizeNeeds produces the canonical accessibility-needs component.
// Needs change the context bonus, so they must split the key.
func normalizeNeeds(needs []string) string {
	joined := strings.Join(normalizeSet(needs), ",")
	if joined == "" {
		return "-"
	}
	return joined
}

// normalizeSet lowercases, trims, deduplicates, and sorts a string set.
func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	normalized := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		normalized = append(normalized, v)
	}
	sort.Strings(normalized)
	return normalized
}

// weightsFingerprint quantizes weights to two decimals so float noise
// cannot split otherwise identical requests across keys.
func weightsFingerprint(w Weights) string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f,%.2f",
		w.Category, w.Location, w.Temporal, w.Quality, w.DiversityBoost)
}
