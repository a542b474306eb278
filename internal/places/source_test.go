// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package places

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/logging"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

type stubProvider struct {
	candidates []recommend.Candidate
	err        error
}

func (s *stubProvider) Nearby(ctx context.Context, pt geo.Point, radiusMeters float64, filters recommend.Filters) ([]recommend.Candidate, error) {
	return s.candidates, s.err
}

type stubReviews struct {
	aggregates map[string]PlaceReviewAggregate
	err        error
}

func (s *stubReviews) Summaries(ctx context.Context, pt geo.Point, radiusMeters float64) (map[string]PlaceReviewAggregate, error) {
	return s.aggregates, s.err
}

func newTestSource(p Provider, r ReviewStore) *Source {
	return NewSource(p, r, logging.NewTestLogger(io.Discard))
}

func TestGatherValidation(t *testing.T) {
	src := newTestSource(&stubProvider{}, nil)

	if _, err := src.Gather(context.Background(), testPoint(), 0, recommend.Filters{}); !recommend.IsValidation(err) {
		t.Errorf("zero radius: got %v, want ValidationError", err)
	}
	if _, err := src.Gather(context.Background(), geo.Point{Lat: 95}, 100, recommend.Filters{}); !recommend.IsValidation(err) {
		t.Errorf("invalid point: got %v, want ValidationError", err)
	}
}

func TestGatherPropagatesProviderError(t *testing.T) {
	src := newTestSource(&stubProvider{err: &recommend.ProviderError{Op: "nearby", Err: errors.New("down")}}, nil)

	if _, err := src.Gather(context.Background(), testPoint(), 2000, recommend.Filters{}); !recommend.IsProvider(err) {
		t.Errorf("got %v, want ProviderError", err)
	}
}

func TestGatherDeduplicatesAndAttachesSummaries(t *testing.T) {
	provider := &stubProvider{candidates: []recommend.Candidate{
		{PlaceID: "Cafe-1", Name: "Cafe Central", Categories: []string{"cafe"}, Location: geo.Point{Lat: 46.7715, Lng: 23.6240}},
		{PlaceID: "cafe-1 ", Name: "Cafe Central Duplicate", Categories: []string{"cafe"}, Location: geo.Point{Lat: 46.7715, Lng: 23.6240}},
		{PlaceID: "museum-1", Name: "Art Museum", Categories: []string{"museum"}, Location: geo.Point{Lat: 46.7730, Lng: 23.6260}},
	}}
	reviews := &stubReviews{aggregates: map[string]PlaceReviewAggregate{
		"cafe-1": {
			PlaceID:  "cafe-1",
			Location: geo.Point{Lat: 46.7715, Lng: 23.6240},
			Summary: recommend.AccessSummary{
				Features:    map[string]bool{"wheelchair_ramp": true},
				ReviewCount: 3,
			},
		},
	}}

	res, err := newTestSource(provider, reviews).Gather(context.Background(), testPoint(), 2000, recommend.Filters{})
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	got := res.Candidates
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2 after dedup", len(got))
	}
	if res.Deduplicated != 1 {
		t.Errorf("deduplicated = %d, want 1", res.Deduplicated)
	}
	if got[0].PlaceID != "cafe-1" || got[0].Name != "Cafe Central" {
		t.Errorf("dedup kept %q/%q, want first occurrence", got[0].PlaceID, got[0].Name)
	}
	if got[0].Access == nil || !got[0].Access.Features["wheelchair_ramp"] {
		t.Error("accessibility summary not attached to provider candidate")
	}
	if got[1].Access != nil {
		t.Error("summary attached to a place without reviews")
	}
}

func TestGatherIncludesReviewOnlyPlaces(t *testing.T) {
	provider := &stubProvider{candidates: []recommend.Candidate{
		{PlaceID: "cafe-1", Name: "Cafe Central", Categories: []string{"cafe"}, Location: geo.Point{Lat: 46.7715, Lng: 23.6240}},
	}}
	reviews := &stubReviews{aggregates: map[string]PlaceReviewAggregate{
		"hidden-gem": {
			PlaceID:    "hidden-gem",
			Name:       "Hidden Gem Cafe",
			Categories: []string{"cafe"},
			Location:   geo.Point{Lat: 46.7718, Lng: 23.6242},
			Summary:    recommend.AccessSummary{ReviewCount: 2},
		},
		"too-far": {
			PlaceID:    "too-far",
			Name:       "Remote Cafe",
			Categories: []string{"cafe"},
			Location:   geo.Point{Lat: 47.5, Lng: 24.5},
			Summary:    recommend.AccessSummary{ReviewCount: 1},
		},
		"wrong-kind": {
			PlaceID:    "wrong-kind",
			Name:       "Hardware Store",
			Categories: []string{"shop"},
			Location:   geo.Point{Lat: 46.7716, Lng: 23.6241},
			Summary:    recommend.AccessSummary{ReviewCount: 1},
		},
	}}

	res, err := newTestSource(provider, reviews).Gather(context.Background(), testPoint(), 2000,
		recommend.Filters{Categories: []string{"cafe"}})
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	ids := make(map[string]bool, len(res.Candidates))
	for _, c := range res.Candidates {
		ids[c.PlaceID] = true
	}
	if res.ReviewOnly != 1 {
		t.Errorf("review-only count = %d, want 1", res.ReviewOnly)
	}
	if !ids["hidden-gem"] {
		t.Error("in-radius review-only place missing from candidates")
	}
	if ids["too-far"] {
		t.Error("out-of-radius review-only place included")
	}
	if ids["wrong-kind"] {
		t.Error("category-filtered review-only place included")
	}
}

func TestGatherDeterministicOrder(t *testing.T) {
	provider := &stubProvider{}
	reviews := &stubReviews{aggregates: map[string]PlaceReviewAggregate{
		"b-place": {PlaceID: "b-place", Location: geo.Point{Lat: 46.7715, Lng: 23.6240}},
		"a-place": {PlaceID: "a-place", Location: geo.Point{Lat: 46.7716, Lng: 23.6241}},
		"c-place": {PlaceID: "c-place", Location: geo.Point{Lat: 46.7717, Lng: 23.6242}},
	}}
	src := newTestSource(provider, reviews)

	var first []string
	for run := 0; run < 5; run++ {
		res, err := src.Gather(context.Background(), testPoint(), 2000, recommend.Filters{})
		if err != nil {
			t.Fatalf("Gather failed: %v", err)
		}
		order := make([]string, len(res.Candidates))
		for i, c := range res.Candidates {
			order[i] = c.PlaceID
		}
		if run == 0 {
			first = order
			continue
		}
		for i := range first {
			if order[i] != first[i] {
				t.Fatalf("run %d order %v differs from first run %v", run, order, first)
			}
		}
	}
	if len(first) != 3 || first[0] != "a-place" {
		t.Errorf("review-only order = %v, want sorted by ID", first)
	}
}

func TestGatherReviewStoreFailureDegrades(t *testing.T) {
	provider := &stubProvider{candidates: []recommend.Candidate{
		{PlaceID: "cafe-1", Name: "Cafe Central", Location: geo.Point{Lat: 46.7715, Lng: 23.6240}},
	}}
	reviews := &stubReviews{err: &recommend.CacheError{Op: "review_scan", Err: errors.New("disk gone")}}

	res, err := newTestSource(provider, reviews).Gather(context.Background(), testPoint(), 2000, recommend.Filters{})
	if err != nil {
		t.Fatalf("Gather failed despite degradable review error: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Access != nil {
		t.Errorf("degraded gather = %+v, want provider-only candidate", res.Candidates)
	}
	if !res.Degraded {
		t.Error("review store failure not reported as degraded")
	}
}
