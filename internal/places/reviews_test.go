// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package places

import (
	"context"
	"io"
	"testing"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/logging"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

func newTestReviewStore(t *testing.T) *BadgerReviewStore {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("badger open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("badger close failed: %v", err)
		}
	})
	return NewBadgerReviewStore(db, logging.NewTestLogger(io.Discard))
}

func TestAddReviewValidation(t *testing.T) {
	store := newTestReviewStore(t)
	ctx := context.Background()

	if err := store.AddReview(ctx, AccessReview{PlaceID: "  "}); !recommend.IsValidation(err) {
		t.Errorf("blank place_id: got %v, want ValidationError", err)
	}
	if err := store.AddReview(ctx, AccessReview{PlaceID: "p1", Rating: 6}); !recommend.IsValidation(err) {
		t.Errorf("rating 6: got %v, want ValidationError", err)
	}
}

func TestReviewAggregation(t *testing.T) {
	store := newTestReviewStore(t)
	ctx := context.Background()
	loc := geo.Point{Lat: 46.7715, Lng: 23.6240}

	reviews := []AccessReview{
		{PlaceID: "Cafe-1", PlaceName: "Cafe Central", Location: loc, Rating: 5,
			Features: map[string]bool{"wheelchair_ramp": true, "accessible_restroom": true}},
		{PlaceID: "cafe-1", Location: loc, Rating: 4,
			Features: map[string]bool{"wheelchair_ramp": true}},
		{PlaceID: "cafe-1", Location: loc, Rating: 3,
			Features: map[string]bool{"wheelchair_ramp": true, "accessible_restroom": false}},
	}
	for _, r := range reviews {
		if err := store.AddReview(ctx, r); err != nil {
			t.Fatalf("AddReview failed: %v", err)
		}
	}

	aggregates, err := store.Summaries(ctx, testPoint(), 2000)
	if err != nil {
		t.Fatalf("Summaries failed: %v", err)
	}

	agg, ok := aggregates["cafe-1"]
	if !ok {
		t.Fatalf("aggregate missing, got keys %v", keysOf(aggregates))
	}
	if agg.Name != "Cafe Central" {
		t.Errorf("name = %q, want Cafe Central", agg.Name)
	}
	if agg.Summary.ReviewCount != 3 {
		t.Errorf("review count = %d, want 3", agg.Summary.ReviewCount)
	}
	if got, want := agg.Summary.AvgRating, 4.0; got != want {
		t.Errorf("avg rating = %v, want %v", got, want)
	}
	// 3 of 3 reviewers reported the ramp, 1 of 3 the restroom.
	if !agg.Summary.Features["wheelchair_ramp"] {
		t.Error("majority-confirmed feature reported unavailable")
	}
	if agg.Summary.Features["accessible_restroom"] {
		t.Error("minority-reported feature reported available")
	}
	if got, want := agg.Summary.Confidence, 3.0/fullConfidenceReviews; got != want {
		t.Errorf("confidence = %v, want %v", got, want)
	}
}

func TestSummariesRadiusFilter(t *testing.T) {
	store := newTestReviewStore(t)
	ctx := context.Background()

	near := AccessReview{PlaceID: "near", Location: geo.Point{Lat: 46.7715, Lng: 23.6240}, Rating: 4}
	far := AccessReview{PlaceID: "far", Location: geo.Point{Lat: 47.5, Lng: 24.5}, Rating: 4}
	for _, r := range []AccessReview{near, far} {
		if err := store.AddReview(ctx, r); err != nil {
			t.Fatalf("AddReview failed: %v", err)
		}
	}

	aggregates, err := store.Summaries(ctx, testPoint(), 2000)
	if err != nil {
		t.Fatalf("Summaries failed: %v", err)
	}
	if _, ok := aggregates["near"]; !ok {
		t.Error("in-radius place missing")
	}
	if _, ok := aggregates["far"]; ok {
		t.Error("out-of-radius place included")
	}
}

func TestConfidenceSaturates(t *testing.T) {
	store := newTestReviewStore(t)
	ctx := context.Background()
	loc := geo.Point{Lat: 46.7715, Lng: 23.6240}

	for i := 0; i < fullConfidenceReviews+3; i++ {
		if err := store.AddReview(ctx, AccessReview{PlaceID: "popular", Location: loc, Rating: 4}); err != nil {
			t.Fatalf("AddReview failed: %v", err)
		}
	}

	aggregates, err := store.Summaries(ctx, testPoint(), 2000)
	if err != nil {
		t.Fatalf("Summaries failed: %v", err)
	}
	if got := aggregates["popular"].Summary.Confidence; got != 1 {
		t.Errorf("confidence = %v, want saturated at 1", got)
	}
}

func keysOf(m map[string]PlaceReviewAggregate) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
