// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package feedback

import (
	"context"
	"io"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/logging"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

func openTestDB(t *testing.T) *badger.DB {
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
	return db
}

// recordingInvalidator captures the predicates passed to Invalidate and
// evaluates them against a fixed entry set.
type recordingInvalidator struct {
	entries []struct {
		key recommend.Key
		ctx recommend.RequestContext
	}
	calls   int
	removed []string
}

func (ri *recordingInvalidator) add(user string, loc geo.Point, radius float64) {
	ri.entries = append(ri.entries, struct {
		key recommend.Key
		ctx recommend.RequestContext
	}{
		key: recommend.Key{UserID: user},
		ctx: recommend.RequestContext{UserID: user, Location: loc, RadiusMeters: radius},
	})
}

func (ri *recordingInvalidator) Invalidate(pred func(recommend.Key, recommend.RequestContext) bool) int {
	ri.calls++
	n := 0
	for _, e := range ri.entries {
		if pred(e.key, e.ctx) {
			ri.removed = append(ri.removed, e.ctx.UserID)
			n++
		}
	}
	return n
}

func newTestRecorder(t *testing.T, inv Invalidator) *Recorder {
	t.Helper()
	return NewRecorder(Options{
		DB:          openTestDB(t),
		Invalidator: inv,
		KeyParams:   recommend.DefaultKeyParams(),
		Logger:      logging.NewTestLogger(io.Discard),
	})
}

func validFeedback(user string) Feedback {
	return Feedback{
		UserID:  user,
		PlaceID: "cafe-1",
		Action:  ActionViewed,
		Context: Context{
			Location:   geo.Point{Lat: 46.7712, Lng: 23.6236},
			Categories: []string{"cafe"},
		},
	}
}

func TestRecordValidation(t *testing.T) {
	r := newTestRecorder(t, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Feedback)
	}{
		{"missing user", func(f *Feedback) { f.UserID = " " }},
		{"missing place", func(f *Feedback) { f.PlaceID = "" }},
		{"missing action", func(f *Feedback) { f.Action = "" }},
		{"unknown action", func(f *Feedback) { f.Action = "teleported" }},
		{"rating out of range", func(f *Feedback) { f.Detail = &Detail{Rating: 9} }},
		{"negative rating", func(f *Feedback) { f.Detail = &Detail{Rating: -1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := validFeedback("u1")
			tt.mutate(&fb)
			if _, err := r.Record(ctx, fb); !recommend.IsValidation(err) {
				t.Errorf("Record = %v, want ValidationError", err)
			}
		})
	}
}

func TestRecordAllowsAbsentRating(t *testing.T) {
	r := newTestRecorder(t, nil)

	// A zero rating means no rating was given, not a rating of zero.
	fb := validFeedback("u1")
	fb.Detail = &Detail{Comment: "no ramp at the side entrance"}

	if _, err := r.Record(context.Background(), fb); err != nil {
		t.Fatalf("Record with comment-only detail failed: %v", err)
	}
}

func TestRecordAssignsIdentity(t *testing.T) {
	r := newTestRecorder(t, nil)

	stored, err := r.Record(context.Background(), validFeedback("u1"))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if stored.ID == "" {
		t.Error("stored feedback has no ID")
	}
	if stored.CreatedAt.IsZero() {
		t.Error("stored feedback has no creation time")
	}
}

func TestProfileAccumulates(t *testing.T) {
	r := newTestRecorder(t, nil)
	ctx := context.Background()

	events := []Feedback{
		validFeedback("u1"),
		func() Feedback {
			f := validFeedback("u1")
			f.Action = ActionSaved
			f.Detail = &Detail{Rating: 5}
			f.Context.Categories = []string{"museum"}
			return f
		}(),
		func() Feedback {
			f := validFeedback("u1")
			f.Action = ActionVisited
			f.Outcome = &Outcome{ActualVisit: &ActualVisit{Confirmed: true, VisitedAt: time.Now()}}
			f.Context.Categories = []string{"park"}
			return f
		}(),
	}
	for _, fb := range events {
		if _, err := r.Record(ctx, fb); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	doc, err := r.ProfileDoc(ctx, "u1")
	if err != nil {
		t.Fatalf("ProfileDoc failed: %v", err)
	}
	if doc.TotalEvents != 3 {
		t.Errorf("total events = %d, want 3", doc.TotalEvents)
	}
	if doc.VisitCount != 1 {
		t.Errorf("visit count = %d, want 1", doc.VisitCount)
	}
	if doc.RatedEvents != 1 {
		t.Errorf("rated events = %d, want 1", doc.RatedEvents)
	}
	if doc.Completeness <= 0 || doc.Completeness > 1 {
		t.Errorf("completeness = %v, want in (0,1]", doc.Completeness)
	}
	// Three distinct categories, one event each: maximal diversity.
	if doc.CategoryDiversity != 1 {
		t.Errorf("category diversity = %v, want 1", doc.CategoryDiversity)
	}

	stats, err := r.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if stats.VisitCount != 1 || stats.ProfileCompleteness != doc.Completeness {
		t.Errorf("Profile stats %+v disagree with document %+v", stats, doc)
	}
}

func TestProfileNotFound(t *testing.T) {
	r := newTestRecorder(t, nil)

	if _, err := r.Profile(context.Background(), "ghost"); !recommend.IsNotFound(err) {
		t.Errorf("Profile = %v, want NotFoundError", err)
	}
}

func TestSingleCategoryHasZeroDiversity(t *testing.T) {
	r := newTestRecorder(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Record(ctx, validFeedback("u1")); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	doc, err := r.ProfileDoc(ctx, "u1")
	if err != nil {
		t.Fatalf("ProfileDoc failed: %v", err)
	}
	if doc.CategoryDiversity != 0 {
		t.Errorf("single-category diversity = %v, want 0", doc.CategoryDiversity)
	}
}

func TestConfirmedVisitInvalidatesOverlappingEntries(t *testing.T) {
	inv := &recordingInvalidator{}
	inv.add("u1", geo.Point{Lat: 46.7712, Lng: 23.6236}, 2000) // overlaps
	inv.add("u1", geo.Point{Lat: 47.5, Lng: 24.5}, 2000)       // far away
	inv.add("u2", geo.Point{Lat: 46.7712, Lng: 23.6236}, 2000) // other user

	r := newTestRecorder(t, inv)

	fb := validFeedback("u1")
	fb.Action = ActionVisited
	fb.Outcome = &Outcome{ActualVisit: &ActualVisit{Confirmed: true, VisitedAt: time.Now()}}

	if _, err := r.Record(context.Background(), fb); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if inv.calls != 1 {
		t.Fatalf("invalidator called %d times, want 1", inv.calls)
	}
	if len(inv.removed) != 1 || inv.removed[0] != "u1" {
		t.Errorf("removed = %v, want exactly the overlapping u1 entry", inv.removed)
	}
}

func TestLowRatingInvalidates(t *testing.T) {
	inv := &recordingInvalidator{}
	inv.add("u1", geo.Point{Lat: 46.7712, Lng: 23.6236}, 2000)

	r := newTestRecorder(t, inv)

	fb := validFeedback("u1")
	fb.Detail = &Detail{Rating: 1}

	if _, err := r.Record(context.Background(), fb); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if inv.calls != 1 {
		t.Errorf("invalidator called %d times, want 1", inv.calls)
	}
}

func TestPositiveFeedbackDoesNotInvalidate(t *testing.T) {
	inv := &recordingInvalidator{}
	inv.add("u1", geo.Point{Lat: 46.7712, Lng: 23.6236}, 2000)

	r := newTestRecorder(t, inv)

	fb := validFeedback("u1")
	fb.Action = ActionSaved
	fb.Detail = &Detail{Rating: 5}

	if _, err := r.Record(context.Background(), fb); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if inv.calls != 0 {
		t.Errorf("invalidator called %d times for positive feedback, want 0", inv.calls)
	}
}

func TestFeedbackWithoutLocationInvalidatesAllUserEntries(t *testing.T) {
	inv := &recordingInvalidator{}
	inv.add("u1", geo.Point{Lat: 46.7712, Lng: 23.6236}, 2000)
	inv.add("u1", geo.Point{Lat: 47.5, Lng: 24.5}, 2000)
	inv.add("u2", geo.Point{Lat: 46.7712, Lng: 23.6236}, 2000)

	r := newTestRecorder(t, inv)

	fb := validFeedback("u1")
	fb.Context.Location = geo.Point{}
	fb.Detail = &Detail{Rating: 1}

	if _, err := r.Record(context.Background(), fb); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if len(inv.removed) != 2 {
		t.Errorf("removed %d entries, want both u1 entries", len(inv.removed))
	}
}

func TestStats(t *testing.T) {
	r := newTestRecorder(t, nil)
	ctx := context.Background()

	saved := validFeedback("u1")
	saved.Action = ActionSaved

	dismissed := validFeedback("u1")
	dismissed.Action = ActionDismissed

	viewed := validFeedback("u2")

	for _, fb := range []Feedback{saved, dismissed, viewed} {
		if _, err := r.Record(ctx, fb); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	stats, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalFeedback != 3 {
		t.Errorf("total = %d, want 3", stats.TotalFeedback)
	}
	if want := 1.0 / 3.0; stats.PositiveRate != want {
		t.Errorf("positive rate = %v, want %v", stats.PositiveRate, want)
	}
	if want := 2.0 / 3.0; stats.EngagementRate != want {
		t.Errorf("engagement rate = %v, want %v", stats.EngagementRate, want)
	}

	profiles, err := r.ProfilesSummary(ctx)
	if err != nil {
		t.Fatalf("ProfilesSummary failed: %v", err)
	}
	if profiles.TotalProfiles != 2 {
		t.Errorf("profiles = %d, want 2", profiles.TotalProfiles)
	}
}

func TestPruneKeepsNewestEvents(t *testing.T) {
	r := NewRecorder(Options{
		DB:               openTestDB(t),
		KeyParams:        recommend.DefaultKeyParams(),
		MaxEventsPerUser: 5,
		Logger:           logging.NewTestLogger(io.Discard),
	})
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if _, err := r.Record(ctx, validFeedback("u1")); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	stats, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalFeedback != 5 {
		t.Errorf("retained events = %d, want 5", stats.TotalFeedback)
	}

	// The profile still reflects every event, pruning only bounds storage.
	doc, err := r.ProfileDoc(ctx, "u1")
	if err != nil {
		t.Fatalf("ProfileDoc failed: %v", err)
	}
	if doc.TotalEvents != 12 {
		t.Errorf("profile total events = %d, want 12", doc.TotalEvents)
	}
}

func TestProfileFreshnessDecays(t *testing.T) {
	r := NewRecorder(Options{
		DB:              openTestDB(t),
		KeyParams:       recommend.DefaultKeyParams(),
		ProfileHalfLife: time.Hour,
		Logger:          logging.NewTestLogger(io.Discard),
	})
	ctx := context.Background()

	if _, err := r.Record(ctx, validFeedback("u1")); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	stats, err := r.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if stats.ProfileFreshness < 0.99 || stats.ProfileFreshness > 1 {
		t.Errorf("fresh profile freshness = %v, want ~1", stats.ProfileFreshness)
	}

	// Backdate the profile by one half-life.
	doc, err := r.ProfileDoc(ctx, "u1")
	if err != nil {
		t.Fatalf("ProfileDoc failed: %v", err)
	}
	doc.LastUpdated = time.Now().Add(-time.Hour)
	if err := r.saveProfile(doc); err != nil {
		t.Fatalf("saveProfile failed: %v", err)
	}

	stats, err = r.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if stats.ProfileFreshness < 0.45 || stats.ProfileFreshness > 0.55 {
		t.Errorf("aged profile freshness = %v, want ~0.5", stats.ProfileFreshness)
	}
}
