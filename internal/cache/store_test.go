// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/logging"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	opts.Logger = logging.NewTestLogger(io.Discard)
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	badgerOpts := badger.DefaultOptions("").WithInMemory(true)
	badgerOpts.Logger = nil
	db, err := badger.Open(badgerOpts)
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

func testKey(user string, latBucket int) recommend.Key {
	return recommend.Key{
		LatBucket:  latBucket,
		LngBucket:  4724,
		Categories: "cafe",
		WeightsFP:  "0.30,0.30,0.20,0.20,1.00",
		UserID:     user,
	}
}

func testRctx(user string) recommend.RequestContext {
	return recommend.RequestContext{
		UserID:       user,
		Location:     geo.Point{Lat: 46.7712, Lng: 23.6236},
		RadiusMeters: 2000,
		MaxResults:   10,
	}
}

func testRecs(name string) []recommend.Recommendation {
	return []recommend.Recommendation{
		{
			Candidate: recommend.Candidate{
				PlaceID:    "p1",
				Name:       name,
				Categories: []string{"cafe"},
				Location:   geo.Point{Lat: 46.7715, Lng: 23.6240},
			},
			Score:     0.9,
			Breakdown: &recommend.ScoreBreakdown{Category: 1},
		},
	}
}

// fetchOne runs a Fetch whose compute returns the given recommendations.
func fetchOne(t *testing.T, s *Store, key recommend.Key, user, name string) *recommend.CacheEntry {
	t.Helper()
	entry, computed, err := s.Fetch(context.Background(), key, testRctx(user),
		func(ctx context.Context) ([]recommend.Recommendation, int, error) {
			return testRecs(name), 1, nil
		})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !computed {
		t.Fatal("single Fetch did not run its compute")
	}
	return entry
}

func TestLookupMiss(t *testing.T) {
	s := newTestStore(t, Options{TTL: time.Minute, Capacity: 10})

	if _, ok := s.Lookup(testKey("u1", 1)); ok {
		t.Error("Lookup on empty store reported a hit")
	}
	if st := s.Stats(); st.Misses != 1 {
		t.Errorf("misses = %d, want 1", st.Misses)
	}
}

func TestFetchThenLookup(t *testing.T) {
	s := newTestStore(t, Options{TTL: time.Minute, Capacity: 10})
	key := testKey("u1", 1)

	entry := fetchOne(t, s, key, "u1", "Cafe Central")
	if want := entry.GeneratedAt.Add(time.Minute); !entry.ExpiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want generatedAt+TTL %v", entry.ExpiresAt, want)
	}
	if entry.TotalCandidates != 1 {
		t.Errorf("total candidates = %d, want 1", entry.TotalCandidates)
	}

	got, ok := s.Lookup(key)
	if !ok {
		t.Fatal("Lookup after Fetch missed")
	}
	if got.HitCount != 1 {
		t.Errorf("hit count = %d, want 1", got.HitCount)
	}
	if len(got.Recommendations) != 1 || got.Recommendations[0].Candidate.Name != "Cafe Central" {
		t.Errorf("unexpected entry contents: %+v", got.Recommendations)
	}
}

func TestLookupReturnsDeepCopy(t *testing.T) {
	s := newTestStore(t, Options{TTL: time.Minute, Capacity: 10})
	key := testKey("u1", 1)
	fetchOne(t, s, key, "u1", "Original")

	first, ok := s.Lookup(key)
	if !ok {
		t.Fatal("Lookup missed")
	}
	first.Recommendations[0].Candidate.Name = "Mutated"
	first.Recommendations[0].Breakdown.Category = -1
	first.Context.Categories = append(first.Context.Categories, "injected")

	second, ok := s.Lookup(key)
	if !ok {
		t.Fatal("second Lookup missed")
	}
	if second.Recommendations[0].Candidate.Name != "Original" {
		t.Error("caller mutation leaked into the cached entry")
	}
	if second.Recommendations[0].Breakdown.Category != 1 {
		t.Error("caller breakdown mutation leaked into the cached entry")
	}
}

func TestTTLExpiry(t *testing.T) {
	s := newTestStore(t, Options{TTL: 20 * time.Millisecond, Capacity: 10})
	key := testKey("u1", 1)
	fetchOne(t, s, key, "u1", "Short Lived")

	time.Sleep(40 * time.Millisecond)

	if _, ok := s.Lookup(key); ok {
		t.Error("expired entry served as a hit")
	}
	if s.Len() != 0 {
		t.Errorf("store holds %d entries after expiry lookup, want 0", s.Len())
	}
	if st := s.Stats(); st.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", st.Evictions)
	}
}

func TestConcurrentLookupsBumpHitCount(t *testing.T) {
	s := newTestStore(t, Options{TTL: time.Minute, Capacity: 10})
	key := testKey("u1", 1)
	fetchOne(t, s, key, "u1", "Hot Entry")

	const n = 25
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, ok := s.Lookup(key); !ok {
				t.Error("concurrent Lookup missed")
			}
		}()
	}
	wg.Wait()

	stale, ok := s.LookupStale(key)
	if !ok {
		t.Fatal("LookupStale missed")
	}
	if stale.HitCount != n {
		t.Errorf("hit count = %d, want %d", stale.HitCount, n)
	}
}

func TestConcurrentFetchesCollapse(t *testing.T) {
	s := newTestStore(t, Options{TTL: time.Minute, Capacity: 10})
	key := testKey("u1", 1)

	var computes atomic.Int32
	var computedTrue atomic.Int32

	const m = 10
	var wg sync.WaitGroup
	wg.Add(m)
	for i := 0; i < m; i++ {
		go func() {
			defer wg.Done()
			entry, computed, err := s.Fetch(context.Background(), key, testRctx("u1"),
				func(ctx context.Context) ([]recommend.Recommendation, int, error) {
					computes.Add(1)
					time.Sleep(30 * time.Millisecond)
					return testRecs("Computed Once"), 1, nil
				})
			if err != nil {
				t.Errorf("Fetch failed: %v", err)
				return
			}
			if computed {
				computedTrue.Add(1)
			}
			if len(entry.Recommendations) != 1 {
				t.Errorf("got %d recommendations, want 1", len(entry.Recommendations))
			}
		}()
	}
	wg.Wait()

	if got := computes.Load(); got != 1 {
		t.Errorf("compute ran %d times, want 1", got)
	}
	if got := computedTrue.Load(); got != 1 {
		t.Errorf("%d callers reported computed=true, want 1", got)
	}
}

func TestFetchErrorNotCached(t *testing.T) {
	s := newTestStore(t, Options{TTL: time.Minute, Capacity: 10})
	key := testKey("u1", 1)

	wantErr := errors.New("gather failed")
	_, _, err := s.Fetch(context.Background(), key, testRctx("u1"),
		func(ctx context.Context) ([]recommend.Recommendation, int, error) {
			return nil, 0, wantErr
		})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Fetch error = %v, want %v", err, wantErr)
	}
	if s.Len() != 0 {
		t.Errorf("failed compute left %d entries in the store", s.Len())
	}

	// The next Fetch must retry, not replay the failure.
	fetchOne(t, s, key, "u1", "Recovered")
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	s := newTestStore(t, Options{TTL: time.Minute, Capacity: 2})

	keyA := testKey("u1", 1)
	keyB := testKey("u1", 2)
	keyC := testKey("u1", 3)

	fetchOne(t, s, keyA, "u1", "A")
	fetchOne(t, s, keyB, "u1", "B")

	// Touch A so B becomes the eviction victim.
	if _, ok := s.Lookup(keyA); !ok {
		t.Fatal("Lookup A missed")
	}

	fetchOne(t, s, keyC, "u1", "C")

	if _, ok := s.Lookup(keyB); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := s.Lookup(keyA); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok := s.Lookup(keyC); !ok {
		t.Error("newest entry was evicted")
	}
	if st := s.Stats(); st.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", st.Evictions)
	}
}

func TestInvalidatePredicate(t *testing.T) {
	s := newTestStore(t, Options{TTL: time.Minute, Capacity: 10})

	fetchOne(t, s, testKey("u1", 1), "u1", "First")
	fetchOne(t, s, testKey("u1", 2), "u1", "Second")
	fetchOne(t, s, testKey("u2", 1), "u2", "Other User")

	removed := s.Invalidate(func(k recommend.Key, rctx recommend.RequestContext) bool {
		return rctx.UserID == "u1"
	})
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok := s.Lookup(testKey("u1", 1)); ok {
		t.Error("invalidated entry still served")
	}
	if _, ok := s.Lookup(testKey("u2", 1)); !ok {
		t.Error("unrelated user's entry was invalidated")
	}
	if st := s.Stats(); st.Invalidations != 2 {
		t.Errorf("invalidations = %d, want 2", st.Invalidations)
	}
}

func TestSweepExpired(t *testing.T) {
	s := newTestStore(t, Options{TTL: 20 * time.Millisecond, Capacity: 10})
	fetchOne(t, s, testKey("u1", 1), "u1", "A")
	fetchOne(t, s, testKey("u1", 2), "u1", "B")

	time.Sleep(40 * time.Millisecond)

	if swept := s.SweepExpired(); swept != 2 {
		t.Errorf("swept = %d, want 2", swept)
	}
	if s.Len() != 0 {
		t.Errorf("store holds %d entries after sweep, want 0", s.Len())
	}
}

func TestHistoryPagination(t *testing.T) {
	s := newTestStore(t, Options{TTL: time.Minute, Capacity: 10})
	fetchOne(t, s, testKey("u1", 1), "u1", "A")
	fetchOne(t, s, testKey("u1", 2), "u1", "B")
	fetchOne(t, s, testKey("u2", 1), "u2", "C")

	page, total := s.History(2, 0)
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(page) != 2 {
		t.Errorf("page length = %d, want 2", len(page))
	}

	rest, _ := s.History(2, 2)
	if len(rest) != 1 {
		t.Errorf("second page length = %d, want 1", len(rest))
	}

	empty, _ := s.History(2, 10)
	if len(empty) != 0 {
		t.Errorf("out-of-range page length = %d, want 0", len(empty))
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	db := openTestDB(t)

	first := newTestStore(t, Options{TTL: time.Minute, Capacity: 10, DB: db, Persist: true})
	key := testKey("u1", 1)
	fetchOne(t, first, key, "u1", "Persisted")

	// A fresh store over the same DB rehydrates the entry.
	second := newTestStore(t, Options{TTL: time.Minute, Capacity: 10, DB: db, Persist: true})
	if second.Len() != 1 {
		t.Fatalf("rehydrated store holds %d entries, want 1", second.Len())
	}
	entry, ok := second.Lookup(key)
	if !ok {
		t.Fatal("rehydrated entry missed")
	}
	if entry.Recommendations[0].Candidate.Name != "Persisted" {
		t.Errorf("rehydrated entry name = %q, want %q", entry.Recommendations[0].Candidate.Name, "Persisted")
	}
}

func TestInvalidateRemovesPersisted(t *testing.T) {
	db := openTestDB(t)

	first := newTestStore(t, Options{TTL: time.Minute, Capacity: 10, DB: db, Persist: true})
	fetchOne(t, first, testKey("u1", 1), "u1", "Doomed")

	first.Invalidate(func(k recommend.Key, rctx recommend.RequestContext) bool {
		return rctx.UserID == "u1"
	})

	second := newTestStore(t, Options{TTL: time.Minute, Capacity: 10, DB: db, Persist: true})
	if second.Len() != 0 {
		t.Errorf("invalidated entry survived in the persistent store")
	}
}
