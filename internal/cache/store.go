// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

// Package cache implements the recommendation cache store: an in-memory
// LRU with TTL expiry, hit accounting, single-flight miss collapsing, and
// optional write-through persistence to Badger.
//
// This implementation uses a doubly-linked list for ordering and a hashmap
// for lookups, giving O(1) Lookup, insert, and eviction.
package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/TudorG03/accessmate-sub003/internal/metrics"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

// node is a doubly-linked list node holding one cache entry.
type node struct {
	key   string
	entry *recommend.CacheEntry
	prev  *node
	next  *node
}

// Options configure a Store.
type Options struct {
	// TTL is the entry time-to-live.
	TTL time.Duration

	// Capacity bounds the number of in-memory entries; the least
	// recently accessed entry is evicted first when exceeded.
	Capacity int

	// DB enables write-through persistence when non-nil.
	DB *badger.DB

	// Persist toggles write-through even when DB is set.
	Persist bool

	Logger zerolog.Logger
}

// Store is the recommendation cache. All mutation happens under one mutex
// with O(1) list operations; single-flight computations run outside the
// lock, so an in-flight entry can never be evicted (it is not in the LRU
// until its compute completes).
type Store struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration

	// items maps canonical key strings to list nodes.
	// head.next is the most recently used, tail.prev the least.
	items map[string]*node
	head  *node
	tail  *node

	flight singleflight.Group

	db      *badger.DB
	persist bool
	logger  zerolog.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64
}

// New creates a Store. Persisted entries from a previous run are
// rehydrated when a DB is supplied.
func New(opts Options) (*Store, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = 10000
	}
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Minute
	}

	s := &Store{
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		items:    make(map[string]*node, opts.Capacity),
		head:     &node{},
		tail:     &node{},
		db:       opts.DB,
		persist:  opts.DB != nil && opts.Persist,
		logger:   opts.Logger,
	}
	s.head.next = s.tail
	s.tail.prev = s.head

	if s.persist {
		n, err := s.loadPersisted()
		if err != nil {
			// Rehydration failure degrades to a cold cache, never fatal.
			s.logger.Warn().Err(err).Msg("cache rehydration failed, starting cold")
		} else if n > 0 {
			s.logger.Info().Int("entries", n).Msg("cache rehydrated from store")
		}
	}

	return s, nil
}

// TTL returns the configured entry time-to-live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Lookup returns a fresh entry for the key. On a hit the entry's hit count
// and last-accessed time are updated atomically with the read and the
// caller receives a deep copy. Expired entries are lazily evicted and
// reported as a miss.
func (s *Store) Lookup(key recommend.Key) (*recommend.CacheEntry, bool) {
	ks := key.String()
	now := time.Now()

	s.mu.Lock()
	n, ok := s.items[ks]
	if !ok {
		s.mu.Unlock()
		s.misses.Add(1)
		metrics.CacheMisses.Inc()
		return nil, false
	}

	if n.entry.Expired(now) {
		s.removeLocked(n)
		s.mu.Unlock()
		s.evictions.Add(1)
		metrics.CacheEvictions.WithLabelValues("expired").Inc()
		s.misses.Add(1)
		metrics.CacheMisses.Inc()
		s.deletePersisted(ks)
		return nil, false
	}

	n.entry.HitCount++
	n.entry.LastAccessed = now
	s.moveToFrontLocked(n)
	cp := copyEntry(n.entry)
	s.mu.Unlock()

	s.hits.Add(1)
	metrics.CacheHits.Inc()
	s.savePersisted(cp)
	return cp, true
}

// LookupStale returns a deep copy of an entry even when expired, without
// touching hit accounting. Serves the degraded provider-outage path.
func (s *Store) LookupStale(key recommend.Key) (*recommend.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.items[key.String()]
	if !ok {
		return nil, false
	}
	return copyEntry(n.entry), true
}

// Fetch collapses concurrent misses for the same key into exactly one
// compute invocation. The winner's result is written through and every
// caller receives its own deep copy (or the shared error). A caller whose
// context expires while waiting unblocks with the context error; the
// in-flight computation itself keeps running for the others.
func (s *Store) Fetch(ctx context.Context, key recommend.Key, rctx recommend.RequestContext,
	compute func(ctx context.Context) ([]recommend.Recommendation, int, error)) (*recommend.CacheEntry, bool, error) {
	ks := key.String()

	var ran bool
	ch := s.flight.DoChan(ks, func() (interface{}, error) {
		ran = true
		recs, total, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		entry := &recommend.CacheEntry{
			Key:             key,
			Recommendations: recs,
			TotalCandidates: total,
			GeneratedAt:     now,
			ExpiresAt:       now.Add(s.ttl),
			LastAccessed:    now,
			Context:         rctx,
		}
		s.put(ks, entry)
		s.savePersisted(entry)
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, ran, res.Err
		}
		if !ran {
			metrics.CacheFlightCollapses.Inc()
		}
		return copyEntry(res.Val.(*recommend.CacheEntry)), ran, nil
	}
}

// Invalidate removes entries matching the predicate from memory and the
// persistent store, returning the number removed.
func (s *Store) Invalidate(pred func(recommend.Key, recommend.RequestContext) bool) int {
	s.mu.Lock()
	var removed []string
	for ks, n := range s.items {
		if pred(n.entry.Key, n.entry.Context) {
			removed = append(removed, ks)
		}
	}
	for _, ks := range removed {
		s.removeLocked(s.items[ks])
	}
	s.mu.Unlock()

	for _, ks := range removed {
		s.deletePersisted(ks)
	}

	if len(removed) > 0 {
		s.invalidations.Add(int64(len(removed)))
		metrics.CacheEvictions.WithLabelValues("invalidated").Add(float64(len(removed)))
	}
	return len(removed)
}

// SweepExpired removes all expired entries. Lazy eviction keeps the store
// correct without it; the janitor runs it periodically to reclaim memory.
func (s *Store) SweepExpired() int {
	now := time.Now()

	s.mu.Lock()
	var removed []string
	for n := s.tail.prev; n != s.head; {
		prev := n.prev
		if n.entry.Expired(now) {
			removed = append(removed, n.key)
			s.removeLocked(n)
		}
		n = prev
	}
	s.mu.Unlock()

	for _, ks := range removed {
		s.deletePersisted(ks)
	}

	if len(removed) > 0 {
		s.evictions.Add(int64(len(removed)))
		metrics.CacheEvictions.WithLabelValues("expired").Add(float64(len(removed)))
	}
	return len(removed)
}

// EntrySummary is a cache entry digest for the history endpoint.
type EntrySummary struct {
	CacheKey           string    `json:"cache_key"`
	UserID             string    `json:"user_id"`
	GeneratedAt        time.Time `json:"generated_at"`
	ExpiresAt          time.Time `json:"expires_at"`
	HitCount           int64     `json:"hit_count"`
	RecommendationsLen int       `json:"recommendations"`
}

// History returns entry summaries ordered by generation time descending,
// with the total count for pagination.
func (s *Store) History(limit, offset int) ([]EntrySummary, int) {
	s.mu.Lock()
	summaries := make([]EntrySummary, 0, len(s.items))
	for _, n := range s.items {
		summaries = append(summaries, EntrySummary{
			CacheKey:           n.key,
			UserID:             n.entry.Context.UserID,
			GeneratedAt:        n.entry.GeneratedAt,
			ExpiresAt:          n.entry.ExpiresAt,
			HitCount:           n.entry.HitCount,
			RecommendationsLen: len(n.entry.Recommendations),
		})
	}
	s.mu.Unlock()

	sortSummaries(summaries)

	total := len(summaries)
	if offset >= total {
		return []EntrySummary{}, total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return summaries[offset:end], total
}

// Stats are the store counters for the analytics endpoint.
type Stats struct {
	Entries       int     `json:"entries"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	Invalidations int64   `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	entries := len(s.items)
	s.mu.Unlock()

	hits := s.hits.Load()
	misses := s.misses.Load()
	st := Stats{
		Entries:       entries,
		Hits:          hits,
		Misses:        misses,
		Evictions:     s.evictions.Load(),
		Invalidations: s.invalidations.Load(),
	}
	if hits+misses > 0 {
		st.HitRate = float64(hits) / float64(hits+misses)
	}
	return st
}

// Len returns the current number of in-memory entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// put inserts or replaces an entry and evicts over capacity.
func (s *Store) put(ks string, entry *recommend.CacheEntry) {
	s.mu.Lock()

	if n, ok := s.items[ks]; ok {
		n.entry = entry
		s.moveToFrontLocked(n)
		s.mu.Unlock()
		metrics.CacheEntries.Set(float64(s.Len()))
		return
	}

	n := &node{key: ks, entry: entry}
	s.addToFrontLocked(n)
	s.items[ks] = n

	var evicted []string
	for len(s.items) > s.capacity {
		oldest := s.tail.prev
		evicted = append(evicted, oldest.key)
		s.removeLocked(oldest)
	}
	entries := len(s.items)
	s.mu.Unlock()

	for _, ek := range evicted {
		s.deletePersisted(ek)
	}
	if len(evicted) > 0 {
		s.evictions.Add(int64(len(evicted)))
		metrics.CacheEvictions.WithLabelValues("capacity").Add(float64(len(evicted)))
	}
	metrics.CacheEntries.Set(float64(entries))
}

// insertLocked places a rehydrated entry without eviction accounting.
func (s *Store) insertLocked(ks string, entry *recommend.CacheEntry) {
	n := &node{key: ks, entry: entry}
	s.addToFrontLocked(n)
	s.items[ks] = n
	for len(s.items) > s.capacity {
		s.removeLocked(s.tail.prev)
	}
}

// List manipulation, must be called with mu held.

func (s *Store) addToFrontLocked(n *node) {
	n.prev = s.head
	n.next = s.head.next
	s.head.next.prev = n
	s.head.next = n
}

func (s *Store) moveToFrontLocked(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
	s.addToFrontLocked(n)
}

func (s *Store) removeLocked(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
	delete(s.items, n.key)
}

// sortSummaries orders by generation time descending, key ascending on ties
// so pagination is stable.
func sortSummaries(summaries []EntrySummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].GeneratedAt.Equal(summaries[j].GeneratedAt) {
			return summaries[i].CacheKey < summaries[j].CacheKey
		}
		return summaries[i].GeneratedAt.After(summaries[j].GeneratedAt)
	})
}

// copyEntry returns a deep copy so callers can never mutate cached state.
func copyEntry(e *recommend.CacheEntry) *recommend.CacheEntry {
	cp := *e
	cp.Recommendations = copyRecommendations(e.Recommendations)
	cp.Context.Categories = copyStrings(e.Context.Categories)
	cp.Context.AccessNeeds = copyStrings(e.Context.AccessNeeds)
	return &cp
}

func copyRecommendations(recs []recommend.Recommendation) []recommend.Recommendation {
	if recs == nil {
		return nil
	}
	out := make([]recommend.Recommendation, len(recs))
	copy(out, recs)
	for i := range out {
		if out[i].Breakdown != nil {
			b := *out[i].Breakdown
			out[i].Breakdown = &b
		}
		out[i].Reasons = copyStrings(out[i].Reasons)
		out[i].Candidate.Categories = copyStrings(out[i].Candidate.Categories)
		if out[i].Candidate.Access != nil {
			a := *out[i].Candidate.Access
			a.Features = make(map[string]bool, len(out[i].Candidate.Access.Features))
			for k, v := range out[i].Candidate.Access.Features {
				a.Features[k] = v
			}
			out[i].Candidate.Access = &a
		}
	}
	return out
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
