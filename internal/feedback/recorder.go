// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/metrics"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

// Key prefixes for Badger storage.
const (
	feedbackKeyPrefix = "feedback:"
	profileKeyPrefix  = "profile:"
)

// completenessEventTarget is the event count at which the volume term of
// profile completeness saturates.
const completenessEventTarget = 20

// Invalidator removes cache entries matching a predicate. Satisfied by
// the cache store.
type Invalidator interface {
	Invalidate(pred func(recommend.Key, recommend.RequestContext) bool) int
}

// Options configure a Recorder.
type Options struct {
	DB *badger.DB

	// Invalidator receives targeted invalidations on negative signals.
	// May be nil.
	Invalidator Invalidator

	// KeyParams supply the coordinate bucket width for the location
	// overlap predicate.
	KeyParams recommend.KeyParams

	// MaxEventsPerUser bounds retained events per user; oldest pruned.
	MaxEventsPerUser int

	// ProfileHalfLife is the freshness decay half-life reported in
	// profile stats.
	ProfileHalfLife time.Duration

	Logger zerolog.Logger
}

// Recorder appends immutable feedback records and maintains per-user
// profile freshness. Profile updates are serialized per user via keyed
// mutexes; unrelated users never contend.
type Recorder struct {
	db          *badger.DB
	invalidator Invalidator
	keyParams   recommend.KeyParams
	maxPerUser  int
	halfLife    time.Duration
	logger      zerolog.Logger

	mu      sync.Mutex
	userMus map[string]*sync.Mutex
}

// NewRecorder creates a Recorder.
func NewRecorder(opts Options) *Recorder {
	maxPerUser := opts.MaxEventsPerUser
	if maxPerUser <= 0 {
		maxPerUser = 500
	}
	halfLife := opts.ProfileHalfLife
	if halfLife <= 0 {
		halfLife = 30 * 24 * time.Hour
	}
	return &Recorder{
		db:          opts.DB,
		invalidator: opts.Invalidator,
		keyParams:   opts.KeyParams,
		maxPerUser:  maxPerUser,
		halfLife:    halfLife,
		logger:      opts.Logger,
		userMus:     make(map[string]*sync.Mutex),
	}
}

// Record validates and appends one feedback event, then updates the
// user's profile and, on negative signals, invalidates the user's
// overlapping cache entries. Returns the stored record.
func (r *Recorder) Record(ctx context.Context, fb Feedback) (*Feedback, error) {
	if strings.TrimSpace(fb.UserID) == "" {
		return nil, recommend.NewValidationError("user_id", "is required")
	}
	if strings.TrimSpace(fb.PlaceID) == "" {
		return nil, recommend.NewValidationError("place_id", "is required")
	}
	if fb.Action == "" {
		return nil, recommend.NewValidationError("action", "is required")
	}
	if !fb.Action.Valid() {
		return nil, recommend.NewValidationError("action", fmt.Sprintf("unknown action %q", fb.Action))
	}
	if fb.Detail != nil && (fb.Detail.Rating < 0 || fb.Detail.Rating > 5) {
		return nil, recommend.NewValidationError("feedback.rating", "must be between 1 and 5, or 0 when absent")
	}

	fb.ID = uuid.New().String()
	fb.CreatedAt = time.Now()
	if fb.Context.Timestamp.IsZero() {
		fb.Context.Timestamp = fb.CreatedAt
	}

	if err := r.append(&fb); err != nil {
		return nil, err
	}
	metrics.FeedbackRecorded.WithLabelValues(string(fb.Action)).Inc()

	r.updateProfile(&fb)

	if fb.negativeSignal() {
		r.invalidateFor(&fb)
	}

	return &fb, nil
}

// append writes the immutable event record. The key embeds the creation
// timestamp so per-user events iterate in chronological order.
func (r *Recorder) append(fb *Feedback) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("marshaling feedback: %w", err)
	}

	key := []byte(fmt.Sprintf("%s%s:%020d:%s", feedbackKeyPrefix, fb.UserID, fb.CreatedAt.UnixNano(), fb.ID))
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return &recommend.CacheError{Op: "feedback_write", Err: err}
	}

	r.pruneUser(fb.UserID)
	return nil
}

// pruneUser drops the oldest events beyond the per-user retention bound.
// Best effort; failures are logged and absorbed.
func (r *Recorder) pruneUser(userID string) {
	prefix := []byte(feedbackKeyPrefix + userID + ":")

	var keys [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("feedback prune scan failed")
		return
	}

	if len(keys) <= r.maxPerUser {
		return
	}

	// Keys sort chronologically, so the head of the list is oldest.
	excess := keys[:len(keys)-r.maxPerUser]
	err = r.db.Update(func(txn *badger.Txn) error {
		for _, k := range excess {
			if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("feedback prune failed")
	}
}

// updateProfile folds the event into the user's profile freshness under
// the user's mutex. Profile failures never fail the feedback write.
func (r *Recorder) updateProfile(fb *Feedback) {
	mu := r.userMutex(fb.UserID)
	mu.Lock()
	defer mu.Unlock()

	profile, err := r.loadProfile(fb.UserID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", fb.UserID).Msg("profile load failed")
		return
	}
	if profile == nil {
		profile = &Profile{
			UserID:         fb.UserID,
			ActionCounts:   make(map[string]int),
			CategoryCounts: make(map[string]int),
		}
	}

	profile.TotalEvents++
	profile.ActionCounts[string(fb.Action)]++
	if fb.Detail != nil && fb.Detail.Rating > 0 {
		profile.RatedEvents++
	}
	if fb.confirmedVisit() {
		profile.VisitCount++
	}
	for _, cat := range fb.Context.Categories {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			profile.CategoryCounts[cat]++
		}
	}

	profile.Completeness = completeness(profile)
	profile.CategoryDiversity = normalizedEntropy(profile.CategoryCounts)
	profile.LastUpdated = fb.CreatedAt

	if err := r.saveProfile(profile); err != nil {
		r.logger.Warn().Err(err).Str("user_id", fb.UserID).Msg("profile save failed")
		return
	}
	metrics.ProfileUpdates.Inc()
}

// invalidateFor marks the user's cached recommendation sets covering the
// feedback location as stale. The predicate matches entries for the same
// user whose search area, widened by one coordinate bucket, covers the
// feedback location; without a location all the user's entries match.
func (r *Recorder) invalidateFor(fb *Feedback) {
	if r.invalidator == nil {
		return
	}

	bucketMeters := r.keyParams.CoordBucketDeg * 111320 // degrees latitude to meters
	loc := fb.Context.Location

	n := r.invalidator.Invalidate(func(key recommend.Key, rctx recommend.RequestContext) bool {
		if rctx.UserID != fb.UserID {
			return false
		}
		if loc.IsZero() {
			return true
		}
		return geo.Haversine(rctx.Location, loc) <= rctx.RadiusMeters+bucketMeters
	})

	if n > 0 {
		metrics.FeedbackInvalidations.Add(float64(n))
		r.logger.Debug().
			Str("user_id", fb.UserID).
			Int("invalidated", n).
			Msg("feedback invalidated cached recommendations")
	}
}

// Profile returns the user's profile freshness as response metadata.
// Fails with NotFoundError for users with no recorded feedback.
func (r *Recorder) Profile(ctx context.Context, userID string) (*recommend.UserStats, error) {
	profile, err := r.loadProfile(userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, &recommend.NotFoundError{Resource: "profile", ID: userID}
	}
	return &recommend.UserStats{
		ProfileCompleteness: profile.Completeness,
		ProfileFreshness:    r.freshness(profile.LastUpdated, time.Now()),
		VisitCount:          profile.VisitCount,
		CategoryDiversity:   profile.CategoryDiversity,
		LastUpdated:         profile.LastUpdated,
	}, nil
}

// freshness decays from 1 toward 0 as the profile ages, halving once per
// half-life.
func (r *Recorder) freshness(lastUpdated, now time.Time) float64 {
	if lastUpdated.IsZero() {
		return 0
	}
	age := now.Sub(lastUpdated)
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(r.halfLife))
}

// ProfileDoc returns the full profile document.
func (r *Recorder) ProfileDoc(ctx context.Context, userID string) (*Profile, error) {
	profile, err := r.loadProfile(userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, &recommend.NotFoundError{Resource: "profile", ID: userID}
	}
	return profile, nil
}

// Stats scans recorded feedback for the analytics endpoint.
func (r *Recorder) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	var positive, engaged int64

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(feedbackKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var fb Feedback
				if err := json.Unmarshal(val, &fb); err != nil {
					return nil // skip corrupt records
				}
				stats.TotalFeedback++
				if fb.positiveSignal() {
					positive++
				}
				if fb.engagedSignal() {
					engaged++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, &recommend.CacheError{Op: "feedback_scan", Err: err}
	}

	if stats.TotalFeedback > 0 {
		stats.PositiveRate = float64(positive) / float64(stats.TotalFeedback)
		stats.EngagementRate = float64(engaged) / float64(stats.TotalFeedback)
	}
	return stats, nil
}

// ProfileStats aggregates all user profiles for the analytics endpoint.
type ProfileStats struct {
	TotalProfiles   int     `json:"total_profiles"`
	AvgCompleteness float64 `json:"avg_completeness"`
	AvgDiversity    float64 `json:"avg_diversity"`
	TotalVisits     int     `json:"total_visits"`
}

// ProfilesSummary scans all profiles and aggregates them.
func (r *Recorder) ProfilesSummary(ctx context.Context) (ProfileStats, error) {
	var stats ProfileStats
	var completenessSum, diversitySum float64

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(profileKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var p Profile
				if err := json.Unmarshal(val, &p); err != nil {
					return nil // skip corrupt records
				}
				stats.TotalProfiles++
				stats.TotalVisits += p.VisitCount
				completenessSum += p.Completeness
				diversitySum += p.CategoryDiversity
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ProfileStats{}, &recommend.CacheError{Op: "profile_scan", Err: err}
	}

	if stats.TotalProfiles > 0 {
		stats.AvgCompleteness = completenessSum / float64(stats.TotalProfiles)
		stats.AvgDiversity = diversitySum / float64(stats.TotalProfiles)
	}
	return stats, nil
}

// userMutex returns the mutex serializing one user's profile updates.
func (r *Recorder) userMutex(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	mu, ok := r.userMus[userID]
	if !ok {
		mu = &sync.Mutex{}
		r.userMus[userID] = mu
	}
	return mu
}

func (r *Recorder) loadProfile(userID string) (*Profile, error) {
	var profile *Profile
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(profileKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var p Profile
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("unmarshaling profile: %w", err)
			}
			profile = &p
			return nil
		})
	})
	if err != nil {
		return nil, &recommend.CacheError{Op: "profile_read", Err: err}
	}
	return profile, nil
}

func (r *Recorder) saveProfile(profile *Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(profileKeyPrefix+profile.UserID), data)
	})
	if err != nil {
		return &recommend.CacheError{Op: "profile_write", Err: err}
	}
	return nil
}

// completeness estimates how much preference signal exists: breadth of
// action kinds, event volume, and presence of explicit ratings.
func completeness(p *Profile) float64 {
	breadth := float64(len(p.ActionCounts)) / float64(len(knownActions))

	volume := float64(p.TotalEvents) / completenessEventTarget
	if volume > 1 {
		volume = 1
	}

	rated := 0.0
	if p.RatedEvents > 0 {
		rated = 1.0
	}

	return 0.4*breadth + 0.4*volume + 0.2*rated
}

// normalizedEntropy computes the Shannon entropy of the category counts
// normalized to [0,1] by the maximum entropy for the category count.
func normalizedEntropy(counts map[string]int) float64 {
	if len(counts) < 2 {
		return 0
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}

	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}

	return entropy / math.Log2(float64(len(counts)))
}
