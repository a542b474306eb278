// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package places

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

// accessKeyPrefix namespaces accessibility aggregates in the shared Badger DB.
const accessKeyPrefix = "access:"

// fullConfidenceReviews is the review count at which aggregate confidence
// saturates.
const fullConfidenceReviews = 5

// AccessReview is one community accessibility review for a place.
type AccessReview struct {
	PlaceID    string          `json:"place_id"`
	PlaceName  string          `json:"place_name,omitempty"`
	Location   geo.Point       `json:"location"`
	Categories []string        `json:"categories,omitempty"`
	UserID     string          `json:"user_id"`
	Rating     float64         `json:"rating"`
	Features   map[string]bool `json:"features"`
	CreatedAt  time.Time       `json:"created_at"`
}

// storedAggregate is the persisted incremental aggregate for one place.
type storedAggregate struct {
	PlaceID     string         `json:"place_id"`
	Name        string         `json:"name,omitempty"`
	Location    geo.Point      `json:"location"`
	Categories  []string       `json:"categories,omitempty"`
	RatingSum   float64        `json:"rating_sum"`
	ReviewCount int            `json:"review_count"`
	FeatureYes  map[string]int `json:"feature_yes"`
}

// aggregate folds the stored counters into the exposed aggregate form.
// A feature counts as available when a majority of reviews reported it.
func (a *storedAggregate) aggregate() PlaceReviewAggregate {
	features := make(map[string]bool, len(a.FeatureYes))
	for feature, yes := range a.FeatureYes {
		features[feature] = yes*2 > a.ReviewCount
	}

	avgRating := 0.0
	if a.ReviewCount > 0 {
		avgRating = a.RatingSum / float64(a.ReviewCount)
	}

	return PlaceReviewAggregate{
		PlaceID:    a.PlaceID,
		Name:       a.Name,
		Location:   a.Location,
		Categories: a.Categories,
		Summary: recommend.AccessSummary{
			Features:    features,
			Confidence:  math.Min(1, float64(a.ReviewCount)/fullConfidenceReviews),
			ReviewCount: a.ReviewCount,
			AvgRating:   avgRating,
		},
	}
}

// BadgerReviewStore persists accessibility review aggregates in Badger,
// one document per place under the access: prefix.
type BadgerReviewStore struct {
	db     *badger.DB
	logger zerolog.Logger
}

// NewBadgerReviewStore creates a review store over the shared DB handle.
func NewBadgerReviewStore(db *badger.DB, logger zerolog.Logger) *BadgerReviewStore {
	return &BadgerReviewStore{db: db, logger: logger}
}

// AddReview folds one review into the place's aggregate.
func (s *BadgerReviewStore) AddReview(ctx context.Context, review AccessReview) error {
	placeID := NormalizePlaceID(review.PlaceID)
	if placeID == "" {
		return recommend.NewValidationError("place_id", "is required")
	}
	if review.Rating < 0 || review.Rating > 5 {
		return recommend.NewValidationError("rating", "must be between 0 and 5")
	}

	key := []byte(accessKeyPrefix + placeID)
	err := s.db.Update(func(txn *badger.Txn) error {
		agg := storedAggregate{
			PlaceID:    placeID,
			Name:       review.PlaceName,
			Location:   review.Location,
			Categories: review.Categories,
			FeatureYes: make(map[string]int),
		}

		item, err := txn.Get(key)
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &agg)
			}); err != nil {
				return fmt.Errorf("unmarshaling aggregate: %w", err)
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		agg.RatingSum += review.Rating
		agg.ReviewCount++
		if agg.FeatureYes == nil {
			agg.FeatureYes = make(map[string]int)
		}
		for feature, available := range review.Features {
			feature = strings.ToLower(strings.TrimSpace(feature))
			if feature != "" && available {
				agg.FeatureYes[feature]++
			}
		}
		if agg.Name == "" {
			agg.Name = review.PlaceName
		}
		if agg.Location.IsZero() {
			agg.Location = review.Location
		}

		data, err := json.Marshal(&agg)
		if err != nil {
			return fmt.Errorf("marshaling aggregate: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return &recommend.CacheError{Op: "review_write", Err: err}
	}

	s.logger.Debug().Str("place_id", placeID).Msg("accessibility review aggregated")
	return nil
}

// Summaries returns aggregates for places within radiusMeters of pt,
// keyed by normalized place ID.
func (s *BadgerReviewStore) Summaries(ctx context.Context, pt geo.Point, radiusMeters float64) (map[string]PlaceReviewAggregate, error) {
	out := make(map[string]PlaceReviewAggregate)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(accessKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var agg storedAggregate
				if err := json.Unmarshal(val, &agg); err != nil {
					s.logger.Warn().Err(err).Msg("skipping corrupt review aggregate")
					return nil
				}
				if geo.Haversine(pt, agg.Location) <= radiusMeters {
					out[agg.PlaceID] = agg.aggregate()
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
		return nil, &recommend.CacheError{Op: "review_scan", Err: err}
	}

	return out, nil
}
