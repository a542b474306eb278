// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package services

import (
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/TudorG03/accessmate-sub003/internal/cache"
	"github.com/TudorG03/accessmate-sub003/internal/logging"
)

// valueLogGCRatio is the space-reclaim threshold passed to Badger's
// value-log GC. 0.5 is Badger's documented recommendation.
const valueLogGCRatio = 0.5

// JanitorService periodically sweeps expired cache entries and runs
// Badger value-log garbage collection. Lazy expiry in the cache handles
// correctness; the sweep only reclaims memory for entries nobody looks
// up again.
type JanitorService struct {
	store    *cache.Store
	db       *badger.DB
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewJanitorService creates the janitor. db may be nil when the server
// runs without persistence. A non-positive interval falls back to 5m.
func NewJanitorService(store *cache.Store, db *badger.DB, interval time.Duration) *JanitorService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &JanitorService{
		store:    store,
		db:       db,
		interval: interval,
		logger:   logging.WithComponent("janitor"),
		name:     "cache-janitor",
	}
}

// Serve implements suture.Service.
func (j *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *JanitorService) sweep() {
	if n := j.store.SweepExpired(); n > 0 {
		j.logger.Debug().Int("swept", n).Msg("expired cache entries removed")
	}

	if j.db == nil {
		return
	}
	// RunValueLogGC reclaims at most one log file per call; loop until it
	// reports nothing left to rewrite.
	for {
		err := j.db.RunValueLogGC(valueLogGCRatio)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) {
			j.logger.Warn().Err(err).Msg("value log gc failed")
		}
		return
	}
}

// String implements fmt.Stringer; suture uses it in log messages.
func (j *JanitorService) String() string {
	return j.name
}
