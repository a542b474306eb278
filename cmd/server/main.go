// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

// Package main is the entry point for the AccessMate server.
//
// AccessMate serves personalized, accessibility-aware place
// recommendations. The server initializes components in order:
//
//  1. Configuration: layered settings via Koanf v2 (env > file > defaults)
//  2. Storage: embedded Badger for feedback, profiles, reviews, cache
//  3. Place source: rate-limited HTTP provider behind a circuit breaker,
//     merged with community accessibility reviews
//  4. Cache: TTL+LRU recommendation cache with single-flight computation
//  5. Feedback recorder: profile freshness and targeted invalidation
//  6. HTTP API: Chi router under /api/v1, Prometheus on /metrics
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests within the configured
// grace period, and closes the store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/TudorG03/accessmate-sub003/internal/api"
	"github.com/TudorG03/accessmate-sub003/internal/cache"
	"github.com/TudorG03/accessmate-sub003/internal/config"
	"github.com/TudorG03/accessmate-sub003/internal/feedback"
	"github.com/TudorG03/accessmate-sub003/internal/logging"
	"github.com/TudorG03/accessmate-sub003/internal/places"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
	"github.com/TudorG03/accessmate-sub003/internal/supervisor"
	"github.com/TudorG03/accessmate-sub003/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config errors surface on the default logger; Init has not run yet.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("store_path", cfg.Store.Path).
		Bool("in_memory", cfg.Store.InMemory).
		Msg("Starting AccessMate")

	db, err := openStore(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	store, err := cache.New(cache.Options{
		TTL:      cfg.Cache.TTL,
		Capacity: cfg.Cache.Capacity,
		DB:       db,
		Persist:  cfg.Cache.Persist,
		Logger:   logging.WithComponent("cache"),
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation cache")
	}

	keyParams := recommend.KeyParams{
		CoordBucketDeg: cfg.Cache.CoordBucketDeg,
		RadiusBucketM:  cfg.Cache.RadiusBucketM,
		HourBucket:     cfg.Cache.HourBucket,
	}

	recorder := feedback.NewRecorder(feedback.Options{
		DB:               db,
		Invalidator:      store,
		KeyParams:        keyParams,
		MaxEventsPerUser: cfg.Feedback.MaxEventsPerUser,
		ProfileHalfLife:  cfg.Feedback.ProfileHalfLife,
		Logger:           logging.WithComponent("feedback"),
	})

	provider := places.NewHTTPProvider(places.HTTPProviderConfig{
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey,
		Timeout:   cfg.Provider.Timeout,
		RateLimit: cfg.Provider.RateLimit,
		RateBurst: cfg.Provider.RateBurst,
	}, logging.WithComponent("provider"))

	guarded := places.NewBreakerProvider(provider, places.BreakerConfig{
		ConsecutiveFailures: cfg.Provider.BreakerFailures,
		Timeout:             cfg.Provider.BreakerTimeout,
	}, logging.WithComponent("breaker"))

	reviews := places.NewBadgerReviewStore(db, logging.WithComponent("reviews"))
	source := places.NewSource(guarded, reviews, logging.WithComponent("places"))

	orchestrator := recommend.NewOrchestrator(recommend.Options{
		DefaultWeights: recommend.Weights{
			Category:       cfg.Scoring.CategoryWeight,
			Location:       cfg.Scoring.LocationWeight,
			Temporal:       cfg.Scoring.TemporalWeight,
			Quality:        cfg.Scoring.QualityWeight,
			DiversityBoost: cfg.Scoring.DiversityBoost,
		},
		KeyParams: keyParams,
		Scoring: recommend.ScoringParams{
			NeutralTemporal:       cfg.Scoring.NeutralTemporal,
			NeutralQuality:        cfg.Scoring.NeutralQuality,
			NeutralCategory:       cfg.Scoring.NeutralCategory,
			AccessMatchBonus:      cfg.Scoring.AccessMatchBonus,
			AccessBonusCap:        cfg.Scoring.AccessBonusCap,
			SignificanceThreshold: cfg.Scoring.SignificanceThreshold,
		},
		DefaultRadiusM:   cfg.API.DefaultRadiusMeters,
		MaxRadiusM:       cfg.API.MaxRadiusMeters,
		DefaultResults:   cfg.API.DefaultResults,
		MaxResults:       cfg.API.MaxResults,
		DiversityOn:      cfg.Diversity.Enabled,
		MaxPerCategory:   cfg.Diversity.MaxPerCategory,
		DiversityPenalty: cfg.Diversity.CategoryPenalty,
		Parallelism:      cfg.Scoring.Parallelism,
	}, source, store, recorder, logging.WithComponent("orchestrator"))

	handlers := api.NewHandlers(orchestrator, store, recorder, cfg.API)
	router := api.NewRouter(handlers, cfg.API)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(services.NewJanitorService(store, persistDB(db, cfg), cfg.Store.GCInterval))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := tree.ServeBackground(ctx)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree stopped with error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Fatal().Err(err).Msg("Supervisor tree failed")
		}
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("Shutdown complete")
}

// openStore opens the embedded Badger database, in-memory when configured.
func openStore(cfg config.StoreConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Badger's own logger is noisy; zerolog covers operational visibility.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	return db, nil
}

// persistDB returns the database for value-log GC, or nil when running
// in memory where GC has nothing to reclaim.
func persistDB(db *badger.DB, cfg *config.Config) *badger.DB {
	if cfg.Store.InMemory {
		return nil
	}
	return db
}
