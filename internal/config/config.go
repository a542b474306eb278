// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

// Package config provides layered configuration for AccessMate using Koanf v2.
//
// Precedence (highest wins): environment variables > YAML config file >
// built-in defaults. Environment variables use the ACCESSMATE_ prefix with
// double underscores separating sections, e.g. ACCESSMATE_SERVER__PORT=8080
// maps to server.port.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the AccessMate server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Store     StoreConfig     `koanf:"store"`
	Provider  ProviderConfig  `koanf:"provider"`
	Cache     CacheConfig     `koanf:"cache"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Diversity DiversityConfig `koanf:"diversity"`
	Feedback  FeedbackConfig  `koanf:"feedback"`
	API       APIConfig       `koanf:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`             // Listen address (default: 0.0.0.0)
	Port            int           `koanf:"port"`             // Listen port (default: 8090)
	ReadTimeout     time.Duration `koanf:"read_timeout"`     // Max duration for reading a request
	WriteTimeout    time.Duration `koanf:"write_timeout"`    // Max duration for writing a response
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"` // Grace period for in-flight requests on shutdown
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error (default: info)
	Format string `koanf:"format"` // json or console (default: json)
	Caller bool   `koanf:"caller"` // Include caller file:line in log entries
}

// StoreConfig holds embedded Badger database settings.
type StoreConfig struct {
	Path       string        `koanf:"path"`        // Badger data directory (default: /data/accessmate)
	InMemory   bool          `koanf:"in_memory"`   // Run Badger without disk persistence (tests, degraded mode)
	GCInterval time.Duration `koanf:"gc_interval"` // Value-log garbage collection interval
}

// ProviderConfig holds place provider client settings.
type ProviderConfig struct {
	BaseURL         string        `koanf:"base_url"`         // Place provider API base URL
	APIKey          string        `koanf:"api_key"`          // Provider API key
	Timeout         time.Duration `koanf:"timeout"`          // Per-request timeout
	RateLimit       float64       `koanf:"rate_limit"`       // Max provider requests per second
	RateBurst       int           `koanf:"rate_burst"`       // Burst capacity for the rate limiter
	BreakerFailures uint32        `koanf:"breaker_failures"` // Consecutive failures before the breaker opens
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`  // Open-state duration before a probe is allowed
}

// CacheConfig holds recommendation cache settings.
type CacheConfig struct {
	TTL            time.Duration `koanf:"ttl"`              // Entry time-to-live (default: 15m)
	Capacity       int           `koanf:"capacity"`         // Max cached entries before LRU eviction (default: 10000)
	CoordBucketDeg float64       `koanf:"coord_bucket_deg"` // Coordinate bucket cell size in degrees (default: 0.005)
	RadiusBucketM  float64       `koanf:"radius_bucket_m"`  // Radius bucket size in meters (default: 500)
	HourBucket     int           `koanf:"hour_bucket"`      // Time-of-day bucket width in hours (default: 3)
	Persist        bool          `koanf:"persist"`          // Write cache entries through to Badger
}

// ScoringConfig holds default scoring weights and neutral sub-scores.
// Requests may override the weights; these are the server defaults.
type ScoringConfig struct {
	CategoryWeight float64 `koanf:"category_weight"` // Weight of the category match component (default: 0.30)
	LocationWeight float64 `koanf:"location_weight"` // Weight of the distance decay component (default: 0.30)
	TemporalWeight float64 `koanf:"temporal_weight"` // Weight of the open-hours fit component (default: 0.20)
	QualityWeight  float64 `koanf:"quality_weight"`  // Weight of the external quality component (default: 0.20)
	DiversityBoost float64 `koanf:"diversity_boost"` // Multiplier on the diversity bonus (default: 1.0)

	NeutralTemporal  float64 `koanf:"neutral_temporal"`   // Temporal score when hours are unknown (default: 0.7)
	NeutralQuality   float64 `koanf:"neutral_quality"`    // Quality score when ratings are absent (default: 0.5)
	NeutralCategory  float64 `koanf:"neutral_category"`   // Category score when the request names no categories (default: 0.5)
	AccessMatchBonus float64 `koanf:"access_match_bonus"` // Bonus per matched accessibility requirement (default: 0.05)
	AccessBonusCap   float64 `koanf:"access_bonus_cap"`   // Max total accessibility bonus (default: 0.15)

	SignificanceThreshold float64 `koanf:"significance_threshold"` // Components above this generate a reason string (default: 0.75)
	Parallelism           int     `koanf:"parallelism"`            // Max concurrent candidate scorings, 0 = NumCPU
}

// DiversityConfig holds diversity re-ranking settings.
type DiversityConfig struct {
	Enabled         bool    `koanf:"enabled"`          // Apply category diversity re-ranking (default: true)
	MaxPerCategory  int     `koanf:"max_per_category"` // Occurrences of a category before demotion starts (default: 2)
	CategoryPenalty float64 `koanf:"category_penalty"` // Score penalty per overflow occurrence (default: 0.15)
}

// FeedbackConfig holds feedback recording settings.
type FeedbackConfig struct {
	ProfileHalfLife  time.Duration `koanf:"profile_half_life"`   // Profile freshness decay half-life (default: 720h)
	MaxEventsPerUser int           `koanf:"max_events_per_user"` // Retained feedback events per user (default: 500)
}

// APIConfig holds API surface settings.
type APIConfig struct {
	MaxResults          int           `koanf:"max_results"`           // Hard cap on requested result count (default: 50)
	DefaultResults      int           `koanf:"default_results"`       // Result count when the request omits one (default: 10)
	MaxRadiusMeters     float64       `koanf:"max_radius_meters"`     // Hard cap on search radius (default: 10000)
	DefaultRadiusMeters float64       `koanf:"default_radius_meters"` // Radius when the request omits one (default: 2000)
	RateLimitReqs       int           `koanf:"rate_limit_reqs"`       // Requests per client per window (default: 100)
	RateLimitWindow     time.Duration `koanf:"rate_limit_window"`     // Rate limit window (default: 1m)
	CORSOrigins         []string      `koanf:"cors_origins"`          // Allowed CORS origins (default: *)
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateFeedback(); err != nil {
		return err
	}
	return c.validateAPI()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL)
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache.capacity must be at least 1, got %d", c.Cache.Capacity)
	}
	if c.Cache.CoordBucketDeg <= 0 {
		return fmt.Errorf("cache.coord_bucket_deg must be positive, got %v", c.Cache.CoordBucketDeg)
	}
	if c.Cache.RadiusBucketM <= 0 {
		return fmt.Errorf("cache.radius_bucket_m must be positive, got %v", c.Cache.RadiusBucketM)
	}
	if c.Cache.HourBucket < 1 || c.Cache.HourBucket > 24 {
		return fmt.Errorf("cache.hour_bucket must be between 1 and 24, got %d", c.Cache.HourBucket)
	}
	return nil
}

func (c *Config) validateScoring() error {
	weights := []struct {
		name  string
		value float64
	}{
		{"scoring.category_weight", c.Scoring.CategoryWeight},
		{"scoring.location_weight", c.Scoring.LocationWeight},
		{"scoring.temporal_weight", c.Scoring.TemporalWeight},
		{"scoring.quality_weight", c.Scoring.QualityWeight},
	}

	sum := 0.0
	for _, w := range weights {
		if w.value < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", w.name, w.value)
		}
		sum += w.value
	}
	if sum == 0 {
		return fmt.Errorf("scoring weights must not all be zero")
	}
	if c.Scoring.SignificanceThreshold < 0 || c.Scoring.SignificanceThreshold > 1 {
		return fmt.Errorf("scoring.significance_threshold must be in [0,1], got %v",
			c.Scoring.SignificanceThreshold)
	}
	return nil
}

func (c *Config) validateFeedback() error {
	if c.Feedback.ProfileHalfLife <= 0 {
		return fmt.Errorf("feedback.profile_half_life must be positive, got %v",
			c.Feedback.ProfileHalfLife)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.MaxResults < 1 {
		return fmt.Errorf("api.max_results must be at least 1, got %d", c.API.MaxResults)
	}
	if c.API.DefaultResults < 1 || c.API.DefaultResults > c.API.MaxResults {
		return fmt.Errorf("api.default_results must be between 1 and api.max_results, got %d",
			c.API.DefaultResults)
	}
	if c.API.MaxRadiusMeters <= 0 {
		return fmt.Errorf("api.max_radius_meters must be positive, got %v", c.API.MaxRadiusMeters)
	}
	if c.API.DefaultRadiusMeters <= 0 || c.API.DefaultRadiusMeters > c.API.MaxRadiusMeters {
		return fmt.Errorf("api.default_radius_meters must be between 0 and api.max_radius_meters, got %v",
			c.API.DefaultRadiusMeters)
	}
	return nil
}

