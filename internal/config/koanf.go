// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/accessmate/config.yaml",
	"/etc/accessmate/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "ACCESSMATE_CONFIG"

// envPrefix is the prefix for all AccessMate environment variables.
const envPrefix = "ACCESSMATE_"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Path:       "/data/accessmate",
			InMemory:   false,
			GCInterval: 10 * time.Minute,
		},
		Provider: ProviderConfig{
			BaseURL:         "",
			APIKey:          "",
			Timeout:         5 * time.Second,
			RateLimit:       10,
			RateBurst:       20,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:            15 * time.Minute,
			Capacity:       10000,
			CoordBucketDeg: 0.005, // ~550m cells at mid latitudes
			RadiusBucketM:  500,
			HourBucket:     3,
			Persist:        true,
		},
		Scoring: ScoringConfig{
			CategoryWeight:        0.30,
			LocationWeight:        0.30,
			TemporalWeight:        0.20,
			QualityWeight:         0.20,
			DiversityBoost:        1.0,
			NeutralTemporal:       0.7,
			NeutralQuality:        0.5,
			NeutralCategory:       0.5,
			AccessMatchBonus:      0.05,
			AccessBonusCap:        0.15,
			SignificanceThreshold: 0.75,
			Parallelism:           0,
		},
		Diversity: DiversityConfig{
			Enabled:         true,
			MaxPerCategory:  2,
			CategoryPenalty: 0.15,
		},
		Feedback: FeedbackConfig{
			ProfileHalfLife:  30 * 24 * time.Hour,
			MaxEventsPerUser: 500,
		},
		API: APIConfig{
			MaxResults:          50,
			DefaultResults:      10,
			MaxRadiusMeters:     10000,
			DefaultRadiusMeters: 2000,
			RateLimitReqs:       100,
			RateLimitWindow:     time.Minute,
			CORSOrigins:         []string{"*"},
		},
	}
}

// Load loads configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
//
// Env vars map to config paths via the ACCESSMATE_ prefix with double
// underscores as section separators:
//
//	ACCESSMATE_SERVER__PORT=8080         -> server.port
//	ACCESSMATE_CACHE__TTL=10m            -> cache.ttl
//	ACCESSMATE_PROVIDER__API_KEY=secret  -> provider.api_key
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, checking the env override
// first and then the default paths. Returns empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when supplied via env vars.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as plain strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps an environment variable name to a koanf config path.
//
//	ACCESSMATE_SERVER__PORT        -> server.port
//	ACCESSMATE_CACHE__TTL          -> cache.ttl
//	ACCESSMATE_API__CORS_ORIGINS   -> api.cors_origins
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}
