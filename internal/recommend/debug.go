// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package recommend

import "time"

// Stage identifies a step in the per-request state machine.
type Stage int

const (
	// StageReceived is the initial state after request validation starts.
	StageReceived Stage = iota
	// StageKeyResolved means the cache key has been derived.
	StageKeyResolved
	// StageCacheHit means a fresh cache entry satisfied the request.
	StageCacheHit
	// StageGathering means candidates are being fetched.
	StageGathering
	// StageScoring means candidates are being scored.
	StageScoring
	// StageDiversifying means the diversity filter is re-ranking.
	StageDiversifying
	// StageCacheWrite means the computed result is being written through.
	StageCacheWrite
	// StageAssembled is the terminal success state.
	StageAssembled
	// StageFailed is the terminal error state.
	StageFailed
)

// String returns a human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageKeyResolved:
		return "key_resolved"
	case StageCacheHit:
		return "cache_hit"
	case StageGathering:
		return "gathering"
	case StageScoring:
		return "scoring"
	case StageDiversifying:
		return "diversifying"
	case StageCacheWrite:
		return "cache_write"
	case StageAssembled:
		return "assembled"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so stages serialize as
// their names in debug payloads.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StageTiming records when a stage was entered and how long it took.
type StageTiming struct {
	Stage    Stage         `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

// DebugKind discriminates DebugNote variants.
type DebugKind string

const (
	// DebugKindProvider carries candidate-gathering details.
	DebugKindProvider DebugKind = "provider"
	// DebugKindCache carries cache interaction details.
	DebugKindCache DebugKind = "cache"
	// DebugKindOpaque carries an unknown detail as a raw key/value map.
	DebugKindOpaque DebugKind = "opaque"
)

// ProviderDebug describes the candidate-gathering step.
type ProviderDebug struct {
	ProviderCandidates int  `json:"provider_candidates"`
	ReviewOnlyPlaces   int  `json:"review_only_places"`
	Deduplicated       int  `json:"deduplicated"`
	Degraded           bool `json:"degraded,omitempty"`
}

// CacheDebug describes the cache interaction for the request.
type CacheDebug struct {
	Hit        bool   `json:"hit"`
	Stale      bool   `json:"stale,omitempty"`
	Collapsed  bool   `json:"collapsed,omitempty"`
	WriteError string `json:"write_error,omitempty"`
}

// DebugNote is a closed tagged variant: exactly one of the typed payloads
// is set according to Kind, with Opaque as the unknown fallback.
type DebugNote struct {
	Kind     DebugKind         `json:"kind"`
	Provider *ProviderDebug    `json:"provider,omitempty"`
	Cache    *CacheDebug       `json:"cache,omitempty"`
	Opaque   map[string]string `json:"opaque,omitempty"`
}

// DebugInfo is the optional per-request trace returned when explanations
// are requested.
type DebugInfo struct {
	Stages []StageTiming `json:"stages"`
	Notes  []DebugNote   `json:"notes,omitempty"`
}

// stageTrace accumulates stage timings for one request. Not safe for
// concurrent use; each request owns its own trace.
type stageTrace struct {
	timings []StageTiming
	last    time.Time
}

func newStageTrace(start time.Time) *stageTrace {
	return &stageTrace{last: start}
}

// enter closes the previous stage and opens the given one.
func (t *stageTrace) enter(stage Stage, now time.Time) {
	if len(t.timings) > 0 {
		t.timings[len(t.timings)-1].Duration = now.Sub(t.last)
	}
	t.timings = append(t.timings, StageTiming{Stage: stage})
	t.last = now
}

// finish closes the trailing stage.
func (t *stageTrace) finish(now time.Time) []StageTiming {
	if len(t.timings) > 0 {
		t.timings[len(t.timings)-1].Duration = now.Sub(t.last)
	}
	return t.timings
}
