// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

// Package recommend implements the recommendation scoring-and-caching core.
//
// The entry point is the Orchestrator, which turns a user context (location,
// time, preferences) into a ranked, explainable list of candidate places:
//
//	key derivation -> cache lookup -> (on miss) gather -> score -> diversify -> cache write
//
// Candidate gathering and cache storage are pluggable through the
// CandidateSource and CacheStore interfaces; their implementations live in
// internal/places and internal/cache. Scoring and diversity re-ranking are
// pure functions over the data model defined here.
package recommend
