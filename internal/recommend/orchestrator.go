// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package recommend

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/metrics"
)

// CandidateSource gathers unranked place candidates for a point and radius.
// Implementations must not rank or filter beyond what the filters request.
type CandidateSource interface {
	Gather(ctx context.Context, pt geo.Point, radiusMeters float64, filters Filters) (GatherResult, error)
}

// CacheStore is the orchestrator's view of the recommendation cache.
// Implemented by internal/cache; defined here to keep the dependency
// direction pointing at the core.
type CacheStore interface {
	// Lookup returns a fresh entry for the key, bumping hit accounting
	// atomically with the read. Expired entries are treated as a miss.
	Lookup(key Key) (*CacheEntry, bool)

	// LookupStale returns an entry even if expired, without accounting.
	// Used for the degraded provider-outage path.
	LookupStale(key Key) (*CacheEntry, bool)

	// Fetch collapses concurrent misses for the same key into exactly one
	// compute invocation and writes the result through on success. compute
	// also reports the candidate count before filtering and truncation,
	// persisted on the entry so cache hits can restate it. computed
	// reports whether this caller's compute ran (as opposed to joining
	// another caller's in-flight computation).
	Fetch(ctx context.Context, key Key, rctx RequestContext,
		compute func(ctx context.Context) ([]Recommendation, int, error)) (entry *CacheEntry, computed bool, err error)

	// Invalidate removes entries matching the predicate, returning the count.
	Invalidate(pred func(Key, RequestContext) bool) int
}

// ProfileProvider supplies per-user profile freshness for response
// metadata. Implemented by internal/feedback.
type ProfileProvider interface {
	Profile(ctx context.Context, userID string) (*UserStats, error)
}

// Options configure an Orchestrator. All limits and defaults are explicit
// construction-time values; the orchestrator holds no mutable global state.
type Options struct {
	DefaultWeights   Weights
	KeyParams        KeyParams
	Scoring          ScoringParams
	DefaultRadiusM   float64
	MaxRadiusM       float64
	DefaultResults   int
	MaxResults       int
	DiversityOn      bool
	MaxPerCategory   int
	DiversityPenalty float64
	Parallelism      int
}

// Orchestrator is the recommendation entry point: it resolves a cache key,
// consults the cache, and on miss drives gather -> score -> diversify ->
// cache write, assembling the response envelope.
type Orchestrator struct {
	opts      Options
	source    CandidateSource
	cache     CacheStore
	scorer    *Scorer
	diversity *DiversityFilter
	profiles  ProfileProvider
	logger    zerolog.Logger

	totalRequests atomic.Int64
	totalExecNS   atomic.Int64
}

// NewOrchestrator creates an Orchestrator. profiles may be nil, in which
// case responses omit userStats.
func NewOrchestrator(opts Options, source CandidateSource, cache CacheStore,
	profiles ProfileProvider, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		opts:      opts,
		source:    source,
		cache:     cache,
		scorer:    NewScorer(opts.Scoring, logger),
		diversity: NewDiversityFilter(opts.DiversityPenalty),
		profiles:  profiles,
		logger:    logger,
	}
}

// Get serves one recommendation request.
func (o *Orchestrator) Get(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	trace := newStageTrace(start)
	trace.enter(StageReceived, start)

	rctx, err := o.resolve(req)
	if err != nil {
		return nil, err
	}

	logger := o.logger.With().
		Str("user_id", rctx.UserID).
		Float64("radius_m", rctx.RadiusMeters).
		Logger()

	trace.enter(StageKeyResolved, time.Now())
	key := NewKey(rctx, o.opts.KeyParams)

	if !req.ForceRefresh {
		if entry, ok := o.cache.Lookup(key); ok {
			trace.enter(StageCacheHit, time.Now())
			trace.enter(StageAssembled, time.Now())
			logger.Debug().Str("cache_key", key.String()).Msg("cache hit")
			return o.assemble(ctx, req, entry, assembleOpts{
				fromCache: true,
				trace:     trace,
				start:     start,
				source:    "cache",
				cacheNote: &CacheDebug{Hit: true},
			}), nil
		}
	}

	var provDebug ProviderDebug
	entry, computed, err := o.cache.Fetch(ctx, key, rctx, func(ctx context.Context) ([]Recommendation, int, error) {
		return o.compute(ctx, rctx, trace, &provDebug)
	})

	if err != nil {
		if IsProvider(err) {
			if stale, ok := o.cache.LookupStale(key); ok {
				metrics.CacheStaleServed.Inc()
				logger.Warn().Err(err).Msg("provider unavailable, serving stale cache entry")
				trace.enter(StageAssembled, time.Now())
				return o.assemble(ctx, req, stale, assembleOpts{
					fromCache: true,
					stale:     true,
					trace:     trace,
					start:     start,
					source:    "stale",
					cacheNote: &CacheDebug{Hit: true, Stale: true},
				}), nil
			}
		}
		trace.enter(StageFailed, time.Now())
		logger.Error().Err(err).Msg("recommendation request failed")
		return nil, err
	}

	trace.enter(StageAssembled, time.Now())
	return o.assemble(ctx, req, entry, assembleOpts{
		fromCache: false,
		trace:     trace,
		start:     start,
		source:    "computed",
		provNote:  &provDebug,
		cacheNote: &CacheDebug{Hit: false, Collapsed: !computed},
	}), nil
}

// Invalidate removes cache entries matching the predicate. Exposed for
// the feedback recorder's targeted invalidation.
func (o *Orchestrator) Invalidate(pred func(Key, RequestContext) bool) int {
	return o.cache.Invalidate(pred)
}

// ExecStats returns the total request count and mean execution time for
// the analytics endpoint.
func (o *Orchestrator) ExecStats() (total int64, avg time.Duration) {
	total = o.totalRequests.Load()
	if total == 0 {
		return 0, 0
	}
	return total, time.Duration(o.totalExecNS.Load() / total)
}

// resolve validates and defaults the request into a RequestContext.
func (o *Orchestrator) resolve(req Request) (RequestContext, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return RequestContext{}, NewValidationError("user_id", "is required")
	}
	if req.Location.IsZero() {
		return RequestContext{}, NewValidationError("location", "a base location is required")
	}
	if !req.Location.Valid() {
		return RequestContext{}, NewValidationError("location", "latitude/longitude out of range")
	}

	radius := req.RadiusMeters
	if radius == 0 {
		radius = o.opts.DefaultRadiusM
	}
	if radius <= 0 {
		return RequestContext{}, NewValidationError("radius", "must be positive")
	}
	if o.opts.MaxRadiusM > 0 && radius > o.opts.MaxRadiusM {
		radius = o.opts.MaxRadiusM
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = o.opts.DefaultResults
	}
	if o.opts.MaxResults > 0 && maxResults > o.opts.MaxResults {
		maxResults = o.opts.MaxResults
	}

	weights := o.opts.DefaultWeights
	if req.Weights != nil {
		weights = *req.Weights
	}
	if weights.BaseSum() <= 0 {
		return RequestContext{}, NewValidationError("weights", "base weights must sum to a positive value")
	}

	categories := make([]string, 0, len(req.Categories))
	for _, c := range req.Categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			categories = append(categories, c)
		}
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return RequestContext{
		UserID:       req.UserID,
		Location:     req.Location,
		RadiusMeters: radius,
		Query:        strings.TrimSpace(req.Query),
		Categories:   categories,
		AccessNeeds:  req.AccessNeeds,
		MaxResults:   maxResults,
		MaxPriceTier: req.MaxPriceTier,
		Weights:      weights,
		Timestamp:    ts,
	}, nil
}

// compute runs the miss path: gather -> score -> diversify -> truncate.
// Called at most once per key by the cache's single-flight group.
func (o *Orchestrator) compute(ctx context.Context, rctx RequestContext,
	trace *stageTrace, provDebug *ProviderDebug) ([]Recommendation, int, error) {
	trace.enter(StageGathering, time.Now())

	gathered, err := o.source.Gather(ctx, rctx.Location, rctx.RadiusMeters, Filters{
		Query:      rctx.Query,
		Categories: rctx.Categories,
	})
	if err != nil {
		return nil, 0, err
	}
	candidates := gathered.Candidates
	metrics.CandidatesGathered.Observe(float64(len(candidates)))
	provDebug.ProviderCandidates = len(candidates) - gathered.ReviewOnly
	provDebug.ReviewOnlyPlaces = gathered.ReviewOnly
	provDebug.Deduplicated = gathered.Deduplicated
	provDebug.Degraded = gathered.Degraded

	trace.enter(StageScoring, time.Now())
	scored, err := o.scoreAll(ctx, candidates, rctx)
	if err != nil {
		return nil, 0, err
	}

	// Distance-ascending pre-sort so the later stable score sort breaks
	// ties by proximity.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].DistanceMeters < scored[j].DistanceMeters
	})
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	trace.enter(StageDiversifying, time.Now())
	if o.opts.DiversityOn {
		scored = o.diversity.Rerank(scored, o.opts.MaxPerCategory, rctx.Weights)
	}

	if len(scored) > rctx.MaxResults {
		scored = scored[:rctx.MaxResults]
	}

	trace.enter(StageCacheWrite, time.Now())
	return scored, len(candidates), nil
}

// scoreAll scores candidates in parallel. Scoring is pure, so candidates
// share no mutable state; the group limit bounds goroutine fan-out.
func (o *Orchestrator) scoreAll(ctx context.Context, candidates []Candidate, rctx RequestContext) ([]Recommendation, error) {
	scored := make([]Recommendation, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	if o.opts.Parallelism > 0 {
		g.SetLimit(o.opts.Parallelism)
	}

	for i, c := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := o.scorer.Score(c, rctx, rctx.Weights)
			if err != nil {
				return err
			}
			scored[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

type assembleOpts struct {
	fromCache bool
	stale     bool
	trace     *stageTrace
	start     time.Time
	source    string
	provNote  *ProviderDebug
	cacheNote *CacheDebug
}

// assemble builds the response envelope from a cache entry. The entry's
// recommendation list is already a caller-owned copy; explanations are
// stripped here when not requested so the cached values stay intact.
func (o *Orchestrator) assemble(ctx context.Context, req Request, entry *CacheEntry, opts assembleOpts) *Response {
	elapsed := time.Since(opts.start)
	o.totalRequests.Add(1)
	o.totalExecNS.Add(int64(elapsed))
	metrics.RecordRecommendation(opts.source, elapsed)

	recs := entry.Recommendations
	if !req.Explain {
		stripped := make([]Recommendation, len(recs))
		copy(stripped, recs)
		for i := range stripped {
			stripped[i].Breakdown = nil
			stripped[i].Reasons = nil
		}
		recs = stripped
	}
	if recs == nil {
		recs = []Recommendation{}
	}

	// Entries written before the count was recorded fall back to the
	// served list length.
	totalCandidates := entry.TotalCandidates
	if totalCandidates == 0 {
		totalCandidates = len(entry.Recommendations)
	}

	resp := &Response{
		Recommendations: recs,
		Metadata: ResponseMetadata{
			FromCache:       opts.fromCache,
			Stale:           opts.stale,
			CacheKey:        entry.Key.String(),
			ExecutionTimeMS: float64(elapsed.Microseconds()) / 1000.0,
			TotalCandidates: totalCandidates,
			UserStats:       o.userStats(ctx, req.UserID),
		},
	}

	if req.Explain {
		debug := &DebugInfo{Stages: opts.trace.finish(time.Now())}
		if opts.provNote != nil {
			debug.Notes = append(debug.Notes, DebugNote{Kind: DebugKindProvider, Provider: opts.provNote})
		}
		if opts.cacheNote != nil {
			debug.Notes = append(debug.Notes, DebugNote{Kind: DebugKindCache, Cache: opts.cacheNote})
		}
		resp.Debug = debug
	}

	return resp
}

// userStats fetches profile freshness for the response, absorbing errors.
// Stats are best-effort metadata and never fail a request.
func (o *Orchestrator) userStats(ctx context.Context, userID string) *UserStats {
	if o.profiles == nil {
		return nil
	}
	stats, err := o.profiles.Profile(ctx, userID)
	if err != nil {
		if !IsNotFound(err) {
			o.logger.Debug().Err(err).Str("user_id", userID).Msg("profile lookup failed")
		}
		return nil
	}
	return stats
}
