// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/TudorG03/accessmate-sub003/internal/cache"
	"github.com/TudorG03/accessmate-sub003/internal/config"
	"github.com/TudorG03/accessmate-sub003/internal/feedback"
	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/logging"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
	"github.com/TudorG03/accessmate-sub003/internal/validation"
)

// Handlers hold the API endpoint implementations.
type Handlers struct {
	orchestrator *recommend.Orchestrator
	store        *cache.Store
	recorder     *feedback.Recorder
	cfg          config.APIConfig
}

// NewHandlers creates the endpoint handlers.
func NewHandlers(orchestrator *recommend.Orchestrator, store *cache.Store,
	recorder *feedback.Recorder, cfg config.APIConfig) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		store:        store,
		recorder:     recorder,
		cfg:          cfg,
	}
}

// recommendationsQuery is the validated query surface of GET /recommendations.
type recommendationsQuery struct {
	UserID       string  `validate:"required"`
	Lat          float64 `validate:"latitude"`
	Lng          float64 `validate:"longitude"`
	Radius       float64 `validate:"gte=0"`
	MaxResults   int     `validate:"gte=0"`
	MaxPriceTier int     `validate:"gte=0,lte=4"`
}

// Recommendations handles GET /api/v1/recommendations.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := recommendationsQuery{UserID: strings.TrimSpace(q.Get("user_id"))}

	var err error
	if query.Lat, err = parseFloat(q.Get("lat")); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "lat must be a number", nil)
		return
	}
	if query.Lng, err = parseFloat(q.Get("lng")); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "lng must be a number", nil)
		return
	}
	if query.Radius, err = parseFloat(q.Get("radius")); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "radius must be a number", nil)
		return
	}
	if query.MaxResults, err = parseInt(q.Get("max_results")); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "max_results must be an integer", nil)
		return
	}
	if query.MaxPriceTier, err = parseInt(q.Get("max_price_tier")); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "max_price_tier must be an integer", nil)
		return
	}

	if verr := validation.ValidateStruct(&query); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, apiErr.Message, apiErr.Details)
		return
	}

	req := recommend.Request{
		UserID:       query.UserID,
		Location:     geo.Point{Lat: query.Lat, Lng: query.Lng},
		RadiusMeters: query.Radius,
		Query:        strings.TrimSpace(q.Get("q")),
		Categories:   splitList(q.Get("categories")),
		AccessNeeds:  splitList(q.Get("access_needs")),
		MaxResults:   query.MaxResults,
		MaxPriceTier: query.MaxPriceTier,
		ForceRefresh: parseBool(q.Get("force_refresh")),
		Explain:      parseBool(q.Get("explain")),
		Weights:      parseWeights(q),
	}

	resp, err := h.orchestrator.Get(r.Context(), req)
	if err != nil {
		respondCoreError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, resp, nil)
}

// Feedback handles POST /api/v1/feedback.
func (h *Handlers) Feedback(w http.ResponseWriter, r *http.Request) {
	var fb feedback.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "malformed JSON body", nil)
		return
	}

	stored, err := h.recorder.Record(r.Context(), fb)
	if err != nil {
		respondCoreError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("user_id", stored.UserID).
		Str("place_id", stored.PlaceID).
		Str("action", string(stored.Action)).
		Msg("feedback recorded")

	respondJSON(w, r, http.StatusCreated, map[string]string{
		"message": "feedback recorded",
		"id":      stored.ID,
	}, nil)
}

// History handles GET /api/v1/recommendations/history.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := parseInt(q.Get("limit"))
	if err != nil || limit < 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "limit must be a non-negative integer", nil)
		return
	}
	offset, err := parseInt(q.Get("offset"))
	if err != nil || offset < 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "offset must be a non-negative integer", nil)
		return
	}

	if limit == 0 {
		limit = h.cfg.DefaultResults
	}
	if limit > h.cfg.MaxResults {
		limit = h.cfg.MaxResults
	}

	history, total := h.store.History(limit, offset)

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"history": history,
	}, &PaginationMeta{
		Total:   total,
		Count:   len(history),
		Offset:  offset,
		Limit:   limit,
		HasMore: offset+len(history) < total,
	})
}

// Analytics handles GET /api/v1/recommendations/analytics.
func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	feedbackStats, err := h.recorder.Stats(r.Context())
	if err != nil {
		respondCoreError(w, r, err)
		return
	}
	profileStats, err := h.recorder.ProfilesSummary(r.Context())
	if err != nil {
		respondCoreError(w, r, err)
		return
	}

	cacheStats := h.store.Stats()
	total, avgExec := h.orchestrator.ExecStats()

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"total_recommendations":     total,
		"caching_efficiency":        cacheStats.HitRate,
		"average_execution_time_ms": float64(avgExec.Microseconds()) / 1000.0,
		"cache":                     cacheStats,
		"feedback_stats":            feedbackStats,
		"profile_stats":             profileStats,
	}, nil)
}

// Health handles GET /api/v1/health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"cache_entries": h.store.Len(),
	}, nil)
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "alive"}, nil)
}

// HealthReady handles GET /api/v1/health/ready.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"}, nil)
}

// Query parsing helpers. Empty values parse to zero, never to an error.

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseWeights reads optional per-request weight overrides. Returns nil
// when no override parameter is present, keeping the server defaults.
func parseWeights(q url.Values) *recommend.Weights {
	get := func(name string) (float64, bool) {
		s := q.Get(name)
		if s == "" {
			return 0, false
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	w := recommend.Weights{}
	set := false
	if v, ok := get("w_category"); ok {
		w.Category = v
		set = true
	}
	if v, ok := get("w_location"); ok {
		w.Location = v
		set = true
	}
	if v, ok := get("w_temporal"); ok {
		w.Temporal = v
		set = true
	}
	if v, ok := get("w_quality"); ok {
		w.Quality = v
		set = true
	}
	if v, ok := get("w_diversity"); ok {
		w.DiversityBoost = v
		set = true
	}

	if !set {
		return nil
	}
	return &w
}
