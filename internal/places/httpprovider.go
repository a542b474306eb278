// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package places

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/metrics"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

// HTTPProviderConfig configures the place provider client.
type HTTPProviderConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables the limiter
	RateBurst int
}

// HTTPProvider is a JSON client for the external place API. Requests pass
// a client-side politeness limiter; transport failures, non-2xx responses
// and malformed payloads all map to ProviderError.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewHTTPProvider creates an HTTPProvider.
func NewHTTPProvider(cfg HTTPProviderConfig, logger zerolog.Logger) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
	}
}

// providerPlace is the provider's wire format for one place.
type providerPlace struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Types      []string `json:"types"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Rating     float64  `json:"rating"`
	PriceLevel int      `json:"price_level"`
	OpenNow    *bool    `json:"open_now"`
}

// nearbyResponse is the provider's search response envelope.
type nearbyResponse struct {
	Results []providerPlace `json:"results"`
	Status  string          `json:"status"`
}

// Nearby fetches places around pt within radiusMeters.
func (p *HTTPProvider) Nearby(ctx context.Context, pt geo.Point, radiusMeters float64, filters recommend.Filters) ([]recommend.Candidate, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, &recommend.ProviderError{Op: "rate_wait", Err: err}
		}
	}

	start := time.Now()
	body, err := p.doSearch(ctx, pt, radiusMeters, filters)
	if err != nil {
		metrics.RecordProviderRequest("error", time.Since(start))
		return nil, err
	}
	metrics.RecordProviderRequest("success", time.Since(start))

	candidates := make([]recommend.Candidate, 0, len(body.Results))
	for _, place := range body.Results {
		candidates = append(candidates, toCandidate(place))
	}

	p.logger.Debug().
		Int("results", len(candidates)).
		Dur("elapsed", time.Since(start)).
		Msg("provider search completed")

	return candidates, nil
}

func (p *HTTPProvider) doSearch(ctx context.Context, pt geo.Point, radiusMeters float64, filters recommend.Filters) (*nearbyResponse, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(pt.Lat, 'f', 6, 64))
	params.Set("lng", strconv.FormatFloat(pt.Lng, 'f', 6, 64))
	params.Set("radius", strconv.FormatFloat(radiusMeters, 'f', 0, 64))
	if filters.Query != "" {
		params.Set("q", filters.Query)
	}
	if len(filters.Categories) > 0 {
		params.Set("types", strings.Join(filters.Categories, ","))
	}

	endpoint := p.baseURL + "/places/nearby?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &recommend.ProviderError{Op: "build_request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &recommend.ProviderError{Op: "nearby", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &recommend.ProviderError{
			Op:  "nearby",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var body nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &recommend.ProviderError{Op: "decode", Err: err}
	}
	return &body, nil
}

// toCandidate maps a provider place onto the core data model.
func toCandidate(place providerPlace) recommend.Candidate {
	open := recommend.OpenUnknown
	if place.OpenNow != nil {
		if *place.OpenNow {
			open = recommend.OpenNow
		} else {
			open = recommend.ClosedNow
		}
	}

	categories := make([]string, 0, len(place.Types))
	for _, t := range place.Types {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			categories = append(categories, t)
		}
	}

	return recommend.Candidate{
		PlaceID:    NormalizePlaceID(place.ID),
		Name:       place.Name,
		Categories: categories,
		Location:   geo.Point{Lat: place.Lat, Lng: place.Lng},
		Rating:     place.Rating,
		PriceTier:  place.PriceLevel,
		Open:       open,
	}
}

// NormalizePlaceID canonicalizes a place identifier for deduplication.
func NormalizePlaceID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
