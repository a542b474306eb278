// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package places

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
	"github.com/TudorG03/accessmate-sub003/internal/metrics"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

// BreakerConfig configures the provider circuit breaker.
type BreakerConfig struct {
	// ConsecutiveFailures before the circuit opens.
	ConsecutiveFailures uint32

	// Timeout is the open-state duration before a probe is allowed.
	Timeout time.Duration
}

// BreakerProvider wraps a Provider with a circuit breaker so a failing
// place API sheds load fast instead of queueing timeouts. An open circuit
// maps to ProviderError, which lets the orchestrator take the stale-serve
// path.
//
// The breaker uses real time for its recovery timing; tests exercise the
// wrapped provider directly.
type BreakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker[[]recommend.Candidate]
}

// NewBreakerProvider wraps inner with a circuit breaker.
func NewBreakerProvider(inner Provider, cfg BreakerConfig, logger zerolog.Logger) *BreakerProvider {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	metrics.ProviderBreakerState.Set(0)

	cb := gobreaker.NewCircuitBreaker[[]recommend.Candidate](gobreaker.Settings{
		Name:        "place-provider",
		MaxRequests: 3, // probes allowed in half-open state
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit breaker state change")
			metrics.ProviderBreakerState.Set(stateToFloat(to))
		},
	})

	return &BreakerProvider{inner: inner, cb: cb}
}

// Nearby executes the wrapped provider call through the breaker.
func (b *BreakerProvider) Nearby(ctx context.Context, pt geo.Point, radiusMeters float64, filters recommend.Filters) ([]recommend.Candidate, error) {
	candidates, err := b.cb.Execute(func() ([]recommend.Candidate, error) {
		return b.inner.Nearby(ctx, pt, radiusMeters, filters)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &recommend.ProviderError{Op: "breaker", Err: err}
		}
		return nil, err
	}
	return candidates, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
