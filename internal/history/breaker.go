// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/metrics"
	"github.com/dankeller/lanewise/internal/models"
)

const breakerName = "history-backend"

// BreakerClient wraps Client with the circuit breaker pattern so a dead or
// struggling history backend cannot stall refresh cycles: once the circuit
// opens, calls fail fast and the pipeline degrades to cached results and
// fallback generation instead of queueing on timeouts.
//
// DETERMINISM NOTE: the breaker uses real time (via sony/gobreaker) for its
// interval and timeout calculations. The timing decides when to probe for
// recovery, not data integrity; unit tests should exercise the wrapped
// Client directly or drive the breaker with immediate failures.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewBreakerClient creates a history backend client with circuit breaker
// protection.
//
// Circuit breaker configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
func NewBreakerClient(cfg *config.HistoryConfig) *BreakerClient {
	client := NewClient(cfg)

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false // too few requests for a meaningful failure rate
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Str("breaker", breakerName).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		name:   breakerName,
	}
}

// execute wraps a backend call with circuit breaker protection. Rejections
// from an open circuit surface as transient failures so callers only deal
// with the pipeline's error taxonomy.
func (b *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Err(err).Str("breaker", b.name).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, fmt.Errorf("history backend circuit open: %w: %v", models.ErrTransientIO, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// castSlice safely type-casts the circuit breaker result with error
// checking.
func castSlice[T any](result interface{}, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.([]T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat converts circuit breaker state to a numeric value for metrics.
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

// stateToString converts circuit breaker state to a string for logging.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// State reports the breaker's current state for readiness checks.
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}

// Ping verifies connectivity with circuit breaker protection.
func (b *BreakerClient) Ping(ctx context.Context) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.client.Ping(ctx)
	})
	return err
}

// FetchHistory retrieves watch history with circuit breaker protection.
func (b *BreakerClient) FetchHistory(ctx context.Context, profileID string, contentType models.ContentType, limit int) ([]models.HistoryItem, error) {
	return castSlice[models.HistoryItem](b.execute(func() (interface{}, error) {
		return b.client.FetchHistory(ctx, profileID, contentType, limit)
	}))
}

// FetchListings retrieves a listing pool with circuit breaker protection.
func (b *BreakerClient) FetchListings(ctx context.Context, category string, contentType models.ContentType) ([]models.Candidate, error) {
	return castSlice[models.Candidate](b.execute(func() (interface{}, error) {
		return b.client.FetchListings(ctx, category, contentType)
	}))
}

// FetchListingsFiltered retrieves a filtered listing pool with circuit
// breaker protection.
func (b *BreakerClient) FetchListingsFiltered(ctx context.Context, category string, contentType models.ContentType, genres []string, total int) ([]models.Candidate, error) {
	return castSlice[models.Candidate](b.execute(func() (interface{}, error) {
		return b.client.FetchListingsFiltered(ctx, category, contentType, genres, total)
	}))
}

// FetchRelated retrieves related titles with circuit breaker protection.
func (b *BreakerClient) FetchRelated(ctx context.Context, contentType models.ContentType, traktID int64, limit int) ([]models.Candidate, error) {
	return castSlice[models.Candidate](b.execute(func() (interface{}, error) {
		return b.client.FetchRelated(ctx, contentType, traktID, limit)
	}))
}

// FetchCast retrieves a title's cast with circuit breaker protection.
func (b *BreakerClient) FetchCast(ctx context.Context, contentType models.ContentType, traktID int64) ([]CastMember, error) {
	return castSlice[CastMember](b.execute(func() (interface{}, error) {
		return b.client.FetchCast(ctx, contentType, traktID)
	}))
}

// FetchPersonCredits retrieves an actor's filmography with circuit breaker
// protection.
func (b *BreakerClient) FetchPersonCredits(ctx context.Context, personID int64, contentType models.ContentType) ([]models.Candidate, error) {
	return castSlice[models.Candidate](b.execute(func() (interface{}, error) {
		return b.client.FetchPersonCredits(ctx, personID, contentType)
	}))
}
