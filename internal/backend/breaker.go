// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package backend

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/staywatch/staywatch/internal/logging"
	"github.com/staywatch/staywatch/internal/metrics"
	"github.com/staywatch/staywatch/internal/models"
)

// BreakerClient wraps a Fetcher with a circuit breaker so a down booking
// API stops costing a full timeout per poll cycle. While the breaker is
// open, calls fail immediately and the poll loops skip their cycles.
type BreakerClient struct {
	inner   Fetcher
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerClient wraps inner in a circuit breaker named name.
func NewBreakerClient(name string, inner Fetcher) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}
	return &BreakerClient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// SelfReservations proxies through the breaker.
func (b *BreakerClient) SelfReservations(ctx context.Context, userID string) ([]models.Reservation, error) {
	out, err := b.breaker.Execute(func() (any, error) {
		return b.inner.SelfReservations(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return out.([]models.Reservation), nil
}

// AllReservations proxies through the breaker.
func (b *BreakerClient) AllReservations(ctx context.Context) ([]models.Reservation, error) {
	out, err := b.breaker.Execute(func() (any, error) {
		return b.inner.AllReservations(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]models.Reservation), nil
}

// Rooms proxies through the breaker.
func (b *BreakerClient) Rooms(ctx context.Context) ([]models.Room, error) {
	out, err := b.breaker.Execute(func() (any, error) {
		return b.inner.Rooms(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]models.Room), nil
}

// State reports the breaker state for health reporting.
func (b *BreakerClient) State() gobreaker.State {
	return b.breaker.State()
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
