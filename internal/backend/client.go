// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

// Package backend is the typed REST client for the booking API. The engine
// consumes three read-only snapshot endpoints: reservations scoped to one
// user, all reservations (admin), and rooms (admin).
//
// The client rate-limits outgoing requests and is usually wrapped in a
// circuit breaker (see breaker.go). Callers in the poll package treat every
// returned error as a silently skipped cycle, so failures here are cheap.
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/staywatch/staywatch/internal/metrics"
	"github.com/staywatch/staywatch/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024

// Config holds booking API client settings.
type Config struct {
	// BaseURL is the booking API root, e.g. https://booking.example.com/api.
	BaseURL string
	// Token is the bearer token for admin-scoped endpoints.
	Token string
	// Timeout bounds each request.
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing requests across all loops.
	RequestsPerSecond float64
}

// Fetcher is the read surface the poll engine needs. Implemented by Client
// and BreakerClient; tests substitute fakes.
type Fetcher interface {
	SelfReservations(ctx context.Context, userID string) ([]models.Reservation, error)
	AllReservations(ctx context.Context) ([]models.Reservation, error)
	Rooms(ctx context.Context) ([]models.Room, error)
}

// Client talks to the booking API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a booking API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		// Burst matches the loop count so one tick of every loop never
		// stalls on the limiter.
		limiter: rate.NewLimiter(rate.Limit(rps), 3),
	}
}

// SelfReservations fetches reservations scoped to one user.
func (c *Client) SelfReservations(ctx context.Context, userID string) ([]models.Reservation, error) {
	var out []models.Reservation
	path := "/users/" + url.PathEscape(userID) + "/reservations"
	if err := c.getJSON(ctx, "self-reservations", path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AllReservations fetches the unfiltered, admin-scoped reservation list.
func (c *Client) AllReservations(ctx context.Context) ([]models.Reservation, error) {
	var out []models.Reservation
	if err := c.getJSON(ctx, "all-reservations", "/reservations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Rooms fetches the admin-scoped room list.
func (c *Client) Rooms(ctx context.Context) ([]models.Room, error) {
	var out []models.Room
	if err := c.getJSON(ctx, "rooms", "/rooms", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON performs a rate-limited GET and decodes the JSON response into v.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(endpoint, "failure").Inc()
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.BackendRequests.WithLabelValues(endpoint, "failure").Inc()
		body := readBodyForError(resp.Body)
		return fmt.Errorf("fetch %s: unexpected status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		metrics.BackendRequests.WithLabelValues(endpoint, "failure").Inc()
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	metrics.BackendRequests.WithLabelValues(endpoint, "success").Inc()
	return nil
}

// readBodyForError reads at most maxErrorBodySize bytes of a response body
// for inclusion in an error message.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}
