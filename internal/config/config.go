// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

// Package config loads and validates the Staywatch configuration from
// layered sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration for the Staywatch server.
type Config struct {
	Backend BackendConfig `koanf:"backend"`
	Poll    PollConfig    `koanf:"poll"`
	Notify  NotifyConfig  `koanf:"notify"`
	Store   StoreConfig   `koanf:"store"`
	Server  ServerConfig  `koanf:"server"`
	Auth    AuthConfig    `koanf:"auth"`
	Logging LoggingConfig `koanf:"logging"`
}

// BackendConfig describes the booking REST API the engine polls.
type BackendConfig struct {
	// URL is the base URL of the booking API.
	URL string `koanf:"url"`
	// Token is the bearer token used for admin-scoped endpoints.
	Token string `koanf:"token"`
	// Timeout bounds each fetch. Default: 10s.
	Timeout time.Duration `koanf:"timeout"`
	// RequestsPerSecond rate-limits outgoing fetches so polling never
	// hammers the managed backend. Default: 5.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// PollConfig controls the diff engine's polling loops.
type PollConfig struct {
	// Cadence is the interval between poll ticks. Default: 8s.
	Cadence time.Duration `koanf:"cadence"`
	// RecencyWindow distinguishes genuinely new bookings from
	// session-start backfill for the admin new-booking notification.
	// Default: 2m.
	RecencyWindow time.Duration `koanf:"recency_window"`
}

// NotifyConfig controls inbox and toast bounds.
type NotifyConfig struct {
	// InboxCap is the maximum persisted notifications per identity.
	// Oldest entries are evicted first. Default: 50.
	InboxCap int `koanf:"inbox_cap"`
	// ToastCap is the maximum toasts displayed at once. Default: 4.
	ToastCap int `koanf:"toast_cap"`
	// MinToastDuration is the floor applied to requested toast durations.
	// Default: 1500ms.
	MinToastDuration time.Duration `koanf:"min_toast_duration"`
}

// StoreConfig controls notification persistence.
type StoreConfig struct {
	// Path is the BadgerDB directory. Default: /data/staywatch.
	Path string `koanf:"path"`
	// InMemory switches to a non-persistent store. Default: false.
	InMemory bool `koanf:"in_memory"`
}

// ServerConfig controls the HTTP/WebSocket surface.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
	// CORSOrigins lists allowed origins for browser clients.
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimitReqs/RateLimitWindow bound requests per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// AuthConfig controls the identity signal.
type AuthConfig struct {
	// JWTSecret signs session tokens. Required.
	JWTSecret string `koanf:"jwt_secret"`
	// TokenTTL bounds session token validity. Default: 24h.
	TokenTTL time.Duration `koanf:"token_ttl"`
	// Users lists the accounts allowed to log in. Production deployments
	// source this from the booking backend's account table; a static list
	// keeps the engine self-contained.
	Users []UserConfig `koanf:"users"`
}

// UserConfig is one login account.
type UserConfig struct {
	ID       string `koanf:"id"`
	Username string `koanf:"username"`
	// PasswordHash is a bcrypt hash of the account password.
	PasswordHash string `koanf:"password_hash"`
	Role         string `koanf:"role"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:               "",
			Token:             "",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
		},
		Poll: PollConfig{
			Cadence:       8 * time.Second,
			RecencyWindow: 2 * time.Minute,
		},
		Notify: NotifyConfig{
			InboxCap:         50,
			ToastCap:         4,
			MinToastDuration: 1500 * time.Millisecond,
		},
		Store: StoreConfig{
			Path:     "/data/staywatch",
			InMemory: false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8094,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Auth: AuthConfig{
			JWTSecret: "",
			TokenTTL:  24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for internal consistency. It is called
// by LoadWithKoanf after all sources are merged.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateBackend,
		c.validatePoll,
		c.validateNotify,
		c.validateServer,
		c.validateAuth,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateBackend() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.url %q is not a valid absolute URL", c.Backend.URL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive, got %s", c.Backend.Timeout)
	}
	if c.Backend.RequestsPerSecond <= 0 {
		return fmt.Errorf("backend.requests_per_second must be positive, got %g", c.Backend.RequestsPerSecond)
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.Cadence < time.Second {
		return fmt.Errorf("poll.cadence must be at least 1s, got %s", c.Poll.Cadence)
	}
	if c.Poll.RecencyWindow <= 0 {
		return fmt.Errorf("poll.recency_window must be positive, got %s", c.Poll.RecencyWindow)
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.InboxCap < 1 {
		return fmt.Errorf("notify.inbox_cap must be at least 1, got %d", c.Notify.InboxCap)
	}
	if c.Notify.ToastCap < 1 {
		return fmt.Errorf("notify.toast_cap must be at least 1, got %d", c.Notify.ToastCap)
	}
	if c.Notify.MinToastDuration < 0 {
		return fmt.Errorf("notify.min_toast_duration must not be negative, got %s", c.Notify.MinToastDuration)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes, got %d", len(c.Auth.JWTSecret))
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	seen := make(map[string]struct{}, len(c.Auth.Users))
	for i, u := range c.Auth.Users {
		if u.ID == "" || u.Username == "" || u.PasswordHash == "" {
			return fmt.Errorf("auth.users[%d]: id, username and password_hash are required", i)
		}
		if _, dup := seen[u.Username]; dup {
			return fmt.Errorf("auth.users[%d]: duplicate username %q", i, u.Username)
		}
		seen[u.Username] = struct{}{}
	}
	return nil
}
