// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

// Command server runs the Staywatch engine: booking API polling, diff
// classification, the notification surfaces, and the HTTP/WebSocket API,
// all under a suture supervisor tree.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/staywatch/staywatch/internal/api"
	"github.com/staywatch/staywatch/internal/auth"
	"github.com/staywatch/staywatch/internal/backend"
	"github.com/staywatch/staywatch/internal/bus"
	"github.com/staywatch/staywatch/internal/config"
	"github.com/staywatch/staywatch/internal/logging"
	"github.com/staywatch/staywatch/internal/notify"
	"github.com/staywatch/staywatch/internal/poll"
	"github.com/staywatch/staywatch/internal/store"
	"github.com/staywatch/staywatch/internal/supervisor"
	"github.com/staywatch/staywatch/internal/websocket"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("backend_url", cfg.Backend.URL).
		Dur("cadence", cfg.Poll.Cadence).
		Int("inbox_cap", cfg.Notify.InboxCap).
		Msg("Starting Staywatch")

	// Notification persistence: BadgerDB on disk, or memory for
	// ephemeral deployments.
	var kv store.KV
	if cfg.Store.InMemory {
		kv = store.NewMemory()
		logging.Info().Msg("Using in-memory notification store")
	} else {
		badgerKV, err := store.OpenBadger(cfg.Store.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open notification store")
		}
		kv = badgerKV
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing notification store")
		}
	}()

	// In-process event bus carrying diff events.
	events := bus.New(bus.NewLoggerAdapter())
	defer func() {
		if err := events.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	// Booking API client behind a rate limiter and a circuit breaker.
	client := backend.NewClient(backend.Config{
		BaseURL:           cfg.Backend.URL,
		Token:             cfg.Backend.Token,
		Timeout:           cfg.Backend.Timeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
	})
	fetcher := backend.NewBreakerClient("booking-api", client)

	hub := websocket.NewHub()
	center := notify.NewCenter(events, hub,
		notify.NewClassifier(cfg.Poll.RecencyWindow),
		notify.NewInbox(cfg.Notify.InboxCap, kv),
		notify.NewToastQueue(cfg.Notify.ToastCap, cfg.Notify.MinToastDuration),
	)

	engine := poll.NewEngine(fetcher, events, cfg.Poll.Cadence)
	// Identity changes reset the classifier and reload the inbox after
	// loop teardown, so stale diffs can never classify against the new
	// identity's state.
	engine.OnIdentityChange(center.SetIdentity)

	authn := auth.New(cfg.Auth)
	server := api.NewServer(cfg.Server, authn, center, engine, hub)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(hub)
	tree.AddMessagingService(center)
	tree.AddMessagingService(engine)
	tree.AddAPIService(supervisor.NewHTTPService(
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		server.Router(),
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	err = <-tree.ServeBackground(ctx)
	if err != nil && err != context.Canceled {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
		if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
			for _, svc := range report {
				logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
			}
		}
		os.Exit(1)
	}
	logging.Info().Msg("Staywatch stopped")
}
