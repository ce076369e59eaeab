// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

// Package api exposes the engine over HTTP: the identity endpoints that
// drive the poll session, the inbox surface, the WebSocket attach point,
// and operational endpoints (health, metrics).
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/staywatch/staywatch/internal/auth"
	"github.com/staywatch/staywatch/internal/config"
	"github.com/staywatch/staywatch/internal/notify"
	"github.com/staywatch/staywatch/internal/poll"
	"github.com/staywatch/staywatch/internal/websocket"
)

// Server holds the handler dependencies and builds the router.
type Server struct {
	cfg      config.ServerConfig
	auth     *auth.Authenticator
	center   *notify.Center
	engine   *poll.Engine
	hub      *websocket.Hub
	validate *validator.Validate
	upgrader gorillaws.Upgrader
}

// NewServer wires the HTTP surface.
func NewServer(cfg config.ServerConfig, authn *auth.Authenticator, center *notify.Center, engine *poll.Engine, hub *websocket.Hub) *Server {
	return &Server{
		cfg:      cfg,
		auth:     authn,
		center:   center,
		engine:   engine,
		hub:      hub,
		validate: validator.New(),
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.CORSOrigins),
		},
	}
}

// Router assembles the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1/auth", func(r chi.Router) {
		// Tight limit on credential checks, independent of the general
		// API rate limit.
		r.With(httprate.LimitByIP(10, time.Minute)).Post("/login", s.handleLogin)
		r.With(s.requireIdentity).Post("/logout", s.handleLogout)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))
		r.Use(s.requireIdentity)

		r.Get("/ws", s.handleWebSocket)
		r.Get("/notifications", s.handleListNotifications)
		r.Post("/notifications/read-all", s.handleMarkAllRead)
		r.Post("/notifications/{id}/read", s.handleMarkRead)
		r.Delete("/notifications/{id}", s.handleRemoveNotification)
		r.Delete("/notifications", s.handleClearNotifications)
	})

	return r
}

// originChecker builds the WebSocket origin check from the CORS list. A
// wildcard entry admits any origin.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		if wildcard {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return allowed[origin]
	}
}
