// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/staywatch/staywatch/internal/auth"
	"github.com/staywatch/staywatch/internal/logging"
	"github.com/staywatch/staywatch/internal/models"
	"github.com/staywatch/staywatch/internal/notify"
	"github.com/staywatch/staywatch/internal/websocket"
)

// loginRequest is the credential payload for POST /api/v1/auth/login.
type loginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=128"`
	Password string `json:"password" validate:"required,min=1,max=1024"`
}

// loginResponse carries the session token and the identity it encodes.
type loginResponse struct {
	Token    string          `json:"token"`
	Identity models.Identity `json:"identity"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	identity, token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		logging.Error().Err(err).Msg("Login failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	// Logging in replaces the engine's identity: loops restart scoped to
	// this principal and the inbox reloads from its persisted sequence.
	s.engine.SetIdentity(&identity)

	writeJSON(w, http.StatusOK, loginResponse{Token: token, Identity: identity})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if identity, ok := identityFrom(r); ok {
		logging.Info().Str("identity", identity.ID).Msg("Logout, clearing engine identity")
	}
	s.engine.SetIdentity(nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": s.center.Notifications(),
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.center.MarkRead(id) {
		writeError(w, http.StatusNotFound, "unknown notification id")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	s.center.MarkAllRead()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.center.Remove(id) {
		writeError(w, http.StatusNotFound, "unknown notification id")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	s.center.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

// handleWebSocket upgrades the connection and attaches it to the hub. The
// current inbox is pushed immediately so a bell UI renders without waiting
// for the next mutation.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	s.hub.Attach(conn, websocket.Message{
		Type: notify.MsgNotifications,
		Data: s.center.Notifications(),
	})
}

// healthResponse is the GET /healthz payload.
type healthResponse struct {
	Status        string         `json:"status"`
	IdentityBound bool           `json:"identityBound"`
	Loops         map[string]int `json:"loops"`
	Clients       int            `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		IdentityBound: s.engine.Identity() != nil,
		Loops:         s.engine.SnapshotSizes(),
		Clients:       s.hub.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
