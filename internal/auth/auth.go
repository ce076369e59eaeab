// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

// Package auth issues and verifies the session tokens that drive the
// identity signal. Credentials are checked against bcrypt hashes from
// configuration; sessions are stateless HS256 JWTs carrying the identity
// id and role.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/staywatch/staywatch/internal/config"
	"github.com/staywatch/staywatch/internal/models"
)

// ErrInvalidCredentials is returned for unknown users and wrong passwords
// alike, so responses never reveal which part failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken is returned for tokens that fail verification for any
// reason. Callers treat it as "identity absent", never as a hard fault.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the session token claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies credentials and manages session tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	users  map[string]config.UserConfig
}

// New creates an authenticator from the auth configuration.
func New(cfg config.AuthConfig) *Authenticator {
	users := make(map[string]config.UserConfig, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Username] = u
	}
	return &Authenticator{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		users:  users,
	}
}

// Login verifies a username/password pair and returns the identity plus a
// signed session token.
func (a *Authenticator) Login(username, password string) (models.Identity, string, error) {
	u, ok := a.users[username]
	if !ok {
		// Burn a comparison anyway so unknown users cost the same as
		// wrong passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000uGZLKjc1vQtTlT8FiXVZyr3u6PKKiEpW"), []byte(password))
		return models.Identity{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return models.Identity{}, "", ErrInvalidCredentials
	}

	identity := models.Identity{ID: u.ID, Role: u.Role}
	token, err := a.issue(identity)
	if err != nil {
		return models.Identity{}, "", fmt.Errorf("issue token: %w", err)
	}
	return identity, token, nil
}

// issue signs a session token for identity.
func (a *Authenticator) issue(identity models.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses a session token and returns the identity it carries.
func (a *Authenticator) Verify(token string) (models.Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return models.Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return models.Identity{}, ErrInvalidToken
	}
	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	return models.Identity{ID: claims.Subject, Role: role}, nil
}
