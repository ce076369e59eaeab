// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

// Package models defines the shared data types for the Staywatch engine:
// booking API records, identities, diff events, notifications and toasts.
package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Reservation statuses as reported by the booking API.
// Status comparison in the diff engine is plain string comparison, so unknown
// statuses flow through untouched and classify as info-level transitions.
const (
	StatusPending   = "Pending"
	StatusApproved  = "Approved"
	StatusRejected  = "Rejected"
	StatusCancelled = "Cancelled"
)

// RoleUser is the base role. Any other role is treated as elevated and
// receives the admin-scoped polling loops. The check is deliberately coarse:
// only two polling tiers exist, and a briefly missing admin loop self-heals
// within one cadence window after the next identity refresh.
const RoleUser = "User"

// Identity is the authenticated principal driving a poll session.
type Identity struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Elevated reports whether the identity should receive admin-scoped loops.
func (i Identity) Elevated() bool {
	return i.Role != RoleUser
}

// Reservation is a booking record as returned by the booking API.
type Reservation struct {
	ID          int       `json:"id"`
	Status      string    `json:"status"`
	BookingCode string    `json:"bookingCode,omitempty"`
	GuestName   string    `json:"guestName,omitempty"`
	RoomID      int       `json:"roomId,omitempty"`
	CheckIn     string    `json:"checkIn,omitempty"`
	CheckOut    string    `json:"checkOut,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// Reference returns the stable booking reference used in notification
// messages: the explicit booking code when present, otherwise the numeric
// id zero-padded to 4 digits.
func (r Reservation) Reference() string {
	if r.BookingCode != "" {
		return r.BookingCode
	}
	return fmt.Sprintf("%04d", r.ID)
}

// Room is a room record as returned by the booking API.
type Room struct {
	ID        int       `json:"id"`
	Status    string    `json:"status"`
	Name      string    `json:"name,omitempty"`
	Capacity  int       `json:"capacity,omitempty"`
	Price     float64   `json:"pricePerNight,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// CollectionKind identifies which polled collection a record came from.
type CollectionKind string

const (
	KindReservations CollectionKind = "reservations"
	KindRooms        CollectionKind = "rooms"
)

// Record is the normalized view of a polled entity that the diff engine
// operates on. The engine only ever reads the id, the status and the
// creation timestamp; the raw payload is carried through opaquely for
// downstream consumers.
type Record struct {
	ID        int             `json:"id"`
	Status    string          `json:"status"`
	HasStatus bool            `json:"hasStatus"`
	CreatedAt time.Time       `json:"createdAt"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// DiffEvent is a detected transition (or first appearance) of an entity's
// status between two poll cycles. Emitted at most once per poll cycle per id
// and never persisted by the engine itself.
type DiffEvent struct {
	EntityID int            `json:"entityId"`
	Kind     CollectionKind `json:"kind"`
	// Loop names the polling loop that produced the event
	// (self-reservations, all-reservations, rooms).
	Loop string `json:"loop"`
	// Epoch identifies the poll session that produced the event. It
	// advances on every identity change; consumers drop events stamped
	// with a superseded epoch so a diff buffered from the previous
	// identity can never classify against the new one.
	Epoch uint64 `json:"epoch"`
	// FirstSeen is true when the entity had no prior snapshot this session.
	// Previous is empty in that case.
	FirstSeen bool   `json:"firstSeen"`
	Previous  string `json:"previous,omitempty"`
	New       string `json:"new"`
	Record    Record `json:"record"`
}

// Level classifies a notification for display.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// ValidLevel reports whether l is one of the known notification levels.
func ValidLevel(l Level) bool {
	switch l {
	case LevelInfo, LevelSuccess, LevelWarning, LevelError:
		return true
	}
	return false
}

// Notification is a persisted inbox entry. Mutated only through read-state
// transitions and removal; scoped to one identity's ordered sequence.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Toast is an ephemeral display entry. Destroyed automatically after its
// duration elapses or when the display queue evicts it; never persisted.
type Toast struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Level      Level  `json:"level"`
	DurationMS int64  `json:"durationMs"`
}
