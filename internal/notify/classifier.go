// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

// Package notify turns raw diff events into user-facing notifications: a
// classifier that decides what deserves attention, a capped persisted inbox,
// and an ephemeral toast queue. The Center wires the three together and
// exposes the imperative notification API.
package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/staywatch/staywatch/internal/metrics"
	"github.com/staywatch/staywatch/internal/models"
)

// Suppression reasons, used as metric labels.
const (
	suppressFirstSeen     = "first_seen"
	suppressUnchanged     = "unchanged"
	suppressStaleBackfill = "stale_backfill"
)

// Links attached to notifications.
const (
	LinkAdmin        = "/admin"
	LinkReservations = "/reservations"
)

// Draft is a classified notification before it is routed to the toast queue
// and the inbox.
type Draft struct {
	Title   string
	Message string
	Level   models.Level
	Link    string
}

// Classifier decides whether a reservation diff event becomes a
// notification. It keeps the last classified status per entity so the same
// transition observed by two loops (self and all-reservations) notifies
// only once.
type Classifier struct {
	mu         sync.Mutex
	lastStatus map[int]string
	elevated   bool
	recency    time.Duration
}

// NewClassifier creates a classifier. recency bounds how old a first-seen
// pending booking may be and still count as a fresh arrival for elevated
// viewers.
func NewClassifier(recency time.Duration) *Classifier {
	return &Classifier{
		lastStatus: make(map[int]string),
		recency:    recency,
	}
}

// Reset clears the per-identity state and records whether the new identity
// is elevated. Called on every identity change.
func (c *Classifier) Reset(elevated bool) {
	c.mu.Lock()
	c.lastStatus = make(map[int]string)
	c.elevated = elevated
	c.mu.Unlock()
}

// Classify applies the notification rules to a reservation diff event.
// It returns nil when the event is suppressed. The last-status entry is
// updated regardless of the outcome.
func (c *Classifier) Classify(ev models.DiffEvent, now time.Time) *Draft {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, known := c.lastStatus[ev.EntityID]
	c.lastStatus[ev.EntityID] = ev.New

	if ev.FirstSeen {
		if c.elevated && ev.New == models.StatusPending {
			// Clock skew can put createdAt slightly in the future; only
			// genuinely old backfill is filtered.
			if now.Sub(ev.Record.CreatedAt) <= c.recency {
				return &Draft{
					Title:   "New booking",
					Message: fmt.Sprintf("Booking %s is awaiting review", reference(ev.Record)),
					Level:   models.LevelInfo,
					Link:    LinkAdmin,
				}
			}
			c.suppress(suppressStaleBackfill)
			return nil
		}
		c.suppress(suppressFirstSeen)
		return nil
	}

	if known && last == ev.New {
		c.suppress(suppressUnchanged)
		return nil
	}

	link := LinkReservations
	if c.elevated {
		link = LinkAdmin
	}
	return &Draft{
		Title:   "Reservation " + strings.ToLower(ev.New),
		Message: fmt.Sprintf("Booking %s is now %s", reference(ev.Record), ev.New),
		Level:   levelFor(ev.New),
		Link:    link,
	}
}

func (c *Classifier) suppress(reason string) {
	metrics.NotificationsSuppressed.WithLabelValues(reason).Inc()
}

// levelFor maps a reservation status to a notification level.
func levelFor(status string) models.Level {
	switch status {
	case models.StatusApproved:
		return models.LevelSuccess
	case models.StatusRejected:
		return models.LevelError
	case models.StatusCancelled:
		return models.LevelWarning
	default:
		return models.LevelInfo
	}
}

// reference extracts the booking reference from a record by decoding the
// raw payload. A malformed payload falls back to the record id alone.
func reference(rec models.Record) string {
	var r models.Reservation
	if len(rec.Raw) > 0 {
		if err := json.Unmarshal(rec.Raw, &r); err != nil {
			r = models.Reservation{}
		}
	}
	if r.ID == 0 {
		r.ID = rec.ID
	}
	return r.Reference()
}
