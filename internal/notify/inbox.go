// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/staywatch/staywatch/internal/logging"
	"github.com/staywatch/staywatch/internal/metrics"
	"github.com/staywatch/staywatch/internal/models"
	"github.com/staywatch/staywatch/internal/store"
)

const inboxKeyPrefix = "notifications:"

// Inbox is the per-identity notification store: an ordered sequence, newest
// first, capped, with every mutation persisted as the full sequence.
//
// The in-memory state is authoritative. Storage write failures are logged
// and counted but never surfaced to callers; losing persistence degrades
// restart behavior, not the live session.
type Inbox struct {
	mu       sync.Mutex
	cap      int
	kv       store.KV
	identity string
	items    []models.Notification
}

// NewInbox creates an inbox persisting through kv. A nil kv keeps the inbox
// memory-only.
func NewInbox(capacity int, kv store.KV) *Inbox {
	if capacity <= 0 {
		capacity = 50
	}
	return &Inbox{cap: capacity, kv: kv}
}

// Configure scopes the inbox to an identity and loads its persisted
// sequence. An empty identity clears the inbox and disables persistence
// until the next Configure.
func (i *Inbox) Configure(ctx context.Context, identityID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.identity = identityID
	i.items = nil
	if identityID == "" || i.kv == nil {
		metrics.InboxSize.Set(0)
		return
	}

	raw, err := i.kv.Get(ctx, inboxKeyPrefix+identityID)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			logging.Warn().Err(err).Str("identity", identityID).Msg("Failed to load persisted notifications")
		}
		metrics.InboxSize.Set(0)
		return
	}

	var persisted []models.Notification
	if err := json.Unmarshal(raw, &persisted); err != nil {
		logging.Warn().Err(err).Str("identity", identityID).Msg("Discarding unreadable persisted notifications")
		metrics.InboxSize.Set(0)
		return
	}

	for idx := range persisted {
		normalize(&persisted[idx])
	}
	if len(persisted) > i.cap {
		persisted = persisted[:i.cap]
	}
	i.items = persisted
	metrics.InboxSize.Set(float64(len(i.items)))
}

// normalize repairs a persisted entry in place rather than rejecting it.
func normalize(n *models.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if !models.ValidLevel(n.Level) {
		n.Level = models.LevelInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
}

// Add prepends a notification, evicting the oldest entry beyond capacity.
func (i *Inbox) Add(n models.Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()

	normalize(&n)
	i.items = append([]models.Notification{n}, i.items...)
	if len(i.items) > i.cap {
		i.items = i.items[:i.cap]
	}
	i.persist()
}

// MarkRead marks one notification read. Returns false if the id is unknown.
func (i *Inbox) MarkRead(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	for idx := range i.items {
		if i.items[idx].ID == id {
			if !i.items[idx].Read {
				i.items[idx].Read = true
				i.persist()
			}
			return true
		}
	}
	return false
}

// MarkAllRead marks every notification read.
func (i *Inbox) MarkAllRead() {
	i.mu.Lock()
	defer i.mu.Unlock()

	changed := false
	for idx := range i.items {
		if !i.items[idx].Read {
			i.items[idx].Read = true
			changed = true
		}
	}
	if changed {
		i.persist()
	}
}

// Remove deletes one notification. Returns false if the id is unknown.
func (i *Inbox) Remove(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	for idx := range i.items {
		if i.items[idx].ID == id {
			i.items = append(i.items[:idx], i.items[idx+1:]...)
			i.persist()
			return true
		}
	}
	return false
}

// Clear removes every notification.
func (i *Inbox) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.items) == 0 {
		return
	}
	i.items = nil
	i.persist()
}

// List returns a copy of the sequence, newest first.
func (i *Inbox) List() []models.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]models.Notification, len(i.items))
	copy(out, i.items)
	return out
}

// Unread returns the number of unread notifications.
func (i *Inbox) Unread() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	n := 0
	for idx := range i.items {
		if !i.items[idx].Read {
			n++
		}
	}
	return n
}

// persist writes the full sequence for the current identity. Callers hold
// the mutex.
func (i *Inbox) persist() {
	metrics.InboxSize.Set(float64(len(i.items)))
	if i.kv == nil || i.identity == "" {
		return
	}

	raw, err := json.Marshal(i.items)
	if err != nil {
		metrics.StoreWriteFailures.Inc()
		logging.Warn().Err(err).Msg("Failed to encode notifications for persistence")
		return
	}
	// Persistence is best effort with a short deadline so a wedged store
	// cannot stall notification flow.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := i.kv.Set(ctx, inboxKeyPrefix+i.identity, raw); err != nil {
		metrics.StoreWriteFailures.Inc()
		logging.Warn().Err(err).Str("identity", i.identity).Msg("Failed to persist notifications")
	}
}
