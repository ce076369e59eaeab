// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staywatch/staywatch/internal/metrics"
	"github.com/staywatch/staywatch/internal/models"
)

// ToastQueue holds the ephemeral display entries: newest first, capped,
// each dismissed automatically by its own timer. Nothing here is ever
// persisted.
type ToastQueue struct {
	mu          sync.Mutex
	cap         int
	minDuration time.Duration
	items       []models.Toast
	timers      map[string]*time.Timer
	onDismiss   func(id string)
}

// NewToastQueue creates a toast queue. minDuration is the floor applied to
// every requested display duration.
func NewToastQueue(capacity int, minDuration time.Duration) *ToastQueue {
	if capacity <= 0 {
		capacity = 4
	}
	if minDuration <= 0 {
		minDuration = 1500 * time.Millisecond
	}
	return &ToastQueue{
		cap:         capacity,
		minDuration: minDuration,
		timers:      make(map[string]*time.Timer),
	}
}

// OnDismiss registers a callback fired after a toast leaves the queue,
// whether by timer, manual dismissal or eviction. Must be set before the
// queue is used.
func (q *ToastQueue) OnDismiss(fn func(id string)) {
	q.onDismiss = fn
}

// Push adds a toast, evicting the oldest entry beyond capacity, and arms
// its auto-dismiss timer. The toast id is assigned if empty; the effective
// duration is returned through the stored entry.
func (q *ToastQueue) Push(t models.Toast) models.Toast {
	q.mu.Lock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	duration := time.Duration(t.DurationMS) * time.Millisecond
	if duration < q.minDuration {
		duration = q.minDuration
	}
	t.DurationMS = duration.Milliseconds()

	q.items = append([]models.Toast{t}, q.items...)
	var evicted []string
	for len(q.items) > q.cap {
		last := q.items[len(q.items)-1]
		q.items = q.items[:len(q.items)-1]
		q.stopTimer(last.ID)
		evicted = append(evicted, last.ID)
		metrics.ToastEvictions.Inc()
	}

	id := t.ID
	q.timers[id] = time.AfterFunc(duration, func() {
		q.Dismiss(id)
	})
	q.mu.Unlock()

	for _, ev := range evicted {
		q.notifyDismiss(ev)
	}
	return t
}

// Dismiss removes a toast by id. Unknown ids are ignored, so a timer firing
// after a manual dismissal is harmless.
func (q *ToastQueue) Dismiss(id string) {
	q.mu.Lock()
	found := false
	for idx := range q.items {
		if q.items[idx].ID == id {
			q.items = append(q.items[:idx], q.items[idx+1:]...)
			found = true
			break
		}
	}
	q.stopTimer(id)
	q.mu.Unlock()

	if found {
		q.notifyDismiss(id)
	}
}

// Clear drops every toast and stops all timers.
func (q *ToastQueue) Clear() {
	q.mu.Lock()
	ids := make([]string, len(q.items))
	for idx, t := range q.items {
		ids[idx] = t.ID
	}
	q.items = nil
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()

	for _, id := range ids {
		q.notifyDismiss(id)
	}
}

// List returns a copy of the queue, newest first.
func (q *ToastQueue) List() []models.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.Toast, len(q.items))
	copy(out, q.items)
	return out
}

// stopTimer stops and forgets a toast's timer. Callers hold the mutex.
func (q *ToastQueue) stopTimer(id string) {
	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}
}

func (q *ToastQueue) notifyDismiss(id string) {
	if q.onDismiss != nil {
		q.onDismiss(id)
	}
}
