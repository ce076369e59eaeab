// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/staywatch/staywatch/internal/bus"
	"github.com/staywatch/staywatch/internal/logging"
	"github.com/staywatch/staywatch/internal/metrics"
	"github.com/staywatch/staywatch/internal/models"
)

// Broadcast message types pushed to attached clients.
const (
	MsgReservationDiff = "reservation_diff"
	MsgRoomDiff        = "room_diff"
	MsgNotifications   = "notifications"
	MsgToast           = "toast"
	MsgToastDismiss    = "toast_dismiss"
)

// Broadcaster pushes typed messages to every attached client. Implemented
// by the WebSocket hub; tests substitute a recorder.
type Broadcaster interface {
	Broadcast(msgType string, data any)
}

// Options tunes a single imperative notification.
type Options struct {
	// Persist controls whether the notification enters the inbox in
	// addition to the toast queue. Defaults to true for classified events.
	Persist bool
	Link    string
	// Duration requests a toast display time; the queue floor still
	// applies.
	Duration time.Duration
}

// Center consumes diff events, classifies them, and fans the results out:
// toasts and inbox entries for notifications, plus raw diff re-broadcasts
// for display consumers. It also carries the imperative notification API
// used by HTTP handlers.
//
// Center implements suture.Service via Serve.
type Center struct {
	events     *bus.Bus
	broadcast  Broadcaster
	classifier *Classifier
	inbox      *Inbox
	toasts     *ToastQueue
	// epoch mirrors the poll session number of the current identity.
	// Diff events stamped with an older epoch were published by a
	// superseded identity's loops and are dropped unclassified.
	epoch atomic.Uint64
}

// NewCenter wires a center. The toast queue's dismiss callback is claimed
// here so dismissals reach attached clients.
func NewCenter(events *bus.Bus, broadcast Broadcaster, classifier *Classifier, inbox *Inbox, toasts *ToastQueue) *Center {
	c := &Center{
		events:     events,
		broadcast:  broadcast,
		classifier: classifier,
		inbox:      inbox,
		toasts:     toasts,
	}
	toasts.OnDismiss(func(id string) {
		c.broadcast.Broadcast(MsgToastDismiss, map[string]string{"id": id})
	})
	return c
}

// SetIdentity resets per-identity state for a new identity (or logout) and
// pushes the freshly loaded inbox to attached clients. Wire this as an
// engine identity listener so it runs after loop teardown. The epoch fences
// the diff stream: events still buffered from the previous session carry an
// older stamp and are discarded on arrival.
func (c *Center) SetIdentity(identity *models.Identity, epoch uint64) {
	c.epoch.Store(epoch)
	c.toasts.Clear()
	if identity == nil {
		c.classifier.Reset(false)
		c.inbox.Configure(context.Background(), "")
	} else {
		c.classifier.Reset(identity.Elevated())
		c.inbox.Configure(context.Background(), identity.ID)
	}
	c.broadcast.Broadcast(MsgNotifications, c.inbox.List())
}

// Serve consumes both diff topics until ctx is canceled.
func (c *Center) Serve(ctx context.Context) error {
	reservations, err := c.events.Subscribe(ctx, bus.TopicReservationDiffs)
	if err != nil {
		return err
	}
	rooms, err := c.events.Subscribe(ctx, bus.TopicRoomDiffs)
	if err != nil {
		return err
	}

	logging.Info().Msg("Notification center started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Notification center stopping")
			return ctx.Err()
		case msg, ok := <-reservations:
			if !ok {
				return nil
			}
			c.handleReservationDiff(msg)
		case msg, ok := <-rooms:
			if !ok {
				return nil
			}
			c.handleRoomDiff(msg)
		}
	}
}

// handleReservationDiff re-broadcasts the diff and runs it through the
// classifier.
func (c *Center) handleReservationDiff(msg *message.Message) {
	defer msg.Ack()

	ev, err := bus.DecodeDiff(msg)
	if err != nil {
		logging.Error().Err(err).Msg("Dropping undecodable reservation diff")
		return
	}
	if c.stale(ev) {
		return
	}
	c.broadcast.Broadcast(MsgReservationDiff, ev)

	draft := c.classifier.Classify(ev, time.Now())
	if draft == nil {
		return
	}
	c.Notify(draft.Level, draft.Title, draft.Message, Options{
		Persist: true,
		Link:    draft.Link,
	})
}

// handleRoomDiff re-broadcasts room updates. Room changes refresh display
// state only and never become notifications.
func (c *Center) handleRoomDiff(msg *message.Message) {
	defer msg.Ack()

	ev, err := bus.DecodeDiff(msg)
	if err != nil {
		logging.Error().Err(err).Msg("Dropping undecodable room diff")
		return
	}
	if c.stale(ev) {
		return
	}
	c.broadcast.Broadcast(MsgRoomDiff, ev)
}

// stale reports whether the event was published by a superseded poll
// session. Loop teardown cannot recall events already sitting in the
// subscription buffer, so the epoch stamp is checked on consumption.
func (c *Center) stale(ev models.DiffEvent) bool {
	if ev.Epoch == c.epoch.Load() {
		return false
	}
	metrics.StaleDiffEvents.Inc()
	logging.Debug().
		Int("entity_id", ev.EntityID).
		Uint64("event_epoch", ev.Epoch).
		Uint64("current_epoch", c.epoch.Load()).
		Msg("Dropping diff event from superseded poll session")
	return true
}

// Notify creates a notification imperatively: a toast always, an inbox
// entry when opts.Persist is set.
func (c *Center) Notify(level models.Level, title, message string, opts Options) {
	if !models.ValidLevel(level) {
		level = models.LevelInfo
	}
	metrics.NotificationsCreated.WithLabelValues(string(level)).Inc()

	toast := c.toasts.Push(models.Toast{
		Title:      title,
		Message:    message,
		Level:      level,
		DurationMS: opts.Duration.Milliseconds(),
	})
	c.broadcast.Broadcast(MsgToast, toast)

	if opts.Persist {
		c.inbox.Add(models.Notification{
			Title:     title,
			Message:   message,
			Level:     level,
			Link:      opts.Link,
			CreatedAt: time.Now(),
		})
		c.broadcast.Broadcast(MsgNotifications, c.inbox.List())
	}
}

// Notifications returns the current inbox contents, newest first.
func (c *Center) Notifications() []models.Notification {
	return c.inbox.List()
}

// Toasts returns the current toast queue, newest first.
func (c *Center) Toasts() []models.Toast {
	return c.toasts.List()
}

// MarkRead marks one inbox entry read and pushes the updated list.
func (c *Center) MarkRead(id string) bool {
	ok := c.inbox.MarkRead(id)
	if ok {
		c.broadcast.Broadcast(MsgNotifications, c.inbox.List())
	}
	return ok
}

// MarkAllRead marks the whole inbox read and pushes the updated list.
func (c *Center) MarkAllRead() {
	c.inbox.MarkAllRead()
	c.broadcast.Broadcast(MsgNotifications, c.inbox.List())
}

// Remove deletes one inbox entry and pushes the updated list.
func (c *Center) Remove(id string) bool {
	ok := c.inbox.Remove(id)
	if ok {
		c.broadcast.Broadcast(MsgNotifications, c.inbox.List())
	}
	return ok
}

// ClearAll empties the inbox and pushes the updated list.
func (c *Center) ClearAll() {
	c.inbox.Clear()
	c.broadcast.Broadcast(MsgNotifications, c.inbox.List())
}

// DismissToast removes one toast before its timer fires.
func (c *Center) DismissToast(id string) {
	c.toasts.Dismiss(id)
}
