// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/staywatch/staywatch/internal/bus"
	"github.com/staywatch/staywatch/internal/models"
	"github.com/staywatch/staywatch/internal/store"
)

// recordingBroadcaster captures every broadcast for assertions.
type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []broadcastMsg
}

type broadcastMsg struct {
	msgType string
	data    any
}

func (r *recordingBroadcaster) Broadcast(msgType string, data any) {
	r.mu.Lock()
	r.msgs = append(r.msgs, broadcastMsg{msgType, data})
	r.mu.Unlock()
}

func (r *recordingBroadcaster) byType(msgType string) []broadcastMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []broadcastMsg
	for _, m := range r.msgs {
		if m.msgType == msgType {
			out = append(out, m)
		}
	}
	return out
}

func newTestCenter(t *testing.T) (*Center, *bus.Bus, *recordingBroadcaster) {
	t.Helper()
	b := bus.New(nil)
	t.Cleanup(func() { _ = b.Close() })

	rec := &recordingBroadcaster{}
	center := NewCenter(b, rec,
		NewClassifier(2*time.Minute),
		NewInbox(50, store.NewMemory()),
		NewToastQueue(4, 10*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = center.Serve(ctx) }()
	// Give the subscriptions a moment to attach before tests publish.
	time.Sleep(50 * time.Millisecond)
	return center, b, rec
}

func waitCond(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func publishReservation(t *testing.T, b *bus.Bus, id int, prev, next string, firstSeen bool, createdAt time.Time, epoch uint64) {
	t.Helper()
	r := models.Reservation{ID: id, Status: next, CreatedAt: createdAt}
	raw, _ := json.Marshal(r)
	err := b.PublishDiff(bus.TopicReservationDiffs, models.DiffEvent{
		EntityID:  id,
		Kind:      models.KindReservations,
		Loop:      "self-reservations",
		Epoch:     epoch,
		FirstSeen: firstSeen,
		Previous:  prev,
		New:       next,
		Record:    models.Record{ID: id, Status: next, HasStatus: true, CreatedAt: createdAt, Raw: raw},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestCenterTransitionCreatesToastAndInboxEntry(t *testing.T) {
	t.Parallel()

	center, b, rec := newTestCenter(t)
	center.SetIdentity(&models.Identity{ID: "u1", Role: models.RoleUser}, 1)

	now := time.Now()
	publishReservation(t, b, 7, "", models.StatusPending, true, now, 1)
	publishReservation(t, b, 7, models.StatusPending, models.StatusApproved, false, now, 1)

	if !waitCond(t, 2*time.Second, func() bool {
		return len(center.Notifications()) == 1
	}) {
		t.Fatalf("inbox = %+v, want exactly one entry", center.Notifications())
	}

	n := center.Notifications()[0]
	if n.Level != models.LevelSuccess {
		t.Errorf("level = %s, want success", n.Level)
	}
	if n.Message != "Booking 0007 is now Approved" {
		t.Errorf("message = %q, want zero-padded reference", n.Message)
	}
	if len(rec.byType(MsgToast)) != 1 {
		t.Errorf("toast broadcasts = %d, want 1", len(rec.byType(MsgToast)))
	}
	// The first-seen event is suppressed but still re-broadcast as a diff.
	if got := len(rec.byType(MsgReservationDiff)); got != 2 {
		t.Errorf("diff broadcasts = %d, want 2", got)
	}
}

func TestCenterRoomDiffsNeverNotify(t *testing.T) {
	t.Parallel()

	center, b, rec := newTestCenter(t)
	center.SetIdentity(&models.Identity{ID: "m1", Role: "Manager"}, 1)

	err := b.PublishDiff(bus.TopicRoomDiffs, models.DiffEvent{
		EntityID: 101,
		Kind:     models.KindRooms,
		Loop:     "rooms",
		Epoch:    1,
		Previous: "Available",
		New:      "Maintenance",
		Record:   models.Record{ID: 101, Status: "Maintenance", HasStatus: true},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if !waitCond(t, 2*time.Second, func() bool {
		return len(rec.byType(MsgRoomDiff)) == 1
	}) {
		t.Fatal("room diff never re-broadcast")
	}
	if got := center.Notifications(); len(got) != 0 {
		t.Errorf("room diff created notifications: %+v", got)
	}
	if got := center.Toasts(); len(got) != 0 {
		t.Errorf("room diff created toasts: %+v", got)
	}
}

func TestCenterIdentityChangeResetsState(t *testing.T) {
	t.Parallel()

	center, b, _ := newTestCenter(t)
	center.SetIdentity(&models.Identity{ID: "u1", Role: models.RoleUser}, 1)

	now := time.Now()
	publishReservation(t, b, 7, "", models.StatusPending, true, now, 1)
	publishReservation(t, b, 7, models.StatusPending, models.StatusApproved, false, now, 1)
	if !waitCond(t, 2*time.Second, func() bool { return len(center.Notifications()) == 1 }) {
		t.Fatal("setup notification never arrived")
	}

	// Logout drops toasts and detaches the inbox; a later login restores
	// the persisted sequence for that identity.
	center.SetIdentity(nil, 2)
	if got := center.Notifications(); len(got) != 0 {
		t.Errorf("inbox after logout = %+v, want empty", got)
	}
	if got := center.Toasts(); len(got) != 0 {
		t.Errorf("toasts after logout = %+v, want empty", got)
	}

	center.SetIdentity(&models.Identity{ID: "u1", Role: models.RoleUser}, 3)
	if got := center.Notifications(); len(got) != 1 {
		t.Errorf("inbox after re-login = %d entries, want persisted 1", len(got))
	}
}

func TestCenterDropsBufferedDiffsFromPreviousIdentity(t *testing.T) {
	t.Parallel()

	center, b, rec := newTestCenter(t)
	center.SetIdentity(&models.Identity{ID: "alice", Role: models.RoleUser}, 1)

	now := time.Now()
	publishReservation(t, b, 7, "", models.StatusPending, true, now, 1)
	if !waitCond(t, 2*time.Second, func() bool {
		return len(rec.byType(MsgReservationDiff)) == 1
	}) {
		t.Fatal("baseline diff never consumed")
	}

	// A transition published by alice's loops can still sit in the
	// subscription buffer when the identity flips; it must not classify
	// against the new identity's empty state.
	center.SetIdentity(&models.Identity{ID: "bob", Role: models.RoleUser}, 2)
	publishReservation(t, b, 7, models.StatusPending, models.StatusApproved, false, now, 1)
	publishReservation(t, b, 8, "", models.StatusPending, true, now, 2)

	// The current-epoch event re-broadcasts; the superseded one does not,
	// which proves it was consumed and dropped rather than still queued.
	if !waitCond(t, 2*time.Second, func() bool {
		return len(rec.byType(MsgReservationDiff)) == 2
	}) {
		t.Fatal("current-epoch diff never consumed")
	}
	if got := center.Notifications(); len(got) != 0 {
		t.Errorf("stale transition entered the new identity's inbox: %+v", got)
	}
	if got := center.Toasts(); len(got) != 0 {
		t.Errorf("stale transition produced toasts: %+v", got)
	}
}

func TestCenterImperativeNotify(t *testing.T) {
	t.Parallel()

	center, _, rec := newTestCenter(t)
	center.SetIdentity(&models.Identity{ID: "u1", Role: models.RoleUser}, 1)

	center.Notify(models.LevelWarning, "Maintenance", "Backend upgrade at midnight", Options{
		Persist: true,
		Link:    "/status",
	})

	items := center.Notifications()
	if len(items) != 1 || items[0].Level != models.LevelWarning || items[0].Link != "/status" {
		t.Fatalf("inbox = %+v, want the imperative entry", items)
	}
	if len(rec.byType(MsgToast)) != 1 {
		t.Errorf("toast broadcasts = %d, want 1", len(rec.byType(MsgToast)))
	}

	// Ephemeral notifications skip the inbox.
	center.Notify(models.LevelInfo, "Ping", "transient", Options{Persist: false})
	if got := center.Notifications(); len(got) != 1 {
		t.Errorf("ephemeral notify entered inbox: %+v", got)
	}
}

func TestCenterReadStateRoundTrip(t *testing.T) {
	t.Parallel()

	center, _, rec := newTestCenter(t)
	center.SetIdentity(&models.Identity{ID: "u1", Role: models.RoleUser}, 1)

	center.Notify(models.LevelInfo, "a", "a", Options{Persist: true})
	center.Notify(models.LevelInfo, "b", "b", Options{Persist: true})

	items := center.Notifications()
	if !center.MarkRead(items[0].ID) {
		t.Error("MarkRead(known) = false")
	}
	if center.MarkRead("nope") {
		t.Error("MarkRead(unknown) = true")
	}

	center.MarkAllRead()
	for _, n := range center.Notifications() {
		if !n.Read {
			t.Errorf("entry %s still unread after MarkAllRead", n.ID)
		}
	}

	if !center.Remove(items[1].ID) {
		t.Error("Remove(known) = false")
	}
	center.ClearAll()
	if got := center.Notifications(); len(got) != 0 {
		t.Errorf("inbox after ClearAll = %+v, want empty", got)
	}

	// Every mutation pushes the refreshed list to attached clients.
	if got := len(rec.byType(MsgNotifications)); got < 5 {
		t.Errorf("notification list broadcasts = %d, want one per mutation", got)
	}
}
