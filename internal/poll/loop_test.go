// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/staywatch/staywatch/internal/bus"
	"github.com/staywatch/staywatch/internal/models"
)

// drainDiffs subscribes to topic and returns a collector that gathers
// decoded diff events until the stream stays quiet for the wait window.
func drainDiffs(t *testing.T, ctx context.Context, b *bus.Bus, topic string) func(wait time.Duration) []models.DiffEvent {
	t.Helper()
	msgs, err := b.Subscribe(ctx, topic)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return func(wait time.Duration) []models.DiffEvent {
		var out []models.DiffEvent
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return out
				}
				ev, err := bus.DecodeDiff(msg)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				msg.Ack()
				out = append(out, ev)
			case <-time.After(wait):
				return out
			}
		}
	}
}

func staticFetch(records ...[]models.Record) FetchFunc {
	calls := 0
	return func(ctx context.Context) ([]models.Record, error) {
		set := records[calls]
		if calls < len(records)-1 {
			calls++
		}
		return set, nil
	}
}

func rec(id int, status string) models.Record {
	return models.Record{ID: id, Status: status, HasStatus: status != "", CreatedAt: time.Now()}
}

func TestPollFirstSeenThenIdempotent(t *testing.T) {
	t.Parallel()

	b := bus.New(nil)
	defer func() { _ = b.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drain := drainDiffs(t, ctx, b, bus.TopicReservationDiffs)

	fetch := staticFetch([]models.Record{rec(1, models.StatusPending), rec(2, models.StatusApproved)})
	l := NewLoop(LoopSelfReservations, models.KindReservations, bus.TopicReservationDiffs, 1, time.Hour, fetch, b)

	l.poll(ctx)
	events := drain(200 * time.Millisecond)
	if len(events) != 2 {
		t.Fatalf("first poll emitted %d events, want 2", len(events))
	}
	for _, ev := range events {
		if !ev.FirstSeen || ev.Previous != "" {
			t.Errorf("first poll event = %+v, want first-seen with empty previous", ev)
		}
	}

	// Identical second poll must be silent.
	l.poll(ctx)
	if events := drain(200 * time.Millisecond); len(events) != 0 {
		t.Errorf("identical second poll emitted %d events, want 0", len(events))
	}
	if l.Snapshots().Len() != 2 {
		t.Errorf("snapshot size = %d, want 2", l.Snapshots().Len())
	}
}

func TestPollEmitsStatusTransition(t *testing.T) {
	t.Parallel()

	b := bus.New(nil)
	defer func() { _ = b.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drain := drainDiffs(t, ctx, b, bus.TopicReservationDiffs)

	fetch := staticFetch(
		[]models.Record{rec(7, models.StatusPending)},
		[]models.Record{rec(7, models.StatusApproved)},
	)
	l := NewLoop(LoopSelfReservations, models.KindReservations, bus.TopicReservationDiffs, 1, time.Hour, fetch, b)

	l.poll(ctx)
	drain(200 * time.Millisecond)

	l.poll(ctx)
	events := drain(200 * time.Millisecond)
	if len(events) != 1 {
		t.Fatalf("transition poll emitted %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.FirstSeen || ev.Previous != models.StatusPending || ev.New != models.StatusApproved {
		t.Errorf("event = %+v, want Pending -> Approved transition", ev)
	}
	if ev.EntityID != 7 {
		t.Errorf("entity id = %d, want 7", ev.EntityID)
	}
}

func TestPollSkipsFetchErrors(t *testing.T) {
	t.Parallel()

	b := bus.New(nil)
	defer func() { _ = b.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drain := drainDiffs(t, ctx, b, bus.TopicReservationDiffs)

	calls := 0
	fetch := func(ctx context.Context) ([]models.Record, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("backend down")
		}
		return []models.Record{rec(1, models.StatusPending)}, nil
	}
	l := NewLoop(LoopSelfReservations, models.KindReservations, bus.TopicReservationDiffs, 1, time.Hour, fetch, b)

	l.poll(ctx)
	drain(200 * time.Millisecond)

	// The failed cycle must leave the snapshot intact so the next good
	// fetch does not replay first-seen events.
	l.poll(ctx)
	l.poll(ctx)
	if events := drain(200 * time.Millisecond); len(events) != 0 {
		t.Errorf("got %d events after failure and recovery, want 0", len(events))
	}
	if l.Snapshots().Len() != 1 {
		t.Errorf("snapshot size = %d, want 1", l.Snapshots().Len())
	}
}

func TestPollDiscardsStaleResult(t *testing.T) {
	t.Parallel()

	b := bus.New(nil)
	defer func() { _ = b.Close() }()

	pollCtx, cancelPoll := context.WithCancel(context.Background())
	fetch := func(ctx context.Context) ([]models.Record, error) {
		// Simulate teardown racing an in-flight fetch.
		cancelPoll()
		return []models.Record{rec(1, models.StatusPending)}, nil
	}
	l := NewLoop(LoopSelfReservations, models.KindReservations, bus.TopicReservationDiffs, 1, time.Hour, fetch, b)

	l.poll(pollCtx)
	if l.Snapshots().Len() != 0 {
		t.Errorf("stale fetch result entered snapshot, size = %d", l.Snapshots().Len())
	}
}

func TestPollDisappearanceIsSilent(t *testing.T) {
	t.Parallel()

	b := bus.New(nil)
	defer func() { _ = b.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drain := drainDiffs(t, ctx, b, bus.TopicReservationDiffs)

	fetch := staticFetch(
		[]models.Record{rec(1, models.StatusPending), rec(2, models.StatusPending)},
		[]models.Record{rec(1, models.StatusPending)},
	)
	l := NewLoop(LoopSelfReservations, models.KindReservations, bus.TopicReservationDiffs, 1, time.Hour, fetch, b)

	l.poll(ctx)
	drain(200 * time.Millisecond)

	l.poll(ctx)
	if events := drain(200 * time.Millisecond); len(events) != 0 {
		t.Errorf("disappearance emitted %d events, want 0", len(events))
	}
	// The dropped entity stays in the snapshot: absence from one fetch is
	// not a deletion.
	if l.Snapshots().Len() != 2 {
		t.Errorf("snapshot size = %d, want 2 after entity dropped", l.Snapshots().Len())
	}
	if _, ok := l.Snapshots().Lookup(2); !ok {
		t.Error("entity absent from latest fetch was evicted from snapshot")
	}
}

func TestPollReappearanceDiffsAgainstRetainedRecord(t *testing.T) {
	t.Parallel()

	b := bus.New(nil)
	defer func() { _ = b.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drain := drainDiffs(t, ctx, b, bus.TopicReservationDiffs)

	fetch := staticFetch(
		[]models.Record{rec(7, models.StatusPending)},
		[]models.Record{},
		[]models.Record{rec(7, models.StatusApproved)},
	)
	l := NewLoop(LoopSelfReservations, models.KindReservations, bus.TopicReservationDiffs, 1, time.Hour, fetch, b)

	l.poll(ctx)
	drain(200 * time.Millisecond)

	l.poll(ctx)
	if l.Snapshots().Len() != 1 {
		t.Fatalf("snapshot size = %d, want 1 while entity is missing", l.Snapshots().Len())
	}

	// The entity returns with a new status: it must diff against the
	// retained record, not replay as first-seen (which would be suppressed
	// and the status change lost).
	l.poll(ctx)
	events := drain(200 * time.Millisecond)
	if len(events) != 1 {
		t.Fatalf("reappearance emitted %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.FirstSeen || ev.Previous != models.StatusPending || ev.New != models.StatusApproved {
		t.Errorf("event = %+v, want Pending -> Approved transition", ev)
	}
}

func TestPollStatuslessRecordsNeverTransition(t *testing.T) {
	t.Parallel()

	b := bus.New(nil)
	defer func() { _ = b.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drain := drainDiffs(t, ctx, b, bus.TopicRoomDiffs)

	fetch := staticFetch(
		[]models.Record{{ID: 101}},
		[]models.Record{{ID: 101, Status: "Maintenance", HasStatus: true}},
	)
	l := NewLoop(LoopRooms, models.KindRooms, bus.TopicRoomDiffs, 1, time.Hour, fetch, b)

	// A statusless record is stored but emits nothing, not even
	// first-seen.
	l.poll(ctx)
	if events := drain(200 * time.Millisecond); len(events) != 0 {
		t.Fatalf("statusless first poll emitted %d events, want 0", len(events))
	}
	if l.Snapshots().Len() != 1 {
		t.Errorf("snapshot size = %d, want 1", l.Snapshots().Len())
	}

	// Status appearing on a previously statusless record is not a
	// transition.
	l.poll(ctx)
	if events := drain(200 * time.Millisecond); len(events) != 0 {
		t.Errorf("status appearance emitted %d events, want 0", len(events))
	}
}
