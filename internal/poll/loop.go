// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package poll

import (
	"context"
	"time"

	"github.com/staywatch/staywatch/internal/bus"
	"github.com/staywatch/staywatch/internal/logging"
	"github.com/staywatch/staywatch/internal/metrics"
	"github.com/staywatch/staywatch/internal/models"
)

// FetchFunc fetches the full current record set for one collection.
type FetchFunc func(ctx context.Context) ([]models.Record, error)

// Loop polls one collection on a fixed cadence, diffs each fetch against
// the previous snapshot and publishes transition events on the bus.
//
// A failed fetch skips the cycle without touching the snapshot, so the
// stream simply goes quiet while the backend is unreachable and resumes
// from the last good state afterwards.
type Loop struct {
	name      string
	kind      models.CollectionKind
	topic     string
	epoch     uint64
	cadence   time.Duration
	fetch     FetchFunc
	snapshots *SnapshotStore
	events    *bus.Bus
}

// NewLoop creates a polling loop. The epoch stamps every published event
// with the poll session that produced it, so consumers can discard events
// still buffered from a previous identity. The snapshot store is owned by
// the loop but exposed to the engine so it can be cleared on identity
// changes.
func NewLoop(name string, kind models.CollectionKind, topic string, epoch uint64, cadence time.Duration, fetch FetchFunc, events *bus.Bus) *Loop {
	return &Loop{
		name:      name,
		kind:      kind,
		topic:     topic,
		epoch:     epoch,
		cadence:   cadence,
		fetch:     fetch,
		snapshots: NewSnapshotStore(),
		events:    events,
	}
}

// Snapshots returns the loop's snapshot store.
func (l *Loop) Snapshots() *SnapshotStore {
	return l.snapshots
}

// Run polls immediately, then on every cadence tick, until ctx is canceled.
func (l *Loop) Run(ctx context.Context) {
	logging.Debug().Str("loop", l.name).Dur("cadence", l.cadence).Msg("Poll loop started")
	defer logging.Debug().Str("loop", l.name).Msg("Poll loop stopped")

	l.poll(ctx)

	ticker := time.NewTicker(l.cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.poll(ctx)
		}
	}
}

// poll runs one fetch-diff-publish cycle.
func (l *Loop) poll(ctx context.Context) {
	start := time.Now()

	records, err := l.fetch(ctx)
	if err != nil {
		metrics.PollCycles.WithLabelValues(l.name, "fetch_error").Inc()
		logging.Debug().Err(err).Str("loop", l.name).Msg("Poll fetch failed, skipping cycle")
		return
	}
	// The loop may have been torn down while the fetch was in flight. A
	// stale result must not repopulate a snapshot that was just cleared.
	if ctx.Err() != nil {
		metrics.PollCycles.WithLabelValues(l.name, "discarded").Inc()
		return
	}

	for _, rec := range records {
		prev, seen := l.snapshots.Lookup(rec.ID)
		switch {
		case !seen && rec.HasStatus:
			l.publish(models.DiffEvent{
				EntityID:  rec.ID,
				Kind:      l.kind,
				Loop:      l.name,
				Epoch:     l.epoch,
				FirstSeen: true,
				New:       rec.Status,
				Record:    rec,
			})
		case seen && rec.HasStatus && prev.HasStatus && rec.Status != prev.Status:
			l.publish(models.DiffEvent{
				EntityID: rec.ID,
				Kind:     l.kind,
				Loop:     l.name,
				Epoch:    l.epoch,
				Previous: prev.Status,
				New:      rec.Status,
				Record:   rec,
			})
		}
		// Stored even when no event fires, so timestamps stay fresh and
		// retained entities keep their last observed status.
		l.snapshots.Store(rec)
	}

	metrics.PollCycles.WithLabelValues(l.name, "ok").Inc()
	metrics.PollCycleDuration.WithLabelValues(l.name).Observe(time.Since(start).Seconds())
	metrics.SnapshotSize.WithLabelValues(l.name).Set(float64(l.snapshots.Len()))
}

func (l *Loop) publish(ev models.DiffEvent) {
	if err := l.events.PublishDiff(l.topic, ev); err != nil {
		logging.Error().Err(err).Str("loop", l.name).Int("entity_id", ev.EntityID).Msg("Failed to publish diff event")
		return
	}
	firstSeen := "false"
	if ev.FirstSeen {
		firstSeen = "true"
	}
	metrics.DiffEvents.WithLabelValues(l.name, firstSeen).Inc()
}
