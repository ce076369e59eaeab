// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

// Package poll implements the polling diff core: per-collection snapshot
// stores, cadence-driven poll loops that diff fresh fetches against the
// previous snapshot, and the engine that binds loop lifecycles to the
// current identity.
package poll

import (
	"sync"

	"github.com/staywatch/staywatch/internal/models"
)

// SnapshotStore holds the last observed record per entity id for one
// polling loop. Snapshots are session-scoped: they are cleared whenever the
// identity changes and are never persisted.
type SnapshotStore struct {
	mu      sync.RWMutex
	records map[int]models.Record
}

// NewSnapshotStore creates an empty snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{records: make(map[int]models.Record)}
}

// Lookup returns the stored record for id and whether one exists.
func (s *SnapshotStore) Lookup(id int) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Store inserts or updates one record. Entities absent from a later fetch
// are retained, so a record that drops out of one fetch and returns still
// diffs against its last observed status instead of counting as first-seen.
func (s *SnapshotStore) Store(rec models.Record) {
	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()
}

// Clear drops every stored record.
func (s *SnapshotStore) Clear() {
	s.mu.Lock()
	s.records = make(map[int]models.Record)
	s.mu.Unlock()
}

// Len returns the number of stored records.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
