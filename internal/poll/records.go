// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package poll

import (
	"github.com/goccy/go-json"

	"github.com/staywatch/staywatch/internal/models"
)

// reservationRecords normalizes booking API reservations into diff records.
func reservationRecords(reservations []models.Reservation) []models.Record {
	records := make([]models.Record, 0, len(reservations))
	for _, r := range reservations {
		raw, err := json.Marshal(r)
		if err != nil {
			raw = nil
		}
		records = append(records, models.Record{
			ID:        r.ID,
			Status:    r.Status,
			HasStatus: r.Status != "",
			CreatedAt: r.CreatedAt,
			Raw:       raw,
		})
	}
	return records
}

// roomRecords normalizes booking API rooms into diff records. Rooms without
// a status field still enter the snapshot but never produce change events.
func roomRecords(rooms []models.Room) []models.Record {
	records := make([]models.Record, 0, len(rooms))
	for _, r := range rooms {
		raw, err := json.Marshal(r)
		if err != nil {
			raw = nil
		}
		records = append(records, models.Record{
			ID:        r.ID,
			Status:    r.Status,
			HasStatus: r.Status != "",
			CreatedAt: r.UpdatedAt,
			Raw:       raw,
		})
	}
	return records
}
