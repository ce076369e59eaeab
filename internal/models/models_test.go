// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package models

import "testing"

func TestIdentityElevated(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role string
		want bool
	}{
		{"User", false},
		{"Manager", true},
		{"Admin", true},
		{"", true}, // unknown roles err on the elevated side of the two-tier check
	}

	for _, tt := range tests {
		id := Identity{ID: "u1", Role: tt.role}
		if got := id.Elevated(); got != tt.want {
			t.Errorf("Elevated() with role %q = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestReservationReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  Reservation
		want string
	}{
		{"explicit code wins", Reservation{ID: 7, BookingCode: "BK-2026-0042"}, "BK-2026-0042"},
		{"small id zero-padded", Reservation{ID: 7}, "0007"},
		{"four digit id unchanged", Reservation{ID: 1234}, "1234"},
		{"large id not truncated", Reservation{ID: 98765}, "98765"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.res.Reference(); got != tt.want {
				t.Errorf("Reference() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	t.Parallel()

	for _, l := range []Level{LevelInfo, LevelSuccess, LevelWarning, LevelError} {
		if !ValidLevel(l) {
			t.Errorf("ValidLevel(%q) = false, want true", l)
		}
	}
	for _, l := range []Level{"", "fatal", "INFO", "notice"} {
		if ValidLevel(l) {
			t.Errorf("ValidLevel(%q) = true, want false", l)
		}
	}
}
