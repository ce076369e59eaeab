// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package poll

import (
	"context"
	"sync"
	"time"

	"github.com/staywatch/staywatch/internal/backend"
	"github.com/staywatch/staywatch/internal/bus"
	"github.com/staywatch/staywatch/internal/logging"
	"github.com/staywatch/staywatch/internal/metrics"
	"github.com/staywatch/staywatch/internal/models"
)

// Loop names. The self loop runs for every identity; the admin loops only
// for elevated roles.
const (
	LoopSelfReservations = "self-reservations"
	LoopAllReservations  = "all-reservations"
	LoopRooms            = "rooms"
)

// IdentityListener is notified whenever the engine's identity changes,
// after the old loops are torn down and their snapshots cleared. A nil
// identity means logged out. The epoch is the poll session number the new
// loops will stamp on their events; listeners use it to fence out events
// still buffered from the previous session.
type IdentityListener func(identity *models.Identity, epoch uint64)

// Engine owns the polling loops and couples their lifecycle to the current
// identity. Exactly one identity is active at a time; replacing it tears
// down every running loop, clears all snapshots and starts a fresh set
// scoped to the new identity.
//
// Engine implements suture.Service via Serve.
type Engine struct {
	fetcher   backend.Fetcher
	events    *bus.Bus
	cadence   time.Duration
	identity  chan *models.Identity
	listeners []IdentityListener

	mu      sync.Mutex
	loops   []*Loop
	current *models.Identity
	epoch   uint64
}

// NewEngine creates an engine. Loops start only once an identity arrives
// through SetIdentity.
func NewEngine(fetcher backend.Fetcher, events *bus.Bus, cadence time.Duration) *Engine {
	return &Engine{
		fetcher: fetcher,
		events:  events,
		cadence: cadence,
		// Buffer of 1 so a login/logout burst coalesces instead of
		// blocking the caller; only the latest identity matters.
		identity: make(chan *models.Identity, 1),
	}
}

// OnIdentityChange registers a listener. Must be called before Serve.
func (e *Engine) OnIdentityChange(fn IdentityListener) {
	e.listeners = append(e.listeners, fn)
}

// SetIdentity replaces the current identity. Passing nil stops all loops.
// Safe to call from any goroutine; if a previous signal is still pending
// it is superseded.
func (e *Engine) SetIdentity(identity *models.Identity) {
	for {
		select {
		case e.identity <- identity:
			return
		default:
			select {
			case <-e.identity:
			default:
			}
		}
	}
}

// Identity returns the identity the engine currently polls for, or nil.
func (e *Engine) Identity() *models.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// SnapshotSizes reports entity counts per running loop for health output.
func (e *Engine) SnapshotSizes() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	sizes := make(map[string]int, len(e.loops))
	for _, l := range e.loops {
		sizes[l.name] = l.snapshots.Len()
	}
	return sizes
}

// Serve runs the engine until ctx is canceled, reacting to identity
// signals by tearing down and rebuilding the loop set.
func (e *Engine) Serve(ctx context.Context) error {
	logging.Info().Dur("cadence", e.cadence).Msg("Poll engine started")

	var (
		loopCtx    context.Context
		cancelLoop context.CancelFunc
		wg         sync.WaitGroup
	)
	teardown := func() {
		if cancelLoop != nil {
			cancelLoop()
			wg.Wait()
			cancelLoop = nil
		}
		e.mu.Lock()
		for _, l := range e.loops {
			l.snapshots.Clear()
		}
		e.loops = nil
		e.mu.Unlock()
		metrics.ActiveLoops.Set(0)
	}
	defer teardown()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Poll engine stopping")
			return ctx.Err()

		case identity := <-e.identity:
			teardown()
			metrics.IdentityChanges.Inc()

			e.mu.Lock()
			e.current = identity
			e.epoch++
			epoch := e.epoch
			e.mu.Unlock()

			for _, fn := range e.listeners {
				fn(identity, epoch)
			}

			if identity == nil {
				logging.Info().Msg("Identity cleared, polling suspended")
				continue
			}

			loops := e.buildLoops(*identity, epoch)
			e.mu.Lock()
			e.loops = loops
			e.mu.Unlock()

			loopCtx, cancelLoop = context.WithCancel(ctx)
			for _, l := range loops {
				wg.Add(1)
				go func(l *Loop) {
					defer wg.Done()
					l.Run(loopCtx)
				}(l)
			}
			metrics.ActiveLoops.Set(float64(len(loops)))
			logging.Info().
				Str("identity", identity.ID).
				Str("role", identity.Role).
				Int("loops", len(loops)).
				Msg("Polling loops started for identity")
		}
	}
}

// buildLoops assembles the loop set for an identity: the self loop always,
// plus the admin loops for elevated roles.
func (e *Engine) buildLoops(identity models.Identity, epoch uint64) []*Loop {
	userID := identity.ID
	loops := []*Loop{
		NewLoop(LoopSelfReservations, models.KindReservations, bus.TopicReservationDiffs, epoch, e.cadence,
			func(ctx context.Context) ([]models.Record, error) {
				res, err := e.fetcher.SelfReservations(ctx, userID)
				if err != nil {
					return nil, err
				}
				return reservationRecords(res), nil
			}, e.events),
	}
	if identity.Elevated() {
		loops = append(loops,
			NewLoop(LoopAllReservations, models.KindReservations, bus.TopicReservationDiffs, epoch, e.cadence,
				func(ctx context.Context) ([]models.Record, error) {
					res, err := e.fetcher.AllReservations(ctx)
					if err != nil {
						return nil, err
					}
					return reservationRecords(res), nil
				}, e.events),
			NewLoop(LoopRooms, models.KindRooms, bus.TopicRoomDiffs, epoch, e.cadence,
				func(ctx context.Context) ([]models.Record, error) {
					rooms, err := e.fetcher.Rooms(ctx)
					if err != nil {
						return nil, err
					}
					return roomRecords(rooms), nil
				}, e.events),
		)
	}
	return loops
}
