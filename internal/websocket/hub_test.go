// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package websocket

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Serve(ctx) }()
	t.Cleanup(cancel)
	return h, cancel
}

// testClient registers a bare client with a buffered queue. No connection
// is involved; tests read the queue directly.
func testClient(t *testing.T, h *Hub, queueSize int) *Client {
	t.Helper()
	c := &Client{
		id:   clientIDCounter.Add(1),
		hub:  h,
		send: make(chan Message, queueSize),
	}
	h.register <- c

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() > 0 {
			return c
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("client never registered")
	return nil
}

func TestBroadcastReachesClient(t *testing.T) {
	t.Parallel()

	h, _ := startHub(t)
	c := testClient(t, h, 16)

	h.Broadcast("toast", map[string]string{"title": "hello"})

	select {
	case msg := <-c.send:
		if msg.Type != "toast" {
			t.Errorf("message type = %q, want toast", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never delivered")
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	t.Parallel()

	h, _ := startHub(t)
	c := testClient(t, h, 16)

	h.unregister <- c
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && h.ClientCount() != 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if h.ClientCount() != 0 {
		t.Fatal("client never unregistered")
	}

	// The send channel is closed on unregister.
	if _, ok := <-c.send; ok {
		t.Error("send channel still open after unregister")
	}
}

func TestSlowClientIsDetached(t *testing.T) {
	t.Parallel()

	h, _ := startHub(t)
	testClient(t, h, 1)

	// Overflow the one-slot queue; the second delivery detaches the client.
	h.Broadcast("notifications", nil)
	h.Broadcast("notifications", nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && h.ClientCount() != 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.ClientCount(); got != 0 {
		t.Errorf("client count = %d, want slow client detached", got)
	}
}

func TestShutdownClosesClients(t *testing.T) {
	t.Parallel()

	h, cancel := startHub(t)
	c := testClient(t, h, 16)

	cancel()
	select {
	case _, ok := <-c.send:
		if ok {
			// Drain until closed; a pending message may precede the close.
			for range c.send {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client send channel not closed on shutdown")
	}
	if got := h.ClientCount(); got != 0 {
		t.Errorf("client count after shutdown = %d, want 0", got)
	}
}
