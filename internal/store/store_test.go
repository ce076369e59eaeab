// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

// kvContract exercises the KV contract against any implementation.
func kvContract(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get(missing) = %v, want ErrKeyNotFound", err)
	}

	if err := kv.Set(ctx, "notifications:u1", []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := kv.Get(ctx, "notifications:u1")
	if err != nil {
		t.Fatalf("Get after Set: %v", err)
	}
	if string(got) != `[{"id":"a"}]` {
		t.Errorf("Get = %q, want stored value", got)
	}

	// Overwrite replaces, never appends.
	if err := kv.Set(ctx, "notifications:u1", []byte(`[]`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err = kv.Get(ctx, "notifications:u1")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != `[]` {
		t.Errorf("Get after overwrite = %q, want []", got)
	}

	if err := kv.Delete(ctx, "notifications:u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "notifications:u1"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after Delete = %v, want ErrKeyNotFound", err)
	}

	// Deleting an absent key is not an error.
	if err := kv.Delete(ctx, "never-written"); err != nil {
		t.Errorf("Delete(absent) = %v, want nil", err)
	}
}

func TestMemoryContract(t *testing.T) {
	t.Parallel()
	kvContract(t, NewMemory())
}

func TestMemoryCopiesValues(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	val := []byte("original")
	if err := m.Set(ctx, "k", val); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val[0] = 'X'

	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("stored value mutated through caller slice: %q", got)
	}
}

func TestBadgerContract(t *testing.T) {
	t.Parallel()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	b := NewBadger(db)
	defer func() {
		if err := b.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	}()

	kvContract(t, b)
}
