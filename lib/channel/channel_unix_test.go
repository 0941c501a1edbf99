// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/spool/lib/coordinator"
	"github.com/bureau-foundation/spool/lib/testutil"
)

func TestSharedFolderHasOneTransmitter(t *testing.T) {
	server, requests := newCollector(t)
	folder := t.TempDir()

	first := newChannel(t, testSettings(folder, server.URL), nil)
	first.Start()
	waitActive(t, first)

	second := newChannel(t, testSettings(folder, server.URL), nil)
	second.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := second.WaitActive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second WaitActive = %v, want deadline exceeded", err)
	}
	if second.State() != coordinator.StateAcquiringLock {
		t.Errorf("second state = %s, want acquiring lock", second.State())
	}

	// The second channel persists but cannot send.
	second.Send("from second")
	if err := second.FlushAndTransmit(context.Background()); err != nil {
		t.Fatalf("second FlushAndTransmit: %v", err)
	}
	testutil.RequireNotReceived(t, requests, 50*time.Millisecond, "non-holder transmitted")

	// The holder delivers what the other process queued.
	sendCtx, sendCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sendCancel()
	if err := first.FlushAndTransmit(sendCtx); err != nil {
		t.Fatalf("first FlushAndTransmit: %v", err)
	}
	got := testutil.RequireReceive(t, requests, 5*time.Second)
	if got.body != `"from second"`+"\n" {
		t.Errorf("body = %q", got.body)
	}

	// Closing the holder hands the lock over.
	if err := first.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	waitActive(t, second)
}
