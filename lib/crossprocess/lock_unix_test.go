// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package crossprocess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/bureau-foundation/spool/lib/testutil"
)

func newTestLock(t *testing.T, directory, name string) Lock {
	t.Helper()
	lock, err := New(Config{
		Name:         name,
		Directory:    directory,
		PollInterval: 50 * time.Millisecond,
		Logger:       testutil.Logger(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { lock.Close() })
	return lock
}

// holdLock acquires lock in a goroutine and returns once the action
// has run. Canceling the returned function releases the lock; the
// returned channel delivers Acquire's result.
func holdLock(t *testing.T, lock Lock) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	acquired := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- lock.Acquire(ctx, func() { close(acquired) })
	}()
	testutil.RequireClosed(t, acquired, 5*time.Second, "lock was not acquired")
	return cancel, result
}

func TestMutualExclusion(t *testing.T) {
	directory := t.TempDir()
	first := newTestLock(t, directory, "exclusive")
	second := newTestLock(t, directory, "exclusive")

	release, firstResult := holdLock(t, first)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ran := false
	err := second.Acquire(ctx, func() { ran = true })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Acquire while held = %v, want DeadlineExceeded", err)
	}
	if ran {
		t.Fatal("second action ran while the first holder held the lock")
	}

	release()
	if err := testutil.RequireReceive(t, firstResult, 5*time.Second, "first holder did not release"); err != nil {
		t.Fatalf("first Acquire = %v, want nil", err)
	}

	releaseSecond, secondResult := holdLock(t, second)
	releaseSecond()
	if err := testutil.RequireReceive(t, secondResult, 5*time.Second); err != nil {
		t.Fatalf("second Acquire after release = %v", err)
	}
}

func TestReleaseWakesWaiter(t *testing.T) {
	directory := t.TempDir()
	first := newTestLock(t, directory, "handoff")
	second := newTestLock(t, directory, "handoff")

	release, _ := holdLock(t, first)

	acquired := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go second.Acquire(ctx, func() { close(acquired) })

	testutil.RequireNotReceived(t, acquired, 100*time.Millisecond, "waiter acquired a held lock")
	release()
	testutil.RequireClosed(t, acquired, 5*time.Second, "waiter not woken after release")
}

func TestReleaseDeletesLockFile(t *testing.T) {
	directory := t.TempDir()
	lock := newTestLock(t, directory, "cleanup")
	path := filepath.Join(directory, "cleanup.lock")

	release, result := holdLock(t, lock)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("lock file missing while held: %v", err)
	}
	if got := string(content); got != strconv.Itoa(os.Getpid())+"\n" {
		t.Errorf("lock file content = %q, want our pid", got)
	}

	release()
	testutil.RequireReceive(t, result, 5*time.Second)
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file still present after release: %v", err)
	}
}

func TestAbandonedLockIsRetryable(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "crashed.lock")
	// A file left with a foreign pid: its holder exited without the
	// delete that precedes every clean unlock.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid()+1)+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	lock := newTestLock(t, directory, "crashed")

	ran := false
	err := lock.Acquire(context.Background(), func() { ran = true })
	if !errors.Is(err, ErrAbandoned) || !IsRetryable(err) {
		t.Fatalf("Acquire over abandoned file = %v, want ErrAbandoned", err)
	}
	if ran {
		t.Error("action ran on an abandoned acquisition")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("abandoned lock file not cleaned up: %v", err)
	}

	release, result := holdLock(t, lock)
	release()
	if err := testutil.RequireReceive(t, result, 5*time.Second); err != nil {
		t.Errorf("retry after abandonment = %v", err)
	}
}

func TestAcquireCanceledBeforeAction(t *testing.T) {
	lock := newTestLock(t, t.TempDir(), "canceled")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	if err := lock.Acquire(ctx, func() { ran = true }); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire with canceled ctx = %v, want context.Canceled", err)
	}
	if ran {
		t.Error("action ran despite cancellation")
	}
}

func TestCloseReleasesHolderAndRejectsWaiters(t *testing.T) {
	directory := t.TempDir()
	holder := newTestLock(t, directory, "closing")
	waiter := newTestLock(t, directory, "closing")

	_, holderResult := holdLock(t, holder)

	waiterResult := make(chan error, 1)
	go func() {
		waiterResult <- waiter.Acquire(context.Background(), func() {})
	}()
	waiter.Close()
	if err := testutil.RequireReceive(t, waiterResult, 5*time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("waiter Acquire after Close = %v, want ErrClosed", err)
	}

	holder.Close()
	if err := testutil.RequireReceive(t, holderResult, 5*time.Second); err != nil {
		t.Errorf("holder Acquire after Close = %v, want nil", err)
	}
	if err := holder.Acquire(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Acquire on closed lock = %v, want ErrClosed", err)
	}
}
