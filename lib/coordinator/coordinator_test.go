// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/spool/lib/crossprocess"
	"github.com/bureau-foundation/spool/lib/sender"
	"github.com/bureau-foundation/spool/lib/storage"
	"github.com/bureau-foundation/spool/lib/testutil"
	"github.com/bureau-foundation/spool/lib/transmission"
)

// scriptedLock fails Acquire with each scripted error in turn, then
// holds like a real lock.
type scriptedLock struct {
	mu       sync.Mutex
	script   []error
	acquires atomic.Int32
	closed   chan struct{}
	once     sync.Once
}

func newScriptedLock(script ...error) *scriptedLock {
	return &scriptedLock{script: script, closed: make(chan struct{})}
}

func (l *scriptedLock) Acquire(ctx context.Context, action func()) error {
	l.acquires.Add(1)
	l.mu.Lock()
	var err error
	if len(l.script) > 0 {
		err, l.script = l.script[0], l.script[1:]
	}
	l.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case <-l.closed:
		return crossprocess.ErrClosed
	default:
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	action()
	select {
	case <-ctx.Done():
	case <-l.closed:
	}
	return nil
}

func (l *scriptedLock) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

type fixture struct {
	t       *testing.T
	queue   *storage.Storage
	created atomic.Int32
	server  *httptest.Server
	bodies  chan string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, bodies: make(chan string, 16)}
	f.queue = storage.New(storage.Config{Folder: t.TempDir(), Logger: testutil.Logger(t)})
	t.Cleanup(func() { f.queue.Close() })
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.bodies <- string(body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) newSender() (*sender.Sender, error) {
	f.created.Add(1)
	return sender.New(sender.Config{
		Storage: f.queue,
		Client:  f.server.Client(),
		Logger:  testutil.Logger(f.t),
	})
}

func (f *fixture) enqueue(content string) {
	f.t.Helper()
	tx, err := transmission.New(f.server.URL, []byte(content), "text/plain", "", time.Second)
	if err != nil {
		f.t.Fatal(err)
	}
	if err := f.queue.Enqueue(tx); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fixture) coordinator(lock crossprocess.Lock, senders int) *Coordinator {
	f.t.Helper()
	c, err := New(Config{
		Lock:       lock,
		Senders:    senders,
		NewSender:  f.newSender,
		RetryPause: 10 * time.Millisecond,
		Logger:     testutil.Logger(f.t),
	})
	if err != nil {
		f.t.Fatalf("New: %v", err)
	}
	f.t.Cleanup(func() { c.Close() })
	return c
}

func waitForState(t *testing.T, c *Coordinator, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for c.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", c.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestActivatesSendersOnceLockHeld(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(newScriptedLock(), 3)
	if c.State() != StateIdle {
		t.Errorf("initial state = %s, want idle", c.State())
	}

	c.Start()
	testutil.RequireClosed(t, c.Active(), 5*time.Second, "coordinator never became active")
	waitForState(t, c, StateActive)
	if got := f.created.Load(); got != 3 {
		t.Errorf("created %d senders, want 3", got)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.State() != StateStopped {
		t.Errorf("state after Close = %s", c.State())
	}
	testutil.RequireClosed(t, c.Done(), time.Second)
}

func TestRetryableFailureRetries(t *testing.T) {
	f := newFixture(t)
	lock := newScriptedLock(crossprocess.ErrAbandoned, crossprocess.ErrAbandoned)
	c := f.coordinator(lock, 1)
	c.Start()

	waitForState(t, c, StateActive)
	if got := lock.acquires.Load(); got != 3 {
		t.Errorf("Acquire called %d times, want 3", got)
	}
}

func TestFatalFailureStopsPermanently(t *testing.T) {
	f := newFixture(t)
	lock := newScriptedLock(errors.New("permission denied"))
	c := f.coordinator(lock, 1)
	c.Start()

	testutil.RequireClosed(t, c.Done(), 5*time.Second, "loop kept running after a fatal error")
	if c.State() != StateStopped {
		t.Errorf("state = %s, want stopped", c.State())
	}
	if lock.acquires.Load() != 1 {
		t.Errorf("Acquire called %d times after a fatal error", lock.acquires.Load())
	}
	if f.created.Load() != 0 {
		t.Error("senders created without the lock")
	}
	select {
	case <-c.Active():
		t.Error("Active closed without the lock")
	default:
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Errorf("Flush without senders = %v, want nil", err)
	}
}

func TestFlushBeforeActiveIsNoop(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(newScriptedLock(), 1)
	f.enqueue("waiting")

	if err := c.Flush(context.Background()); err != nil {
		t.Errorf("Flush = %v, want nil", err)
	}
	testutil.RequireNotReceived(t, f.bodies, 50*time.Millisecond, "sent without holding the lock")
}

func TestFlushDelegatesToSender(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(newScriptedLock(), 1)
	c.Start()
	waitForState(t, c, StateActive)

	// The loop's first pass may already have sent the first item.
	f.enqueue("one")
	f.enqueue("two")
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	stats, err := f.queue.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 0 {
		t.Errorf("%d items queued after Flush", stats.Files)
	}
}

func TestWakeReachesSenders(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(newScriptedLock(), 1)
	c.Start()
	waitForState(t, c, StateActive)

	// Let the sender go idle on an empty queue, then wake it.
	time.Sleep(50 * time.Millisecond)
	f.enqueue("woken")
	c.Wake()
	if body := testutil.RequireReceive(t, f.bodies, 5*time.Second, "Wake did not reach the sender"); body != "woken" {
		t.Errorf("body = %q", body)
	}
}

func TestCloseNeverStarted(t *testing.T) {
	f := newFixture(t)
	lock := newScriptedLock()
	c := f.coordinator(lock, 1)

	if err := c.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if lock.acquires.Load() != 0 {
		t.Error("Close started an acquisition")
	}
	c.Start()
	if c.State() != StateStopped {
		t.Errorf("Start after Close changed state to %s", c.State())
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{NewSender: func() (*sender.Sender, error) { return nil, nil }}); err == nil {
		t.Error("New without a lock succeeded")
	}
	if _, err := New(Config{Lock: newScriptedLock()}); err == nil {
		t.Error("New without a sender factory succeeded")
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		StateIdle:          "idle",
		StateAcquiringLock: "acquiring_lock",
		StateActive:        "active",
		StateStopped:       "stopped",
	} {
		if state.String() != want {
			t.Errorf("%d.String() = %q, want %q", state, state.String(), want)
		}
	}
}
