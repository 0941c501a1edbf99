// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package crossprocess

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/spool/lib/clock"
	"github.com/bureau-foundation/spool/lib/lifecycle"
)

var (
	// ErrAbandoned means the previous holder exited without releasing.
	// The lock has been cleaned up; acquiring again is expected to
	// succeed.
	ErrAbandoned = errors.New("crossprocess: lock abandoned by previous holder")

	// ErrClosed is returned by Acquire once Close has been called.
	ErrClosed = errors.New("crossprocess: lock closed")
)

// IsRetryable reports whether an Acquire failure should be followed by
// another Acquire on the same lock.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAbandoned)
}

// DefaultPollInterval bounds how long a waiter sleeps between attempts
// when no change notification arrives.
const DefaultPollInterval = time.Second

// Lock is a machine-wide named lock. A Lock supports one Acquire at a
// time.
type Lock interface {
	// Acquire blocks until the lock is held or ctx is done, runs
	// action unless ctx is already done, then holds the lock until
	// ctx is done or Close is called. Returns nil after a normal
	// release, ctx's error if ctx ended before the action ran,
	// ErrAbandoned, ErrClosed, or a fatal error.
	Acquire(ctx context.Context, action func()) error

	// Close releases a held lock and makes pending and future
	// Acquire calls return ErrClosed.
	Close() error
}

// Config configures New.
type Config struct {
	// Name identifies the lock. Use NameForFolder to derive it from a
	// storage folder.
	Name string

	// Directory holds the lock file on platforms that emulate the
	// lock with a file. Ignored on Windows.
	Directory string

	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// New returns the platform's Lock implementation.
func New(config Config) (Lock, error) {
	if config.Name == "" {
		return nil, errors.New("crossprocess: lock name is required")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return newPlatformLock(config)
}

// NameForFolder derives a lock name from prefix and a hash of folder's
// cleaned absolute path, so every process using the same folder
// contends for the same lock.
func NameForFolder(prefix, folder string) (string, error) {
	absolute, err := filepath.Abs(folder)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", folder, err)
	}
	digest := blake3.Sum256([]byte(normalizePath(filepath.Clean(absolute))))
	return prefix + hex.EncodeToString(digest[:16]), nil
}

// hold runs action unless ctx is done, then waits for release.
func hold(ctx context.Context, closing *lifecycle.Once, action func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if closing.Triggered() {
		return ErrClosed
	}
	action()
	select {
	case <-ctx.Done():
	case <-closing.Done():
	}
	return nil
}

// Failed returns a Lock that can never be acquired: every Acquire
// returns err without running its action. It stands in for the real
// lock when there is no folder to coordinate on.
func Failed(err error) Lock {
	return failedLock{err: err}
}

type failedLock struct{ err error }

func (l failedLock) Acquire(ctx context.Context, action func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.err
}

func (failedLock) Close() error { return nil }
