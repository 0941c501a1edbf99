// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package crossprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sys/windows"

	"github.com/bureau-foundation/spool/lib/lifecycle"
)

// waitSlice is how long one WaitForSingleObject call blocks before the
// loop rechecks ctx and Close.
const waitSlice = 100 // milliseconds

// mutexLock is a named kernel mutex. Mutex ownership belongs to the
// OS thread, so Acquire pins its goroutine for the whole hold.
type mutexLock struct {
	name    string
	logger  *slog.Logger
	closing *lifecycle.Once
}

func newPlatformLock(config Config) (Lock, error) {
	return &mutexLock{
		name:    `Local\` + config.Name,
		logger:  config.Logger.With("lock", config.Name),
		closing: lifecycle.NewOnce(),
	}, nil
}

// normalizePath folds case: NTFS paths are case-insensitive.
func normalizePath(path string) string { return strings.ToLower(path) }

func (l *mutexLock) Acquire(ctx context.Context, action func()) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	name, err := windows.UTF16PtrFromString(l.name)
	if err != nil {
		return fmt.Errorf("crossprocess: encoding mutex name: %w", err)
	}
	// CreateMutex opens the existing mutex and reports
	// ERROR_ALREADY_EXISTS alongside a valid handle.
	handle, err := windows.CreateMutex(nil, false, name)
	if handle == 0 {
		return fmt.Errorf("crossprocess: creating mutex %s: %w", l.name, err)
	}
	defer windows.CloseHandle(handle)

	for {
		if l.closing.Triggered() {
			return ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		event, err := windows.WaitForSingleObject(handle, waitSlice)
		switch event {
		case windows.WAIT_OBJECT_0:
			defer windows.ReleaseMutex(handle)
			l.logger.Debug("lock acquired")
			return hold(ctx, l.closing, action)
		case windows.WAIT_ABANDONED:
			l.logger.Warn("lock abandoned by previous holder")
			windows.ReleaseMutex(handle)
			return ErrAbandoned
		case uint32(windows.WAIT_TIMEOUT):
			continue
		default:
			if err == nil {
				err = errors.New("unexpected wait result")
			}
			return fmt.Errorf("crossprocess: waiting for mutex %s: %w", l.name, err)
		}
	}
}

func (l *mutexLock) Close() error {
	l.closing.Trigger()
	return nil
}
