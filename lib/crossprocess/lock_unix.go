// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package crossprocess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/spool/lib/clock"
	"github.com/bureau-foundation/spool/lib/lifecycle"
)

// errContended means another holder has the lock; wait and retry.
var errContended = errors.New("lock held elsewhere")

// fileLock emulates a named mutex with an flock(2)-locked file whose
// content is the holder's PID. A clean release deletes the file before
// unlocking, so a file that still carries another process's PID when
// we lock it belonged to a holder that died.
type fileLock struct {
	path         string
	pollInterval time.Duration
	clock        clock.Clock
	logger       *slog.Logger
	closing      *lifecycle.Once
}

func newPlatformLock(config Config) (Lock, error) {
	if config.Directory == "" {
		return nil, errors.New("crossprocess: lock directory is required")
	}
	directory, err := filepath.Abs(config.Directory)
	if err != nil {
		return nil, fmt.Errorf("crossprocess: resolving %s: %w", config.Directory, err)
	}
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return nil, fmt.Errorf("crossprocess: creating %s: %w", directory, err)
	}
	return &fileLock{
		path:         filepath.Join(directory, config.Name+".lock"),
		pollInterval: config.PollInterval,
		clock:        config.Clock,
		logger:       config.Logger.With("lock", config.Name),
		closing:      lifecycle.NewOnce(),
	}, nil
}

func normalizePath(path string) string { return path }

func (l *fileLock) Acquire(ctx context.Context, action func()) error {
	file, err := l.lock(ctx)
	if err != nil {
		return err
	}
	defer l.release(file)

	previous, err := l.claim(file)
	if err != nil {
		return fmt.Errorf("crossprocess: claiming %s: %w", l.path, err)
	}
	if previous != 0 && previous != os.Getpid() {
		l.logger.Warn("lock abandoned by previous holder", "path", l.path, "previous_pid", previous)
		return ErrAbandoned
	}

	l.logger.Debug("lock acquired", "path", l.path)
	return hold(ctx, l.closing, action)
}

func (l *fileLock) Close() error {
	l.closing.Trigger()
	return nil
}

// lock retries tryLock until it succeeds, waking on removal of the
// lock file or every pollInterval.
func (l *fileLock) lock(ctx context.Context) (*os.File, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.logger.Debug("file watcher unavailable, polling only", "error", err)
		watcher = nil
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(l.path)); err != nil {
			l.logger.Debug("watching lock directory failed, polling only", "error", err)
		}
	}

	for {
		if l.closing.Triggered() {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := l.tryLock()
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, errContended) {
			return nil, err
		}
		if err := l.wait(ctx, watcher); err != nil {
			return nil, err
		}
	}
}

// wait returns when the lock file is removed or renamed, the poll
// interval elapses, or ctx or Close ends the attempt.
func (l *fileLock) wait(ctx context.Context, watcher *fsnotify.Watcher) error {
	timer := l.clock.NewTimer(l.pollInterval)
	defer timer.Stop()

	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	if watcher != nil {
		events = watcher.Events
		watchErrors = watcher.Errors
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closing.Done():
			return ErrClosed
		case <-timer.C:
			return nil
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(event.Name) == l.path && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return nil
			}
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			l.logger.Debug("lock directory watch error", "error", err)
		}
	}
}

// tryLock opens the lock file and takes a non-blocking exclusive
// flock on it. A lock taken on a file that has since been unlinked or
// replaced is dropped and reported as contended.
func (l *fileLock) tryLock() (*os.File, error) {
	file, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("crossprocess: opening %s: %w", l.path, err)
	}
	fd := int(file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return nil, errContended
		}
		return nil, fmt.Errorf("crossprocess: flock %s: %w", l.path, err)
	}

	var held, current unix.Stat_t
	if err := unix.Fstat(fd, &held); err != nil {
		file.Close()
		return nil, fmt.Errorf("crossprocess: fstat %s: %w", l.path, err)
	}
	if err := unix.Stat(l.path, &current); err != nil || held.Ino != current.Ino || held.Dev != current.Dev {
		file.Close()
		return nil, errContended
	}
	return file, nil
}

// claim reads the previous holder's PID, if any, and records ours.
func (l *fileLock) claim(file *os.File) (int, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	content, err := io.ReadAll(file)
	if err != nil {
		return 0, err
	}
	previous, _ := strconv.Atoi(strings.TrimSpace(string(content)))

	if err := file.Truncate(0); err != nil {
		return 0, err
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return 0, err
	}
	if err := file.Sync(); err != nil {
		return 0, err
	}
	return previous, nil
}

// release deletes the lock file, then unlocks and closes it.
func (l *fileLock) release(file *os.File) {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("removing lock file failed", "path", l.path, "error", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_UN); err != nil {
		l.logger.Debug("unlocking lock file failed", "path", l.path, "error", err)
	}
	file.Close()
	l.logger.Debug("lock released", "path", l.path)
}
