// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/bureau-foundation/spool/lib/clock"
	"github.com/bureau-foundation/spool/lib/lifecycle"
	"github.com/bureau-foundation/spool/lib/metrics"
	"github.com/bureau-foundation/spool/lib/transmission"
)

const (
	// DefaultMaxFiles caps the number of queue files in the folder.
	DefaultMaxFiles = 5000

	// DefaultCapacityBytes caps the total size of queue files.
	DefaultCapacityBytes int64 = 10 * 1024 * 1024

	// DefaultFolderName is the folder created under the platform
	// cache root when no explicit folder is configured.
	DefaultFolderName = "spool"

	// OrphanAge is how old a .tmp file must be before the maintenance
	// pass treats it as a crashed write.
	OrphanAge = 5 * time.Minute

	// dropLogInterval throttles the "queue full" warning.
	dropLogInterval = 100

	visibleExtension   = ".trn"
	temporaryExtension = ".tmp"

	// timestampLayout is fixed width so lexical order is time order.
	timestampLayout = "20060102150405.000000000"
)

var (
	// ErrStorageUnavailable means the storage folder could not be
	// resolved or created. The failure is memoized.
	ErrStorageUnavailable = errors.New("storage: folder unavailable")

	// ErrCapacity means the queue is at MaxFiles or CapacityBytes.
	ErrCapacity = errors.New("storage: capacity reached")
)

// Config configures a Storage.
type Config struct {
	// Folder is the queue directory. When empty, FolderName is joined
	// onto the first usable platform cache root.
	Folder string

	// FolderName names the queue directory under the platform cache
	// root. Default: DefaultFolderName.
	FolderName string

	// MaxFiles and CapacityBytes bound the queue. Non-positive values
	// select the defaults.
	MaxFiles      int
	CapacityBytes int64

	// Timeout is the per-POST timeout given to transmissions loaded
	// back from disk.
	Timeout time.Duration

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Storage is a disk-backed, capacity-bounded queue of transmissions.
// Safe for concurrent use.
type Storage struct {
	folderConfig  string
	folderName    string
	maxFiles      int
	capacityBytes int64
	timeout       time.Duration
	clock         clock.Clock
	logger        *slog.Logger
	metrics       *metrics.Metrics

	folderOnce sync.Once
	folder     string
	folderErr  error

	// mu serializes candidate scanning, claiming renames and deletes.
	mu            sync.Mutex
	inFlight      map[string]string
	pendingDelete map[string]string

	dropped atomic.Uint64

	closing         *lifecycle.Once
	startOnce       sync.Once
	maintenanceDone chan struct{}
}

// New returns a Storage. It touches the filesystem only when first
// used; call Start to run the orphan maintenance pass.
func New(config Config) *Storage {
	if config.FolderName == "" {
		config.FolderName = DefaultFolderName
	}
	if config.MaxFiles <= 0 {
		config.MaxFiles = DefaultMaxFiles
	}
	if config.CapacityBytes <= 0 {
		config.CapacityBytes = DefaultCapacityBytes
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Storage{
		folderConfig:    config.Folder,
		folderName:      config.FolderName,
		maxFiles:        config.MaxFiles,
		capacityBytes:   config.CapacityBytes,
		timeout:         config.Timeout,
		clock:           config.Clock,
		logger:          config.Logger,
		metrics:         config.Metrics,
		inFlight:        make(map[string]string),
		pendingDelete:   make(map[string]string),
		closing:         lifecycle.NewOnce(),
		maintenanceDone: make(chan struct{}),
	}
}

// Folder returns the resolved queue directory, creating it on first
// call. The result, success or failure, is memoized.
func (s *Storage) Folder() (string, error) {
	s.folderOnce.Do(func() {
		s.folder, s.folderErr = resolveFolder(s.folderConfig, s.folderName)
		if s.folderErr != nil {
			s.logger.Error("storage folder unavailable, telemetry will be dropped",
				"folder", s.folderConfig,
				"error", s.folderErr,
			)
		}
	})
	return s.folder, s.folderErr
}

// Enqueue persists t. On any failure t is dropped: the error says
// why, and is also counted and logged here.
func (s *Storage) Enqueue(t *transmission.Transmission) error {
	folder, err := s.Folder()
	if err != nil {
		s.metrics.Dropped(metrics.DropUnavailable)
		if dropped := s.dropped.Add(1); dropped%dropLogInterval == 1 {
			s.logger.Warn("storage folder unavailable, dropping transmission", "error", err, "dropped", dropped)
		}
		return err
	}

	files, size, err := usage(folder)
	if err != nil {
		s.metrics.Dropped(metrics.DropWriteError)
		s.logger.Warn("measuring storage usage failed, dropping transmission", "folder", folder, "error", err)
		return fmt.Errorf("measuring storage usage: %w", err)
	}
	if files >= s.maxFiles || size >= s.capacityBytes {
		s.metrics.Dropped(metrics.DropCapacity)
		dropped := s.dropped.Add(1)
		if dropped%dropLogInterval == 1 {
			s.logger.Warn("storage full, dropping transmission",
				"folder", folder,
				"files", files,
				"bytes", size,
				"max_files", s.maxFiles,
				"capacity_bytes", s.capacityBytes,
				"dropped", dropped,
			)
		}
		return ErrCapacity
	}

	if err := s.write(folder, t); err != nil {
		s.metrics.Dropped(metrics.DropWriteError)
		s.logger.Warn("writing transmission failed, dropping it", "folder", folder, "error", err)
		return err
	}
	s.metrics.Enqueued()
	return nil
}

// write stores t as a .tmp file and renames it into view.
func (s *Storage) write(folder string, t *transmission.Transmission) error {
	base := s.newBaseName(s.clock.Now())
	temporaryPath := filepath.Join(folder, base+temporaryExtension)
	visiblePath := filepath.Join(folder, base+visibleExtension)

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary queue file: %w", err)
	}
	if err := transmission.Encode(file, t); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary queue file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary queue file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary queue file: %w", err)
	}
	if err := os.Rename(temporaryPath, visiblePath); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming queue file into place: %w", err)
	}
	return nil
}

// Peek claims the oldest visible file that is neither in flight nor
// pending delete. Returns (nil, nil) when there is nothing to send.
func (s *Storage) Peek() (*Stored, error) {
	folder, err := s.Folder()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.deletePendingLocked()

	names, err := visibleNames(folder)
	if err != nil {
		return nil, fmt.Errorf("listing queue files: %w", err)
	}
	for _, name := range names {
		if stored := s.claimLocked(folder, name); stored != nil {
			return stored, nil
		}
	}
	return nil, nil
}

// PeekAll claims every eligible file, oldest first. If ctx is
// canceled between files, the claims made so far are released and
// ctx's error is returned.
func (s *Storage) PeekAll(ctx context.Context) ([]*Stored, error) {
	folder, err := s.Folder()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.deletePendingLocked()

	names, err := visibleNames(folder)
	if err != nil {
		return nil, fmt.Errorf("listing queue files: %w", err)
	}
	var claimed []*Stored
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			for _, stored := range claimed {
				delete(s.inFlight, stored.name)
			}
			return nil, err
		}
		if stored := s.claimLocked(folder, name); stored != nil {
			claimed = append(claimed, stored)
		}
	}
	return claimed, nil
}

// claimLocked renames name to a fresh id, loads it and marks it in
// flight. Returns nil when the file is ineligible, gone, corrupt or
// unreadable. Only corrupt files are scheduled for deletion.
func (s *Storage) claimLocked(folder, name string) *Stored {
	if _, busy := s.inFlight[name]; busy {
		return nil
	}
	if _, doomed := s.pendingDelete[name]; doomed {
		return nil
	}

	claimedName := s.renamedName(name)
	oldPath := filepath.Join(folder, name)
	claimedPath := filepath.Join(folder, claimedName)
	if err := os.Rename(oldPath, claimedPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("claiming queue file failed", "file", name, "error", err)
		}
		return nil
	}

	t, err := readFile(claimedPath, s.timeout)
	if err != nil {
		s.metrics.LoadFailed()
		if errors.Is(err, transmission.ErrFormat) {
			s.logger.Warn("discarding malformed queue file", "file", claimedName, "error", err)
			s.pendingDelete[claimedName] = claimedPath
			return nil
		}
		// Left in place for a later pass.
		s.logger.Warn("reading queue file failed, skipping it", "file", claimedName, "error", err)
		return nil
	}

	s.inFlight[claimedName] = claimedPath
	return &Stored{
		Transmission: t,
		name:         claimedName,
		path:         claimedPath,
		release:      s.release,
	}
}

// Delete removes stored from disk. Failures are retried on later calls
// and never reported to the caller.
func (s *Storage) Delete(stored *Stored) {
	if stored == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, stored.name)
	s.pendingDelete[stored.name] = stored.path
	s.deletePendingLocked()
}

// deletePendingLocked attempts every pending delete.
func (s *Storage) deletePendingLocked() {
	var failures *multierror.Error
	for name, path := range s.pendingDelete {
		err := os.Remove(path)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			delete(s.pendingDelete, name)
			continue
		}
		failures = multierror.Append(failures, err)
	}
	if err := failures.ErrorOrNil(); err != nil {
		s.logger.Warn("deleting queue files failed, will retry",
			"pending", len(s.pendingDelete),
			"error", err,
		)
	}
}

func (s *Storage) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, name)
}

// InFlight returns how many files are currently claimed.
func (s *Storage) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// Stats describes the queue at one instant.
type Stats struct {
	Files   int
	Bytes   int64
	Dropped uint64
}

// Stats measures the folder. Files and Bytes include .tmp files, which
// count toward capacity.
func (s *Storage) Stats() (Stats, error) {
	folder, err := s.Folder()
	if err != nil {
		return Stats{}, err
	}
	files, size, err := usage(folder)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Files: files, Bytes: size, Dropped: s.dropped.Load()}, nil
}

// Entry describes one visible queue file without claiming it.
type Entry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns the visible queue files in delivery order. It does not
// claim them; use it for inspection only.
func (s *Storage) List() ([]Entry, error) {
	folder, err := s.Folder()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var result []Entry
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), visibleExtension) || entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		result = append(result, Entry{
			Name:    entry.Name(),
			Path:    filepath.Join(folder, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return result, nil
}

// ReadFile loads one queue file.
func ReadFile(path string, timeout time.Duration) (*transmission.Transmission, error) {
	return readFile(path, timeout)
}

func readFile(path string, timeout time.Duration) (*transmission.Transmission, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return transmission.Decode(file, timeout)
}

// newBaseName returns "<timestamp>_<id>" for a new queue file.
func (s *Storage) newBaseName(now time.Time) string {
	return now.UTC().Format(timestampLayout) + "_" + randomID()
}

// renamedName keeps name's timestamp prefix and replaces its id.
func (s *Storage) renamedName(name string) string {
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		prefix = strings.TrimSuffix(name, visibleExtension)
	}
	return prefix + "_" + randomID() + visibleExtension
}

func randomID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// visibleNames lists .trn files in lexical (delivery) order.
func visibleNames(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), visibleExtension) {
			continue
		}
		names = append(names, entry.Name())
	}
	// ReadDir already sorts by name; keep the order explicit.
	sort.Strings(names)
	return names, nil
}

// usage counts queue files (.trn and .tmp) and their total size.
func usage(folder string) (int, int64, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, 0, err
	}
	files := 0
	var size int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, visibleExtension) && !strings.HasSuffix(name, temporaryExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Claimed or deleted between ReadDir and Info.
			continue
		}
		files++
		size += info.Size()
	}
	return files, size, nil
}
