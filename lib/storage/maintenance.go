// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Start launches the background maintenance pass, which purges
// orphaned .tmp files once. Subsequent calls are no-ops.
func (s *Storage) Start() {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.maintenanceDone)
			if s.closing.Triggered() {
				return
			}
			removed, err := s.PurgeOrphans()
			if err != nil {
				s.logger.Warn("purging orphaned temporary files failed", "error", err)
				return
			}
			if removed > 0 {
				s.logger.Info("purged orphaned temporary files", "removed", removed)
			}
		}()
	})
}

// PurgeOrphans deletes .tmp files older than OrphanAge, stopping early
// if the storage is closing. Returns how many were removed.
func (s *Storage) PurgeOrphans() (int, error) {
	folder, err := s.Folder()
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", folder, err)
	}

	cutoff := s.clock.Now().Add(-OrphanAge)
	removed := 0
	for _, entry := range entries {
		if s.closing.Triggered() {
			break
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), temporaryExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(folder, entry.Name())); err != nil {
			s.logger.Debug("removing orphaned temporary file failed", "file", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Close stops the maintenance pass, waiting for it if it was started.
// Queue files stay on disk.
func (s *Storage) Close() error {
	s.closing.Trigger()
	started := true
	s.startOnce.Do(func() {
		started = false
		close(s.maintenanceDone)
	})
	if started {
		<-s.maintenanceDone
	}
	return nil
}
