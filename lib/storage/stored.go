// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"sync"

	"github.com/bureau-foundation/spool/lib/transmission"
)

// Stored is a transmission claimed from disk by Peek or PeekAll. While
// open, its file is excluded from later peeks. Close releases the
// claim without deleting; pass it to [Storage.Delete] to remove it.
type Stored struct {
	*transmission.Transmission

	name    string
	path    string
	release func(name string)
	once    sync.Once
}

// FileName is the claimed queue file's name within the folder.
func (s *Stored) FileName() string { return s.name }

// Path is the claimed queue file's full path.
func (s *Stored) Path() string { return s.path }

// Close releases the in-flight claim. It is idempotent and safe after
// Delete.
func (s *Stored) Close() error {
	s.once.Do(func() {
		if s.release != nil {
			s.release(s.name)
		}
	})
	return nil
}
