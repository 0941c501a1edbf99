// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package crossprocess provides a named lock shared by every process
// on the machine, used to elect the one process allowed to transmit
// from a storage folder.
//
// [Lock.Acquire] holds the lock for the caller's working lifetime, not
// just for the callback: it blocks until the lock is obtained, runs the
// action, and keeps holding until the context is canceled or the lock
// is closed.
//
// [New] selects the platform implementation. On Windows it is a named
// kernel mutex held on a locked OS thread. Elsewhere it is emulated
// with an flock(2)-locked file in the configured directory, with
// fsnotify waking waiters when the holder removes the file and a
// one-second poll as the fallback. Both report a previous holder that
// died while holding the lock as [ErrAbandoned], which is retryable;
// other failures are fatal for the lock object.
package crossprocess
