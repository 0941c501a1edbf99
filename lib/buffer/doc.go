// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buffer accumulates telemetry items in memory until the flush
// manager takes them as a batch.
//
// Producers call [Buffer.Enqueue] from any goroutine; it never blocks
// beyond a short mutex hold and never fails. When an enqueue brings the
// buffer to capacity, the onFull callback runs synchronously on the
// producer's goroutine after the lock is released, so a callback that
// dequeues does not deadlock.
package buffer
