// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel assembles the spool pipeline behind one handle.
//
// A [Channel] owns an in-memory buffer, the flush loop that moves
// batches from the buffer into durable storage, and a coordinator that
// runs senders only while this process holds the cross-process lock
// for the storage folder. Producers call [Channel.Send] from any
// goroutine; it never blocks on I/O and never fails.
//
// Lifecycle is explicit: [New] wires the components without starting
// anything, [Channel.Start] launches the background loops, and
// [Channel.Close] flushes the buffer to disk, drains the senders and
// releases the lock. Items still on disk at Close are delivered by
// whichever process next holds the lock.
package channel
