// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage is the spool's durable queue: a folder of
// serialized transmissions shared by every process configured with the
// same path.
//
// Each queued transmission is one file. [Storage.Enqueue] writes
// "<timestamp>_<id>.tmp", fsyncs it, and renames it to ".trn". The
// rename is the crash-safety boundary: a process killed mid-write
// leaves an orphaned .tmp that no reader ever sees, and which the
// maintenance pass deletes once it is five minutes old. Only .trn
// files are visible to [Storage.Peek] and [Storage.PeekAll].
//
// The timestamp prefix makes filename order creation order, so Peek
// delivers oldest first. Peek claims a file by renaming it to a fresh
// id under the same timestamp prefix and records it in an in-flight
// set; the returned [Stored] releases that claim on Close. Items
// handed to [Storage.Delete] move to a pending-delete set and their
// removal is retried on every later Delete until the OS allows it.
// Neither set's members are ever returned by Peek again.
//
// Enqueue never blocks on or reports failure to producers beyond its
// return value: an unavailable folder, a full queue (MaxFiles files or
// CapacityBytes bytes) or a failed write drops the transmission and
// counts it.
//
// Writing is open to every process. Peeking and deleting are meant for
// the single process holding the folder's cross-process lock; the
// in-process mutex only serializes the goroutines of that process.
package storage
