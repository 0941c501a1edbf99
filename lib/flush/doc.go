// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package flush moves batches from the in-memory buffer to durable
// storage.
//
// A [Manager] loops: flush, then wait for [Manager.Signal] or the flush
// delay. Flushing dequeues the whole buffer, serializes the batch
// ([JSONLines] or [CBORSequence]), compresses it ([CompressionGzip],
// [CompressionZstd], [CompressionLZ4] or none), wraps it in a
// transmission for the configured endpoint, and hands it to storage
// synchronously. The buffer's full callback is wired to
// [Manager.BufferFull], which signals the loop so a full buffer
// flushes without waiting out the timer.
//
// [Decompress] and [DecodeItems] reverse the pipeline for inspection
// tools reading queue files.
package flush
