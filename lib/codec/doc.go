// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the spool's CBOR configuration.
//
// Batches serialized as application/cbor are CBOR sequences (RFC 8742):
// one top-level data item per telemetry record, concatenated. Encoding
// uses Core Deterministic Encoding so identical batches produce
// identical bytes, which keeps content-hash deduplication effective
// across processes.
//
// Decoding into an any-typed target produces map[string]any rather than
// CBOR's default map[any]any, so decoded records can be re-rendered as
// JSON by inspection tools.
package codec
