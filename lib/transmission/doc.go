// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transmission defines the unit of work the spool delivers: a
// destination endpoint, an opaque payload, and the Content-Type and
// Content-Encoding headers it is POSTed with.
//
// A [Transmission] is immutable after [New]. Ownership moves along the
// pipeline (flush manager → storage → sender) and is never shared for
// mutation. Its [Transmission.ContentHash] is a BLAKE3 keyed hash of
// the payload bytes, computed lazily once, and is what the sender's
// duplicate-suppression cache keys on.
//
// [Transmission.Send] performs one POST bounded by the transmission's
// timeout and the caller's context. [Classify] maps the result of a
// send to an [Outcome] that tells the sender whether to delete the
// item, leave it on disk, or back off.
//
// [Encode] and [Decode] implement the queue file format:
//
//	https://collector.example/v2/track
//	Content-Type:application/x-json-stream
//	Content-Encoding:gzip
//
//	H4sIAAAAAAAA/6pWykvMTVWyUkpKLEpVqgUAAAD//w==
//
// Line one is the endpoint, lines two and three are the headers (the
// value may be empty), line four is blank, and the remainder is the
// standard base64 encoding of the payload.
package transmission
