// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sender delivers queued transmissions from durable storage to
// their endpoints.
//
// A [Sender] runs one loop: peek the oldest queued item, send it,
// delete it unless the outcome is retryable, then wait for the computed
// interval or a [Sender.Wake]. Successful sends wait SendingInterval
// between items. Retryable failures back off exponentially from one
// second, doubling to MaxInterval ([NextBackoff]); HTTP 400 is deleted
// and resets to SendingInterval without escalating. An empty queue
// waits NoDataInterval.
//
// Before each network call the content hash is added to a [DedupCache].
// A hash already present means an identical payload is in flight or
// was recently delivered, so the item is treated as sent without a
// request. A retryable failure removes the hash so the next attempt
// is not skipped.
//
// [Sender.FlushAll] sends every queued item concurrently for
// caller-requested flushes. [Sender.Stop] waits up to DrainTimeout for
// the loop, then cancels the in-flight request and returns
// [ErrDrainTimeout].
package sender
