// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import "sync/atomic"

// Once is an atomic flag guarding the close of a done channel. The
// zero value is not usable; construct with [NewOnce].
type Once struct {
	triggered atomic.Bool
	done      chan struct{}
}

// NewOnce returns an untriggered Once.
func NewOnce() *Once {
	return &Once{done: make(chan struct{})}
}

// Trigger closes the done channel. Returns true only for the call that
// performed the transition; every later call returns false.
func (o *Once) Trigger() bool {
	if !o.triggered.CompareAndSwap(false, true) {
		return false
	}
	close(o.done)
	return true
}

// Triggered reports whether Trigger has been called.
func (o *Once) Triggered() bool { return o.triggered.Load() }

// Done returns a channel closed by the first Trigger.
func (o *Once) Done() <-chan struct{} { return o.done }
