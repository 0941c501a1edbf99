// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the spool's
// background loops.
//
// The flush loop, the sender loop, and the cross-process lock's poll
// fallback all wait on timers. Accepting a [Clock] instead of calling
// the time package directly lets tests replace wall-clock waits with
// [FakeClock], which only moves when Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	s := sender.New(sender.Config{Clock: c, ...})
//	s.Start()
//	c.WaitForTimers(1)         // the loop is now waiting
//	c.Advance(30 * time.Second) // fire the wait deterministically
//
// WaitForTimers closes the race between a goroutine registering its
// wait and the test advancing time.
package clock
