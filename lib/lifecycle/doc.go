// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle provides [Once], the one-shot shutdown signal
// shared by every long-lived spool component.
//
// Each component that owns a background goroutine embeds a Once and
// implements Close as:
//
//	func (m *Manager) Close() error {
//	    if !m.closing.Trigger() {
//	        return nil // already closed
//	    }
//	    <-m.loopDone
//	    return nil
//	}
//
// The loop itself selects on Done() to exit.
package lifecycle
