// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for spool packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// safety valve so a broken loop fails the test instead of hanging it.
// They are the only place in the test suite where wall-clock timeouts
// are used; everything else runs on a fake clock.
//
// [Logger] returns a slog.Logger that writes through t.Log, so log
// output from background goroutines is attributed to the test that
// produced it and suppressed unless the test fails or -v is set.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
