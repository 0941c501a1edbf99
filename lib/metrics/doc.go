// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the spool's delivery counters as Prometheus
// collectors.
//
// A [Metrics] is registered on a caller-supplied registerer rather
// than the global default, so tests and multiple channels in one
// process do not collide. Every method is safe on a nil receiver,
// which is how components run with metrics disabled.
package metrics
