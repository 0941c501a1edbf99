// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sender

import "time"

// InitialBackoff is the first retry interval after an interval of 0.
const InitialBackoff = time.Second

// NextBackoff returns the retry interval following current: one second
// from zero, otherwise double, capped at limit.
func NextBackoff(current, limit time.Duration) time.Duration {
	if current <= 0 {
		return min(InitialBackoff, limit)
	}
	if current >= limit/2 {
		return limit
	}
	return current * 2
}
