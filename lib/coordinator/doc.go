// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package coordinator elects this process as the active transmitter
// for a storage folder and runs its senders while it is.
//
// A [Coordinator] moves through Idle, AcquiringLock, Active and
// Stopped. [Coordinator.Start] launches one goroutine that acquires the
// folder's cross-process lock; once held, the lock callback creates the
// configured number of senders and the lock stays held until Close.
// A retryable acquisition failure (an abandoned lock) loops after a
// short pause. Any other failure ends the loop for good: this process
// keeps accepting telemetry into storage, but another process, or a
// later run, does the sending.
//
// Close stops the senders before releasing the lock, so no two
// processes send from the same folder even during shutdown.
package coordinator
