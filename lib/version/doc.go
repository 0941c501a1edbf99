// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the spool
// binary.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// These default to "unknown" / "0.1.0-dev" during development builds
// and test runs. [Current] fills the commit and dirty flag from the
// VCS stamp the go command embeds when ldflags left them unset.
//
//	go build -ldflags "-X github.com/bureau-foundation/spool/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/spool
package version
