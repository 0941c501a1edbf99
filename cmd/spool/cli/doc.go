// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree behind the spool binary.
//
// A [Command] is either a group dispatching on its first positional
// argument or a leaf with a flag set and a Run function. Unknown
// commands and flags are reported with the closest known name when the
// edit distance is small, and every error points at --help.
//
// [NewLogger] builds the slog logger every command shares: text on a
// terminal, JSON otherwise, at the level named by --log-level.
package cli
