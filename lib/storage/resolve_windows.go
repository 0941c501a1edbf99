// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package storage

import "os"

// candidateRoots tries the per-user local application data directory
// first and falls back to the temp directory.
func candidateRoots() []string {
	return []string{os.Getenv("LOCALAPPDATA"), os.Getenv("TEMP")}
}
