// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package storage

import "os"

// candidateRoots returns the user cache directory ($XDG_CACHE_HOME or
// ~/.cache, ~/Library/Caches on macOS), then the temp directory.
func candidateRoots() []string {
	var roots []string
	if cache, err := os.UserCacheDir(); err == nil {
		roots = append(roots, cache)
	}
	return append(roots, os.TempDir())
}
