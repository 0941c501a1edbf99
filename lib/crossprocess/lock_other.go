// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !windows && !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package crossprocess

import (
	"errors"
	"runtime"
)

func newPlatformLock(Config) (Lock, error) {
	return nil, errors.New("crossprocess: no lock implementation for " + runtime.GOOS)
}

func normalizePath(path string) string { return path }
