// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// resolveFolder returns explicit if set, otherwise name under the
// first platform root that can be created. The folder is created with
// owner-only permissions.
func resolveFolder(explicit, name string) (string, error) {
	if explicit != "" {
		absolute, err := filepath.Abs(explicit)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		if err := os.MkdirAll(absolute, 0o700); err != nil {
			return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		return absolute, nil
	}

	var attempts *multierror.Error
	for _, root := range candidateRoots() {
		if root == "" {
			continue
		}
		folder := filepath.Join(root, name)
		if err := os.MkdirAll(folder, 0o700); err != nil {
			attempts = multierror.Append(attempts, err)
			continue
		}
		return folder, nil
	}
	if err := attempts.ErrorOrNil(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return "", fmt.Errorf("%w: no candidate root directory", ErrStorageUnavailable)
}
