// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package crossprocess

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestNameForFolder(t *testing.T) {
	directory := t.TempDir()

	first, err := NameForFolder("spool-", directory)
	if err != nil {
		t.Fatalf("NameForFolder: %v", err)
	}
	if !strings.HasPrefix(first, "spool-") {
		t.Errorf("name %q lacks prefix", first)
	}

	again, err := NameForFolder("spool-", directory+string(filepath.Separator))
	if err != nil {
		t.Fatalf("NameForFolder: %v", err)
	}
	if again != first {
		t.Errorf("trailing separator changed the name: %q vs %q", again, first)
	}

	dotted, _ := NameForFolder("spool-", filepath.Join(directory, "sub", ".."))
	if dotted != first {
		t.Errorf("uncleaned path changed the name: %q vs %q", dotted, first)
	}

	other, _ := NameForFolder("spool-", filepath.Join(directory, "other"))
	if other == first {
		t.Error("different folders produced the same lock name")
	}
}

func TestNewRequiresName(t *testing.T) {
	if _, err := New(Config{Directory: t.TempDir()}); err == nil {
		t.Error("New without a name succeeded")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrAbandoned) {
		t.Error("ErrAbandoned should be retryable")
	}
	if IsRetryable(ErrClosed) {
		t.Error("ErrClosed should be fatal")
	}
	if IsRetryable(errors.New("permission denied")) {
		t.Error("arbitrary errors should be fatal")
	}
}

func TestFailedLockNeverRunsAction(t *testing.T) {
	cause := errors.New("no folder")
	lock := Failed(cause)

	ran := false
	err := lock.Acquire(context.Background(), func() { ran = true })
	if !errors.Is(err, cause) {
		t.Errorf("Acquire = %v, want %v", err, cause)
	}
	if ran {
		t.Error("action ran on a lock that cannot be held")
	}
	if IsRetryable(err) {
		t.Error("failure reported as retryable")
	}
	if err := lock.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}
