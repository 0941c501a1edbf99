// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"bytes"
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func TestBuildString(t *testing.T) {
	build := Build{Version: "1.2.3", Commit: "abc1234", Time: "2026-10-14T00:00:00Z"}
	if got, want := build.String(), "1.2.3 (abc1234, 2026-10-14T00:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	build.Dirty = true
	if !strings.Contains(build.String(), "abc1234-dirty") {
		t.Errorf("String() = %q, want dirty marker", build.String())
	}
}

func TestWithSettingsFillsDefaults(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
	}

	build := Build{Version: "0.1.0-dev", Commit: "unknown", Time: "unknown"}.withSettings(settings)
	if build.Commit != "0123456789ab" {
		t.Errorf("Commit = %q, want the revision truncated to 12", build.Commit)
	}
	if !build.Dirty {
		t.Error("Dirty = false, want true from vcs.modified")
	}
	if build.Time != "2026-10-01T12:00:00Z" {
		t.Errorf("Time = %q", build.Time)
	}
}

func TestWithSettingsKeepsLdflags(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "ffffffffffff"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
	}

	build := Build{Version: "1.0.0", Commit: "abc1234", Time: "2026-10-14T00:00:00Z"}.withSettings(settings)
	if build.Commit != "abc1234" || build.Dirty {
		t.Errorf("stamped commit overridden: %+v", build)
	}
	if build.Time != "2026-10-14T00:00:00Z" {
		t.Errorf("stamped time overridden: %q", build.Time)
	}
}

func TestPrint(t *testing.T) {
	var buffer bytes.Buffer
	Print(&buffer, "spool")
	output := buffer.String()
	if !strings.HasPrefix(output, "spool "+Version) {
		t.Errorf("Print output = %q", output)
	}
	if !strings.Contains(output, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Print output missing platform: %q", output)
	}
}
