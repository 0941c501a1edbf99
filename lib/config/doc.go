// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads spool configuration.
//
// Configuration comes from a single file named by either the
// SPOOL_CONFIG environment variable (via [Load]) or an explicit path
// (via [LoadFile]). Files ending in .json or .jsonc are read as JSON
// with comments and trailing commas allowed; anything else is YAML.
// Either way the file is decoded on top of [Default], so it only names
// what it changes.
//
// The file may carry development, staging and production sections
// whose values override the base when [Config].Environment matches.
//
// After loading, ${HOME} and ${VAR:-default} patterns in the storage
// path are expanded. No other environment variables override config
// values.
//
// Durations are strings in [time.ParseDuration] syntax ("30s", "1h").
//
// This package depends on no other spool packages.
package config
