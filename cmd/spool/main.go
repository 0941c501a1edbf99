// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// spool moves newline-delimited JSON records through the durable
// telemetry queue and lets operators inspect and maintain the queue
// folder.
//
// Every process pointed at the same storage folder shares one queue:
// records are batched in memory, persisted atomically, and delivered
// to the configured endpoint by whichever process currently holds the
// folder's cross-process lock. A short-lived "spool send" therefore
// only has to reach disk; a long-running "spool run" relay (or the
// next send) delivers what it leaves behind.
//
// Configuration is read from --config, then $SPOOL_CONFIG, falling
// back to built-in defaults. --endpoint and --folder override the
// loaded values.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/spool/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Handle --version before dispatch so it works without a subcommand.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print(os.Stdout, "spool")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	return application.root().Execute(ctx, os.Args[1:])
}
