// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/spool/cmd/spool/cli"
	"github.com/bureau-foundation/spool/lib/storage"
)

func (a *app) purgeCommand() *cli.Command {
	var common commonFlags
	return &cli.Command{
		Name:    "purge",
		Summary: "Remove abandoned temporary files from the queue folder",
		Description: fmt.Sprintf(`Remove .tmp files older than %s. These are batches a process began
writing but never committed, usually because it crashed mid-write.
Committed transmissions are never touched.`, storage.OrphanAge),
		Usage: "spool purge [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("purge", pflag.ContinueOnError)
			common.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			settings, err := common.settings()
			if err != nil {
				return err
			}
			logger, err := cli.NewLogger(a.stderr, common.logLevel)
			if err != nil {
				return err
			}
			queue := openStorage(settings, logger)
			defer queue.Close()

			folder, err := queue.Folder()
			if err != nil {
				return err
			}
			removed, err := queue.PurgeOrphans()
			if err != nil {
				return fmt.Errorf("purging %s: %w", folder, err)
			}
			fmt.Fprintf(a.stdout, "removed %d orphaned temporary files from %s\n", removed, folder)
			return nil
		},
	}
}
