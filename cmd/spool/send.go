// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/spool/cmd/spool/cli"
	"github.com/bureau-foundation/spool/lib/channel"
)

func (a *app) sendCommand() *cli.Command {
	var (
		common   commonFlags
		file     string
		timeout  time.Duration
		lockWait time.Duration
	)
	return &cli.Command{
		Name:    "send",
		Summary: "Send JSON lines through the durable queue",
		Description: `Read one JSON record per line, batch the records through the queue
folder, and deliver them before exiting. If another process is already
transmitting from the same folder, the records are persisted and left
for that process.`,
		Usage: "spool send [flags]",
		Examples: []cli.Example{
			{
				Description: "Send records from stdin",
				Command:     "producer | spool send --endpoint https://collector.example.com/v1/batch",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("send", pflag.ContinueOnError)
			common.addFlags(flagSet)
			flagSet.StringVar(&file, "file", "-", "input file of JSON lines, or - for stdin")
			flagSet.DurationVar(&timeout, "timeout", 2*time.Minute, "bound on delivering the queue once this process transmits")
			flagSet.DurationVar(&lockWait, "lock-wait", defaultLockWait, "how long to wait for the transmission lock")
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
			if err := settings.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, err := cli.NewLogger(a.stderr, common.logLevel)
			if err != nil {
				return err
			}

			input := a.stdin
			if file != "-" {
				opened, err := os.Open(file)
				if err != nil {
					return err
				}
				defer opened.Close()
				input = opened
			}

			ch, err := channel.New(channel.Config{Settings: settings, Logger: logger})
			if err != nil {
				return err
			}
			ch.Start()

			var result *multierror.Error
			count, err := readItems(input, logger, true, ch.Send)
			if err != nil {
				result = multierror.Append(result, err)
			}
			if err := transmit(ctx, ch, lockWait, timeout, logger); err != nil {
				result = multierror.Append(result, fmt.Errorf("transmitting: %w", err))
			}
			if err := ch.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("closing: %w", err))
			}

			a.printSummary(a.stdout, ch, count)
			return result.ErrorOrNil()
		},
	}
}

// printSummary reports how many records were read and what is still on
// disk.
func (a *app) printSummary(w io.Writer, ch *channel.Channel, count int) {
	stats, err := ch.Stats()
	if err != nil {
		fmt.Fprintf(w, "%d records read\n", count)
		return
	}
	fmt.Fprintf(w, "%d records read, %d transmissions queued in %s\n", count, stats.Files, ch.Folder())
}
