// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/spool/cmd/spool/cli"
	"github.com/bureau-foundation/spool/lib/flush"
	"github.com/bureau-foundation/spool/lib/storage"
	"github.com/bureau-foundation/spool/lib/transmission"
)

func (a *app) inspectCommand() *cli.Command {
	var (
		common commonFlags
		decode bool
	)
	return &cli.Command{
		Name:    "inspect",
		Summary: "List queued transmissions in delivery order",
		Usage:   "spool inspect [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			common.addFlags(flagSet)
			flagSet.BoolVar(&decode, "decode", false, "decompress and print each transmission's records")
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
			entries, err := queue.List()
			if err != nil {
				return fmt.Errorf("listing %s: %w", folder, err)
			}
			if len(entries) == 0 {
				fmt.Fprintf(a.stdout, "no transmissions queued in %s\n", folder)
				return nil
			}

			var total int64
			for _, entry := range entries {
				total += entry.Size
			}
			fmt.Fprintf(a.stdout, "%d transmissions, %d bytes in %s\n\n", len(entries), total, folder)

			if decode {
				return inspectDecoded(a.stdout, entries, settings.RequestTimeout.Std())
			}
			return inspectTable(a.stdout, entries, settings.RequestTimeout.Std())
		},
	}
}

func inspectTable(w io.Writer, entries []storage.Entry, timeout time.Duration) error {
	table := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(table, "NAME\tSIZE\tTYPE\tENCODING\tHASH\tENDPOINT")
	for _, entry := range entries {
		t, err := storage.ReadFile(entry.Path, timeout)
		if err != nil {
			fmt.Fprintf(table, "%s\t%d\t%s\t\t\t\n", entry.Name, entry.Size, describeReadError(err))
			continue
		}
		encoding := t.ContentEncoding()
		if encoding == "" {
			encoding = "-"
		}
		fmt.Fprintf(table, "%s\t%d\t%s\t%s\t%s\t%s\n",
			entry.Name, entry.Size, t.ContentType(), encoding, t.ContentHash().Short(), t.Endpoint())
	}
	return table.Flush()
}

func inspectDecoded(w io.Writer, entries []storage.Entry, timeout time.Duration) error {
	for _, entry := range entries {
		t, err := storage.ReadFile(entry.Path, timeout)
		if err != nil {
			fmt.Fprintf(w, "%s: %s\n\n", entry.Name, describeReadError(err))
			continue
		}
		fmt.Fprintf(w, "%s -> %s (%s)\n", entry.Name, t.Endpoint(), t.ContentType())
		items, err := decodeItems(t)
		if err != nil {
			fmt.Fprintf(w, "  cannot decode: %v\n\n", err)
			continue
		}
		for _, item := range items {
			line, err := json.Marshal(item)
			if err != nil {
				fmt.Fprintf(w, "  %v\n", item)
				continue
			}
			fmt.Fprintf(w, "  %s\n", line)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func decodeItems(t *transmission.Transmission) ([]any, error) {
	body, err := flush.Decompress(t.ContentEncoding(), t.Content())
	if err != nil {
		return nil, err
	}
	return flush.DecodeItems(t.ContentType(), body)
}

// describeReadError renders a load failure for the listing. A file
// that vanished was claimed by a sender after List.
func describeReadError(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "(being sent)"
	case errors.Is(err, transmission.ErrFormat):
		return "(malformed)"
	default:
		return fmt.Sprintf("(unreadable: %v)", err)
	}
}
