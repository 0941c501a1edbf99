// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/spool/cmd/spool/cli"
	"github.com/bureau-foundation/spool/lib/channel"
	"github.com/bureau-foundation/spool/lib/config"
	"github.com/bureau-foundation/spool/lib/storage"
)

// maxLineBytes bounds one input record.
const maxLineBytes = 4 * 1024 * 1024

// defaultLockWait is how long send and run wait to become the
// transmitting process before leaving their items to the holder.
const defaultLockWait = 5 * time.Second

// app carries the process streams so commands can be driven from
// tests.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:        "spool",
		Description: "Durable, lock-coordinated telemetry delivery.",
		Output:      a.stderr,
		Subcommands: []*cli.Command{
			a.sendCommand(),
			a.runCommand(),
			a.inspectCommand(),
			a.purgeCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Deliver a file of records",
				Command:     "spool send --endpoint https://collector.example.com/v1/batch --file events.jsonl",
			},
			{
				Description: "Show what is waiting on disk",
				Command:     "spool inspect --decode",
			},
		},
	}
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configPath string
	endpoint   string
	folder     string
	logLevel   string
}

func (f *commonFlags) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "path to a spool.yaml or spool.jsonc file (default: $SPOOL_CONFIG)")
	flagSet.StringVar(&f.endpoint, "endpoint", "", "endpoint URL, overriding the config file")
	flagSet.StringVar(&f.folder, "folder", "", "storage folder, overriding the config file")
	flagSet.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
}

// settings loads the configuration and applies flag overrides. Without
// --config or $SPOOL_CONFIG the built-in defaults are used.
func (f *commonFlags) settings() (*config.Config, error) {
	var (
		settings *config.Config
		err      error
	)
	switch {
	case f.configPath != "":
		settings, err = config.LoadFile(f.configPath)
	case os.Getenv("SPOOL_CONFIG") != "":
		settings, err = config.Load()
	default:
		settings = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if f.endpoint != "" {
		settings.Endpoint = f.endpoint
	}
	if f.folder != "" {
		settings.Storage.Path = f.folder
	}
	return settings, nil
}

// openStorage returns a Storage over the configured folder for the
// maintenance commands. It never starts background work.
func openStorage(settings *config.Config, logger *slog.Logger) *storage.Storage {
	return storage.New(storage.Config{
		Folder:        settings.Storage.Path,
		FolderName:    settings.Storage.FolderName,
		MaxFiles:      settings.Storage.MaxFiles,
		CapacityBytes: settings.Storage.CapacityBytes,
		Timeout:       settings.RequestTimeout.Std(),
		Logger:        logger,
	})
}

// readItems decodes one JSON value per line and hands each to send.
// Blank lines are skipped. In strict mode a malformed line ends the
// read; otherwise it is logged and skipped.
func readItems(r io.Reader, logger *slog.Logger, strict bool, send func(any)) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	count := 0
	for line := 1; scanner.Scan(); line++ {
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var item any
		if err := json.Unmarshal(text, &item); err != nil {
			if strict {
				return count, fmt.Errorf("line %d: %w", line, err)
			}
			logger.Warn("skipping malformed record", "line", line, "error", err)
			continue
		}
		send(item)
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading input: %w", err)
	}
	return count, nil
}

// transmit pushes everything queued out through ch. If another process
// holds the lock for lockWait, the items are only flushed to disk and
// left for it to deliver.
func transmit(ctx context.Context, ch *channel.Channel, lockWait, timeout time.Duration, logger *slog.Logger) error {
	waitContext, cancelWait := context.WithTimeout(ctx, lockWait)
	err := ch.WaitActive(waitContext)
	cancelWait()

	switch {
	case err == nil:
		sendContext, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ch.FlushAndTransmit(sendContext)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Info("another process is transmitting from this folder, leaving items queued",
			"folder", ch.Folder(),
		)
		return ch.Flush(context.Background())
	case errors.Is(err, channel.ErrNotTransmitting):
		logger.Warn("this process cannot transmit, leaving items queued", "folder", ch.Folder())
		return ch.Flush(context.Background())
	default:
		// Interrupted: still get the buffer onto disk.
		if flushErr := ch.Flush(context.Background()); flushErr != nil {
			return errors.Join(err, flushErr)
		}
		return err
	}
}
