// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/spool/cmd/spool/cli"
	"github.com/bureau-foundation/spool/lib/channel"
)

type readResult struct {
	count int
	err   error
}

func (a *app) runCommand() *cli.Command {
	var (
		common        commonFlags
		metricsListen string
		drainTimeout  time.Duration
		lockWait      time.Duration
	)
	return &cli.Command{
		Name:    "run",
		Summary: "Relay JSON lines from stdin until EOF or a signal",
		Description: `Run a long-lived relay: records read from stdin are batched into the
queue folder, and, while this process holds the folder's transmission
lock, everything queued there is delivered, including what other
processes left behind. On EOF, SIGINT or SIGTERM the relay flushes,
drains for up to --drain-timeout, and exits.`,
		Usage: "spool run [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			common.addFlags(flagSet)
			flagSet.StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics at this address (overrides metrics_listen)")
			flagSet.DurationVar(&drainTimeout, "drain-timeout", 30*time.Second, "bound on the final delivery pass at shutdown")
			flagSet.DurationVar(&lockWait, "lock-wait", defaultLockWait, "how long the final pass waits for the transmission lock")
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
			if metricsListen != "" {
				settings.MetricsListen = metricsListen
			}
			if err := settings.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, err := cli.NewLogger(a.stderr, common.logLevel)
			if err != nil {
				return err
			}

			registry := newRegistry()
			ch, err := channel.New(channel.Config{
				Settings:   settings,
				Registerer: registry,
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			if settings.MetricsListen != "" {
				stopMetrics, err := serveMetrics(settings.MetricsListen, registry, logger)
				if err != nil {
					ch.Close()
					return err
				}
				defer stopMetrics()
			}
			ch.Start()

			logger.Info("spool relay running",
				"folder", ch.Folder(),
				"endpoint", settings.Endpoint,
				"senders", settings.Senders,
				"buffer_capacity", settings.BufferSize(),
			)

			reads := make(chan readResult, 1)
			go func() {
				count, err := readItems(a.stdin, logger, false, ch.Send)
				reads <- readResult{count: count, err: err}
			}()

			var result *multierror.Error
			count := 0
			select {
			case <-ctx.Done():
				logger.Info("shutting down")
			case read := <-reads:
				count = read.count
				if read.err != nil {
					result = multierror.Append(result, read.err)
				}
				logger.Info("input closed, draining", "records", read.count)
			}

			// The caller's context may already be canceled; the drain
			// gets its own bound.
			drainContext, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			if err := transmit(drainContext, ch, lockWait, drainTimeout, logger); err != nil {
				result = multierror.Append(result, fmt.Errorf("draining: %w", err))
			}
			if err := ch.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("closing: %w", err))
			}

			a.printSummary(a.stdout, ch, count)
			return result.ErrorOrNil()
		},
	}
}
