// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/spool/lib/buffer"
	"github.com/bureau-foundation/spool/lib/clock"
	"github.com/bureau-foundation/spool/lib/config"
	"github.com/bureau-foundation/spool/lib/coordinator"
	"github.com/bureau-foundation/spool/lib/crossprocess"
	"github.com/bureau-foundation/spool/lib/flush"
	"github.com/bureau-foundation/spool/lib/lifecycle"
	"github.com/bureau-foundation/spool/lib/metrics"
	"github.com/bureau-foundation/spool/lib/sender"
	"github.com/bureau-foundation/spool/lib/storage"
	"github.com/bureau-foundation/spool/lib/transmission"
)

// ErrNotTransmitting is returned by WaitActive when this process will
// never hold the transmission lock.
var ErrNotTransmitting = errors.New("channel: lock acquisition stopped")

// Config configures a Channel.
type Config struct {
	// Settings holds the loaded configuration. Required; Endpoint
	// must be set.
	Settings *config.Config

	// Client performs the POSTs. Default: an http.Client with no
	// overall timeout, since each transmission carries its own.
	Client transmission.Doer

	// Registerer receives the pipeline's collectors. Nil disables
	// metrics.
	Registerer prometheus.Registerer

	// LockPollInterval overrides crossprocess.DefaultPollInterval.
	LockPollInterval time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Channel is a running spool pipeline.
type Channel struct {
	storage     *storage.Storage
	buffer      *buffer.Buffer
	flusher     *flush.Manager
	coordinator *coordinator.Coordinator
	metrics     *metrics.Metrics
	folder      string
	logger      *slog.Logger

	closing           *lifecycle.Once
	droppedAfterClose atomic.Uint64
}

// New composes the pipeline. Nothing runs until Start.
func New(cfg Config) (*Channel, error) {
	settings := cfg.Settings
	if settings == nil {
		return nil, errors.New("channel: settings are required")
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	logger := cfg.Logger

	serializer, err := flush.ParseSerializer(settings.Serializer)
	if err != nil {
		return nil, fmt.Errorf("channel: %w", err)
	}
	compression, err := flush.ParseCompression(settings.Compression)
	if err != nil {
		return nil, fmt.Errorf("channel: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Registerer != nil {
		m, err = metrics.New(cfg.Registerer)
		if err != nil {
			return nil, fmt.Errorf("channel: %w", err)
		}
	}

	queue := storage.New(storage.Config{
		Folder:        settings.Storage.Path,
		FolderName:    settings.Storage.FolderName,
		MaxFiles:      settings.Storage.MaxFiles,
		CapacityBytes: settings.Storage.CapacityBytes,
		Timeout:       settings.RequestTimeout.Std(),
		Clock:         cfg.Clock,
		Logger:        logger.With("component", "storage"),
		Metrics:       m,
	})

	// The lock is named after the folder. Without one, storage drops
	// every batch and the coordinator stops at its first attempt.
	var lock crossprocess.Lock
	folder, err := queue.Folder()
	if err != nil {
		lock = crossprocess.Failed(err)
	} else {
		lock, err = newLock(settings.LockPrefix, folder, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("channel: %w", err)
		}
	}

	c := &Channel{
		storage: queue,
		metrics: m,
		folder:  folder,
		logger:  logger,
		closing: lifecycle.NewOnce(),
	}

	// The buffer and flush manager refer to each other; the callback
	// only runs once Send is called, after both exist.
	c.buffer = buffer.New(settings.BufferSize(), func() { c.flusher.BufferFull() }, logger.With("component", "buffer"))

	c.flusher, err = flush.New(flush.Config{
		Buffer:      c.buffer,
		Storage:     queue,
		Endpoint:    settings.Endpoint,
		Delay:       settings.FlushInterval.Std(),
		Serializer:  serializer,
		Compression: compression,
		Timeout:     settings.RequestTimeout.Std(),
		OnFlushed:   c.flushed,
		Clock:       cfg.Clock,
		Logger:      logger.With("component", "flush"),
		Metrics:     m,
	})
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("channel: %w", err)
	}

	dedup := sender.NewDedupCache(cfg.Clock)
	client := cfg.Client
	c.coordinator, err = coordinator.New(coordinator.Config{
		Lock:    lock,
		Senders: settings.Senders,
		NewSender: func() (*sender.Sender, error) {
			return sender.New(sender.Config{
				Storage:         queue,
				Client:          client,
				SendingInterval: settings.SendingInterval.Std(),
				Dedup:           dedup,
				Clock:           cfg.Clock,
				Logger:          logger.With("component", "sender"),
				Metrics:         m,
			})
		},
		Clock:  cfg.Clock,
		Logger: logger.With("component", "coordinator"),
	})
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("channel: %w", err)
	}

	return c, nil
}

func newLock(prefix, folder string, cfg Config, logger *slog.Logger) (crossprocess.Lock, error) {
	name, err := crossprocess.NameForFolder(prefix, folder)
	if err != nil {
		return nil, err
	}
	return crossprocess.New(crossprocess.Config{
		Name:         name,
		Directory:    folder,
		PollInterval: cfg.LockPollInterval,
		Clock:        cfg.Clock,
		Logger:       logger.With("component", "lock"),
	})
}

// flushed wakes the senders when a full buffer forced the flush, so a
// burst does not wait out the sending interval.
func (c *Channel) flushed(full bool) {
	if full {
		c.coordinator.Wake()
	}
}

// Start launches orphan maintenance, the flush loop and lock
// acquisition. Subsequent calls are no-ops.
func (c *Channel) Start() {
	c.storage.Start()
	c.flusher.Start()
	c.coordinator.Start()
	c.logger.Debug("channel started", "folder", c.folder)
}

// Send queues item for delivery. Nil items are ignored. Never blocks
// on I/O and never fails; items sent after Close are dropped.
func (c *Channel) Send(item any) {
	if c.closing.Triggered() {
		if dropped := c.droppedAfterClose.Add(1); dropped == 1 {
			c.logger.Warn("channel closed, dropping telemetry", "folder", c.folder)
		}
		return
	}
	c.buffer.Enqueue(item)
}

// Flush moves the buffered items into durable storage. A batch storage
// cannot take is logged and dropped; only ctx's error is returned.
func (c *Channel) Flush(ctx context.Context) error {
	return c.flusher.Flush(ctx)
}

// FlushAndTransmit flushes the buffer, then, if this process holds the
// lock, sends everything in storage concurrently. Returns when every
// send has completed or ctx is done. Returns ctx's error or a transmit
// failure; dropped batches are not reported.
func (c *Channel) FlushAndTransmit(ctx context.Context) error {
	if err := c.Flush(ctx); err != nil {
		return err
	}
	return c.coordinator.Flush(ctx)
}

// WaitActive blocks until this process holds the transmission lock.
// Returns ErrNotTransmitting if lock acquisition stopped for good, or
// ctx's error.
func (c *Channel) WaitActive(ctx context.Context) error {
	select {
	case <-c.coordinator.Active():
		return nil
	case <-c.coordinator.Done():
		select {
		case <-c.coordinator.Active():
			return nil
		default:
		}
		return ErrNotTransmitting
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Folder returns the resolved storage folder, or "" if it could not
// be created.
func (c *Channel) Folder() string {
	return c.folder
}

// State reports whether this process is transmitting.
func (c *Channel) State() coordinator.State {
	return c.coordinator.State()
}

// Stats reports the storage queue's usage.
func (c *Channel) Stats() (storage.Stats, error) {
	return c.storage.Stats()
}

// Close flushes the buffer to disk, stops the senders, releases the
// lock and stops storage maintenance. Idempotent: later calls return
// nil.
func (c *Channel) Close() error {
	if !c.closing.Trigger() {
		return nil
	}

	var result *multierror.Error
	if err := c.flusher.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("flushing: %w", err))
	}
	if err := c.coordinator.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("stopping senders: %w", err))
	}
	if err := c.storage.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing storage: %w", err))
	}
	c.logger.Debug("channel closed", "folder", c.folder)
	return result.ErrorOrNil()
}
