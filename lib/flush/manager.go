// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package flush

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/spool/lib/buffer"
	"github.com/bureau-foundation/spool/lib/clock"
	"github.com/bureau-foundation/spool/lib/lifecycle"
	"github.com/bureau-foundation/spool/lib/metrics"
	"github.com/bureau-foundation/spool/lib/transmission"
)

// DefaultDelay is the flush loop's wait between flushes.
const DefaultDelay = 30 * time.Second

// Enqueuer persists a transmission. Satisfied by *storage.Storage.
type Enqueuer interface {
	Enqueue(t *transmission.Transmission) error
}

// Config configures a Manager.
type Config struct {
	Buffer  *buffer.Buffer
	Storage Enqueuer

	// Endpoint is the absolute http(s) URL every batch is sent to.
	Endpoint string

	// Delay between periodic flushes. Default: DefaultDelay.
	Delay time.Duration

	// Serializer defaults to JSONLines.
	Serializer  Serializer
	Compression Compression

	// Timeout is the per-POST timeout recorded on each transmission.
	Timeout time.Duration

	// OnFlushed, if set, runs after each batch is handed to storage.
	// full reports whether a full buffer triggered the flush.
	OnFlushed func(full bool)

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Manager owns the flush loop.
type Manager struct {
	buffer      *buffer.Buffer
	storage     Enqueuer
	endpoint    string
	delay       time.Duration
	serializer  Serializer
	compression Compression
	timeout     time.Duration
	onFlushed   func(full bool)
	clock       clock.Clock
	logger      *slog.Logger
	metrics     *metrics.Metrics

	// flushMu keeps batches in dequeue order across the loop and
	// caller-requested flushes.
	flushMu sync.Mutex

	signal  chan struct{}
	full    atomic.Bool
	closing *lifecycle.Once

	startOnce sync.Once
	done      chan struct{}
}

// New validates config and returns a stopped Manager.
func New(config Config) (*Manager, error) {
	if config.Buffer == nil {
		return nil, errors.New("flush: buffer is required")
	}
	if config.Storage == nil {
		return nil, errors.New("flush: storage is required")
	}
	if _, err := transmission.ParseEndpoint(config.Endpoint); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	if config.Delay <= 0 {
		config.Delay = DefaultDelay
	}
	if config.Serializer == nil {
		config.Serializer = JSONLines{}
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		buffer:      config.Buffer,
		storage:     config.Storage,
		endpoint:    config.Endpoint,
		delay:       config.Delay,
		serializer:  config.Serializer,
		compression: config.Compression,
		timeout:     config.Timeout,
		onFlushed:   config.OnFlushed,
		clock:       config.Clock,
		logger:      config.Logger,
		metrics:     config.Metrics,
		signal:      make(chan struct{}, 1),
		closing:     lifecycle.NewOnce(),
		done:        make(chan struct{}),
	}, nil
}

// Signal wakes the flush loop without waiting for the delay. Never
// blocks.
func (m *Manager) Signal() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// BufferFull is the buffer's full callback: it records that the next
// flush was capacity-driven and signals the loop.
func (m *Manager) BufferFull() {
	m.full.Store(true)
	m.Signal()
}

// Flush moves everything buffered to storage as one transmission. An
// empty buffer is a no-op. A batch that cannot be encoded or persisted
// is counted, logged and dropped; the only error returned is ctx's.
func (m *Manager) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	items := m.buffer.Dequeue()
	if len(items) == 0 {
		return nil
	}
	full := m.full.Swap(false)

	t, err := m.build(items)
	if err != nil {
		m.metrics.Dropped(metrics.DropEncodeError)
		m.logger.Error("dropping telemetry batch", "items", len(items), "error", err)
		return nil
	}
	if err := m.storage.Enqueue(t); err != nil {
		// Storage has already counted and logged the drop.
		m.logger.Debug("batch not persisted", "items", len(items), "error", err)
		return nil
	}

	m.metrics.Flushed()
	m.logger.Debug("batch persisted",
		"items", len(items),
		"bytes", t.Size(),
		"hash", t.ContentHash().Short(),
		"full", full,
	)
	if m.onFlushed != nil {
		m.onFlushed(full)
	}
	return nil
}

func (m *Manager) build(items []any) (*transmission.Transmission, error) {
	body, err := m.serializer.Serialize(items)
	if err != nil {
		return nil, fmt.Errorf("serializing batch: %w", err)
	}
	compressed, err := Compress(body, m.compression)
	if err != nil {
		return nil, fmt.Errorf("compressing batch: %w", err)
	}
	return transmission.New(m.endpoint, compressed, m.serializer.ContentType(), m.compression.ContentEncoding(), m.timeout)
}

// Start launches the flush loop. Subsequent calls are no-ops.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go m.loop()
	})
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		m.Flush(context.Background())

		timer := m.clock.NewTimer(m.delay)
		select {
		case <-m.closing.Done():
			timer.Stop()
			return
		case <-m.signal:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// Close stops the loop, waits for it, and performs a final flush so
// buffered items reach disk. Idempotent: only the first call flushes.
func (m *Manager) Close() error {
	if !m.closing.Trigger() {
		return nil
	}
	started := true
	m.startOnce.Do(func() {
		started = false
		close(m.done)
	})
	if started {
		<-m.done
	}
	return m.Flush(context.Background())
}
