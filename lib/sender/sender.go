// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/spool/lib/clock"
	"github.com/bureau-foundation/spool/lib/lifecycle"
	"github.com/bureau-foundation/spool/lib/metrics"
	"github.com/bureau-foundation/spool/lib/storage"
	"github.com/bureau-foundation/spool/lib/transmission"
)

// Defaults for Config's intervals.
const (
	DefaultSendingInterval = 30 * time.Second
	DefaultNoDataInterval  = 10 * time.Second
	DefaultMaxInterval     = time.Hour
	DefaultDrainTimeout    = 100 * time.Second

	// flushConcurrency bounds simultaneous requests in FlushAll.
	flushConcurrency = 16
)

// ErrDrainTimeout is returned by Stop when the loop did not finish
// within the drain timeout. The in-flight request has been canceled.
var ErrDrainTimeout = errors.New("sender: drain timeout exceeded")

// Source is the durable queue a sender drains. Satisfied by
// *storage.Storage.
type Source interface {
	Peek() (*storage.Stored, error)
	PeekAll(ctx context.Context) ([]*storage.Stored, error)
	Delete(stored *storage.Stored)
}

// Config configures a Sender.
type Config struct {
	Storage Source

	// Client performs the POSTs. Required.
	Client transmission.Doer

	SendingInterval time.Duration
	NoDataInterval  time.Duration
	MaxInterval     time.Duration
	DrainTimeout    time.Duration

	// Dedup is shared across the senders of one process. A nil Dedup
	// gets a private cache.
	Dedup *DedupCache

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Sender is one delivery worker.
type Sender struct {
	storage         Source
	client          transmission.Doer
	sendingInterval time.Duration
	noDataInterval  time.Duration
	maxInterval     time.Duration
	drainTimeout    time.Duration
	dedup           *DedupCache
	clock           clock.Clock
	logger          *slog.Logger
	metrics         *metrics.Metrics

	// ctx bounds every request the loop makes; canceled when Stop
	// gives up draining.
	ctx    context.Context
	cancel context.CancelFunc

	wake      chan struct{}
	stopping  *lifecycle.Once
	startOnce sync.Once
	stopped   chan struct{}

	intervalMu sync.Mutex
	interval   time.Duration
}

// New returns a stopped Sender.
func New(config Config) (*Sender, error) {
	if config.Storage == nil {
		return nil, errors.New("sender: storage is required")
	}
	if config.Client == nil {
		return nil, errors.New("sender: client is required")
	}
	if config.SendingInterval <= 0 {
		config.SendingInterval = DefaultSendingInterval
	}
	if config.NoDataInterval <= 0 {
		config.NoDataInterval = DefaultNoDataInterval
	}
	if config.MaxInterval <= 0 {
		config.MaxInterval = DefaultMaxInterval
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Dedup == nil {
		config.Dedup = NewDedupCache(config.Clock)
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Sender{
		storage:         config.Storage,
		client:          config.Client,
		sendingInterval: config.SendingInterval,
		noDataInterval:  config.NoDataInterval,
		maxInterval:     config.MaxInterval,
		drainTimeout:    config.DrainTimeout,
		dedup:           config.Dedup,
		clock:           config.Clock,
		logger:          config.Logger,
		metrics:         config.Metrics,
		ctx:             ctx,
		cancel:          cancel,
		wake:            make(chan struct{}, 1),
		stopping:        lifecycle.NewOnce(),
		stopped:         make(chan struct{}),
	}, nil
}

// Start launches the send loop. Subsequent calls are no-ops, as is a
// Start after Stop.
func (s *Sender) Start() {
	s.startOnce.Do(func() {
		go s.loop()
	})
}

// Wake cuts the current wait short. Never blocks.
func (s *Sender) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Interval returns the current backoff state: the wait that follows
// the most recent send attempt.
func (s *Sender) Interval() time.Duration {
	s.intervalMu.Lock()
	defer s.intervalMu.Unlock()
	return s.interval
}

func (s *Sender) loop() {
	defer close(s.stopped)
	for {
		if s.stopping.Triggered() {
			return
		}
		next := s.pass()
		if s.ctx.Err() != nil {
			return
		}

		timer := s.clock.NewTimer(next)
		select {
		case <-s.stopping.Done():
			timer.Stop()
			return
		case <-s.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// pass handles at most one queued item and returns how long to wait
// before the next pass. An empty or unreadable queue waits
// noDataInterval but leaves the backoff interval as it was, so an idle
// spell neither resets nor seeds the next escalation.
func (s *Sender) pass() time.Duration {
	stored, err := s.storage.Peek()
	if err != nil {
		if !errors.Is(err, storage.ErrStorageUnavailable) {
			s.logger.Warn("peeking storage failed", "error", err)
		}
		return s.noDataInterval
	}
	if stored == nil {
		return s.noDataInterval
	}
	defer stored.Close()

	outcome, next := s.attempt(s.ctx, stored)
	if outcome.Delete() {
		s.storage.Delete(stored)
	}
	return next
}

// FlushAll sends every queued item concurrently and waits for the
// attempts to finish. Items whose outcome is terminal are deleted;
// retryable ones stay queued. Returns ctx's error if ctx ended.
func (s *Sender) FlushAll(ctx context.Context) error {
	items, err := s.storage.PeekAll(ctx)
	if err != nil {
		return err
	}

	var group errgroup.Group
	group.SetLimit(flushConcurrency)
	for _, stored := range items {
		group.Go(func() error {
			defer stored.Close()
			if err := ctx.Err(); err != nil {
				return err
			}
			outcome, _ := s.attempt(ctx, stored)
			if outcome.Delete() {
				s.storage.Delete(stored)
			}
			if outcome == transmission.OutcomeCanceled {
				return ctx.Err()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// attempt sends stored unless its content is already in flight, and
// updates the backoff state. Returns the outcome and the resulting
// interval.
func (s *Sender) attempt(ctx context.Context, stored *storage.Stored) (transmission.Outcome, time.Duration) {
	hash := stored.ContentHash()
	logger := s.logger.With("file", stored.FileName(), "hash", hash.Short())

	if !s.dedup.TryAdd(hash) {
		s.metrics.Deduplicated()
		logger.Debug("skipping duplicate content")
		return transmission.OutcomeSuccess, s.setInterval(s.sendingInterval)
	}

	response, err := stored.Send(ctx, s.client)
	outcome := transmission.Classify(response, err)
	switch {
	case outcome == transmission.OutcomeSuccess:
		s.metrics.Sent()
		logger.Debug("transmission sent", "status", response.StatusCode)
		return outcome, s.setInterval(s.sendingInterval)

	case outcome == transmission.OutcomeBadRequest:
		s.dedup.Remove(hash)
		s.metrics.Rejected()
		logger.Warn("endpoint rejected transmission as malformed, deleting it",
			"endpoint", stored.Endpoint(),
			"status", response.StatusCode,
		)
		return outcome, s.setInterval(s.sendingInterval)

	case outcome == transmission.OutcomeReject:
		s.metrics.Rejected()
		logger.Warn("endpoint rejected transmission, deleting it",
			"endpoint", stored.Endpoint(),
			"status", response.StatusCode,
		)
		return outcome, s.Interval()

	case outcome.Retry():
		s.dedup.Remove(hash)
		cause := "transport"
		if outcome == transmission.OutcomeRetryStatus {
			cause = "status"
		}
		s.metrics.Retried(cause)
		next := s.escalate()
		attributes := []any{"endpoint", stored.Endpoint(), "outcome", outcome.String(), "backoff", next}
		if response != nil {
			attributes = append(attributes, "status", response.StatusCode)
		}
		if err != nil {
			attributes = append(attributes, "error", err)
		}
		logger.Warn("transmission failed, will retry", attributes...)
		return outcome, next

	default:
		s.dedup.Remove(hash)
		logger.Debug("send canceled", "error", err)
		return outcome, s.Interval()
	}
}

func (s *Sender) setInterval(interval time.Duration) time.Duration {
	s.intervalMu.Lock()
	defer s.intervalMu.Unlock()
	s.interval = interval
	s.metrics.SetSendInterval(interval)
	return interval
}

func (s *Sender) escalate() time.Duration {
	s.intervalMu.Lock()
	defer s.intervalMu.Unlock()
	s.interval = NextBackoff(s.interval, s.maxInterval)
	s.metrics.SetSendInterval(s.interval)
	return s.interval
}

// Stop ends the loop and waits up to the drain timeout for it. On
// timeout the in-flight request is canceled and ErrDrainTimeout is
// returned. Stopping a sender that never started returns nil.
func (s *Sender) Stop() error {
	s.stopping.Trigger()

	started := true
	s.startOnce.Do(func() {
		started = false
		close(s.stopped)
	})
	if !started {
		s.cancel()
		return nil
	}

	s.Wake()
	timer := s.clock.NewTimer(s.drainTimeout)
	defer timer.Stop()
	select {
	case <-s.stopped:
		s.cancel()
		return nil
	case <-timer.C:
		s.cancel()
		s.logger.Warn("sender did not drain in time, canceling in-flight send", "drain_timeout", s.drainTimeout)
		return ErrDrainTimeout
	}
}

// Done is closed when the loop has exited, or at Stop if the sender
// never started.
func (s *Sender) Done() <-chan struct{} {
	return s.stopped
}
