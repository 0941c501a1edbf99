// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/bureau-foundation/spool/lib/clock"
	"github.com/bureau-foundation/spool/lib/crossprocess"
	"github.com/bureau-foundation/spool/lib/lifecycle"
	"github.com/bureau-foundation/spool/lib/sender"
)

// State is the coordinator's position in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateAcquiringLock
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringLock:
		return "acquiring_lock"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// DefaultRetryPause separates retryable acquisition attempts.
const DefaultRetryPause = time.Second

// Config configures a Coordinator.
type Config struct {
	Lock crossprocess.Lock

	// Senders is the number of workers created once the lock is held.
	// Default 1.
	Senders int

	// NewSender builds one worker. Called from the lock callback.
	NewSender func() (*sender.Sender, error)

	RetryPause time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Coordinator gates sender creation behind the cross-process lock.
type Coordinator struct {
	lock       crossprocess.Lock
	count      int
	newSender  func() (*sender.Sender, error)
	retryPause time.Duration
	clock      clock.Clock
	logger     *slog.Logger

	state atomic.Int32

	mu      sync.Mutex
	senders []*sender.Sender

	active     chan struct{}
	activeOnce sync.Once

	ctx       context.Context
	cancel    context.CancelFunc
	closing   *lifecycle.Once
	startOnce sync.Once
	done      chan struct{}
}

// New returns an idle Coordinator.
func New(config Config) (*Coordinator, error) {
	if config.Lock == nil {
		return nil, errors.New("coordinator: lock is required")
	}
	if config.NewSender == nil {
		return nil, errors.New("coordinator: sender factory is required")
	}
	if config.Senders < 1 {
		config.Senders = 1
	}
	if config.RetryPause <= 0 {
		config.RetryPause = DefaultRetryPause
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		lock:       config.Lock,
		count:      config.Senders,
		newSender:  config.NewSender,
		retryPause: config.RetryPause,
		clock:      config.Clock,
		logger:     config.Logger,
		ctx:        ctx,
		cancel:     cancel,
		active:     make(chan struct{}),
		closing:    lifecycle.NewOnce(),
		done:       make(chan struct{}),
	}, nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(state State) {
	previous := State(c.state.Swap(int32(state)))
	if previous != state {
		c.logger.Debug("coordinator state changed", "from", previous.String(), "to", state.String())
	}
}

// Start launches the acquisition loop. Subsequent calls, and calls
// after Close, are no-ops.
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		go c.run()
	})
}

func (c *Coordinator) run() {
	defer close(c.done)
	for {
		if c.ctx.Err() != nil {
			return
		}
		c.setState(StateAcquiringLock)
		err := c.lock.Acquire(c.ctx, c.activate)
		if c.ctx.Err() != nil {
			return
		}
		switch {
		case err == nil:
			// Released without our asking; the next attempt reports
			// whether the lock is still usable.
			continue
		case crossprocess.IsRetryable(err):
			c.logger.Warn("transmission lock was abandoned, retrying", "error", err)
			if !c.pause() {
				return
			}
		default:
			c.logger.Error("acquiring transmission lock failed, this process will not send", "error", err)
			c.setState(StateStopped)
			return
		}
	}
}

// pause waits out the retry pause. Returns false if Close interrupted.
func (c *Coordinator) pause() bool {
	timer := c.clock.NewTimer(c.retryPause)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// activate runs while the lock is held and starts the senders.
func (c *Coordinator) activate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing.Triggered() {
		return
	}
	for i := range c.count {
		worker, err := c.newSender()
		if err != nil {
			c.logger.Error("creating sender failed", "index", i, "error", err)
			continue
		}
		worker.Start()
		c.senders = append(c.senders, worker)
	}
	c.setState(StateActive)
	c.activeOnce.Do(func() { close(c.active) })
	c.logger.Info("transmission lock acquired, sending", "senders", len(c.senders))
}

// Active is closed the first time this process acquires the lock and
// starts its senders. It stays closed after a later release.
func (c *Coordinator) Active() <-chan struct{} {
	return c.active
}

// Flush sends everything queued through one live sender. Returns nil
// without sending if this process does not hold the lock.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	var worker *sender.Sender
	if len(c.senders) > 0 {
		worker = c.senders[0]
	}
	c.mu.Unlock()

	if worker == nil {
		return nil
	}
	return worker.FlushAll(ctx)
}

// Wake cuts every live sender's wait short.
func (c *Coordinator) Wake() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, worker := range c.senders {
		worker.Wake()
	}
}

// Close stops every sender, each bounded by its drain timeout, then
// releases the lock and joins the acquisition loop. Drain failures are
// aggregated. Idempotent.
func (c *Coordinator) Close() error {
	if !c.closing.Trigger() {
		return nil
	}

	c.mu.Lock()
	workers := c.senders
	c.senders = nil
	c.mu.Unlock()

	var (
		resultMu sync.Mutex
		result   *multierror.Error
		wg       sync.WaitGroup
	)
	for i, worker := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := worker.Stop(); err != nil {
				resultMu.Lock()
				result = multierror.Append(result, fmt.Errorf("sender %d: %w", i, err))
				resultMu.Unlock()
			}
		}()
	}
	wg.Wait()

	c.cancel()
	if err := c.lock.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing lock: %w", err))
	}

	started := true
	c.startOnce.Do(func() {
		started = false
		close(c.done)
	})
	if started {
		<-c.done
	}
	c.setState(StateStopped)
	return result.ErrorOrNil()
}

// Done is closed when the acquisition loop has exited.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}
