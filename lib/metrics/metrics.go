// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every collector name.
const Namespace = "spool"

// Metrics holds the collectors shared by storage, flush and sender.
type Metrics struct {
	enqueued     prometheus.Counter
	dropped      *prometheus.CounterVec
	sent         prometheus.Counter
	retried      *prometheus.CounterVec
	rejected     prometheus.Counter
	deduplicated prometheus.Counter
	loadFailures prometheus.Counter
	sendInterval prometheus.Gauge
	flushes      prometheus.Counter
}

// Drop reasons recorded on the dropped counter.
const (
	DropCapacity    = "capacity"
	DropUnavailable = "unavailable"
	DropWriteError  = "write_error"
	DropEncodeError = "encode_error"
)

// New creates the collectors and registers them on registerer. A nil
// registerer creates unregistered collectors, useful in tests that
// only read values back.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transmissions_enqueued_total",
			Help:      "Transmissions written to durable storage.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transmissions_dropped_total",
			Help:      "Transmissions discarded before reaching durable storage.",
		}, []string{"reason"}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transmissions_sent_total",
			Help:      "Transmissions accepted by the endpoint.",
		}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transmissions_retried_total",
			Help:      "Send attempts that left the transmission on disk for a later pass.",
		}, []string{"cause"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transmissions_rejected_total",
			Help:      "Transmissions deleted after a non-retryable response.",
		}),
		deduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transmissions_deduplicated_total",
			Help:      "Send attempts skipped because identical content was already in flight.",
		}),
		loadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "storage_load_failures_total",
			Help:      "Queue files that could not be parsed when peeked.",
		}),
		sendInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sender_interval_seconds",
			Help:      "Current wait between sender passes, including backoff.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "buffer_flushes_total",
			Help:      "Non-empty batches drained from the in-memory buffer.",
		}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, collector := range []prometheus.Collector{
		m.enqueued, m.dropped, m.sent, m.retried, m.rejected,
		m.deduplicated, m.loadFailures, m.sendInterval, m.flushes,
	} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Enqueued records one transmission written to disk.
func (m *Metrics) Enqueued() {
	if m == nil {
		return
	}
	m.enqueued.Inc()
}

// Dropped records one transmission discarded for reason.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// Sent records one successful delivery.
func (m *Metrics) Sent() {
	if m == nil {
		return
	}
	m.sent.Inc()
}

// Retried records one attempt left on disk. cause is "status" for a
// retryable HTTP status and "transport" for connection-level errors.
func (m *Metrics) Retried(cause string) {
	if m == nil {
		return
	}
	m.retried.WithLabelValues(cause).Inc()
}

// Rejected records one transmission deleted as undeliverable.
func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

// Deduplicated records one skipped duplicate send.
func (m *Metrics) Deduplicated() {
	if m == nil {
		return
	}
	m.deduplicated.Inc()
}

// LoadFailed records one unparsable queue file.
func (m *Metrics) LoadFailed() {
	if m == nil {
		return
	}
	m.loadFailures.Inc()
}

// Flushed records one non-empty buffer drain.
func (m *Metrics) Flushed() {
	if m == nil {
		return
	}
	m.flushes.Inc()
}

// SetSendInterval records the sender's current wait.
func (m *Metrics) SetSendInterval(interval time.Duration) {
	if m == nil {
		return
	}
	m.sendInterval.Set(interval.Seconds())
}
