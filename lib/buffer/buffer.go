// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"log/slog"
	"reflect"
	"sync"
)

// DefaultCapacity is used when a capacity below one is requested.
const DefaultCapacity = 500

// Buffer is a mutex-guarded batch of pending items.
type Buffer struct {
	onFull func()
	logger *slog.Logger

	mu       sync.Mutex
	items    []any
	capacity int
}

// New returns an empty buffer. onFull may be nil.
func New(capacity int, onFull func(), logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Buffer{
		onFull:   onFull,
		logger:   logger,
		capacity: normalizeCapacity(capacity),
	}
}

func normalizeCapacity(capacity int) int {
	if capacity < 1 {
		return DefaultCapacity
	}
	return capacity
}

// Capacity returns the item count that triggers onFull.
func (b *Buffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// SetCapacity changes the threshold. Values below one select
// DefaultCapacity. The new threshold applies from the next Enqueue.
func (b *Buffer) SetCapacity(capacity int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.capacity = normalizeCapacity(capacity)
}

// Len returns the number of pending items.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Enqueue appends item. A nil item, including a typed nil pointer, is
// logged and ignored.
func (b *Buffer) Enqueue(item any) {
	if isNil(item) {
		b.logger.Debug("ignoring nil telemetry item")
		return
	}

	b.mu.Lock()
	b.items = append(b.items, item)
	full := len(b.items) >= b.capacity
	b.mu.Unlock()

	if full && b.onFull != nil {
		b.onFull()
	}
}

// Dequeue takes every pending item, leaving the buffer empty. Returns
// nil when there is nothing pending.
func (b *Buffer) Dequeue() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return nil
	}
	items := b.items
	b.items = make([]any, 0, min(b.capacity, len(items)))
	return items
}

func isNil(item any) bool {
	if item == nil {
		return true
	}
	value := reflect.ValueOf(item)
	switch value.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return value.IsNil()
	}
	return false
}
