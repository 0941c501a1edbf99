// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sender

import (
	"sync"
	"time"

	"github.com/bureau-foundation/spool/lib/clock"
	"github.com/bureau-foundation/spool/lib/transmission"
)

const (
	// DedupTTL is how long a hash suppresses identical sends.
	DedupTTL = 5 * time.Minute

	// dedupSweepEvery is the insertion count between sweeps.
	dedupSweepEvery = 50
)

type dedupEntry struct {
	added time.Time
	hash  transmission.Hash
}

// DedupCache records content hashes of recent sends. Entries older
// than DedupTTL are treated as absent by TryAdd even before a sweep
// removes them. Safe for concurrent use and shared by every sender of
// a coordinator.
type DedupCache struct {
	clock clock.Clock

	mu         sync.Mutex
	order      []dedupEntry
	present    map[transmission.Hash]time.Time
	insertions int
}

// NewDedupCache returns an empty cache. A nil clock uses real time.
func NewDedupCache(clk clock.Clock) *DedupCache {
	if clk == nil {
		clk = clock.Real()
	}
	return &DedupCache{
		clock:   clk,
		present: make(map[transmission.Hash]time.Time),
	}
}

// TryAdd records hash and reports true, or reports false when a live
// entry for hash already exists.
func (c *DedupCache) TryAdd(hash transmission.Hash) bool {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if added, ok := c.present[hash]; ok && now.Sub(added) < DedupTTL {
		return false
	}
	c.present[hash] = now
	c.order = append(c.order, dedupEntry{added: now, hash: hash})
	c.insertions++
	if c.insertions%dedupSweepEvery == 0 {
		c.sweepLocked(now)
	}
	return true
}

// Remove forgets hash so the next TryAdd for it succeeds.
func (c *DedupCache) Remove(hash transmission.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.present, hash)
}

// Len returns the number of recorded hashes, including expired ones
// not yet swept.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.present)
}

// sweepLocked drops expired entries from the front of the insertion
// order. An entry whose hash was removed or re-added since is skipped
// without touching the live record.
func (c *DedupCache) sweepLocked(now time.Time) {
	expired := 0
	for _, entry := range c.order {
		if now.Sub(entry.added) < DedupTTL {
			break
		}
		if added, ok := c.present[entry.hash]; ok && added.Equal(entry.added) {
			delete(c.present, entry.hash)
		}
		expired++
	}
	if expired > 0 {
		c.order = append(c.order[:0:0], c.order[expired:]...)
	}
}
