// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package history

import "sync"

// CacheSize bounds the display cache. The durable tier keeps far
// more; the cache only serves the live view.
const CacheSize = 100

// Cache is the display-facing projection of the store. It never
// accumulates on its own: entries arrive either from Rebuild (durable
// tier wins) or from Observe, and the size cap is enforced on every
// write.
type Cache struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Rebuild replaces the cache contents from the durable tier. This is
// the recovery path after a restart and the periodic reconciliation
// checkpoint.
func (c *Cache) Rebuild(store *Store) error {
	entries, err := store.Recent(CacheSize)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Observe prepends a freshly inserted entry, dropping any older entry
// for the same (chain, height) pair, and trims to the cap.
func (c *Cache) Observe(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := make([]Entry, 0, len(c.entries)+1)
	kept = append(kept, entry)
	for _, e := range c.entries {
		if e.Chain == entry.Chain && e.Height == entry.Height {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) > CacheSize {
		kept = kept[:CacheSize]
	}
	c.entries = kept
}

// Entries returns a copy of the cached view, newest first.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the cached entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
