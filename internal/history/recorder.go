// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package history

// Recorder is the ingestion path for live submissions: the durable
// tier is written first, then the display cache observes the same
// entry so the two never diverge beyond one refresh.
type Recorder struct {
	store *Store
	cache *Cache
}

// NewRecorder couples a store and its display cache.
func NewRecorder(store *Store, cache *Cache) *Recorder {
	return &Recorder{store: store, cache: cache}
}

// Record inserts one submission. The cache is only updated after the
// durable write succeeds.
func (r *Recorder) Record(entry Entry) error {
	if err := r.store.Insert(entry); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Observe(entry)
	}
	return nil
}
