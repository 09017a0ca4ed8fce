// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

// Package progress reconciles the plotter's two-phase progress
// notifications into a single percentage and throughput figure.
package progress

import (
	"sync"
	"time"
)

// WarpSize is the on-disk size of one warp of plot data.
const WarpSize = 1 << 30

// SpeedThrottle is the minimum interval between externally observed
// speed recomputations. The underlying counters are never throttled.
const SpeedThrottle = 500 * time.Millisecond

// Snapshot is the externally visible progress of the current item.
type Snapshot struct {
	TotalWarps   uint64  `json:"totalWarps"`
	HashedWarps  uint64  `json:"hashedWarps"`
	WrittenWarps uint64  `json:"writtenWarps"`
	Percent      float64 `json:"percent"`
	// BytesPerSec is the effective plotting throughput, counting a
	// warp as done when both its hashing and writing halves are.
	BytesPerSec float64       `json:"bytesPerSec"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Aggregator accumulates hashing and writing deltas for one plan item
// at a time. Hashing covers the first half of an item's progress and
// writing the second, so an item is at 100% only when every warp has
// been both hashed and written.
type Aggregator struct {
	mu sync.Mutex

	total   uint64
	hashed  uint64
	written uint64

	startedAt time.Time
	active    bool

	lastSpeedAt time.Time
	lastSpeed   float64

	now func() time.Time
}

// NewAggregator returns an idle aggregator. A non-nil now function
// overrides the wall clock, which the tests use.
func NewAggregator(now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{now: now}
}

// Start resets the counters for a new item of totalWarps warps.
// resumeOffset credits warps already hashed and written by a previous
// interrupted run, so resumed items start partway through.
func (a *Aggregator) Start(totalWarps, resumeOffset uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if resumeOffset > totalWarps {
		resumeOffset = totalWarps
	}
	a.total = totalWarps
	a.hashed = resumeOffset
	a.written = resumeOffset
	a.startedAt = a.now()
	a.active = true
	a.lastSpeedAt = time.Time{}
	a.lastSpeed = 0
}

// ObserveHashing adds hashed warps. Deltas arriving before Start or
// after Finish are dropped.
func (a *Aggregator) ObserveHashing(delta uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return
	}
	a.hashed += delta
	if a.hashed > a.total {
		a.hashed = a.total
	}
}

// ObserveWriting adds written warps.
func (a *Aggregator) ObserveWriting(delta uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return
	}
	a.written += delta
	if a.written > a.total {
		a.written = a.total
	}
}

// Finish pins the counters at completion. On success the item reads
// exactly 100% regardless of how many deltas were observed.
func (a *Aggregator) Finish(success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return
	}
	if success {
		a.hashed = a.total
		a.written = a.total
	}
	a.active = false
}

// Active reports whether an item is currently being tracked.
func (a *Aggregator) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Snapshot returns the current progress. The speed figure is
// recomputed at most once per SpeedThrottle; between recomputations
// the previous figure is reused while percentages stay live.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		TotalWarps:   a.total,
		HashedWarps:  a.hashed,
		WrittenWarps: a.written,
	}
	if a.total == 0 {
		return snap
	}

	t := float64(a.total)
	snap.Percent = (float64(a.hashed)/t)*50 + (float64(a.written)/t)*50
	if snap.Percent > 100 {
		snap.Percent = 100
	}

	now := a.now()
	if !a.startedAt.IsZero() {
		snap.Elapsed = now.Sub(a.startedAt)
	}

	if a.lastSpeedAt.IsZero() || now.Sub(a.lastSpeedAt) >= SpeedThrottle {
		elapsed := snap.Elapsed.Seconds()
		if elapsed > 0 {
			effective := float64(a.hashed+a.written) / 2
			a.lastSpeed = effective * WarpSize / elapsed
		}
		a.lastSpeedAt = now
	}
	snap.BytesPerSec = a.lastSpeed
	return snap
}
