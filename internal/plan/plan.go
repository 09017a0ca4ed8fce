// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

// Package plan defines the plotting work plan and the deterministic
// generator that derives it from drive snapshots and target
// allocations.
package plan

import (
	"fmt"
	"time"
)

// Version identifies the plan wire layout. Persisted plans with a
// different version are discarded rather than migrated.
const Version = 1

// ItemKind discriminates the plan item variants.
type ItemKind string

const (
	// KindPlot creates a new plot file of Item.Warps warps under
	// Item.Path.
	KindPlot ItemKind = "plot"
	// KindResume continues an interrupted plot file at Item.Path.
	KindResume ItemKind = "resume"
	// KindAddToMiner registers a fully plotted directory with the
	// miner once all storage work for it has finished.
	KindAddToMiner ItemKind = "addToMiner"
)

// Item is one unit of plotting work. Items are immutable once
// generated and consumed exactly once by the executor.
type Item struct {
	Kind ItemKind `json:"kind"`
	// Path is the plot directory for Plot and AddToMiner items, and
	// the partial file path for Resume items.
	Path  string `json:"path"`
	Warps uint64 `json:"warps,omitempty"`
	// FileIndex is the resume file's position within its directory
	// scan, used to keep resume ordering stable.
	FileIndex int `json:"fileIndex,omitempty"`
	// BatchID groups items dispatched concurrently. All items of a
	// batch must complete before the plan advances past any of them.
	BatchID int `json:"batchId"`
}

// Plan is an ordered list of work items plus a cursor. The cursor only
// moves forward; a hard stop discards the plan entirely instead of
// rewinding it.
type Plan struct {
	Version        int       `json:"version"`
	GeneratedAt    time.Time `json:"generatedAt"`
	ConfigHash     string    `json:"configHash"`
	Items          []Item    `json:"items"`
	CurrentIndex   int       `json:"currentIndex"`
	FinishedDrives []string  `json:"finishedDrives,omitempty"`
}

// Done reports whether every item has been consumed.
func (p *Plan) Done() bool {
	return p.CurrentIndex >= len(p.Items)
}

// Current returns the item at the cursor, or false when the plan is
// exhausted.
func (p *Plan) Current() (Item, bool) {
	if p.Done() {
		return Item{}, false
	}
	return p.Items[p.CurrentIndex], true
}

// CurrentBatch returns the contiguous run of items at the cursor that
// share the current item's batch id. Resume and AddToMiner items are
// always dispatched alone.
func (p *Plan) CurrentBatch() []Item {
	first, ok := p.Current()
	if !ok {
		return nil
	}
	if first.Kind != KindPlot {
		return []Item{first}
	}
	batch := []Item{first}
	for i := p.CurrentIndex + 1; i < len(p.Items); i++ {
		next := p.Items[i]
		if next.Kind != KindPlot || next.BatchID != first.BatchID {
			break
		}
		batch = append(batch, next)
	}
	return batch
}

// Advance moves the cursor past the current batch. It is a no-op on an
// exhausted plan.
func (p *Plan) Advance() {
	p.CurrentIndex += len(p.CurrentBatch())
	if p.CurrentIndex > len(p.Items) {
		p.CurrentIndex = len(p.Items)
	}
}

// Validate checks the structural invariants of a plan loaded from
// disk.
func (p *Plan) Validate() error {
	if p.Version != Version {
		return fmt.Errorf("unsupported plan version %d", p.Version)
	}
	if p.CurrentIndex < 0 || p.CurrentIndex > len(p.Items) {
		return fmt.Errorf("plan cursor %d out of range [0,%d]", p.CurrentIndex, len(p.Items))
	}
	for i, item := range p.Items {
		switch item.Kind {
		case KindPlot, KindResume, KindAddToMiner:
		default:
			return fmt.Errorf("item %d: unknown kind %q", i, item.Kind)
		}
		if item.Path == "" {
			return fmt.Errorf("item %d: empty path", i)
		}
		if item.Kind != KindAddToMiner && item.Warps == 0 {
			return fmt.Errorf("item %d: zero warps", i)
		}
	}
	return nil
}

// TotalWarps sums the storage work remaining at or after the cursor.
func (p *Plan) TotalWarps() uint64 {
	var total uint64
	for _, item := range p.Items[min(p.CurrentIndex, len(p.Items)):] {
		total += item.Warps
	}
	return total
}
