// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package plan

import (
	"sort"
	"time"

	"github.com/phoenix-pocx/plotterd/internal/drive"
)

// MaxItemWarps caps a single Plot item at 1 TiB so interrupted work
// and per-item progress stay reasonably granular.
const MaxItemWarps = 1024

// ResumeFile describes a partial plot file found on a target volume.
type ResumeFile struct {
	Path  string
	Warps uint64
	Index int
}

// Target pairs a drive snapshot with its configured allocation.
type Target struct {
	Drive       drive.Snapshot
	Allocated   uint64 // bytes
	ResumeFiles []ResumeFile
}

// remainingWarps is the new storage work still owed to the target,
// after existing complete and resumable data is accounted for.
func (t Target) remainingWarps() uint64 {
	used := t.Drive.CompleteBytes + t.Drive.IncompleteBytes
	if t.Allocated <= used {
		return 0
	}
	return (t.Allocated - used) / drive.GiB
}

// GeneratorConfig carries the run-shaping knobs for plan generation.
type GeneratorConfig struct {
	// Parallelism is the number of drives plotted concurrently as one
	// batch. Values below 1 are treated as 1.
	Parallelism int
	// ConfigHash fingerprints the mining configuration the plan was
	// derived from, so a stale persisted plan can be rejected.
	ConfigHash string
	// AddToMiner appends registration items for drives that finish
	// their allocation within this plan.
	AddToMiner bool
	// Now supplies the generation timestamp; nil uses time.Now.
	Now func() time.Time
}

// Generate computes the ordered work plan for the given targets. The
// result is fully determined by the inputs: targets are processed in
// path order, resume work precedes new plot work per drive, and batch
// ids are assigned round-robin across drives so that up to
// Parallelism volumes plot concurrently. A nil plan means no work is
// needed.
func Generate(targets []Target, cfg GeneratorConfig) *Plan {
	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}

	sorted := make([]Target, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Drive.Path < sorted[j].Drive.Path
	})

	// Per-drive work queues, resume items first so partial files are
	// finished before new space is consumed.
	queues := make([][]Item, len(sorted))
	for i, t := range sorted {
		files := make([]ResumeFile, len(t.ResumeFiles))
		copy(files, t.ResumeFiles)
		sort.Slice(files, func(a, b int) bool { return files[a].Path < files[b].Path })
		for _, f := range files {
			queues[i] = append(queues[i], Item{
				Kind:      KindResume,
				Path:      f.Path,
				Warps:     f.Warps,
				FileIndex: f.Index,
			})
		}
		remaining := t.remainingWarps()
		for remaining > 0 {
			warps := min(remaining, uint64(MaxItemWarps))
			queues[i] = append(queues[i], Item{
				Kind:  KindPlot,
				Path:  t.Drive.Path,
				Warps: warps,
			})
			remaining -= warps
		}
	}

	// Interleave the queues round-robin. Plot items that land in the
	// same round share a batch id when parallelism allows it; resume
	// items always run alone.
	var items []Item
	nextBatch := 1
	for {
		var round []Item
		for i := range queues {
			if len(queues[i]) == 0 {
				continue
			}
			item := queues[i][0]
			queues[i] = queues[i][1:]
			if item.Kind == KindResume || parallelism == 1 {
				item.BatchID = nextBatch
				nextBatch++
				items = append(items, item)
				continue
			}
			round = append(round, item)
			if len(round) == parallelism {
				for j := range round {
					round[j].BatchID = nextBatch
				}
				items = append(items, round...)
				round = round[:0]
				nextBatch++
			}
		}
		if len(round) > 0 {
			for j := range round {
				round[j].BatchID = nextBatch
			}
			items = append(items, round...)
			nextBatch++
		}
		empty := true
		for i := range queues {
			if len(queues[i]) > 0 {
				empty = false
				break
			}
		}
		if empty {
			break
		}
	}

	// Every target's gap is covered in full above, so any drive that
	// contributed storage work ends this plan at its allocation and
	// gets registered with the miner after all storage items.
	var finished []string
	for _, t := range sorted {
		if t.remainingWarps() > 0 || len(t.ResumeFiles) > 0 {
			finished = append(finished, t.Drive.Path)
		}
	}
	if cfg.AddToMiner {
		for _, path := range finished {
			items = append(items, Item{
				Kind:    KindAddToMiner,
				Path:    path,
				BatchID: nextBatch,
			})
			nextBatch++
		}
	}

	if len(items) == 0 {
		return nil
	}
	return &Plan{
		Version:        Version,
		GeneratedAt:    now().UTC(),
		ConfigHash:     cfg.ConfigHash,
		Items:          items,
		FinishedDrives: finished,
	}
}
