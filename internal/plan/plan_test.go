// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-pocx/plotterd/internal/drive"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestGenerateSingleVolume(t *testing.T) {
	targets := []Target{{
		Drive: drive.Snapshot{
			Path:       "/mnt/plots",
			TotalBytes: 1000 * drive.GiB,
			FreeBytes:  1000 * drive.GiB,
		},
		Allocated: 900 * drive.GiB,
	}}

	p := Generate(targets, GeneratorConfig{Now: fixedNow})
	require.NotNil(t, p)
	require.Len(t, p.Items, 1)

	item := p.Items[0]
	assert.Equal(t, KindPlot, item.Kind)
	assert.Equal(t, "/mnt/plots", item.Path)
	assert.Equal(t, uint64(900), item.Warps)
	assert.Equal(t, 0, p.CurrentIndex)
}

func TestGenerateNoWorkNeeded(t *testing.T) {
	targets := []Target{{
		Drive: drive.Snapshot{
			Path:          "/mnt/full",
			TotalBytes:    1000 * drive.GiB,
			CompleteBytes: 500 * drive.GiB,
		},
		Allocated: 500 * drive.GiB,
	}}

	assert.Nil(t, Generate(targets, GeneratorConfig{Now: fixedNow}))
}

func TestGenerateChunksLargeAllocations(t *testing.T) {
	targets := []Target{{
		Drive: drive.Snapshot{
			Path:       "/mnt/big",
			TotalBytes: 4000 * drive.GiB,
			FreeBytes:  4000 * drive.GiB,
		},
		Allocated: 2500 * drive.GiB,
	}}

	p := Generate(targets, GeneratorConfig{Now: fixedNow})
	require.NotNil(t, p)
	require.Len(t, p.Items, 3)
	assert.Equal(t, uint64(MaxItemWarps), p.Items[0].Warps)
	assert.Equal(t, uint64(MaxItemWarps), p.Items[1].Warps)
	assert.Equal(t, uint64(452), p.Items[2].Warps)
	assert.Equal(t, uint64(2500), p.TotalWarps())
}

func TestGenerateParallelBatches(t *testing.T) {
	targets := []Target{
		{
			Drive:     drive.Snapshot{Path: "/mnt/a", TotalBytes: 2000 * drive.GiB, FreeBytes: 2000 * drive.GiB},
			Allocated: 100 * drive.GiB,
		},
		{
			Drive:     drive.Snapshot{Path: "/mnt/b", TotalBytes: 2000 * drive.GiB, FreeBytes: 2000 * drive.GiB},
			Allocated: 100 * drive.GiB,
		},
	}

	p := Generate(targets, GeneratorConfig{Parallelism: 2, Now: fixedNow})
	require.NotNil(t, p)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "/mnt/a", p.Items[0].Path)
	assert.Equal(t, "/mnt/b", p.Items[1].Path)
	assert.Equal(t, p.Items[0].BatchID, p.Items[1].BatchID,
		"items plotted in parallel share one batch")

	batch := p.CurrentBatch()
	assert.Len(t, batch, 2)
}

func TestGenerateSequentialBatches(t *testing.T) {
	targets := []Target{
		{
			Drive:     drive.Snapshot{Path: "/mnt/a", TotalBytes: 2000 * drive.GiB, FreeBytes: 2000 * drive.GiB},
			Allocated: 100 * drive.GiB,
		},
		{
			Drive:     drive.Snapshot{Path: "/mnt/b", TotalBytes: 2000 * drive.GiB, FreeBytes: 2000 * drive.GiB},
			Allocated: 100 * drive.GiB,
		},
	}

	p := Generate(targets, GeneratorConfig{Parallelism: 1, Now: fixedNow})
	require.NotNil(t, p)
	require.Len(t, p.Items, 2)
	assert.NotEqual(t, p.Items[0].BatchID, p.Items[1].BatchID)
	assert.Len(t, p.CurrentBatch(), 1)
}

func TestGenerateResumeBeforePlot(t *testing.T) {
	targets := []Target{{
		Drive: drive.Snapshot{
			Path:            "/mnt/plots",
			TotalBytes:      2000 * drive.GiB,
			FreeBytes:       1500 * drive.GiB,
			IncompleteBytes: 100 * drive.GiB,
		},
		Allocated: 500 * drive.GiB,
		ResumeFiles: []ResumeFile{
			{Path: "/mnt/plots/PXC-AB_0_512_31.tmp", Warps: 512, Index: 0},
		},
	}}

	p := Generate(targets, GeneratorConfig{Parallelism: 2, Now: fixedNow})
	require.NotNil(t, p)
	require.Len(t, p.Items, 2)

	assert.Equal(t, KindResume, p.Items[0].Kind)
	assert.Equal(t, "/mnt/plots/PXC-AB_0_512_31.tmp", p.Items[0].Path)
	assert.Equal(t, uint64(512), p.Items[0].Warps)

	assert.Equal(t, KindPlot, p.Items[1].Kind)
	assert.Equal(t, uint64(400), p.Items[1].Warps)
	assert.NotEqual(t, p.Items[0].BatchID, p.Items[1].BatchID,
		"resume items always run alone")
}

func TestGenerateAddToMiner(t *testing.T) {
	targets := []Target{{
		Drive:     drive.Snapshot{Path: "/mnt/plots", TotalBytes: 1000 * drive.GiB, FreeBytes: 1000 * drive.GiB},
		Allocated: 100 * drive.GiB,
	}}

	p := Generate(targets, GeneratorConfig{AddToMiner: true, Now: fixedNow})
	require.NotNil(t, p)
	require.Len(t, p.Items, 2)
	assert.Equal(t, KindPlot, p.Items[0].Kind)
	assert.Equal(t, KindAddToMiner, p.Items[1].Kind)
	assert.Equal(t, "/mnt/plots", p.Items[1].Path)
	assert.Equal(t, []string{"/mnt/plots"}, p.FinishedDrives)
}

func TestGenerateDeterministic(t *testing.T) {
	targets := []Target{
		{
			Drive:     drive.Snapshot{Path: "/mnt/b", TotalBytes: 2000 * drive.GiB, FreeBytes: 2000 * drive.GiB},
			Allocated: 1500 * drive.GiB,
		},
		{
			Drive:     drive.Snapshot{Path: "/mnt/a", TotalBytes: 2000 * drive.GiB, FreeBytes: 2000 * drive.GiB},
			Allocated: 300 * drive.GiB,
		},
	}
	cfg := GeneratorConfig{Parallelism: 2, ConfigHash: "abc123", Now: fixedNow}

	first := Generate(targets, cfg)
	// Reverse the input order; the output must not change.
	second := Generate([]Target{targets[1], targets[0]}, cfg)

	require.NotNil(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, "/mnt/a", first.Items[0].Path, "targets are processed in path order")
}

func TestPlanAdvance(t *testing.T) {
	p := &Plan{
		Version: Version,
		Items: []Item{
			{Kind: KindPlot, Path: "/mnt/a", Warps: 10, BatchID: 1},
			{Kind: KindPlot, Path: "/mnt/b", Warps: 10, BatchID: 1},
			{Kind: KindAddToMiner, Path: "/mnt/a", BatchID: 2},
		},
	}

	require.Len(t, p.CurrentBatch(), 2)
	p.Advance()
	assert.Equal(t, 2, p.CurrentIndex)

	require.Len(t, p.CurrentBatch(), 1)
	p.Advance()
	assert.True(t, p.Done())

	p.Advance() // no-op past the end
	assert.Equal(t, 3, p.CurrentIndex)
}

func TestPlanValidate(t *testing.T) {
	valid := &Plan{
		Version: Version,
		Items:   []Item{{Kind: KindPlot, Path: "/mnt/a", Warps: 1, BatchID: 1}},
	}
	require.NoError(t, valid.Validate())

	badVersion := &Plan{Version: 99}
	require.Error(t, badVersion.Validate())

	badCursor := &Plan{Version: Version, CurrentIndex: 5}
	require.Error(t, badCursor.Validate())

	badKind := &Plan{
		Version: Version,
		Items:   []Item{{Kind: "mystery", Path: "/mnt/a", Warps: 1}},
	}
	require.Error(t, badKind.Validate())

	zeroWarps := &Plan{
		Version: Version,
		Items:   []Item{{Kind: KindPlot, Path: "/mnt/a"}},
	}
	require.Error(t, zeroWarps.Validate())
}
