// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

// Package drive provides per-volume capacity bookkeeping for plotting.
//
// The capacity model is pure computation over Snapshot values; refreshing
// snapshots from the filesystem is the Scanner's job so the model stays
// deterministic and testable.
package drive

import (
	"errors"
	"fmt"
	"sort"
)

// GiB is the number of bytes in one gibibyte. One warp of plotting work
// covers exactly one GiB of plot data.
const GiB = 1024 * 1024 * 1024

// SystemReserveFraction is the share of a system volume's total capacity
// that must stay free. Filling the OS volume stalls the whole machine,
// so allocation never touches this reserve.
const SystemReserveFraction = 0.2

// ErrAllocationTooLarge is returned when a requested allocation exceeds
// what the volume can hold.
var ErrAllocationTooLarge = errors.New("allocation exceeds maximum allocatable capacity")

// ErrAllocationBelowComplete is returned when a requested allocation
// would shrink below already-finished plot data.
var ErrAllocationBelowComplete = errors.New("allocation below completed plot size")

// Snapshot is a point-in-time view of one storage volume.
type Snapshot struct {
	Path            string `json:"path"`
	Label           string `json:"label"`
	TotalBytes      uint64 `json:"totalBytes"`
	FreeBytes       uint64 `json:"freeBytes"`
	CompleteBytes   uint64 `json:"completeBytes"`
	IncompleteBytes uint64 `json:"incompleteBytes"`
	CompleteFiles   int    `json:"completeFiles"`
	IncompleteFiles int    `json:"incompleteFiles"`
	IsSystemVolume  bool   `json:"isSystemVolume"`

	// VolumeID identifies the physical volume backing Path, so that two
	// configured paths on the same disk can be rejected. On Linux this
	// is the device id of the containing filesystem.
	VolumeID string `json:"volumeId"`
}

// MaxAllocatable returns the largest allocation the volume can hold, in
// bytes: everything already plotted (complete and resumable) plus the
// free space that is safe to consume. System volumes keep
// SystemReserveFraction of their total capacity free.
func (s Snapshot) MaxAllocatable() uint64 {
	free := s.FreeBytes
	if s.IsSystemVolume {
		reserve := uint64(float64(s.TotalBytes) * SystemReserveFraction)
		if free > reserve {
			free -= reserve
		} else {
			free = 0
		}
	}
	return s.CompleteBytes + s.IncompleteBytes + free
}

// MinAllocatable returns the smallest valid allocation: finished plot
// data cannot be shrunk away by a config edit.
func (s Snapshot) MinAllocatable() uint64 {
	return s.CompleteBytes
}

// ValidateAllocation checks a requested allocation in bytes against the
// volume's bounds.
func (s Snapshot) ValidateAllocation(allocated uint64) error {
	if allocated > s.MaxAllocatable() {
		return fmt.Errorf("%w: %s requested %d GiB, max %d GiB",
			ErrAllocationTooLarge, s.Path, allocated/GiB, s.MaxAllocatable()/GiB)
	}
	if allocated < s.MinAllocatable() {
		return fmt.Errorf("%w: %s requested %d GiB, completed %d GiB",
			ErrAllocationBelowComplete, s.Path, allocated/GiB, s.CompleteBytes/GiB)
	}
	return nil
}

// Conflict reports two configured paths that resolve to the same
// physical volume. Plotting both at once splits one disk's sequential
// I/O and destroys throughput.
type Conflict struct {
	VolumeID string
	Paths    []string
}

func (c Conflict) Error() string {
	return fmt.Sprintf("paths %v share one physical volume (%s)", c.Paths, c.VolumeID)
}

// FindConflicts returns every group of snapshots sharing a volume
// identity. Snapshots without a VolumeID are skipped; identity could not
// be determined for them and rejecting on a guess would block valid
// setups.
func FindConflicts(snaps []Snapshot) []Conflict {
	byVolume := make(map[string][]string)
	for _, s := range snaps {
		if s.VolumeID == "" {
			continue
		}
		byVolume[s.VolumeID] = append(byVolume[s.VolumeID], s.Path)
	}

	var conflicts []Conflict
	for id, paths := range byVolume {
		if len(paths) > 1 {
			sort.Strings(paths)
			conflicts = append(conflicts, Conflict{VolumeID: id, Paths: paths})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].VolumeID < conflicts[j].VolumeID })
	return conflicts
}
