// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package executor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/phoenix-pocx/plotterd/internal/config"
	"github.com/phoenix-pocx/plotterd/internal/drive"
	"github.com/phoenix-pocx/plotterd/internal/plan"
	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

// DriveTargets derives plan targets from live drive scans. It is the
// production TargetSource; tests substitute stubs.
type DriveTargets struct {
	cfg     config.Config
	scanner *drive.Scanner
	logger  *logging.Logger
}

// NewDriveTargets wires the scanner-backed target source.
func NewDriveTargets(cfg config.Config, scanner *drive.Scanner, logger *logging.Logger) *DriveTargets {
	if logger == nil {
		logger = logging.Default()
	}
	return &DriveTargets{cfg: cfg, scanner: scanner, logger: logger.With("component", "drive_targets")}
}

// Targets snapshots every enabled drive and validates its allocation.
// Volume-identity conflicts and over-allocation are capacity errors
// that fail the whole refresh: generating a plan against them would
// split one disk's bandwidth or overfill a volume.
func (d *DriveTargets) Targets(ctx context.Context) ([]plan.Target, error) {
	drives := d.cfg.EnabledDrives()
	targets := make([]plan.Target, 0, len(drives))
	snaps := make([]drive.Snapshot, 0, len(drives))

	for _, dc := range drives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Generation validates allocations, so it bypasses the snapshot
		// cache and reads the volume as it is now.
		snap, err := d.scanner.Refresh(dc.Path)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dc.Path, err)
		}
		allocated := dc.AllocatedGiB * drive.GiB
		if err := snap.ValidateAllocation(allocated); err != nil {
			return nil, fmt.Errorf("drive %s: %w", dc.Path, err)
		}
		snaps = append(snaps, snap)
		targets = append(targets, plan.Target{
			Drive:       snap,
			Allocated:   allocated,
			ResumeFiles: resumeFiles(dc.Path),
		})
	}

	if conflicts := drive.FindConflicts(snaps); len(conflicts) > 0 {
		c := conflicts[0]
		return nil, fmt.Errorf("drives %v share one physical volume (%s)", c.Paths, c.VolumeID)
	}
	return targets, nil
}

// resumeFiles lists a drive's partial plots with the warp counts
// parsed from their names. Files with unparsable names are skipped;
// they cannot be resumed without a target size.
func resumeFiles(dir string) []plan.ResumeFile {
	var files []plan.ResumeFile
	for i, path := range drive.IncompletePlotFiles(dir) {
		warps, ok := drive.PlotFileWarps(filepath.Base(path))
		if !ok {
			continue
		}
		files = append(files, plan.ResumeFile{Path: path, Warps: warps, Index: i})
	}
	return files
}
