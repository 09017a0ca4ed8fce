// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package drive

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CompleteExt and IncompleteExt are the plot file extensions. A .tmp
// file is a partially written plot that the plotter can resume.
const (
	CompleteExt   = ".pocx"
	IncompleteExt = ".tmp"
)

// PlotScan summarizes the plot files found in one directory.
type PlotScan struct {
	CompleteFiles   int
	CompleteBytes   uint64
	IncompleteFiles int
	IncompleteBytes uint64
}

// IsPlotFilename reports whether a name matches the plot file pattern
// {address}_{startNonce}_{nonceCount}_{compression}.pocx (or .tmp).
func IsPlotFilename(name string) bool {
	if !strings.HasSuffix(name, CompleteExt) && !strings.HasSuffix(name, IncompleteExt) {
		return false
	}
	// addr_start_count_comp.ext needs at least four underscore fields.
	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// PlotFileWarps extracts the warp count a plot file was sized for
// from its name. The second-to-last underscore field carries it.
func PlotFileWarps(name string) (uint64, bool) {
	if !IsPlotFilename(name) {
		return 0, false
	}
	base := name[:strings.LastIndexByte(name, '.')]
	parts := strings.Split(base, "_")
	count, err := strconv.ParseUint(parts[len(parts)-2], 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

// ScanPlotFiles walks the top level of dir and tallies plot files.
// Missing or unreadable directories yield a zero scan; the volume may
// simply not have been plotted yet.
func ScanPlotFiles(dir string) PlotScan {
	var scan PlotScan

	entries, err := os.ReadDir(dir)
	if err != nil {
		return scan
	}

	for _, entry := range entries {
		if entry.IsDir() || !IsPlotFilename(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case CompleteExt:
			scan.CompleteFiles++
			scan.CompleteBytes += uint64(info.Size())
		case IncompleteExt:
			scan.IncompleteFiles++
			scan.IncompleteBytes += uint64(info.Size())
		}
	}
	return scan
}

// IncompletePlotFiles lists the resumable .tmp plot files in dir,
// sorted by name for deterministic resume ordering.
func IncompletePlotFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsPlotFilename(entry.Name()) {
			continue
		}
		if filepath.Ext(entry.Name()) == IncompleteExt {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files
}
