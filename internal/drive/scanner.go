// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package drive

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

// snapshotTTL bounds how stale a cached snapshot may be. Scanning a
// plot directory walks every file in it, so the display layer reads
// through this cache instead of rescanning per request; the directory
// watcher refreshes entries eagerly when plot files change.
const snapshotTTL = 10 * time.Second

// volumeStats is the platform-sourced part of a Snapshot.
type volumeStats struct {
	totalBytes uint64
	freeBytes  uint64
	volumeID   string
	isSystem   bool
}

// Scanner refreshes volume snapshots from the filesystem and caches
// them briefly.
type Scanner struct {
	logger *logging.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedSnapshot
}

type cachedSnapshot struct {
	snap  Snapshot
	taken time.Time
}

// NewScanner creates a Scanner. A nil logger uses the default logger.
func NewScanner(logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scanner{
		logger: logger.With("component", "drive_scanner"),
		now:    time.Now,
		cache:  make(map[string]cachedSnapshot),
	}
}

// Snapshot returns a view of the volume containing path, no older
// than snapshotTTL.
func (s *Scanner) Snapshot(path string) (Snapshot, error) {
	s.mu.Lock()
	if c, ok := s.cache[path]; ok && s.now().Sub(c.taken) < snapshotTTL {
		s.mu.Unlock()
		return c.snap, nil
	}
	s.mu.Unlock()
	return s.Refresh(path)
}

// Refresh rescans the volume containing path and replaces its cached
// snapshot. The directory watcher calls this when plot files change so
// readers see the new contents before the TTL expires.
func (s *Scanner) Refresh(path string) (Snapshot, error) {
	stats, err := statVolume(path, s.logger)
	if err != nil {
		return Snapshot{}, err
	}

	scan := ScanPlotFiles(path)
	snap := Snapshot{
		Path:            path,
		Label:           filepath.Base(filepath.Clean(path)),
		TotalBytes:      stats.totalBytes,
		FreeBytes:       stats.freeBytes,
		CompleteBytes:   scan.CompleteBytes,
		IncompleteBytes: scan.IncompleteBytes,
		CompleteFiles:   scan.CompleteFiles,
		IncompleteFiles: scan.IncompleteFiles,
		IsSystemVolume:  stats.isSystem,
		VolumeID:        stats.volumeID,
	}

	s.mu.Lock()
	s.cache[path] = cachedSnapshot{snap: snap, taken: s.now()}
	s.mu.Unlock()
	return snap, nil
}

// SnapshotAll scans every path, skipping volumes that fail with a log
// line instead of aborting the batch. One unreadable drive must not
// hide the others from the display layer.
func (s *Scanner) SnapshotAll(paths []string) []Snapshot {
	snaps := make([]Snapshot, 0, len(paths))
	for _, p := range paths {
		snap, err := s.Snapshot(p)
		if err != nil {
			s.logger.Warn("drive scan failed", "path", p, "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps
}
