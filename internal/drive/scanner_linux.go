// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

//go:build linux

package drive

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

// statVolume reads capacity and identity for the volume containing
// path. Statfs on the path itself resolves to the most specific mount
// automatically.
func statVolume(path string, logger *logging.Logger) (volumeStats, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return volumeStats{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	volumeID, err := deviceID(path)
	if err != nil {
		logger.Warn("volume identity unavailable", "path", path, "error", err)
	}
	rootID, rootErr := deviceID("/")

	return volumeStats{
		totalBytes: fs.Blocks * uint64(fs.Bsize),
		freeBytes:  fs.Bavail * uint64(fs.Bsize),
		volumeID:   volumeID,
		isSystem:   rootErr == nil && volumeID == rootID,
	}, nil
}

// deviceID returns the identity of the filesystem holding path.
func deviceID(path string) (string, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return fmt.Sprintf("dev:%d", st.Dev), nil
}
