// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

//go:build linux

package drive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlotFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644))
}

func TestScannerCachesSnapshots(t *testing.T) {
	dir := t.TempDir()
	s := NewScanner(nil)

	snap, err := s.Snapshot(dir)
	require.NoError(t, err)
	require.Equal(t, 0, snap.CompleteFiles)

	// New plot files stay invisible to cached reads until a refresh.
	writePlotFile(t, dir, "pocx1qtest_0_4_31.pocx", 64)
	cached, err := s.Snapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, cached.CompleteFiles)

	fresh, err := s.Refresh(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.CompleteFiles)
	assert.Equal(t, uint64(64), fresh.CompleteBytes)
}

func TestScannerCacheExpires(t *testing.T) {
	dir := t.TempDir()
	s := NewScanner(nil)
	base := time.Now()
	s.now = func() time.Time { return base }

	_, err := s.Snapshot(dir)
	require.NoError(t, err)

	writePlotFile(t, dir, "pocx1qtest_0_8_31.tmp", 32)
	s.now = func() time.Time { return base.Add(snapshotTTL) }

	snap, err := s.Snapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.IncompleteFiles)
	assert.Equal(t, uint64(32), snap.IncompleteBytes)
}
