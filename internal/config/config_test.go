// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plotterd.yaml")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Equal(t, 1, cfg.Plotting.Escalation)
	assert.Equal(t, 1, cfg.Plotting.ParallelDrives)
	assert.Equal(t, 31, cfg.Plotting.Compression)
	require.Len(t, cfg.Chains, 1)
	assert.Equal(t, "pocx", cfg.Chains[0].Name)
}

func TestLoadFillsOmittedDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plotterd.yaml")
	minimal := "address: pocx1qqqqqq\ndata_dir: /tmp/plotterd-test\n"
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Plotting.Escalation)
	assert.Equal(t, 1, cfg.Plotting.ParallelDrives)
	assert.NotEmpty(t, cfg.PlotterURL)
	assert.NotEmpty(t, cfg.Listen)
}

func TestLoadRejectsBadAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plotterd.yaml")
	bad := "address: not-an-address\ndata_dir: /tmp/x\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := Load(path, nil)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestLoadRejectsDuplicateDrives(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plotterd.yaml")
	dup := `data_dir: /tmp/x
drives:
  - path: /mnt/plots
    enabled: true
  - path: /mnt/plots
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(dup), 0o644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configured twice")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plotterd.yaml")

	cfg := DefaultConfig()
	cfg.Address = "pocx1qyzxvp0"
	cfg.Drives = []DriveConfig{{Path: "/mnt/plots", Enabled: true, AllocatedGiB: 900}}
	require.NoError(t, Save(path, cfg, "test save"))

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Address, loaded.Address)
	assert.Equal(t, cfg.Drives, loaded.Drives)
}

func TestValidateAddress(t *testing.T) {
	valid := []string{
		"pocx1qyzxvp0",
		"tpocx1qqqqqq",
		"rpocx1q2w3e4r5t",
		"POCX1QYZXVP0",
	}
	for _, addr := range valid {
		assert.NoError(t, ValidateAddress(addr), addr)
	}

	invalid := []string{
		"",
		"pocx",
		"pocx1",
		"pocx1qq",           // payload too short
		"btc1qqqqqq",        // unknown prefix
		"pocx1qqqqqb",       // 'b' not in the bech32 alphabet
		"Pocx1qqqqqq",       // mixed case
		"pocx-classic-addr", // no separator alphabet
	}
	for _, addr := range invalid {
		assert.Error(t, ValidateAddress(addr), addr)
	}
}

func TestConfigHash(t *testing.T) {
	a := DefaultConfig()
	a.Address = "pocx1qyzxvp0"
	b := a

	assert.Equal(t, a.Hash(), b.Hash())

	b.Drives = []DriveConfig{{Path: "/mnt/plots", Enabled: true, AllocatedGiB: 100}}
	assert.NotEqual(t, a.Hash(), b.Hash())

	// Non-plan-shaping fields do not move the hash.
	c := a
	c.LogLevel = "debug"
	c.Listen = "127.0.0.1:9999"
	assert.Equal(t, a.Hash(), c.Hash())
}

func TestEnabledFilters(t *testing.T) {
	cfg := Config{
		Chains: []ChainConfig{
			{Name: "pocx", Enabled: true},
			{Name: "pocx-test", Enabled: false},
		},
		Drives: []DriveConfig{
			{Path: "/mnt/a", Enabled: true},
			{Path: "/mnt/b", Enabled: false},
		},
	}
	assert.Equal(t, []string{"pocx"}, cfg.EnabledChains())
	require.Len(t, cfg.EnabledDrives(), 1)
	assert.Equal(t, "/mnt/a", cfg.EnabledDrives()[0].Path)
}
