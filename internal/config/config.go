// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

// Package config holds the mining configuration: target chains, plot
// drives with their allocations, and the knobs handed to the external
// plotting process.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config is the full mining configuration.
type Config struct {
	// Address receives the plotted capacity's rewards and is baked
	// into every plot file name. It may be empty until the user sets
	// one; plan generation refuses to run without it.
	Address string `yaml:"address"`

	Chains []ChainConfig `yaml:"chains" validate:"dive"`
	Drives []DriveConfig `yaml:"drives" validate:"dive"`

	Plotting PlottingConfig `yaml:"plotting"`

	// PlotterURL is the external plotting process's command endpoint.
	PlotterURL string `yaml:"plotter_url" validate:"required,url"`
	// PlotterEventsURL is its one-way notification stream.
	PlotterEventsURL string `yaml:"plotter_events_url" validate:"required"`

	// Listen is the engine's own HTTP bind address.
	Listen string `yaml:"listen" validate:"required"`

	// DataDir holds the deadline store and persisted plan.
	DataDir string `yaml:"data_dir" validate:"required"`

	LogLevel string `yaml:"log_level"`
	LogDir   string `yaml:"log_dir"`
}

// ChainConfig names one chain capacity is mined for.
type ChainConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Enabled bool   `yaml:"enabled"`
}

// DriveConfig is one plot target volume.
type DriveConfig struct {
	Path         string `yaml:"path" validate:"required"`
	Enabled      bool   `yaml:"enabled"`
	AllocatedGiB uint64 `yaml:"allocated_gib"`
}

// PlottingConfig carries the knobs forwarded to the plotter process.
type PlottingConfig struct {
	Compression int `yaml:"compression" validate:"min=0,max=63"`
	// MemoryGiB caps the plotter's cache; 0 lets the plotter decide.
	MemoryGiB int `yaml:"memory_gib" validate:"min=0"`
	// Escalation multiplies the memory cache sizing.
	Escalation int  `yaml:"escalation" validate:"min=1"`
	DirectIO   bool `yaml:"direct_io"`
	// ParallelDrives is the number of drives plotted concurrently as
	// one batch.
	ParallelDrives int `yaml:"parallel_drives" validate:"min=1"`
	// Simulation makes the plotter fake the work, for dry runs.
	Simulation bool `yaml:"simulation"`
}

// DefaultConfig returns the first-run configuration.
func DefaultConfig() Config {
	return Config{
		Chains: []ChainConfig{{Name: "pocx", Enabled: true}},
		Plotting: PlottingConfig{
			Compression:    31,
			Escalation:     1,
			ParallelDrives: 1,
		},
		PlotterURL:       "http://127.0.0.1:9480",
		PlotterEventsURL: "ws://127.0.0.1:9480/events",
		Listen:           "127.0.0.1:9470",
		DataDir:          "~/.plotterd",
		LogLevel:         "info",
	}
}

var validate = validator.New()

// Validate rejects malformed configuration before anything is
// dispatched. The address check runs even when struct tags pass, so a
// well-formed file with a bad address still fails here.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Address != "" {
		if err := ValidateAddress(c.Address); err != nil {
			return err
		}
	}
	seen := make(map[string]struct{}, len(c.Drives))
	for _, d := range c.Drives {
		if _, dup := seen[d.Path]; dup {
			return fmt.Errorf("invalid config: drive %s configured twice", d.Path)
		}
		seen[d.Path] = struct{}{}
	}
	return nil
}

// EnabledDrives returns the drives participating in plan generation.
func (c *Config) EnabledDrives() []DriveConfig {
	var out []DriveConfig
	for _, d := range c.Drives {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// EnabledChains returns the chains mined for.
func (c *Config) EnabledChains() []string {
	var out []string
	for _, ch := range c.Chains {
		if ch.Enabled {
			out = append(out, ch.Name)
		}
	}
	return out
}

// Hash fingerprints the plan-shaping parts of the configuration. A
// persisted plan whose hash no longer matches is regenerated instead
// of resumed.
func (c *Config) Hash() string {
	fingerprint := struct {
		Address  string
		Drives   []DriveConfig
		Plotting PlottingConfig
	}{c.Address, c.Drives, c.Plotting}

	data, err := json.Marshal(fingerprint)
	if err != nil {
		// Only unmarshalable types reach this, and the fingerprint
		// struct has none.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
