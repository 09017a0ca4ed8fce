// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

// DefaultPath is the config location when none is given on the
// command line.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".plotterd", "plotterd.yaml"), nil
}

// Load reads the config at path, creating it with defaults on first
// run. The loaded config is validated before being returned.
func Load(path string, logger *logging.Logger) (Config, error) {
	if logger == nil {
		logger = logging.Default()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("first run detected, writing default config", "path", path)
		if err := Save(path, DefaultConfig(), "first run"); err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config file: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.DataDir = ExpandPath(cfg.DataDir)
	return cfg, nil
}

// Save writes the config atomically: to a temp file in the same
// directory, then renamed over the target. The reason shows up in the
// saved header so config churn is traceable.
func Save(path string, cfg Config, reason string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize the config: %w", err)
	}
	header := fmt.Sprintf("# plotterd configuration (last written: %s)\n", reason)

	tmp, err := os.CreateTemp(dir, ".plotterd-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to stage the config write: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(header); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace the config file: %w", err)
	}
	return nil
}

// applyDefaults fills zero values that have non-zero defaults, so a
// hand-edited file omitting them still behaves.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Plotting.Escalation == 0 {
		cfg.Plotting.Escalation = def.Plotting.Escalation
	}
	if cfg.Plotting.ParallelDrives == 0 {
		cfg.Plotting.ParallelDrives = def.Plotting.ParallelDrives
	}
	if cfg.PlotterURL == "" {
		cfg.PlotterURL = def.PlotterURL
	}
	if cfg.PlotterEventsURL == "" {
		cfg.PlotterEventsURL = def.PlotterEventsURL
	}
	if cfg.Listen == "" {
		cfg.Listen = def.Listen
	}
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
}

// ExpandPath resolves a leading "~" against the user's home
// directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
