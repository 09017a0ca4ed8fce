// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phoenix-pocx/plotterd/internal/config"
	"github.com/phoenix-pocx/plotterd/internal/history"
	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

func runExport(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}
	cfg, err := config.Load(path, logging.Default())
	if err != nil {
		return err
	}

	store, err := history.Open(filepath.Join(cfg.DataDir, "deadlines"), logging.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	var entries []history.Entry
	if exportChain != "" {
		entries, err = store.RecentByChain(exportChain, 0)
	} else {
		entries, err = store.Recent(0)
	}
	if err != nil {
		return err
	}

	csv := history.ExportCSV(entries)
	if exportOut == "" {
		fmt.Print(csv)
		return nil
	}
	if err := os.WriteFile(exportOut, []byte(csv), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	fmt.Printf("Exported %d deadline(s) to %s\n", len(entries), exportOut)
	return nil
}
