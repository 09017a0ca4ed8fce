// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath  string
	exportChain string
	exportOut   string

	rootCmd = &cobra.Command{
		Use:   "plotterd",
		Short: "The Phoenix PoCX plotting orchestration daemon",
		Long: `plotterd turns configured drives and capacity targets into an
ordered plot plan, drives the external plotting process through it,
and keeps the rolling proof-submission history for the wallet UI.`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestration daemon",
		RunE:  runServe,
	}

	exportCmd = &cobra.Command{
		Use:   "export-deadlines",
		Short: "Export the stored deadline history as CSV",
		RunE:  runExport,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default ~/.plotterd/plotterd.yaml)")

	exportCmd.Flags().StringVar(&exportChain, "chain", "", "only export one chain")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write to a file instead of stdout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
}
