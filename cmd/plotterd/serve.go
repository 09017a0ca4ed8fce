// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/phoenix-pocx/plotterd/internal/activity"
	"github.com/phoenix-pocx/plotterd/internal/config"
	"github.com/phoenix-pocx/plotterd/internal/drive"
	"github.com/phoenix-pocx/plotterd/internal/executor"
	"github.com/phoenix-pocx/plotterd/internal/history"
	"github.com/phoenix-pocx/plotterd/internal/metrics"
	"github.com/phoenix-pocx/plotterd/internal/plotter"
	"github.com/phoenix-pocx/plotterd/internal/server"
	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

// cacheRebuildInterval is the reconciliation checkpoint for the
// deadline display cache.
const cacheRebuildInterval = 30 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}

	bootLogger := logging.Default()
	cfg, err := config.Load(path, bootLogger)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "plotterd",
	})
	defer logger.Close()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := history.Open(filepath.Join(cfg.DataDir, "deadlines"), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	cache := history.NewCache()
	if err := cache.Rebuild(store); err != nil {
		logger.Warn("deadline cache rebuild failed", "error", err)
	}

	m := metrics.New()
	log := activity.NewLog(0, nil)
	scanner := drive.NewScanner(logger)
	client := plotter.NewClient(cfg.PlotterURL, logger)
	stream := plotter.NewStream(cfg.PlotterEventsURL, logger)

	engine := executor.New(executor.Options{
		Config:    cfg,
		Client:    client,
		Targets:   executor.NewDriveTargets(cfg, scanner, logger),
		Deadlines: history.NewRecorder(store, cache),
		Activity:  log,
		Metrics:   m,
		Logger:    logger,
	})

	router := server.NewRouter(server.Deps{
		Config:   cfg,
		Engine:   engine,
		Store:    store,
		Cache:    cache,
		Activity: log,
		Scanner:  scanner,
		Metrics:  m,
		Logger:   logger,
	})
	httpSrv := &http.Server{Addr: cfg.Listen, Handler: router}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return ignoreCancel(stream.Run(ctx))
	})
	group.Go(func() error {
		return ignoreCancel(engine.Run(ctx, stream.Events()))
	})
	group.Go(func() error {
		ticker := time.NewTicker(cacheRebuildInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := cache.Rebuild(store); err != nil {
					logger.Warn("deadline cache rebuild failed", "error", err)
				}
			}
		}
	})

	var dirs []string
	for _, d := range cfg.EnabledDrives() {
		dirs = append(dirs, d.Path)
	}
	if len(dirs) > 0 {
		watcher, err := drive.NewWatcher(dirs, func(dir string) {
			if _, err := scanner.Refresh(dir); err != nil {
				logger.Warn("drive snapshot refresh failed", "dir", dir, "error", err)
			}
		}, logger)
		if err != nil {
			logger.Warn("plot directory watcher unavailable", "error", err)
		} else {
			group.Go(func() error {
				return ignoreCancel(watcher.Run(ctx))
			})
		}
	}

	group.Go(func() error {
		logger.Info("listening", "addr", cfg.Listen)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	logger.Info("plotterd started", "config", path, "data_dir", cfg.DataDir)
	return group.Wait()
}

// ignoreCancel maps context cancellation to a clean exit so shutdown
// does not report an error.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
