// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/phoenix-pocx/plotterd/internal/config"
	"github.com/phoenix-pocx/plotterd/internal/drive"
	"github.com/phoenix-pocx/plotterd/internal/executor"
	"github.com/phoenix-pocx/plotterd/internal/history"
)

// envelope is the uniform response shape the display layer consumes.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, envelope{Success: false, Error: err.Error()})
}

// failFor maps engine errors to sensible status codes.
func failFor(c *gin.Context, err error) {
	switch {
	case errors.Is(err, executor.ErrBusy):
		fail(c, http.StatusConflict, err)
	case errors.Is(err, executor.ErrNoPlan),
		errors.Is(err, executor.ErrNoAddress),
		errors.Is(err, config.ErrInvalidAddress),
		errors.Is(err, drive.ErrAllocationTooLarge),
		errors.Is(err, drive.ErrAllocationBelowComplete):
		fail(c, http.StatusBadRequest, err)
	default:
		fail(c, http.StatusInternalServerError, err)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// driveView decorates a snapshot with its allocation bounds so the
// display layer does not re-derive capacity math.
type driveView struct {
	drive.Snapshot
	MaxAllocatable uint64 `json:"maxAllocatable"`
	MinAllocatable uint64 `json:"minAllocatable"`
}

func viewOf(snap drive.Snapshot) driveView {
	return driveView{
		Snapshot:       snap,
		MaxAllocatable: snap.MaxAllocatable(),
		MinAllocatable: snap.MinAllocatable(),
	}
}

func getState(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var paths []string
		for _, d := range deps.Config.EnabledDrives() {
			paths = append(paths, d.Path)
		}
		snaps := deps.Scanner.SnapshotAll(paths)
		views := make([]driveView, 0, len(snaps))
		for _, snap := range snaps {
			views = append(views, viewOf(snap))
		}

		state := deps.Engine.State()
		ok(c, gin.H{
			"runtimeState": state,
			"drives":       views,
			"deadlines":    deps.Cache.Entries(),
		})
	}
}

func generatePlan(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := deps.Engine.GeneratePlan(c.Request.Context())
		if err != nil {
			failFor(c, err)
			return
		}
		ok(c, p) // nil means no work needed
	}
}

func startPlan(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := deps.Engine.Start(c.Request.Context())
		if err != nil {
			failFor(c, err)
			return
		}
		ok(c, item)
	}
}

func softStop(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deps.Engine.SoftStop(); err != nil {
			failFor(c, err)
			return
		}
		ok(c, nil)
	}
}

func hardStop(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deps.Engine.HardStop(c.Request.Context()); err != nil {
			failFor(c, err)
			return
		}
		ok(c, nil)
	}
}

func listDrives(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var paths []string
		for _, d := range deps.Config.EnabledDrives() {
			paths = append(paths, d.Path)
		}
		snaps := deps.Scanner.SnapshotAll(paths)
		views := make([]driveView, 0, len(snaps))
		for _, snap := range snaps {
			views = append(views, viewOf(snap))
		}
		ok(c, views)
	}
}

func getDriveInfo(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Query("path")
		if path == "" {
			fail(c, http.StatusBadRequest, errors.New("missing path parameter"))
			return
		}
		snap, err := deps.Scanner.Snapshot(path)
		if err != nil {
			failFor(c, err)
			return
		}
		ok(c, viewOf(snap))
	}
}

func batchDriveInfo(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Paths []string `json:"paths" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		views := make([]driveView, 0, len(req.Paths))
		for _, snap := range deps.Scanner.SnapshotAll(req.Paths) {
			views = append(views, viewOf(snap))
		}
		ok(c, views)
	}
}

func getDeadlines(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := history.CacheSize
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				fail(c, http.StatusBadRequest, errors.New("limit must be a positive integer"))
				return
			}
			limit = parsed
		}

		// The durable tier is the source of truth for explicit reads;
		// the cache only backs the live state view.
		var (
			entries []history.Entry
			err     error
		)
		if chain := c.Query("chain"); chain != "" {
			entries, err = deps.Store.RecentByChain(chain, limit)
		} else {
			entries, err = deps.Store.Recent(limit)
		}
		if err != nil {
			failFor(c, err)
			return
		}
		ok(c, entries)
	}
}

func exportDeadlines(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			entries []history.Entry
			err     error
		)
		if chain := c.Query("chain"); chain != "" {
			entries, err = deps.Store.RecentByChain(chain, 0)
		} else {
			entries, err = deps.Store.Recent(0)
		}
		if err != nil {
			failFor(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="deadlines.csv"`)
		c.Data(http.StatusOK, "text/csv", []byte(history.ExportCSV(entries)))
	}
}

func getActivity(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok(c, deps.Activity.Entries())
	}
}

func runBenchmark(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Devices []executor.BenchmarkDevice `json:"devices" binding:"required,min=1,dive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		results, err := deps.Engine.Benchmark(c.Request.Context(), req.Devices)
		if err != nil {
			failFor(c, err)
			return
		}
		ok(c, results)
	}
}
