// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package executor

import (
	"context"
	"runtime"
	"strings"

	"github.com/phoenix-pocx/plotterd/internal/plotter"
)

// BenchmarkDevice names one compute device to exercise.
type BenchmarkDevice struct {
	Name string `json:"name"`
	// Discrete marks a dedicated GPU, which gets a larger benchmark
	// workload than CPUs and integrated GPUs.
	Discrete bool `json:"discrete"`
}

// DeviceResult is one device's benchmark outcome. A failed device
// carries its error without affecting the others.
type DeviceResult struct {
	Device      string  `json:"device"`
	OK          bool    `json:"ok"`
	WarpsPerSec float64 `json:"warpsPerSec,omitempty"`
	DurationMs  uint64  `json:"durationMs,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// benchmarkWarps sizes the workload so faster hardware gets enough
// work for a stable measurement: one warp per 8 CPU threads as the
// base, four times that for discrete GPUs.
func benchmarkWarps(discrete bool) uint64 {
	base := uint64((runtime.NumCPU() + 7) / 8)
	if base == 0 {
		base = 1
	}
	if discrete {
		return base * 4
	}
	return base
}

// Benchmark runs the plotter's benchmark mode on each device in turn.
// Devices fail independently; the call only errors when it cannot run
// at all.
func (e *Engine) Benchmark(ctx context.Context, devices []BenchmarkDevice) ([]DeviceResult, error) {
	e.mu.Lock()
	if e.phase == PhasePlotting || e.phase == PhaseStopping {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.mu.Unlock()

	results := make([]DeviceResult, 0, len(devices))
	for _, device := range devices {
		res, err := e.client.Benchmark(ctx, plotter.BenchmarkRequest{
			Device: device.Name,
			Warps:  benchmarkWarps(device.Discrete),
		})
		if err != nil {
			e.metrics.PlotterCommandErrs.Inc()
			e.logger.Warn("device benchmark failed", "device", device.Name, "error", err)
			results = append(results, DeviceResult{
				Device: device.Name,
				Error:  benchmarkErrString(err),
			})
			continue
		}
		results = append(results, DeviceResult{
			Device:      res.Device,
			OK:          true,
			WarpsPerSec: res.WarpsPerSec,
			DurationMs:  res.DurationMs,
		})
	}
	return results, nil
}

// benchmarkErrString trims the command-path prefix the client wraps
// in, which is noise in a per-device result.
func benchmarkErrString(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 && idx+2 < len(msg) {
		return msg[idx+2:]
	}
	return msg
}
