// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

// Package metrics exposes the engine's operational counters and
// gauges for Prometheus scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the engine feeds. One instance is
// created at startup and handed to the components that record.
type Metrics struct {
	registry *prometheus.Registry

	PlanItemsTotal      *prometheus.CounterVec
	PlanItemsFailed     prometheus.Counter
	PlanGenerations     prometheus.Counter
	StopsTotal          *prometheus.CounterVec
	RuntimePhase        *prometheus.GaugeVec
	ProgressPercent     prometheus.Gauge
	PlottingBytesPerSec prometheus.Gauge
	WarpsPlottedTotal   prometheus.Counter
	DeadlineInserts     *prometheus.CounterVec
	PlotterCommandErrs  prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PlanItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plotterd",
			Name:      "plan_items_total",
			Help:      "Plan items completed, by kind and outcome.",
		}, []string{"kind", "outcome"}),

		PlanItemsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plotterd",
			Name:      "plan_items_failed_total",
			Help:      "Plan items that reported a failed completion.",
		}),

		PlanGenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plotterd",
			Name:      "plan_generations_total",
			Help:      "Plot plans generated.",
		}),

		StopsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plotterd",
			Name:      "stops_total",
			Help:      "Stop requests, by mode (soft or hard).",
		}, []string{"mode"}),

		RuntimePhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "plotterd",
			Name:      "runtime_phase",
			Help:      "Current executor phase (1 for the active phase, 0 otherwise).",
		}, []string{"phase"}),

		ProgressPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plotterd",
			Name:      "item_progress_percent",
			Help:      "Progress of the current plan item.",
		}),

		PlottingBytesPerSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plotterd",
			Name:      "plotting_bytes_per_second",
			Help:      "Effective plotting throughput of the current item.",
		}),

		WarpsPlottedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plotterd",
			Name:      "warps_plotted_total",
			Help:      "Warps fully plotted since startup.",
		}),

		DeadlineInserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plotterd",
			Name:      "deadline_inserts_total",
			Help:      "Deadline entries inserted, by chain.",
		}, []string{"chain"}),

		PlotterCommandErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plotterd",
			Name:      "plotter_command_errors_total",
			Help:      "Failed command exchanges with the plotting process.",
		}),
	}

	m.registry.MustRegister(
		m.PlanItemsTotal,
		m.PlanItemsFailed,
		m.PlanGenerations,
		m.StopsTotal,
		m.RuntimePhase,
		m.ProgressPercent,
		m.PlottingBytesPerSec,
		m.WarpsPlottedTotal,
		m.DeadlineInserts,
		m.PlotterCommandErrs,
	)
	return m
}

// SetPhase flips the phase gauge so exactly one phase reads 1.
func (m *Metrics) SetPhase(phase string) {
	for _, p := range []string{"idle", "ready", "plotting", "stopping", "paused", "error"} {
		v := 0.0
		if p == phase {
			v = 1.0
		}
		m.RuntimePhase.WithLabelValues(p).Set(v)
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
