// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

// Package executor drives the plot plan: it dispatches items to the
// external plotting process, folds its notifications into runtime
// state, and implements stop and resume semantics.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phoenix-pocx/plotterd/internal/activity"
	"github.com/phoenix-pocx/plotterd/internal/config"
	"github.com/phoenix-pocx/plotterd/internal/history"
	"github.com/phoenix-pocx/plotterd/internal/metrics"
	"github.com/phoenix-pocx/plotterd/internal/plan"
	"github.com/phoenix-pocx/plotterd/internal/plotter"
	"github.com/phoenix-pocx/plotterd/internal/progress"
	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

// Phase is the executor's runtime state.
type Phase string

const (
	// PhaseIdle means no plan exists.
	PhaseIdle Phase = "idle"
	// PhaseReady means a plan exists with work remaining and nothing
	// running.
	PhaseReady Phase = "ready"
	// PhasePlotting means the current batch is dispatched.
	PhasePlotting Phase = "plotting"
	// PhaseStopping means a soft stop was requested; the in-flight
	// batch is finishing.
	PhaseStopping Phase = "stopping"
	// PhasePaused means a stop completed with work remaining; nothing
	// dispatches until the user resumes.
	PhasePaused Phase = "paused"
	// PhaseError means the command channel to the plotting process is
	// lost. Only a hard stop leaves this state.
	PhaseError Phase = "error"
)

var (
	// ErrNoPlan is returned by Start when no plan exists.
	ErrNoPlan = errors.New("no plot plan")
	// ErrBusy is returned when a command conflicts with the current
	// phase, such as generating a plan while plotting.
	ErrBusy = errors.New("executor busy")
	// ErrNoAddress rejects plan generation before a plotting address
	// is configured.
	ErrNoAddress = errors.New("no plotting address configured")
)

// Commander is the slice of the plotter client the executor uses.
type Commander interface {
	StartPlot(ctx context.Context, req plotter.PlotRequest) error
	StartResume(ctx context.Context, req plotter.ResumeRequest) error
	Abort(ctx context.Context) error
	AddToMiner(ctx context.Context, dir string) error
	Benchmark(ctx context.Context, req plotter.BenchmarkRequest) (plotter.BenchmarkResult, error)
	Ping(ctx context.Context) error
}

// TargetSource supplies fresh drive targets for plan generation.
type TargetSource interface {
	Targets(ctx context.Context) ([]plan.Target, error)
}

// DeadlineSink receives proof submissions observed on the
// notification stream.
type DeadlineSink interface {
	Record(entry history.Entry) error
}

// State is the pull-based snapshot handed to the display layer.
type State struct {
	Phase    Phase             `json:"phase"`
	Plan     *plan.Plan        `json:"plan,omitempty"`
	Progress progress.Snapshot `json:"progress"`
	// Blocks is the latest observed block height per chain.
	Blocks map[string]uint64 `json:"blocks,omitempty"`
}

// Engine is the plan executor. All mutation happens under one lock in
// response to discrete events: user commands, plotter notifications
// and the periodic refresh. It never blocks on the plotting process
// beyond short command acknowledgements.
type Engine struct {
	mu sync.Mutex

	phase    Phase
	plan     *plan.Plan
	pending  map[string]plan.ItemKind // in-flight batch members by path
	failures int                      // failed members of the current batch
	softStop bool
	blocks   map[string]uint64 // latest block height per chain

	cfg       config.Config
	client    Commander
	targets   TargetSource
	deadlines DeadlineSink
	agg       *progress.Aggregator
	activity  *activity.Log
	metrics   *metrics.Metrics
	logger    *logging.Logger

	planPath  string
	pingFails int
}

// Options wires an Engine's collaborators.
type Options struct {
	Config  config.Config
	Client  Commander
	Targets TargetSource
	// Deadlines receives miner submissions; nil drops them.
	Deadlines DeadlineSink
	Activity  *activity.Log
	Metrics   *metrics.Metrics
	Logger    *logging.Logger
	// Aggregator overrides the default wall-clock aggregator in
	// tests.
	Aggregator *progress.Aggregator
}

// New creates an idle Engine. A plan persisted by a previous run is
// reloaded when its version and config fingerprint still match.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	agg := opts.Aggregator
	if agg == nil {
		agg = progress.NewAggregator(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	e := &Engine{
		phase:     PhaseIdle,
		pending:   make(map[string]plan.ItemKind),
		blocks:    make(map[string]uint64),
		cfg:       opts.Config,
		client:    opts.Client,
		targets:   opts.Targets,
		deadlines: opts.Deadlines,
		agg:       agg,
		activity:  opts.Activity,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "executor"),
		planPath:  filepath.Join(opts.Config.DataDir, "plan.json"),
	}
	e.metrics.SetPhase(string(e.phase))
	e.restorePlan()
	return e
}

// State returns the current runtime snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	blocks := make(map[string]uint64, len(e.blocks))
	for chain, height := range e.blocks {
		blocks[chain] = height
	}
	return State{
		Phase:    e.phase,
		Plan:     e.planCopyLocked(),
		Progress: e.agg.Snapshot(),
		Blocks:   blocks,
	}
}

// GeneratePlan computes a fresh plan from live drive targets. A nil
// plan with no error means no work is needed. Generation is refused
// while a batch is in flight.
func (e *Engine) GeneratePlan(ctx context.Context) (*plan.Plan, error) {
	e.mu.Lock()
	switch e.phase {
	case PhasePlotting, PhaseStopping:
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot generate a plan while %s", ErrBusy, e.phase)
	}
	cfg := e.cfg
	e.mu.Unlock()

	if cfg.Address == "" {
		return nil, ErrNoAddress
	}
	if err := config.ValidateAddress(cfg.Address); err != nil {
		return nil, err
	}

	targets, err := e.targets.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh drive targets: %w", err)
	}

	p := plan.Generate(targets, plan.GeneratorConfig{
		Parallelism: cfg.Plotting.ParallelDrives,
		ConfigHash:  cfg.Hash(),
		AddToMiner:  len(cfg.EnabledChains()) > 0,
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.plan = p
	e.softStop = false
	if p == nil {
		e.setPhaseLocked(PhaseIdle)
		e.removePlanFile()
		e.logActivity(activity.SeverityInfo, "plan generation: no work needed")
		return nil, nil
	}
	e.setPhaseLocked(PhaseReady)
	e.persistPlanLocked()
	e.metrics.PlanGenerations.Inc()
	e.logActivity(activity.SeverityInfo,
		fmt.Sprintf("generated plot plan: %d items, %d warps", len(p.Items), p.TotalWarps()))
	return e.planCopyLocked(), nil
}

// Start dispatches the batch at the plan cursor and returns its first
// item. Starting from Paused resumes at the preserved cursor.
func (e *Engine) Start(ctx context.Context) (*plan.Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case PhaseReady, PhasePaused:
	case PhasePlotting, PhaseStopping:
		return nil, fmt.Errorf("%w: already plotting", ErrBusy)
	default:
		return nil, ErrNoPlan
	}
	if e.plan == nil || e.plan.Done() {
		return nil, ErrNoPlan
	}

	e.softStop = false
	if err := e.dispatchBatchLocked(ctx); err != nil {
		return nil, err
	}
	// A plan of registration items completes inline; there is no first
	// storage item to report.
	item, ok := e.plan.Current()
	if !ok {
		return nil, nil
	}
	return &item, nil
}

// SoftStop lets the in-flight batch finish, then parks the plan with
// its cursor preserved. Batch-sized work is expensive to discard, so
// this is the preferred stop.
func (e *Engine) SoftStop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case PhasePlotting:
		e.softStop = true
		e.setPhaseLocked(PhaseStopping)
		e.metrics.StopsTotal.WithLabelValues("soft").Inc()
		e.logActivity(activity.SeverityInfo, "soft stop requested, finishing current batch")
		return nil
	case PhaseStopping:
		return nil // already stopping
	default:
		return fmt.Errorf("%w: nothing to stop", ErrNoPlan)
	}
}

// HardStop aborts the plotting process immediately and discards the
// plan. The in-flight item's partial file stays on disk and becomes a
// resume candidate at the next generation pass.
func (e *Engine) HardStop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == PhasePlotting || e.phase == PhaseStopping {
		if err := e.client.Abort(ctx); err != nil {
			// The process may already be gone; the plan is discarded
			// either way.
			e.metrics.PlotterCommandErrs.Inc()
			e.logger.Warn("abort command failed", "error", err)
		}
	}

	e.plan = nil
	e.pending = make(map[string]plan.ItemKind)
	e.failures = 0
	e.softStop = false
	e.agg.Finish(false)
	e.removePlanFile()
	e.setPhaseLocked(PhaseIdle)
	e.metrics.StopsTotal.WithLabelValues("hard").Inc()
	e.logActivity(activity.SeverityWarn, "hard stop: plan discarded, partial files left for resume")
	return nil
}

// HandleEvent folds one plotter notification into the state machine.
// Events are immutable messages; everything they trigger happens here
// under the lock, never in scattered callbacks.
func (e *Engine) HandleEvent(ctx context.Context, ev plotter.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Type {
	case plotter.EventStarted:
		if ev.ResumeOffset > 0 {
			// A resumed file starts partway through both phases.
			e.agg.ObserveHashing(ev.ResumeOffset)
			e.agg.ObserveWriting(ev.ResumeOffset)
		}
	case plotter.EventHashing:
		e.agg.ObserveHashing(ev.WarpsDelta)
		e.publishProgressLocked()
	case plotter.EventWriting:
		e.agg.ObserveWriting(ev.WarpsDelta)
		e.publishProgressLocked()
	case plotter.EventItemComplete:
		e.completeItemLocked(ctx, ev)
	case plotter.EventError:
		e.logActivity(activity.SeverityError, "plotter error: "+ev.Error)
		if e.phase == PhasePlotting || e.phase == PhaseStopping {
			e.setPhaseLocked(PhaseError)
		}
	case plotter.EventDeadline:
		e.recordDeadlineLocked(ev)
	case plotter.EventBlock:
		e.observeBlockLocked(ev.Chain, ev.Height)
	}
}

// observeBlockLocked tracks the newest block height per chain for the
// state snapshot. Heights only move forward; a lagging notification
// after a resync must not rewind the display.
func (e *Engine) observeBlockLocked(chain string, height uint64) {
	if chain == "" {
		return
	}
	if height > e.blocks[chain] {
		e.blocks[chain] = height
	}
}

// recordDeadlineLocked feeds one miner submission into the history
// tier. Ingestion failures are absorbed; the next cache rebuild
// reconciles anything missed.
func (e *Engine) recordDeadlineLocked(ev plotter.Event) {
	// A submission at a height implies the chain reached it.
	e.observeBlockLocked(ev.Chain, ev.Height)
	if e.deadlines == nil {
		return
	}
	entry := history.Entry{
		ID:              uuid.NewString(),
		Chain:           ev.Chain,
		Account:         ev.Account,
		Height:          ev.Height,
		Nonce:           ev.Nonce,
		DeadlineSeconds: ev.DeadlineSeconds,
		Submitted:       ev.Submitted,
		Timestamp:       time.Now().UTC(),
	}
	if err := e.deadlines.Record(entry); err != nil {
		e.logger.Warn("deadline ingestion failed", "chain", ev.Chain, "error", err)
		return
	}
	e.metrics.DeadlineInserts.WithLabelValues(ev.Chain).Inc()
}

// completeItemLocked retires one batch member. The batch is complete
// only when every member has signaled; a member failure is logged and
// the plan still advances past the batch.
func (e *Engine) completeItemLocked(ctx context.Context, ev plotter.Event) {
	kind, inFlight := e.pending[ev.Path]
	if !inFlight {
		e.logger.Warn("completion for unknown item", "path", ev.Path)
		return
	}
	delete(e.pending, ev.Path)

	outcome := "success"
	if ev.Success {
		e.metrics.WarpsPlottedTotal.Add(float64(ev.WarpsPlotted))
	} else {
		outcome = "failure"
		e.failures++
		e.metrics.PlanItemsFailed.Inc()
		e.logActivity(activity.SeverityError,
			fmt.Sprintf("plot item failed on %s: %s", ev.Path, ev.Error))
	}
	e.metrics.PlanItemsTotal.WithLabelValues(string(kind), outcome).Inc()

	if len(e.pending) > 0 {
		return // batch still in flight
	}

	e.agg.Finish(e.failures == 0)
	e.publishProgressLocked()
	e.failures = 0
	e.plan.Advance()
	e.persistPlanLocked()
	e.advanceLocked(ctx)
}

// advanceLocked decides what happens after a batch retires: park for
// a stop, finish the plan, or dispatch the next batch.
func (e *Engine) advanceLocked(ctx context.Context) {
	if e.plan.Done() {
		e.softStop = false
		e.setPhaseLocked(PhaseIdle)
		e.removePlanFile()
		e.logActivity(activity.SeverityInfo, "plot plan complete")
		return
	}

	next, _ := e.plan.Current()
	if e.softStop {
		// Registration items are cheap and still run during a soft
		// stop; storage work parks until the user resumes.
		if next.Kind == plan.KindAddToMiner {
			if err := e.dispatchBatchLocked(ctx); err != nil {
				e.parkLocked()
			}
			return
		}
		e.parkLocked()
		return
	}

	if err := e.dispatchBatchLocked(ctx); err != nil {
		e.logActivity(activity.SeverityError, "dispatch failed: "+err.Error())
		e.parkLocked()
	}
}

func (e *Engine) parkLocked() {
	e.softStop = false
	e.setPhaseLocked(PhasePaused)
	e.logActivity(activity.SeverityInfo, "plotting paused, plan preserved")
}

// dispatchBatchLocked sends every member of the current batch to the
// plotting process. AddToMiner items acknowledge synchronously and
// advance the plan inline; storage items complete via the event
// stream.
func (e *Engine) dispatchBatchLocked(ctx context.Context) error {
	batch := e.plan.CurrentBatch()
	if len(batch) == 0 {
		return ErrNoPlan
	}

	if batch[0].Kind == plan.KindAddToMiner {
		item := batch[0]
		if err := e.client.AddToMiner(ctx, item.Path); err != nil {
			e.metrics.PlotterCommandErrs.Inc()
			e.metrics.PlanItemsTotal.WithLabelValues(string(plan.KindAddToMiner), "failure").Inc()
			return fmt.Errorf("register %s with miner: %w", item.Path, err)
		}
		e.metrics.PlanItemsTotal.WithLabelValues(string(plan.KindAddToMiner), "success").Inc()
		e.logActivity(activity.SeverityInfo, "registered with miner: "+item.Path)
		e.plan.Advance()
		e.persistPlanLocked()
		e.advanceLocked(ctx)
		return nil
	}

	var total uint64
	for _, item := range batch {
		total += item.Warps
	}

	dispatched := 0
	for _, item := range batch {
		var err error
		switch item.Kind {
		case plan.KindResume:
			err = e.client.StartResume(ctx, plotter.ResumeRequest{FilePath: item.Path})
		default:
			err = e.client.StartPlot(ctx, plotter.PlotRequest{
				Directory:   item.Path,
				Address:     e.cfg.Address,
				Warps:       item.Warps,
				Compression: e.cfg.Plotting.Compression,
				MemoryGiB:   e.cfg.Plotting.MemoryGiB,
				Escalation:  e.cfg.Plotting.Escalation,
				DirectIO:    e.cfg.Plotting.DirectIO,
			})
		}
		if err != nil {
			// One refused member does not stall the rest; it is
			// accounted as failed and the batch completes without it.
			e.metrics.PlotterCommandErrs.Inc()
			e.failures++
			e.logActivity(activity.SeverityError,
				fmt.Sprintf("dispatch failed for %s: %v", item.Path, err))
			continue
		}
		e.pending[item.Path] = item.Kind
		dispatched++
	}

	if dispatched == 0 {
		e.failures = 0
		return fmt.Errorf("dispatch batch %d: no member accepted", batch[0].BatchID)
	}

	e.agg.Start(total, 0)
	e.setPhaseLocked(PhasePlotting)
	e.logActivity(activity.SeverityInfo,
		fmt.Sprintf("dispatched batch %d: %d item(s), %d warps", batch[0].BatchID, dispatched, total))
	return nil
}

// Refresh is the periodic low-frequency reconciliation tick. Command
// channel loss is tolerated briefly; three consecutive failures while
// work is in flight escalate to the error phase.
func (e *Engine) Refresh(ctx context.Context) {
	err := e.client.Ping(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err == nil {
		e.pingFails = 0
		return
	}
	e.pingFails++
	e.metrics.PlotterCommandErrs.Inc()
	e.logger.Warn("plotter unreachable", "consecutive", e.pingFails, "error", err)

	if e.pingFails >= 3 && (e.phase == PhasePlotting || e.phase == PhaseStopping) {
		e.setPhaseLocked(PhaseError)
		e.logActivity(activity.SeverityError, "lost contact with the plotting process")
	}
}

func (e *Engine) setPhaseLocked(phase Phase) {
	if e.phase == phase {
		return
	}
	e.logger.Info("phase change", "from", string(e.phase), "to", string(phase))
	e.phase = phase
	e.metrics.SetPhase(string(phase))
}

func (e *Engine) publishProgressLocked() {
	snap := e.agg.Snapshot()
	e.metrics.ProgressPercent.Set(snap.Percent)
	e.metrics.PlottingBytesPerSec.Set(snap.BytesPerSec)
}

func (e *Engine) logActivity(severity activity.Severity, msg string) {
	if e.activity != nil {
		e.activity.Append(severity, msg)
	}
	switch severity {
	case activity.SeverityError:
		e.logger.Error(msg)
	case activity.SeverityWarn:
		e.logger.Warn(msg)
	default:
		e.logger.Info(msg)
	}
}

func (e *Engine) planCopyLocked() *plan.Plan {
	if e.plan == nil {
		return nil
	}
	cp := *e.plan
	cp.Items = make([]plan.Item, len(e.plan.Items))
	copy(cp.Items, e.plan.Items)
	return &cp
}

// persistPlanLocked writes the plan beside the data dir so a restart
// can pick up where it left off. Persistence failures are logged and
// otherwise ignored; the plan can always be regenerated.
func (e *Engine) persistPlanLocked() {
	if e.plan == nil {
		e.removePlanFile()
		return
	}
	data, err := json.MarshalIndent(e.plan, "", "  ")
	if err != nil {
		e.logger.Warn("cannot encode plan for persistence", "error", err)
		return
	}
	tmp := e.planPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		e.logger.Warn("cannot persist plan", "error", err)
		return
	}
	if err := os.Rename(tmp, e.planPath); err != nil {
		e.logger.Warn("cannot persist plan", "error", err)
	}
}

func (e *Engine) removePlanFile() {
	if err := os.Remove(e.planPath); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("cannot remove persisted plan", "error", err)
	}
}

// restorePlan reloads a persisted plan. A plan from a different
// config fingerprint or plan version is discarded; determinism of the
// generator makes regeneration safe.
func (e *Engine) restorePlan() {
	data, err := os.ReadFile(e.planPath)
	if err != nil {
		return
	}
	var p plan.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		e.logger.Warn("discarding unreadable persisted plan", "error", err)
		e.removePlanFile()
		return
	}
	if err := p.Validate(); err != nil {
		e.logger.Warn("discarding invalid persisted plan", "error", err)
		e.removePlanFile()
		return
	}
	if p.ConfigHash != e.cfg.Hash() {
		e.logger.Info("discarding persisted plan: configuration changed")
		e.removePlanFile()
		return
	}
	if p.Done() {
		e.removePlanFile()
		return
	}
	e.plan = &p
	e.setPhaseLocked(PhaseReady)
	e.logger.Info("restored persisted plan",
		"items", len(p.Items), "cursor", p.CurrentIndex)
}
