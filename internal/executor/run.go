// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package executor

import (
	"context"
	"time"

	"github.com/phoenix-pocx/plotterd/internal/plotter"
)

// refreshInterval paces the low-frequency reconciliation tick.
const refreshInterval = 5 * time.Second

// Run consumes the plotter notification channel and drives the
// periodic refresh until the context ends. This is the engine's only
// goroutine; each message is handled to completion before the next,
// so commands arriving over HTTP only ever contend on the state lock
// for short critical sections.
func (e *Engine) Run(ctx context.Context, events <-chan plotter.Event) error {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.HandleEvent(ctx, ev)
		case <-ticker.C:
			e.Refresh(ctx)
		}
	}
}
