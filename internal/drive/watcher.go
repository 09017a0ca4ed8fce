// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package drive

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

// ChangeHandler is invoked with the directory whose plot files changed.
type ChangeHandler func(dir string)

// Watcher observes configured plot directories and reports plot file
// churn so snapshots can be refreshed between polling ticks.
type Watcher struct {
	watcher *fsnotify.Watcher
	handler ChangeHandler
	logger  *logging.Logger
}

// NewWatcher creates a Watcher over the given directories. Directories
// that cannot be watched are skipped with a warning; the periodic
// refresh still covers them.
func NewWatcher(dirs []string, handler ChangeHandler, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher: fsw,
		handler: handler,
		logger:  logger.With("component", "drive_watcher"),
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("cannot watch plot directory", "dir", dir, "error", err)
		}
	}
	return w, nil
}

// Run consumes filesystem events until the context ends. Only events on
// plot files trigger the handler; editor temp files and unrelated churn
// in the same directory are ignored.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !IsPlotFilename(filepath.Base(event.Name)) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.handler(filepath.Dir(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}
