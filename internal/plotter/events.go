// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

// Package plotter adapts the external plotting process: commands go
// out over its local HTTP API, progress notifications come back over
// a one-way websocket stream.
package plotter

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates the notification variants.
type EventType string

const (
	// EventStarted opens an item's lifecycle and carries its total
	// warp count plus any resume offset.
	EventStarted EventType = "started"
	// EventHashing and EventWriting carry cumulative warp deltas for
	// their phase.
	EventHashing EventType = "hashing"
	EventWriting EventType = "writing"
	// EventItemComplete closes an item's lifecycle exactly once.
	EventItemComplete EventType = "itemComplete"
	// EventError reports a process-level failure outside any one item.
	EventError EventType = "error"
	// EventDeadline reports a proof submission from the miner side of
	// the process.
	EventDeadline EventType = "deadline"
	// EventBlock reports a new block on one chain, carried in the
	// Chain and Height fields.
	EventBlock EventType = "block"
)

// Event is one notification from the plotting process. Path names the
// plot target the event belongs to, so batch members can be tracked
// independently.
type Event struct {
	Type EventType `json:"type"`
	Path string    `json:"path,omitempty"`

	// Started fields.
	TotalWarps   uint64 `json:"totalWarps,omitempty"`
	ResumeOffset uint64 `json:"resumeOffset,omitempty"`

	// Hashing/Writing fields.
	WarpsDelta uint64 `json:"warpsDelta,omitempty"`

	// ItemComplete fields.
	Success      bool   `json:"success,omitempty"`
	DurationMs   uint64 `json:"durationMs,omitempty"`
	WarpsPlotted uint64 `json:"warpsPlotted,omitempty"`

	// ItemComplete failure detail or Error message.
	Error string `json:"error,omitempty"`

	// Deadline fields.
	Chain           string `json:"chain,omitempty"`
	Account         string `json:"account,omitempty"`
	Height          uint64 `json:"height,omitempty"`
	Nonce           uint64 `json:"nonce,omitempty"`
	DeadlineSeconds uint64 `json:"deadlineSeconds,omitempty"`
	Submitted       bool   `json:"submitted,omitempty"`
}

// DecodeEvent parses a raw websocket message and rejects unknown
// variants up front so the executor only ever sees well-formed events.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode plotter event: %w", err)
	}
	switch ev.Type {
	case EventStarted, EventHashing, EventWriting, EventItemComplete, EventError, EventDeadline, EventBlock:
		return ev, nil
	default:
		return Event{}, fmt.Errorf("unknown plotter event type %q", ev.Type)
	}
}
