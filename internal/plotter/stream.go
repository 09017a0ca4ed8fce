// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package plotter

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

// reconnectInterval paces reconnection attempts. Progress messages
// are fire-and-forget on the plotter side, so a dropped connection
// loses deltas; the periodic state refresh reconciles afterwards.
const reconnectInterval = 3 * time.Second

// Stream consumes the plotter's one-way notification websocket and
// delivers decoded events on a channel. Malformed messages are logged
// and dropped rather than tearing the stream down.
type Stream struct {
	url    string
	logger *logging.Logger
	events chan Event
}

// NewStream returns a stream for the plotter's notification endpoint,
// e.g. "ws://127.0.0.1:9480/events".
func NewStream(url string, logger *logging.Logger) *Stream {
	if logger == nil {
		logger = logging.Default()
	}
	return &Stream{
		url:    url,
		logger: logger.With("component", "plotter_stream"),
		events: make(chan Event, 64),
	}
}

// Events is the decoded notification channel. It is closed when Run
// returns.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Run connects and reads until the context ends, reconnecting at a
// low frequency on failure.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.events)

	for {
		if err := s.readLoop(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("notification stream dropped", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectInterval):
		}
	}
}

func (s *Stream) readLoop(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	s.logger.Info("notification stream connected", "url", s.url)

	// Close the socket when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		event, err := DecodeEvent(data)
		if err != nil {
			s.logger.Warn("dropping malformed notification", "error", err)
			continue
		}
		select {
		case s.events <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
