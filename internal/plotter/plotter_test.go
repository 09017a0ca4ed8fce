// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package plotter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	t.Run("started", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"started","path":"/mnt/plots","totalWarps":900,"resumeOffset":128}`))
		require.NoError(t, err)
		assert.Equal(t, EventStarted, ev.Type)
		assert.Equal(t, "/mnt/plots", ev.Path)
		assert.Equal(t, uint64(900), ev.TotalWarps)
		assert.Equal(t, uint64(128), ev.ResumeOffset)
	})

	t.Run("item complete with failure detail", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"itemComplete","path":"/mnt/plots","success":false,"error":"disk full"}`))
		require.NoError(t, err)
		assert.Equal(t, EventItemComplete, ev.Type)
		assert.False(t, ev.Success)
		assert.Equal(t, "disk full", ev.Error)
	})

	t.Run("block", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"block","chain":"pocx","height":4821}`))
		require.NoError(t, err)
		assert.Equal(t, EventBlock, ev.Type)
		assert.Equal(t, "pocx", ev.Chain)
		assert.Equal(t, uint64(4821), ev.Height)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{"type":"teleport"}`))
		require.Error(t, err)
	})

	t.Run("malformed json rejected", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{`))
		require.Error(t, err)
	})
}

func newFakePlotter(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, nil)
}

func TestClientStartPlot(t *testing.T) {
	var got PlotRequest
	client := newFakePlotter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/plot", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	req := PlotRequest{Directory: "/mnt/plots", Address: "pocx1qtest", Warps: 900, Compression: 31}
	require.NoError(t, client.StartPlot(context.Background(), req))
	assert.Equal(t, req, got)
}

func TestClientCommandFailure(t *testing.T) {
	client := newFakePlotter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "device busy"})
	})

	err := client.Abort(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
}

func TestClientBenchmark(t *testing.T) {
	client := newFakePlotter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/benchmark", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    BenchmarkResult{Device: "gpu0", WarpsPerSec: 4.5, DurationMs: 8000},
		})
	})

	result, err := client.Benchmark(context.Background(), BenchmarkRequest{Device: "gpu0", Warps: 4})
	require.NoError(t, err)
	assert.Equal(t, "gpu0", result.Device)
	assert.InDelta(t, 4.5, result.WarpsPerSec, 0.001)
}

func TestClientPing(t *testing.T) {
	client := newFakePlotter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	require.NoError(t, client.Ping(context.Background()))
}

func TestClientPingUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", nil)
	require.Error(t, client.Ping(context.Background()))
}
