// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package plotter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

// commandTimeout bounds every command acknowledgement. The engine
// never waits on the plotting process beyond this.
const commandTimeout = 10 * time.Second

// PlotRequest starts a new plot file.
type PlotRequest struct {
	Directory   string `json:"directory"`
	Address     string `json:"address"`
	Warps       uint64 `json:"warps"`
	Compression int    `json:"compression"`
	MemoryGiB   int    `json:"memoryGib,omitempty"`
	Escalation  int    `json:"escalation,omitempty"`
	DirectIO    bool   `json:"directIo,omitempty"`
}

// ResumeRequest continues an interrupted plot file.
type ResumeRequest struct {
	FilePath string `json:"filePath"`
}

// BenchmarkRequest runs the plotter's benchmark mode on one device.
type BenchmarkRequest struct {
	Device string `json:"device"`
	Warps  uint64 `json:"warps"`
}

// BenchmarkResult is the per-device outcome.
type BenchmarkResult struct {
	Device      string  `json:"device"`
	WarpsPerSec float64 `json:"warpsPerSec"`
	DurationMs  uint64  `json:"durationMs"`
}

// commandEnvelope is the plotter API's uniform response shape.
type commandEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client issues commands to the plotting process over its local HTTP
// API. All calls are short request/acknowledge exchanges; long-running
// work is observed through the Stream instead.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

// NewClient returns a command client for the plotter at baseURL, e.g.
// "http://127.0.0.1:9480".
func NewClient(baseURL string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: commandTimeout},
		logger:  logger.With("component", "plotter_client"),
	}
}

// StartPlot dispatches one plot item. The acknowledgement only means
// the process accepted the work; completion arrives on the stream.
func (c *Client) StartPlot(ctx context.Context, req PlotRequest) error {
	return c.post(ctx, "/plot", req, nil)
}

// StartResume dispatches a resume item for a partial plot file.
func (c *Client) StartResume(ctx context.Context, req ResumeRequest) error {
	return c.post(ctx, "/resume", req, nil)
}

// Abort terminates all in-flight plotting immediately. Partial files
// are left on disk for a later resume.
func (c *Client) Abort(ctx context.Context) error {
	return c.post(ctx, "/abort", struct{}{}, nil)
}

// AddToMiner registers a fully plotted directory with the miner.
func (c *Client) AddToMiner(ctx context.Context, dir string) error {
	body := struct {
		Directory string `json:"directory"`
	}{Directory: dir}
	return c.post(ctx, "/miner/directories", body, nil)
}

// Benchmark runs one device benchmark and returns its result. A
// failure on one device is returned as an error for that call only.
func (c *Client) Benchmark(ctx context.Context, req BenchmarkRequest) (BenchmarkResult, error) {
	var result BenchmarkResult
	if err := c.post(ctx, "/benchmark", req, &result); err != nil {
		return BenchmarkResult{}, err
	}
	return result, nil
}

// Ping checks that the command channel is alive.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("plotter unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("plotter health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode plotter command: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("plotter command %s: %w", path, err)
	}
	defer resp.Body.Close()

	var envelope commandEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("plotter command %s: decode response: %w", path, err)
	}
	if !envelope.Success {
		return fmt.Errorf("plotter command %s: %s", path, envelope.Error)
	}
	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("plotter command %s: decode data: %w", path, err)
		}
	}
	return nil
}
