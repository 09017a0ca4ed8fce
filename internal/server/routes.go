// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

// Package server exposes the engine's command surface to the wallet
// display layer over HTTP.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phoenix-pocx/plotterd/internal/activity"
	"github.com/phoenix-pocx/plotterd/internal/config"
	"github.com/phoenix-pocx/plotterd/internal/drive"
	"github.com/phoenix-pocx/plotterd/internal/executor"
	"github.com/phoenix-pocx/plotterd/internal/history"
	"github.com/phoenix-pocx/plotterd/internal/metrics"
	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

// Deps carries everything the handlers reach.
type Deps struct {
	Config   config.Config
	Engine   *executor.Engine
	Store    *history.Store
	Cache    *history.Cache
	Activity *activity.Log
	Scanner  *drive.Scanner
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger))

	router.GET("/health", healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		deps.Metrics.Registry(), promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	{
		v1.GET("/state", getState(deps))

		planGroup := v1.Group("/plan")
		{
			planGroup.POST("/generate", generatePlan(deps))
			planGroup.POST("/start", startPlan(deps))
			planGroup.POST("/stop/soft", softStop(deps))
			planGroup.POST("/stop/hard", hardStop(deps))
		}

		drives := v1.Group("/drives")
		{
			drives.GET("", listDrives(deps))
			drives.GET("/info", getDriveInfo(deps))
			drives.POST("/info", batchDriveInfo(deps))
		}

		deadlines := v1.Group("/deadlines")
		{
			deadlines.GET("", getDeadlines(deps))
			deadlines.GET("/export", exportDeadlines(deps))
		}

		v1.GET("/activity", getActivity(deps))
		v1.POST("/benchmark", runBenchmark(deps))
	}

	return router
}

// requestLogger is a minimal slog-backed access log middleware.
func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With("component", "http")
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() >= 500 {
			logger.Error("request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", c.Writer.Status())
			return
		}
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status())
	}
}
