// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

//go:build !linux

package drive

import (
	"errors"
	"runtime"

	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

// ErrUnsupportedPlatform is returned where volume statistics have no
// implementation yet.
var ErrUnsupportedPlatform = errors.New("volume statistics not implemented on " + runtime.GOOS)

func statVolume(string, *logging.Logger) (volumeStats, error) {
	return volumeStats{}, ErrUnsupportedPlatform
}
