// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

// Package activity keeps a bounded, time-windowed log of operational
// events for the display layer.
//
// Entries are held newest-first. Eviction pops expired entries from the
// chronological tail instead of filtering the whole slice on every
// append, so the common path stays O(1) amortized.
package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention is how long entries are kept before tail eviction.
const DefaultRetention = 24 * time.Hour

// Severity classifies an activity entry.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Entry is one operational log line.
type Entry struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Clock abstracts time.Now for retention tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Log is a bounded activity log. Safe for concurrent use.
type Log struct {
	mu        sync.Mutex
	entries   []Entry // newest first
	retention time.Duration
	clock     Clock
}

// NewLog creates a Log with the given retention window. A zero retention
// uses DefaultRetention; a nil clock uses the system clock.
func NewLog(retention time.Duration, clock Clock) *Log {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Log{retention: retention, clock: clock}
}

// Append prepends an entry and evicts everything older than the
// retention window from the tail.
func (l *Log) Append(sev Severity, message string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	e := Entry{
		ID:       uuid.NewString(),
		Time:     now,
		Severity: sev,
		Message:  message,
	}
	l.entries = append([]Entry{e}, l.entries...)

	cutoff := now.Add(-l.retention)
	for n := len(l.entries); n > 0 && l.entries[n-1].Time.Before(cutoff); n = len(l.entries) {
		l.entries = l.entries[:n-1]
	}
	return e
}

// Info appends an info entry.
func (l *Log) Info(message string) Entry { return l.Append(SeverityInfo, message) }

// Warn appends a warn entry.
func (l *Log) Warn(message string) Entry { return l.Append(SeverityWarn, message) }

// Error appends an error entry.
func (l *Log) Error(message string) Entry { return l.Append(SeverityError, message) }

// Entries returns a copy of the current entries, newest first. Entries
// already past the retention window are excluded even if no append has
// run since they expired.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-l.retention)
	n := len(l.entries)
	for n > 0 && l.entries[n-1].Time.Before(cutoff) {
		n--
	}
	l.entries = l.entries[:n]

	out := make([]Entry, n)
	copy(out, l.entries)
	return out
}

// Len reports the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
