// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
}

func TestLog_AppendNewestFirst(t *testing.T) {
	clock := newFakeClock()
	log := NewLog(DefaultRetention, clock)

	log.Info("first")
	clock.Advance(time.Second)
	log.Warn("second")
	clock.Advance(time.Second)
	log.Error("third")

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Message)
	assert.Equal(t, SeverityError, entries[0].Severity)
	assert.Equal(t, "first", entries[2].Message)
}

func TestLog_RetentionEvictsTail(t *testing.T) {
	clock := newFakeClock()
	log := NewLog(24*time.Hour, clock)

	log.Info("stale one")
	log.Info("stale two")
	clock.Advance(25 * time.Hour)
	log.Info("fresh")

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Message)
}

// Entries must not come back after expiring, even without new appends.
func TestLog_EntriesExpireWithoutAppend(t *testing.T) {
	clock := newFakeClock()
	log := NewLog(24*time.Hour, clock)

	log.Info("will expire")
	require.Len(t, log.Entries(), 1)

	clock.Advance(24*time.Hour + time.Minute)
	assert.Empty(t, log.Entries())
}

func TestLog_NoEntryOlderThanWindow(t *testing.T) {
	clock := newFakeClock()
	log := NewLog(24*time.Hour, clock)

	for i := 0; i < 200; i++ {
		log.Info("tick")
		clock.Advance(30 * time.Minute)
	}

	cutoff := clock.Now().Add(-24 * time.Hour)
	for _, e := range log.Entries() {
		assert.False(t, e.Time.Before(cutoff), "entry older than retention window survived")
	}
}

func TestLog_Defaults(t *testing.T) {
	log := NewLog(0, nil)
	e := log.Info("hello")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 1, log.Len())
}
