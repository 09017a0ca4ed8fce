// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

// Package history keeps the rolling record of proof submissions. The
// durable tier is a Badger store capped per chain; the display layer
// reads a small rebuildable cache in front of it.
package history

import (
	"fmt"
	"strings"
	"time"
)

// MaxEntriesPerChain is the durable cap. Inserts beyond it trim the
// oldest entries for that chain.
const MaxEntriesPerChain = 720

// Entry is one proof-submission record.
type Entry struct {
	ID              string    `json:"id"`
	Chain           string    `json:"chain"`
	Account         string    `json:"account"`
	Height          uint64    `json:"height"`
	Nonce           uint64    `json:"nonce"`
	DeadlineSeconds uint64    `json:"deadlineSeconds"`
	Submitted       bool      `json:"submitted"`
	Timestamp       time.Time `json:"timestamp"`
}

// FormatDeadline renders a deadline in the coarse human form used by
// the export and the display layer: seconds below a minute, minutes
// and seconds below an hour, hours and minutes below a day, then days
// and hours.
func FormatDeadline(seconds uint64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	case seconds < 86400:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	default:
		return fmt.Sprintf("%dd %dh", seconds/86400, (seconds%86400)/3600)
	}
}

// ExportCSV serializes entries as a flat table, one row per entry.
func ExportCSV(entries []Entry) string {
	var b strings.Builder
	b.WriteString("Time,Block,Chain,Account,Deadline\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%s,%d,%s,%s,%s\n",
			e.Timestamp.Local().Format("15:04:05"),
			e.Height,
			csvField(e.Chain),
			csvField(e.Account),
			FormatDeadline(e.DeadlineSeconds)))
	}
	return b.String()
}

// csvField quotes a value only when it would break the row.
func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
