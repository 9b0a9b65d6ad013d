// Package timeutil centralizes the "last completed hour" truncation so the
// Ingestion Driver, UPES Aggregator, and Alert Pipeline compute it
// identically instead of re-deriving it ad hoc.
package timeutil

import "time"

// TruncateToHour zeroes the minute/second/nanosecond components of t in
// UTC.
func TruncateToHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// LastCompletedHour returns the most recent hour strictly before now — the
// window every ingestion and scoring cycle operates on.
func LastCompletedHour(now time.Time) time.Time {
	return TruncateToHour(now).Add(-time.Hour)
}
