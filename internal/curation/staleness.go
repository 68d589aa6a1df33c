package curation

import "time"

// DefaultInterval is the minimum gap between two non-forced curation runs.
const DefaultInterval = 2 * time.Hour

// ShouldCurate reports whether a new run is due. A missing last run is always due.
func ShouldCurate(last *time.Time, interval time.Duration, now time.Time) bool {
	if last == nil || last.IsZero() {
		return true
	}
	return now.Sub(*last) >= interval
}

// NextDue returns when the next non-forced run becomes due; now when already due.
func NextDue(last *time.Time, interval time.Duration, now time.Time) time.Time {
	if ShouldCurate(last, interval, now) {
		return now
	}
	return last.Add(interval)
}
