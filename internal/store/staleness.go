package store

import (
	"time"

	"github.com/creatorpulse/enrich-cli/internal/model"
)

// StaleWindow is the maximum age a cached record may reach before it is
// eligible for re-fetch. Windows differ per subject kind (creators and
// external contacts refresh weekly, companies monthly), so the window is
// always passed in by the caller, never assumed.
type StaleWindow time.Duration

// WindowDays builds a StaleWindow from a day count.
func WindowDays(days int) StaleWindow {
	return StaleWindow(time.Duration(days) * 24 * time.Hour)
}

// IsStale reports whether the record needs a re-fetch at the given time.
// A missing record is stale; a record exactly at the window boundary is
// stale (>=, not >).
func IsStale(rec *model.ProfileRecord, window StaleWindow, now time.Time) bool {
	if rec == nil {
		return true
	}
	return now.Sub(rec.LastFetchedAt) >= time.Duration(window)
}
