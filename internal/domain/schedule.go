package domain

import "time"

// ScheduleState is the persisted next-eligible-publish time.
type ScheduleState struct {
	NextPostTime time.Time
}

// Due reports whether now is strictly past the scheduled time.
func (s ScheduleState) Due(now time.Time) bool {
	return now.After(s.NextPostTime)
}

// CycleStats holds statistics about one publishing cycle.
type CycleStats struct {
	SourceID   string
	Fetched    int
	Attempts   int
	Skipped    int
	Published  bool
	AssetName  string
	NextPostAt time.Time
	Errors     int
	Duration   time.Duration
}
