package activity

import "time"

// DayWindow returns the [start, end) bounds of the UTC calendar day
// containing the provided instant.
func DayWindow(instant time.Time) (time.Time, time.Time) {
	utc := instant.UTC()
	start := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// FindWithinRange returns a pointer to the first timestamp, in sequence
// order, satisfying rangeStart <= timestamp < rangeEnd. Either bound may be
// nil, in which case the corresponding bound of the current UTC day is
// used. Returns nil when no timestamp matches.
//
// Sequence order matters: the completion toggler removes the exact entry
// this function locates.
func FindWithinRange(timestamps []time.Time, rangeStart, rangeEnd *time.Time) *time.Time {
	if rangeStart == nil || rangeEnd == nil {
		todayStart, todayEnd := DayWindow(time.Now())
		if rangeStart == nil {
			rangeStart = &todayStart
		}
		if rangeEnd == nil {
			rangeEnd = &todayEnd
		}
	}

	for index := range timestamps {
		candidate := timestamps[index]
		if !candidate.Before(*rangeStart) && candidate.Before(*rangeEnd) {
			return &timestamps[index]
		}
	}
	return nil
}
