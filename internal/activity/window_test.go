package activity

import (
	"testing"
	"time"
)

func TestDayWindowNormalizesToUTC(t *testing.T) {
	zone := time.FixedZone("UTC+5", 5*60*60)
	instant := time.Date(2026, 3, 14, 2, 30, 0, 0, zone) // 2026-03-13T21:30Z

	start, end := DayWindow(instant)

	expectedStart := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	if !start.Equal(expectedStart) {
		t.Fatalf("unexpected window start: %v", start)
	}
	if !end.Equal(expectedStart.Add(24 * time.Hour)) {
		t.Fatalf("unexpected window end: %v", end)
	}
}

func TestFindWithinRangeReturnsFirstMatchInSequenceOrder(t *testing.T) {
	rangeStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	rangeEnd := rangeStart.Add(24 * time.Hour)

	earlier := rangeStart.Add(2 * time.Hour)
	later := rangeStart.Add(20 * time.Hour)
	outside := rangeStart.Add(-time.Hour)

	// later precedes earlier in sequence order; sequence order must win.
	timestamps := []time.Time{outside, later, earlier}

	match := FindWithinRange(timestamps, &rangeStart, &rangeEnd)
	if match == nil {
		t.Fatalf("expected a match")
	}
	if !match.Equal(later) {
		t.Fatalf("expected first sequence match %v, got %v", later, *match)
	}
}

func TestFindWithinRangeBoundsAreHalfOpen(t *testing.T) {
	rangeStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	rangeEnd := rangeStart.Add(24 * time.Hour)

	tests := []struct {
		name        string
		timestamp   time.Time
		expectMatch bool
	}{
		{name: "at-start", timestamp: rangeStart, expectMatch: true},
		{name: "just-before-end", timestamp: rangeEnd.Add(-time.Nanosecond), expectMatch: true},
		{name: "at-end", timestamp: rangeEnd, expectMatch: false},
		{name: "before-start", timestamp: rangeStart.Add(-time.Nanosecond), expectMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := FindWithinRange([]time.Time{tt.timestamp}, &rangeStart, &rangeEnd)
			if (match != nil) != tt.expectMatch {
				t.Fatalf("match mismatch for %v: got %v", tt.timestamp, match)
			}
		})
	}
}

func TestFindWithinRangeEmptySequenceYieldsNil(t *testing.T) {
	if match := FindWithinRange(nil, nil, nil); match != nil {
		t.Fatalf("expected nil for empty sequence, got %v", *match)
	}
}

func TestFindWithinRangeDefaultsToCurrentUTCDay(t *testing.T) {
	now := time.Now().UTC()
	yesterday := now.AddDate(0, 0, -1)

	match := FindWithinRange([]time.Time{yesterday, now}, nil, nil)
	if match == nil {
		t.Fatalf("expected current instant to match today's default window")
	}
	if !match.Equal(now) {
		t.Fatalf("expected %v, got %v", now, *match)
	}
}
