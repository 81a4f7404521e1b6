package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBuildGraphProducesTwentyOneConsecutiveDays(t *testing.T) {
	service, _ := newTestService(t)
	owner := mustOwner(t, "user-1")
	records := mustCreateBatch(t, service, owner, []string{"A", "B"})

	graph, err := service.BuildGraph(context.Background(), owner, records[0].Tag)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.Tag != records[0].Tag {
		t.Fatalf("unexpected tag %q", graph.Tag)
	}
	if len(graph.Days) != GraphLength {
		t.Fatalf("expected %d buckets, got %d", GraphLength, len(graph.Days))
	}

	anchor, _ := DayWindow(records[0].CreatedAt)
	for index, day := range graph.Days {
		expected := anchor.AddDate(0, 0, index)
		if !day.StartDate.Equal(expected) {
			t.Fatalf("bucket %d starts at %v, expected %v", index, day.StartDate, expected)
		}
	}
}

func TestBuildGraphBucketsCompletionByUTCDayOffset(t *testing.T) {
	service, db := newTestService(t)
	owner := mustOwner(t, "user-1")
	records := mustCreateBatch(t, service, owner, []string{"A", "B"})

	// Completed three days and two hours past creation: bucket index 3 only.
	records[0].DatesCompleted = []time.Time{records[0].CreatedAt.Add(3*24*time.Hour + 2*time.Hour)}
	if err := db.Save(&records[0]).Error; err != nil {
		t.Fatalf("failed to seed completion: %v", err)
	}

	graph, err := service.BuildGraph(context.Background(), owner, records[0].Tag)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for index, day := range graph.Days {
		if index == 3 {
			if len(day.Activities) != 1 || day.Activities[0].ID != records[0].ID {
				t.Fatalf("expected activity %q alone in bucket 3, got %v", records[0].ID, day.Activities)
			}
			continue
		}
		if len(day.Activities) != 0 {
			t.Fatalf("expected bucket %d empty, got %v", index, day.Activities)
		}
	}
}

func TestBuildGraphIncludesActivityAcrossMultipleDays(t *testing.T) {
	service, db := newTestService(t)
	owner := mustOwner(t, "user-1")
	records := mustCreateBatch(t, service, owner, []string{"A"})

	records[0].DatesCompleted = []time.Time{
		records[0].CreatedAt.Add(2 * time.Hour),
		records[0].CreatedAt.Add(24*time.Hour + 5*time.Hour),
	}
	if err := db.Save(&records[0]).Error; err != nil {
		t.Fatalf("failed to seed completions: %v", err)
	}

	graph, err := service.BuildGraph(context.Background(), owner, records[0].Tag)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.Days[0].Activities) != 1 || len(graph.Days[1].Activities) != 1 {
		t.Fatalf("expected the activity in buckets 0 and 1, got %v and %v",
			graph.Days[0].Activities, graph.Days[1].Activities)
	}
}

func TestBuildGraphDefaultsToFirstTagGroup(t *testing.T) {
	service, _ := newTestService(t)
	owner := mustOwner(t, "user-1")
	first := mustCreateBatch(t, service, owner, []string{"A"})
	mustCreateBatch(t, service, owner, []string{"B"})

	graph, err := service.BuildGraph(context.Background(), owner, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.Tag != first[0].Tag {
		t.Fatalf("expected first tag %q, got %q", first[0].Tag, graph.Tag)
	}
}

func TestBuildGraphFailsWhenNoActivitiesMatch(t *testing.T) {
	service, _ := newTestService(t)
	owner := mustOwner(t, "user-1")
	stranger := mustOwner(t, "user-2")
	records := mustCreateBatch(t, service, owner, []string{"A"})

	tests := []struct {
		name  string
		owner UserID
		tag   string
	}{
		{name: "unknown-tag", owner: owner, tag: "no-such-tag"},
		{name: "foreign-owner", owner: stranger, tag: records[0].Tag},
		{name: "empty-store", owner: stranger, tag: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.BuildGraph(context.Background(), tt.owner, tt.tag)
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}
