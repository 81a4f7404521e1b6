package activity

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// GraphLength is the fixed number of day buckets in a streak graph.
const GraphLength = 21

const opBuildGraph = "activity.build_graph"

// GraphActivity identifies one activity completed within a graph day.
type GraphActivity struct {
	ID   string
	Name string
}

// GraphDay is one calendar-day bucket of the streak graph.
type GraphDay struct {
	StartDate  time.Time
	Activities []GraphActivity
}

// StreakGraph is the fixed-length completion calendar for one tag.
type StreakGraph struct {
	Tag  string
	Days []GraphDay
}

// BuildGraph derives the 21-day completion calendar for one of the owner's
// tags. An empty tag selects the first tag group found for the owner; since
// group order is otherwise unspecified, callers should normally pass the
// tag explicitly. The graph is anchored to the start of the UTC day
// containing the tag's creation instant, which the whole batch shares.
func (s *Service) BuildGraph(ctx context.Context, owner UserID, tag string) (StreakGraph, error) {
	query := s.db.WithContext(ctx).
		Where("saved_by = ?", owner.String()).
		Order("created_at, id")
	if tag != "" {
		query = query.Where("tag = ?", tag)
	}

	var records []Activity
	if err := query.Find(&records).Error; err != nil {
		s.logError(opBuildGraph, "query_failed", err,
			zap.String("user_id", owner.String()),
			zap.String("tag", tag))
		return StreakGraph{}, newServiceError(opBuildGraph, "query_failed", err)
	}

	if tag == "" {
		if len(records) == 0 {
			return StreakGraph{}, newServiceError(opBuildGraph, "tag_not_found", ErrNotFound)
		}
		tag = records[0].Tag
		records = filterByTag(records, tag)
	}
	if len(records) == 0 {
		return StreakGraph{}, newServiceError(opBuildGraph, "tag_not_found", ErrNotFound)
	}

	anchor, _ := DayWindow(records[0].CreatedAt)
	graph := StreakGraph{Tag: tag, Days: make([]GraphDay, 0, GraphLength)}
	for dayIndex := 0; dayIndex < GraphLength; dayIndex++ {
		bucketStart := anchor.AddDate(0, 0, dayIndex)
		bucketEnd := bucketStart.Add(24 * time.Hour)

		day := GraphDay{StartDate: bucketStart, Activities: []GraphActivity{}}
		for _, record := range records {
			if FindWithinRange(record.DatesCompleted, &bucketStart, &bucketEnd) != nil {
				day.Activities = append(day.Activities, GraphActivity{
					ID:   record.ID,
					Name: record.Name,
				})
			}
		}
		graph.Days = append(graph.Days, day)
	}

	return graph, nil
}

func filterByTag(records []Activity, tag string) []Activity {
	filtered := make([]Activity, 0, len(records))
	for _, record := range records {
		if record.Tag == tag {
			filtered = append(filtered, record)
		}
	}
	return filtered
}
