package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrNotFound indicates that no activity matched the identifier and owner.
	// Records owned by another user answer with the same error so that their
	// existence is not revealed.
	ErrNotFound = errors.New("activity: not found")
	// ErrAlreadyCompleted indicates that a completion already exists within
	// the current UTC day.
	ErrAlreadyCompleted = errors.New("activity: already completed today")
	// ErrInvalidInput indicates structurally invalid input such as an empty
	// batch or a blank activity name.
	ErrInvalidInput = errors.New("activity: invalid input")
)

// ServiceError wraps a failure with a stable operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew       = "activity.service.new"
	opCreateBatch      = "activity.create_batch"
	opToggleCompletion = "activity.toggle_completion"
	opListActivities   = "activity.list_activities"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for new records and tags.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the activity service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns saved activities: batch creation, daily completion toggling
// and tag-grouped listings.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the activity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateBatch stores one activity per name under a single freshly minted
// tag. Every record in the batch shares one CreatedAt instant so that the
// tag's streak graph has an unambiguous anchor day.
func (s *Service) CreateBatch(ctx context.Context, owner UserID, names []string) ([]Activity, error) {
	if len(names) == 0 {
		return nil, newServiceError(opCreateBatch, "empty_batch", ErrInvalidInput)
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, newServiceError(opCreateBatch, "blank_name", fmt.Errorf("%w: %w", ErrInvalidInput, ErrInvalidName))
		}
	}

	tag, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateBatch, "tag_generation_failed", err, zap.String("user_id", owner.String()))
		return nil, newServiceError(opCreateBatch, "tag_generation_failed", err)
	}

	createdAt := s.clock().UTC()
	records := make([]Activity, 0, len(names))
	for _, name := range names {
		id, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opCreateBatch, "id_generation_failed", err, zap.String("user_id", owner.String()))
			return nil, newServiceError(opCreateBatch, "id_generation_failed", err)
		}
		records = append(records, Activity{
			ID:             id,
			Name:           strings.TrimSpace(name),
			Tag:            tag,
			SavedBy:        owner.String(),
			DatesCompleted: []time.Time{},
			CreatedAt:      createdAt,
		})
	}

	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		s.logError(opCreateBatch, "insert_failed", err,
			zap.String("user_id", owner.String()),
			zap.String("tag", tag))
		return nil, newServiceError(opCreateBatch, "insert_failed", err)
	}

	return records, nil
}

// ToggleCompletion applies a complete or uncomplete request against one
// activity for the current UTC day. Completing twice within one day fails
// with ErrAlreadyCompleted; uncompleting an already clean day is a no-op.
//
// The read-modify-write runs inside a transaction holding a row lock so
// that two racing complete requests cannot both pass the same-day check.
func (s *Service) ToggleCompletion(ctx context.Context, owner UserID, id ActivityID, complete bool) (Activity, error) {
	var updated Activity
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record Activity
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND saved_by = ?", id.String(), owner.String()).
			Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opToggleCompletion, "activity_not_found", ErrNotFound)
		}
		if err != nil {
			s.logError(opToggleCompletion, "activity_select_failed", err,
				zap.String("user_id", owner.String()),
				zap.String("activity_id", id.String()))
			return newServiceError(opToggleCompletion, "activity_select_failed", err)
		}

		now := s.clock().UTC()
		todayStart, todayEnd := DayWindow(now)
		existingToday := FindWithinRange(record.DatesCompleted, &todayStart, &todayEnd)

		if complete {
			if existingToday != nil {
				return newServiceError(opToggleCompletion, "already_completed", ErrAlreadyCompleted)
			}
			record.DatesCompleted = append(record.DatesCompleted, now)
		} else {
			if existingToday == nil {
				updated = record
				return nil
			}
			record.DatesCompleted = removeTimestamp(record.DatesCompleted, *existingToday)
		}

		if err := tx.Save(&record).Error; err != nil {
			s.logError(opToggleCompletion, "activity_save_failed", err,
				zap.String("user_id", owner.String()),
				zap.String("activity_id", id.String()))
			return newServiceError(opToggleCompletion, "activity_save_failed", err)
		}
		updated = record
		return nil
	})
	if txErr != nil {
		return Activity{}, txErr
	}
	return updated, nil
}

func removeTimestamp(timestamps []time.Time, target time.Time) []time.Time {
	remaining := make([]time.Time, 0, len(timestamps))
	removed := false
	for _, candidate := range timestamps {
		if !removed && candidate.Equal(target) {
			removed = true
			continue
		}
		remaining = append(remaining, candidate)
	}
	return remaining
}

// ListActivities returns one page of the owner's activities. When
// groupByTag is set, all records are grouped by tag first and skip/limit
// slice the list of groups rather than individual activities; Count then
// reports the number of distinct tags.
func (s *Service) ListActivities(ctx context.Context, owner UserID, groupByTag bool, skip, limit int) (ListResult, error) {
	if !groupByTag {
		return s.listFlat(ctx, owner, skip, limit)
	}
	return s.listGrouped(ctx, owner, skip, limit)
}

func (s *Service) listFlat(ctx context.Context, owner UserID, skip, limit int) (ListResult, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Activity{}).
		Where("saved_by = ?", owner.String()).
		Count(&total).Error; err != nil {
		s.logError(opListActivities, "count_failed", err, zap.String("user_id", owner.String()))
		return ListResult{}, newServiceError(opListActivities, "count_failed", err)
	}

	result := ListResult{Activities: []Activity{}, Count: total}
	if limit <= 0 {
		return result, nil
	}

	if err := s.db.WithContext(ctx).
		Where("saved_by = ?", owner.String()).
		Order("created_at, id").
		Offset(skip).
		Limit(limit).
		Find(&result.Activities).Error; err != nil {
		s.logError(opListActivities, "query_failed", err, zap.String("user_id", owner.String()))
		return ListResult{}, newServiceError(opListActivities, "query_failed", err)
	}
	return result, nil
}

func (s *Service) listGrouped(ctx context.Context, owner UserID, skip, limit int) (ListResult, error) {
	records, err := s.loadOwnerActivities(ctx, owner)
	if err != nil {
		return ListResult{}, err
	}

	groups := groupByTag(records, s.clock().UTC())
	result := ListResult{Groups: []TagGroup{}, Count: int64(len(groups))}

	if limit <= 0 || skip >= len(groups) || skip < 0 {
		return result, nil
	}
	end := skip + limit
	if end > len(groups) {
		end = len(groups)
	}
	result.Groups = groups[skip:end]
	return result, nil
}

func (s *Service) loadOwnerActivities(ctx context.Context, owner UserID) ([]Activity, error) {
	var records []Activity
	if err := s.db.WithContext(ctx).
		Where("saved_by = ?", owner.String()).
		Order("created_at, id").
		Find(&records).Error; err != nil {
		s.logError(opListActivities, "query_failed", err, zap.String("user_id", owner.String()))
		return nil, newServiceError(opListActivities, "query_failed", err)
	}
	return records, nil
}

// groupByTag buckets records by tag, preserving the order in which tags
// first appear in storage order, and derives each record's completion
// state for the UTC day containing now.
func groupByTag(records []Activity, now time.Time) []TagGroup {
	tags := lo.Uniq(lo.Map(records, func(record Activity, _ int) string {
		return record.Tag
	}))
	byTag := lo.GroupBy(records, func(record Activity) string {
		return record.Tag
	})

	groups := make([]TagGroup, 0, len(tags))
	for _, tag := range tags {
		members := lo.Map(byTag[tag], func(record Activity, _ int) ActivityView {
			return ActivityView{
				Activity:         record,
				IsCompletedToday: record.IsCompletedOn(now),
			}
		})
		groups = append(groups, TagGroup{Tag: tag, Activities: members})
	}
	return groups
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("activity service error", attrs...)
}
