package routine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultGenerationTimeout = 60 * time.Second

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingGenerator  = errors.New("generator is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrGenerationFailed indicates that the generator errored or returned
	// output with no usable activity lines.
	ErrGenerationFailed = errors.New("routine: generation failed")
	// ErrUpstreamUnavailable indicates that the generator did not answer
	// within the configured timeout.
	ErrUpstreamUnavailable = errors.New("routine: upstream unavailable")
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
	opServiceNew    = "routine.service.new"
	opGetOrGenerate = "routine.get_or_generate"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// Generator produces raw routine text for a prompt. Implementations
// may fail or return empty output.
type Generator interface {
	GenerateRoutine(ctx context.Context, prompt string) (string, error)
}

// IDProvider issues identifiers for new cache entries.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the routine service.
type ServiceConfig struct {
	Database   *gorm.DB
	Generator  Generator
	IDProvider IDProvider
	Logger     *zap.Logger
	// Timeout bounds one generator call. Defaults to 60s.
	Timeout time.Duration
	// Pick selects an index in [0, n) among cached candidates. Defaults to
	// a uniform random pick.
	Pick func(n int) int
}

// Service gates routine generation behind the persistent cache.
type Service struct {
	db         *gorm.DB
	generator  Generator
	idProvider IDProvider
	logger     *zap.Logger
	timeout    time.Duration
	pick       func(n int) int
}

// NewService constructs the routine service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Generator == nil {
		return nil, newServiceError(opServiceNew, "missing_generator", errMissingGenerator)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	pick := cfg.Pick
	if pick == nil {
		pick = rand.Intn
	}

	return &Service{
		db:         cfg.Database,
		generator:  cfg.Generator,
		idProvider: cfg.IDProvider,
		logger:     logger,
		timeout:    timeout,
		pick:       pick,
	}, nil
}

// CacheKey derives the cache key for one generation request. Raw
// concatenation, see the caveat on CacheEntry.
func CacheKey(category, difficulty string, durationPerDay int) string {
	return category + difficulty + strconv.Itoa(durationPerDay)
}

// GetOrGenerate returns a routine for the request, preferring a cached
// entry. On a cache miss the generator is invoked once, its output is
// split into activity lines and the lines are cached under the request
// key. Failing to persist the cache entry never fails the request.
func (s *Service) GetOrGenerate(ctx context.Context, category, difficulty string, durationPerDay int) (Result, error) {
	key := CacheKey(category, difficulty, durationPerDay)

	var cached []CacheEntry
	if err := s.db.WithContext(ctx).
		Where("key = ?", key).
		Find(&cached).Error; err != nil {
		s.logError(opGetOrGenerate, "cache_query_failed", err, zap.String("key", key))
		return Result{}, newServiceError(opGetOrGenerate, "cache_query_failed", err)
	}
	if len(cached) > 0 {
		entry := cached[s.pick(len(cached))]
		return Result{Activities: entry.Activities}, nil
	}

	generateCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.generator.GenerateRoutine(generateCtx, FormatPrompt(category, difficulty, durationPerDay))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logError(opGetOrGenerate, "generator_timeout", err, zap.String("key", key))
			return Result{}, newServiceError(opGetOrGenerate, "generator_timeout", ErrUpstreamUnavailable)
		}
		s.logError(opGetOrGenerate, "generator_failed", err, zap.String("key", key))
		return Result{}, newServiceError(opGetOrGenerate, "generator_failed", fmt.Errorf("%w: %w", ErrGenerationFailed, err))
	}

	activities := ProcessResponse(raw)
	if len(activities) == 0 {
		s.logError(opGetOrGenerate, "empty_generation", nil, zap.String("key", key))
		return Result{}, newServiceError(opGetOrGenerate, "empty_generation", ErrGenerationFailed)
	}

	s.storeCacheEntry(ctx, key, activities)

	return Result{Activities: activities, Original: raw}, nil
}

// storeCacheEntry persists a freshly generated line list. Best effort: a
// write failure is logged and swallowed.
func (s *Service) storeCacheEntry(ctx context.Context, key string, activities []string) {
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opGetOrGenerate, "cache_id_generation_failed", err, zap.String("key", key))
		return
	}
	entry := CacheEntry{ID: id, Key: key, Activities: activities}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logError(opGetOrGenerate, "cache_write_failed", err, zap.String("key", key))
	}
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
	s.loggerOrDefault().Error("routine service error", attrs...)
}
