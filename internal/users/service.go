package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thrivelab/thrive/backend/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minNameLength     = 4
	minUsernameLength = 4
	minPasswordLength = 8
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrInvalidInput indicates a registration field below its minimum length.
	ErrInvalidInput = errors.New("users: invalid input")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("users: username taken")
	// ErrInvalidCredentials indicates an unknown username or wrong password.
	// Both cases answer identically so that registered usernames are not
	// discoverable through the login endpoint.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
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
	opServiceNew   = "users.service.new"
	opRegister     = "users.register"
	opAuthenticate = "users.authenticate"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages account registration and credential verification.
type Service struct {
	db         *gorm.DB
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, idProvider: cfg.IDProvider, logger: logger}, nil
}

// Register creates a new account and returns it.
func (s *Service) Register(ctx context.Context, name, username, password string) (User, error) {
	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)
	if len(name) < minNameLength || len(username) < minUsernameLength || len(password) < minPasswordLength {
		return User{}, newServiceError(opRegister, "invalid_fields", ErrInvalidInput)
	}

	var existingCount int64
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("username = ?", username).
		Count(&existingCount).Error; err != nil {
		s.logError(opRegister, "lookup_failed", err, zap.String("username", username))
		return User{}, newServiceError(opRegister, "lookup_failed", err)
	}
	if existingCount > 0 {
		return User{}, newServiceError(opRegister, "username_taken", ErrUsernameTaken)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logError(opRegister, "hash_failed", err, zap.String("username", username))
		return User{}, newServiceError(opRegister, "hash_failed", err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRegister, "id_generation_failed", err, zap.String("username", username))
		return User{}, newServiceError(opRegister, "id_generation_failed", err)
	}

	user := User{
		ID:           id,
		Username:     username,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, newServiceError(opRegister, "username_taken", ErrUsernameTaken)
		}
		s.logError(opRegister, "insert_failed", err, zap.String("username", username))
		return User{}, newServiceError(opRegister, "insert_failed", err)
	}
	return user, nil
}

// Authenticate verifies credentials and returns the matching account.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)

	var user User
	err := s.db.WithContext(ctx).
		Where("username = ?", username).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, newServiceError(opAuthenticate, "unknown_username", ErrInvalidCredentials)
	}
	if err != nil {
		s.logError(opAuthenticate, "lookup_failed", err, zap.String("username", username))
		return User{}, newServiceError(opAuthenticate, "lookup_failed", err)
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return User{}, newServiceError(opAuthenticate, "wrong_password", ErrInvalidCredentials)
	}
	return user, nil
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
	s.loggerOrDefault().Error("users service error", attrs...)
}
