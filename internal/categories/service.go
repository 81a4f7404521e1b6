package categories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("database handle is required")

// Service exposes the seeded category catalog.
type Service struct {
	db *gorm.DB
}

// NewService constructs the category service.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("categories: %w", errMissingDatabase)
	}
	return &Service{db: db}, nil
}

// List returns every category in name order.
func (s *Service) List(ctx context.Context) ([]Category, error) {
	var catalog []Category
	if err := s.db.WithContext(ctx).
		Order("name").
		Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("categories: list failed: %w", err)
	}
	return catalog, nil
}
