package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thrivelab/thrive/backend/internal/categories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationSeedCategoryCatalog = "2026-07-12_seed_category_catalog"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedCategoryCatalog, apply: seedCategoryCatalog},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func seedCategoryCatalog(db *gorm.DB) error {
	catalog := []struct {
		name          string
		subcategories []string
	}{
		{name: "Fitness", subcategories: []string{"Cardio", "Strength", "Flexibility"}},
		{name: "Knowledge", subcategories: []string{"Reading", "Languages", "Skills"}},
		{name: "Mind", subcategories: []string{"Meditation", "Journaling", "Sleep"}},
	}

	for _, entry := range catalog {
		subcategories := make([]categories.Subcategory, 0, len(entry.subcategories))
		for _, name := range entry.subcategories {
			subcategories = append(subcategories, categories.Subcategory{
				ID:   uuid.NewString(),
				Name: name,
			})
		}
		record := categories.Category{
			ID:            uuid.NewString(),
			Name:          entry.name,
			Subcategories: subcategories,
		}
		if err := db.Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}
