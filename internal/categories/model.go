package categories

import "time"

// Subcategory is one selectable refinement within a category.
type Subcategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category is one top-level routine theme offered on the home screen.
type Category struct {
	ID            string        `gorm:"column:id;primaryKey;size:190;not null"`
	Name          string        `gorm:"column:name;size:190;not null;uniqueIndex:idx_categories_name"`
	Subcategories []Subcategory `gorm:"column:subcategories;type:text;serializer:json"`
	CreatedAt     time.Time     `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Category) TableName() string {
	return "categories"
}
