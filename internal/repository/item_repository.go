package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mealcard/internal/model"
)

// ItemRepository gives read access to catalog items. Save exists for the
// seed tool only.
type ItemRepository interface {
	Save(ctx context.Context, item *model.Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Item, error)
}

type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository creates a new item repository.
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

// Save inserts or updates an item.
func (r *itemRepository) Save(ctx context.Context, item *model.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// FindByID finds an item by ID.
func (r *itemRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	var item model.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}
