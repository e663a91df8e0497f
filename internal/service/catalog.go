package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"mealcard/internal/errors"
	"mealcard/internal/model"
	"mealcard/internal/repository"
)

// Catalog resolves items that can be staged. Its answer is authoritative at
// the moment of staging.
type Catalog interface {
	Lookup(ctx context.Context, itemID uuid.UUID) (*model.Item, error)
}

type storeCatalog struct {
	items repository.ItemRepository
}

// NewCatalog creates a catalog backed by the items table.
func NewCatalog(items repository.ItemRepository) Catalog {
	return &storeCatalog{items: items}
}

// Lookup returns the item or ErrItemNotFound.
func (c *storeCatalog) Lookup(ctx context.Context, itemID uuid.UUID) (*model.Item, error) {
	item, err := c.items.FindByID(ctx, itemID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}
