package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mealcard/internal/model"
)

// CardRepository defines card and staged selection persistence operations.
type CardRepository interface {
	Create(ctx context.Context, card *model.Card) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error)
	// FindByIDForUpdate loads the card with a row lock held until the
	// surrounding transaction ends. Staged items are loaded as well.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Card, error)
	FindByNumber(ctx context.Context, cardNumber string) (*model.Card, error)
	FindByHolderRef(ctx context.Context, holderRef string) ([]model.Card, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error
	SaveStagedItem(ctx context.Context, item *model.StagedItem) error
	DeleteStagedItem(ctx context.Context, cardID, itemID uuid.UUID, unitPrice decimal.Decimal) error
	ClearStagedItems(ctx context.Context, cardID uuid.UUID) error
}

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

// Create creates a new card.
func (r *cardRepository) Create(ctx context.Context, card *model.Card) error {
	return translate(r.db.WithContext(ctx).Omit("StagedItems").Create(card).Error)
}

// FindByID finds a card by ID.
func (r *cardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&card).Error; err != nil {
		return nil, translate(err)
	}
	if err := r.loadStagedItems(ctx, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// FindByIDForUpdate finds a card by ID with row-level lock for update.
func (r *cardRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&card).Error; err != nil {
		return nil, translate(err)
	}
	if err := r.loadStagedItems(ctx, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// FindByNumber finds a card by its card number.
func (r *cardRepository) FindByNumber(ctx context.Context, cardNumber string) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Where("card_number = ?", cardNumber).First(&card).Error; err != nil {
		return nil, translate(err)
	}
	if err := r.loadStagedItems(ctx, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// FindByHolderRef finds all cards for a holder reference.
func (r *cardRepository) FindByHolderRef(ctx context.Context, holderRef string) ([]model.Card, error) {
	var cards []model.Card
	if err := r.db.WithContext(ctx).Preload("StagedItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Where("holder_ref = ?", holderRef).Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// UpdateBalance updates the balance of a card.
func (r *cardRepository) UpdateBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&model.Card{}).
		Where("id = ?", id).
		Update("balance", newBalance)
	if res.Error != nil {
		return res.Error
	}
	// updated_at always changes, so zero rows means no such card
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveStagedItem inserts a new staged line or updates an existing one.
func (r *cardRepository) SaveStagedItem(ctx context.Context, item *model.StagedItem) error {
	return translate(r.db.WithContext(ctx).Save(item).Error)
}

// DeleteStagedItem removes the line keyed by (item, unit price).
func (r *cardRepository) DeleteStagedItem(ctx context.Context, cardID, itemID uuid.UUID, unitPrice decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Where("card_id = ? AND item_id = ? AND unit_price = ?", cardID, itemID, unitPrice).
		Delete(&model.StagedItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearStagedItems removes every staged line of a card.
func (r *cardRepository) ClearStagedItems(ctx context.Context, cardID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("card_id = ?", cardID).Delete(&model.StagedItem{}).Error
}

func (r *cardRepository) loadStagedItems(ctx context.Context, card *model.Card) error {
	return r.db.WithContext(ctx).Where("card_id = ?", card.ID).Order("id").Find(&card.StagedItems).Error
}
