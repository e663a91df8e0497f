package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mealcard/internal/model"
)

// LedgerEntryRepository defines ledger persistence operations.
// Entries are append-only: there is no update or delete.
type LedgerEntryRepository interface {
	Create(ctx context.Context, entry *model.LedgerEntry) error
	ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]model.LedgerEntry, error)
	ListRecent(ctx context.Context, limit int) ([]model.LedgerEntry, error)
}

type ledgerEntryRepository struct {
	db *gorm.DB
}

// NewLedgerEntryRepository creates a new ledger entry repository.
func NewLedgerEntryRepository(db *gorm.DB) LedgerEntryRepository {
	return &ledgerEntryRepository{db: db}
}

// Create appends a ledger entry.
func (r *ledgerEntryRepository) Create(ctx context.Context, entry *model.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByCard lists a card's entries, most recent first.
func (r *ledgerEntryRepository) ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if err := r.db.WithContext(ctx).Where("card_id = ?", cardID).
		Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListRecent lists the most recent entries across all cards.
func (r *ledgerEntryRepository) ListRecent(ctx context.Context, limit int) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
