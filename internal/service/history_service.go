package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mealcard/internal/errors"
	"mealcard/internal/model"
	"mealcard/internal/repository"
)

const (
	// CardHistoryLimit caps entries returned for one card.
	CardHistoryLimit = 200
	// RecentHistoryLimit caps system-wide recent entries.
	RecentHistoryLimit = 50
)

// HistoryService reads the ledger. Reads are plain snapshots.
type HistoryService interface {
	ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]model.LedgerEntry, error)
	ListRecent(ctx context.Context, limit int) ([]model.LedgerEntry, error)
}

type historyService struct {
	store repository.Store
}

// NewHistoryService creates a new history service.
func NewHistoryService(store repository.Store) HistoryService {
	return &historyService{store: store}
}

// ListByCard returns a card's entries, most recent first.
func (s *historyService) ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]model.LedgerEntry, error) {
	entries, err := s.store.Entries().ListByCard(ctx, cardID, clampLimit(limit, CardHistoryLimit))
	if err != nil {
		return nil, errors.Storage(fmt.Errorf("list entries: %w", err))
	}
	return entries, nil
}

// ListRecent returns the newest entries across all cards.
func (s *historyService) ListRecent(ctx context.Context, limit int) ([]model.LedgerEntry, error) {
	entries, err := s.store.Entries().ListRecent(ctx, clampLimit(limit, RecentHistoryLimit))
	if err != nil {
		return nil, errors.Storage(fmt.Errorf("list recent entries: %w", err))
	}
	return entries, nil
}

func clampLimit(limit, ceiling int) int {
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}
