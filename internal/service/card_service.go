package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mealcard/internal/auth"
	"mealcard/internal/errors"
	"mealcard/internal/model"
	"mealcard/internal/repository"
)

// cardNumberAttempts bounds retries on a card number collision.
const cardNumberAttempts = 5

// MaxLineQuantity caps the quantity of one staged line.
const MaxLineQuantity = 100

// UnstageMode selects how UnstageItem shrinks a line.
type UnstageMode string

const (
	// UnstageAll removes the whole line.
	UnstageAll UnstageMode = "all"
	// UnstageDecrement subtracts a quantity and drops the line at zero.
	UnstageDecrement UnstageMode = "decrement"
)

// Selection is the cashier's view of a card's staged items.
type Selection struct {
	CardID     uuid.UUID          `json:"card_id"`
	CardNumber string             `json:"card_number"`
	Balance    decimal.Decimal    `json:"balance"`
	Items      []model.StagedItem `json:"items"`
	Total      decimal.Decimal    `json:"total"`
}

// CardService handles card accounts and their staged selection.
type CardService interface {
	CreateCard(ctx context.Context, holderID uuid.UUID, holderRef string) (*model.Card, error)
	GetCard(ctx context.Context, cardID uuid.UUID) (*model.Card, error)
	GetCardByNumber(ctx context.Context, cardNumber string) (*model.Card, error)
	GetCardsByHolder(ctx context.Context, holderRef string) ([]model.Card, error)
	StageItem(ctx context.Context, caller auth.Identity, cardID, itemID uuid.UUID, unitPrice decimal.Decimal, qty int) (*model.Card, error)
	UnstageItem(ctx context.Context, caller auth.Identity, cardID, itemID uuid.UUID, unitPrice decimal.Decimal, mode UnstageMode, qty int) (*model.Card, error)
	ComputeTotal(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error)
	GetSelection(ctx context.Context, cardID uuid.UUID) (*Selection, error)
}

type cardService struct {
	store     repository.Store
	catalog   Catalog
	units     *unitRunner
	cards     *CardCache
	validator *CardValidator
	log       *zap.Logger
}

// NewCardService creates a new card service.
func NewCardService(store repository.Store, catalog Catalog, opts UnitOptions, cards *CardCache, log *zap.Logger) CardService {
	units := newUnitRunner(store, opts, log)
	return &cardService{
		store:     store,
		catalog:   catalog,
		units:     units,
		cards:     cards,
		validator: NewCardValidator(),
		log:       units.log,
	}
}

// CreateCard issues the single card of a holder with a zero balance.
func (s *cardService) CreateCard(ctx context.Context, holderID uuid.UUID, holderRef string) (*model.Card, error) {
	holderRef = strings.TrimSpace(holderRef)
	if holderID == uuid.Nil || holderRef == "" {
		return nil, errors.Validation("holder id and holder reference are required")
	}

	existing, err := s.store.Cards().FindByHolderRef(ctx, holderRef)
	if err != nil {
		return nil, errors.Storage(fmt.Errorf("find cards: %w", err))
	}
	if len(existing) > 0 {
		return nil, errors.ErrCardExists
	}

	for attempt := 1; ; attempt++ {
		card := &model.Card{
			CardNumber: s.validator.Generate(),
			HolderID:   holderID,
			HolderRef:  holderRef,
			Balance:    decimal.Zero,
			Status:     model.CardStatusActive,
		}
		err := s.store.Cards().Create(ctx, card)
		if err == nil {
			s.log.Info("card created",
				zap.Stringer("card_id", card.ID),
				zap.String("card_number", s.validator.MaskCardNumber(card.CardNumber)),
				zap.String("holder_ref", holderRef))
			return card, nil
		}
		if !stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Storage(fmt.Errorf("create card: %w", err))
		}
		// either the holder won a race or the number collided
		if cards, ferr := s.store.Cards().FindByHolderRef(ctx, holderRef); ferr == nil && len(cards) > 0 {
			return nil, errors.ErrCardExists
		}
		if attempt == cardNumberAttempts {
			return nil, errors.Storage(fmt.Errorf("create card: %w", err))
		}
	}
}

// GetCard returns a card snapshot, served from cache when possible.
func (s *cardService) GetCard(ctx context.Context, cardID uuid.UUID) (*model.Card, error) {
	return s.cards.Load(ctx, cardID, func() (*model.Card, error) {
		return s.findCard(ctx, cardID)
	})
}

// GetCardByNumber looks a card up by its printed number.
func (s *cardService) GetCardByNumber(ctx context.Context, cardNumber string) (*model.Card, error) {
	cardNumber = s.validator.Normalize(cardNumber)
	if !s.validator.Validate(cardNumber) {
		return nil, errors.Validation("malformed card number")
	}
	card, err := s.store.Cards().FindByNumber(ctx, cardNumber)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.ErrCardNotFound
		}
		return nil, errors.Storage(fmt.Errorf("get card: %w", err))
	}
	return card, nil
}

// GetCardsByHolder returns the cards of a holder reference.
func (s *cardService) GetCardsByHolder(ctx context.Context, holderRef string) ([]model.Card, error) {
	cards, err := s.store.Cards().FindByHolderRef(ctx, strings.TrimSpace(holderRef))
	if err != nil {
		return nil, errors.Storage(fmt.Errorf("get cards: %w", err))
	}
	return cards, nil
}

// StageItem adds qty of an item at unitPrice to the caller's selection.
func (s *cardService) StageItem(ctx context.Context, caller auth.Identity, cardID, itemID uuid.UUID, unitPrice decimal.Decimal, qty int) (*model.Card, error) {
	if qty == 0 {
		qty = 1
	}
	if qty < 0 || qty > MaxLineQuantity {
		return nil, errors.ErrInvalidAmount
	}
	item, err := s.catalog.Lookup(ctx, itemID)
	if err != nil {
		return nil, asDomain(err)
	}

	var card *model.Card
	err = s.units.run(ctx, "stage_item", func(ctx context.Context, tx repository.Store) error {
		c, err := s.lockOwnedCard(ctx, tx, caller, cardID)
		if err != nil {
			return err
		}
		if !item.Available {
			return errors.ErrItemUnavailable
		}
		if !offersPrice(item, unitPrice) {
			return errors.ErrPriceNotOffered
		}

		line := &model.StagedItem{CardID: c.ID, ItemID: itemID, UnitPrice: unitPrice, Quantity: qty}
		for i := range c.StagedItems {
			if c.StagedItems[i].Matches(itemID, unitPrice) {
				line = &c.StagedItems[i]
				if line.Quantity > MaxLineQuantity-qty {
					return errors.ErrInvalidAmount
				}
				line.Quantity += qty
				break
			}
		}
		if err := tx.Cards().SaveStagedItem(ctx, line); err != nil {
			return fmt.Errorf("save staged item: %w", err)
		}
		card, err = tx.Cards().FindByID(ctx, cardID)
		return err
	})
	return s.finishCart(ctx, "stage_item", cardID, card, err)
}

// UnstageItem removes or decrements the (item, unitPrice) line.
func (s *cardService) UnstageItem(ctx context.Context, caller auth.Identity, cardID, itemID uuid.UUID, unitPrice decimal.Decimal, mode UnstageMode, qty int) (*model.Card, error) {
	switch mode {
	case UnstageAll:
	case UnstageDecrement:
		if qty == 0 {
			qty = 1
		}
		if qty < 0 || qty > MaxLineQuantity {
			return nil, errors.ErrInvalidAmount
		}
	default:
		return nil, errors.Validation("unknown unstage mode")
	}

	var card *model.Card
	err := s.units.run(ctx, "unstage_item", func(ctx context.Context, tx repository.Store) error {
		c, err := s.lockOwnedCard(ctx, tx, caller, cardID)
		if err != nil {
			return err
		}
		var line *model.StagedItem
		for i := range c.StagedItems {
			if c.StagedItems[i].Matches(itemID, unitPrice) {
				line = &c.StagedItems[i]
				break
			}
		}
		if line == nil {
			return errors.ErrLineNotFound
		}

		if mode == UnstageDecrement && line.Quantity > qty {
			line.Quantity -= qty
			err = tx.Cards().SaveStagedItem(ctx, line)
		} else {
			err = tx.Cards().DeleteStagedItem(ctx, cardID, itemID, line.UnitPrice)
		}
		if err != nil {
			return fmt.Errorf("update selection: %w", err)
		}
		card, err = tx.Cards().FindByID(ctx, cardID)
		return err
	})
	return s.finishCart(ctx, "unstage_item", cardID, card, err)
}

// ComputeTotal returns the staged selection total without side effects.
func (s *cardService) ComputeTotal(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error) {
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return decimal.Zero, err
	}
	return card.SelectionTotal(), nil
}

// GetSelection returns the staged lines and total of a card.
func (s *cardService) GetSelection(ctx context.Context, cardID uuid.UUID) (*Selection, error) {
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	items := card.StagedItems
	if items == nil {
		items = []model.StagedItem{}
	}
	return &Selection{
		CardID:     card.ID,
		CardNumber: card.CardNumber,
		Balance:    card.Balance,
		Items:      items,
		Total:      card.SelectionTotal(),
	}, nil
}

func (s *cardService) findCard(ctx context.Context, cardID uuid.UUID) (*model.Card, error) {
	card, err := s.store.Cards().FindByID(ctx, cardID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.ErrCardNotFound
		}
		return nil, errors.Storage(fmt.Errorf("get card: %w", err))
	}
	return card, nil
}

// lockOwnedCard locks an active card that belongs to caller.
func (s *cardService) lockOwnedCard(ctx context.Context, tx repository.Store, caller auth.Identity, cardID uuid.UUID) (*model.Card, error) {
	card, err := lockCard(ctx, tx, cardID)
	if err != nil {
		return nil, err
	}
	if card.HolderID != caller.AccountID {
		return nil, errors.ErrNotCardHolder
	}
	if !card.IsActive() {
		return nil, errors.ErrCardInactive
	}
	return card, nil
}

func (s *cardService) finishCart(ctx context.Context, op string, cardID uuid.UUID, card *model.Card, err error) (*model.Card, error) {
	observe(s.log, op, err, zap.Stringer("card_id", cardID))
	if err != nil {
		return nil, err
	}
	s.cards.Invalidate(ctx, cardID)
	return card, nil
}

func offersPrice(item *model.Item, unitPrice decimal.Decimal) bool {
	for _, p := range item.Prices() {
		if p.Equal(unitPrice) {
			return true
		}
	}
	return false
}

// asDomain passes domain errors through and wraps anything else as a
// storage failure.
func asDomain(err error) error {
	var domainErr *errors.Error
	if stderrors.As(err, &domainErr) {
		return err
	}
	return errors.Storage(err)
}
