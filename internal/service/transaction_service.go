package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mealcard/internal/errors"
	"mealcard/internal/model"
	"mealcard/internal/repository"
)

const (
	noteCartPurchase        = "Meal items purchase"
	noteInsufficientFunds   = "Insufficient funds"
	noteInsufficientForCart = "Insufficient funds for items"
)

// SideEffect is extra work committed in the same unit as a credit. It runs
// after the card row is locked and before the balance changes; returning an
// error aborts the whole unit.
type SideEffect func(ctx context.Context, tx repository.Store) error

// TransactionService is the only writer of card balances.
//
// Purchase and FinalizeCartPurchase return the written entry together with
// ErrInsufficientFunds when the balance is too low: the failed attempt is
// committed to the ledger but reported as a failure.
type TransactionService interface {
	Purchase(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal, note string, actor uuid.UUID) (*model.LedgerEntry, error)
	FinalizeCartPurchase(ctx context.Context, cardID, actor uuid.UUID) (*model.LedgerEntry, error)
	Credit(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal, kind model.EntryKind, note string, actor uuid.UUID, sideEffects ...SideEffect) (*model.LedgerEntry, error)
}

type transactionService struct {
	units *unitRunner
	cards *CardCache
	log   *zap.Logger
}

// NewTransactionService creates a new transaction service.
func NewTransactionService(store repository.Store, opts UnitOptions, cards *CardCache, log *zap.Logger) TransactionService {
	units := newUnitRunner(store, opts, log)
	return &transactionService{
		units: units,
		cards: cards,
		log:   units.log,
	}
}

// Purchase debits an explicit amount from an active card.
func (s *transactionService) Purchase(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal, note string, actor uuid.UUID) (*model.LedgerEntry, error) {
	if err := validateAmount(amount); err != nil {
		observe(s.log, "purchase", err, zap.Stringer("card_id", cardID))
		return nil, err
	}

	var (
		entry   *model.LedgerEntry
		outcome error
	)
	err := s.units.run(ctx, "purchase", func(ctx context.Context, tx repository.Store) error {
		entry, outcome = nil, nil
		card, err := lockActiveCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		entry, outcome, err = debit(ctx, tx, card, amount, actor, note, noteInsufficientFunds, false)
		return err
	})
	if err != nil {
		entry, outcome = nil, err
	}
	return s.finish(ctx, "purchase", cardID, entry, outcome)
}

// FinalizeCartPurchase debits the staged selection total and clears the
// selection in one unit.
func (s *transactionService) FinalizeCartPurchase(ctx context.Context, cardID, actor uuid.UUID) (*model.LedgerEntry, error) {
	var (
		entry   *model.LedgerEntry
		outcome error
	)
	err := s.units.run(ctx, "finalize", func(ctx context.Context, tx repository.Store) error {
		entry, outcome = nil, nil
		card, err := lockActiveCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if len(card.StagedItems) == 0 {
			return errors.ErrEmptySelection
		}
		total := card.SelectionTotal()
		if !total.IsPositive() {
			return errors.ErrInvalidTotal
		}
		if total.GreaterThan(model.MaxMoney) {
			return errors.ErrInvalidAmount
		}
		entry, outcome, err = debit(ctx, tx, card, total, actor, noteCartPurchase, noteInsufficientForCart, true)
		return err
	})
	if err != nil {
		entry, outcome = nil, err
	}
	return s.finish(ctx, "finalize", cardID, entry, outcome)
}

// Credit adds amount to the card. Card status is not checked: approved
// top-ups and refunds are honoured on blocked or lost cards.
func (s *transactionService) Credit(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal, kind model.EntryKind, note string, actor uuid.UUID, sideEffects ...SideEffect) (*model.LedgerEntry, error) {
	op := "credit_" + string(kind)
	if !kind.IsCredit() {
		err := errors.Validation("credit kind must be recharge or refund")
		observe(s.log, op, err, zap.Stringer("card_id", cardID))
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		observe(s.log, op, err, zap.Stringer("card_id", cardID))
		return nil, err
	}

	var entry *model.LedgerEntry
	err := s.units.run(ctx, op, func(ctx context.Context, tx repository.Store) error {
		entry = nil
		card, err := lockCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		for _, fx := range sideEffects {
			if err := fx(ctx, tx); err != nil {
				return err
			}
		}

		newBalance := card.Balance.Add(amount)
		if newBalance.GreaterThan(model.MaxMoney) {
			return errors.ErrInvalidAmount
		}
		if err := tx.Cards().UpdateBalance(ctx, card.ID, newBalance); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		e := &model.LedgerEntry{
			CardID:        card.ID,
			Kind:          kind,
			Amount:        amount,
			Outcome:       model.EntryOutcomeSuccess,
			BalanceBefore: card.Balance,
			BalanceAfter:  newBalance,
			Actor:         actor,
			Note:          note,
		}
		if err := tx.Entries().Create(ctx, e); err != nil {
			return fmt.Errorf("create ledger entry: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		entry = nil
	}
	return s.finish(ctx, op, cardID, entry, err)
}

func (s *transactionService) finish(ctx context.Context, op string, cardID uuid.UUID, entry *model.LedgerEntry, err error) (*model.LedgerEntry, error) {
	fields := []zap.Field{zap.Stringer("card_id", cardID)}
	if entry != nil {
		fields = append(fields,
			zap.Stringer("entry_id", entry.ID),
			zap.Stringer("amount", entry.Amount),
			zap.Stringer("balance_after", entry.BalanceAfter))
	}
	observe(s.log, op, err, fields...)
	if err == nil {
		s.cards.Invalidate(ctx, cardID)
	}
	return entry, err
}

// debit writes either a failed entry (balance too low) or the debit with a
// success entry. The outcome is ErrInsufficientFunds for a committed failed
// attempt; err aborts the unit.
func debit(ctx context.Context, tx repository.Store, card *model.Card, amount decimal.Decimal, actor uuid.UUID, note, failNote string, clearSelection bool) (entry *model.LedgerEntry, outcome, err error) {
	entry = &model.LedgerEntry{
		CardID:        card.ID,
		Kind:          model.EntryKindPurchase,
		Amount:        amount,
		BalanceBefore: card.Balance,
		Actor:         actor,
	}

	if card.Balance.LessThan(amount) {
		entry.Outcome = model.EntryOutcomeFailed
		entry.BalanceAfter = card.Balance
		entry.Note = failNote
		if err := tx.Entries().Create(ctx, entry); err != nil {
			return nil, nil, fmt.Errorf("create ledger entry: %w", err)
		}
		return entry, errors.ErrInsufficientFunds, nil
	}

	newBalance := card.Balance.Sub(amount)
	if err := tx.Cards().UpdateBalance(ctx, card.ID, newBalance); err != nil {
		return nil, nil, fmt.Errorf("update balance: %w", err)
	}
	if clearSelection {
		if err := tx.Cards().ClearStagedItems(ctx, card.ID); err != nil {
			return nil, nil, fmt.Errorf("clear selection: %w", err)
		}
	}
	entry.Outcome = model.EntryOutcomeSuccess
	entry.BalanceAfter = newBalance
	entry.Note = note
	if err := tx.Entries().Create(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("create ledger entry: %w", err)
	}
	return entry, nil, nil
}

func lockCard(ctx context.Context, tx repository.Store, cardID uuid.UUID) (*model.Card, error) {
	card, err := tx.Cards().FindByIDForUpdate(ctx, cardID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.ErrCardNotFound
		}
		return nil, fmt.Errorf("lock card: %w", err)
	}
	return card, nil
}

func lockActiveCard(ctx context.Context, tx repository.Store, cardID uuid.UUID) (*model.Card, error) {
	card, err := lockCard(ctx, tx, cardID)
	if err != nil {
		return nil, err
	}
	if !card.IsActive() {
		return nil, errors.ErrCardInactive
	}
	return card, nil
}

// validateAmount accepts positive amounts with at most two decimal places
// that fit the money columns.
func validateAmount(amount decimal.Decimal) error {
	if !model.ValidAmount(amount) {
		return errors.ErrInvalidAmount
	}
	return nil
}
