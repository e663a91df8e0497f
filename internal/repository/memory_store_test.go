package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealcard/internal/model"
)

func newCard(ref string) *model.Card {
	return &model.Card{CardNumber: "MC-" + ref, HolderID: uuid.New(), HolderRef: ref}
}

func TestMemoryStore_Cards(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	card := newCard("0000AAAA")
	require.NoError(t, s.Cards().Create(ctx, card))
	assert.NotEqual(t, uuid.Nil, card.ID)
	assert.Equal(t, model.CardStatusActive, card.Status)

	assert.ErrorIs(t, s.Cards().Create(ctx, newCard("0000AAAA")), ErrDuplicate)

	_, err := s.Cards().FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Cards().FindByNumber(ctx, "MC-FFFFFFFF")
	assert.ErrorIs(t, err, ErrNotFound)

	byNumber, err := s.Cards().FindByNumber(ctx, "MC-0000AAAA")
	require.NoError(t, err)
	assert.Equal(t, card.ID, byNumber.ID)

	require.NoError(t, s.Cards().UpdateBalance(ctx, card.ID, decimal.RequireFromString("12.34")))
	got, err := s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("12.34")))
	assert.ErrorIs(t, s.Cards().UpdateBalance(ctx, uuid.New(), decimal.Zero), ErrNotFound)
}

func TestMemoryStore_StagedItems(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	card := newCard("0000BBBB")
	require.NoError(t, s.Cards().Create(ctx, card))

	itemID := uuid.New()
	price := decimal.RequireFromString("5")
	line := &model.StagedItem{CardID: card.ID, ItemID: itemID, UnitPrice: price, Quantity: 1}
	require.NoError(t, s.Cards().SaveStagedItem(ctx, line))
	assert.NotZero(t, line.ID)

	dup := &model.StagedItem{CardID: card.ID, ItemID: itemID, UnitPrice: price, Quantity: 4}
	assert.ErrorIs(t, s.Cards().SaveStagedItem(ctx, dup), ErrDuplicate)

	// a copy handed out by a read must not alias the stored line
	got, err := s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	got.StagedItems[0].Quantity = 99
	again, err := s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.StagedItems[0].Quantity)

	line.Quantity = 3
	require.NoError(t, s.Cards().SaveStagedItem(ctx, line))
	again, err = s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, again.StagedItems, 1)
	assert.Equal(t, 3, again.StagedItems[0].Quantity)

	assert.ErrorIs(t, s.Cards().DeleteStagedItem(ctx, card.ID, itemID, decimal.RequireFromString("6")), ErrNotFound)
	require.NoError(t, s.Cards().DeleteStagedItem(ctx, card.ID, itemID, price))
	require.NoError(t, s.Cards().SaveStagedItem(ctx, &model.StagedItem{CardID: card.ID, ItemID: itemID, UnitPrice: price, Quantity: 1}))
	require.NoError(t, s.Cards().ClearStagedItems(ctx, card.ID))
	again, err = s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, again.StagedItems)
}

func TestMemoryStore_WithTransaction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	card := newCard("0000CCCC")
	require.NoError(t, s.Cards().Create(ctx, card))

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
		require.NoError(t, tx.Cards().UpdateBalance(ctx, card.ID, decimal.NewFromInt(50)))
		require.NoError(t, tx.Entries().Create(ctx, &model.LedgerEntry{CardID: card.ID, Kind: model.EntryKindRecharge}))
		inside, err := tx.Cards().FindByID(ctx, card.ID)
		require.NoError(t, err)
		assert.True(t, inside.Balance.Equal(decimal.NewFromInt(50)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	entries, err := s.Entries().ListByCard(ctx, card.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = s.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.Cards().UpdateBalance(ctx, card.ID, decimal.NewFromInt(7)); err != nil {
			return err
		}
		// nested units join the outer one
		return tx.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
			return tx.Entries().Create(ctx, &model.LedgerEntry{CardID: card.ID, Kind: model.EntryKindRecharge})
		})
	})
	require.NoError(t, err)
	got, err = s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(7)))
	entries, err = s.Entries().ListByCard(ctx, card.ID, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMemoryStore_WithTransaction_ExpiredContext(t *testing.T) {
	s := NewMemoryStore()
	card := newCard("0000DDDD")
	require.NoError(t, s.Cards().Create(context.Background(), card))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.Cards().UpdateBalance(ctx, card.ID, decimal.NewFromInt(1)); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got, err := s.Cards().FindByID(context.Background(), card.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
}

func TestMemoryStore_EntriesAndTopUps(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, b := uuid.New(), uuid.New()

	for i := 1; i <= 5; i++ {
		cardID := a
		if i%2 == 0 {
			cardID = b
		}
		require.NoError(t, s.Entries().Create(ctx, &model.LedgerEntry{CardID: cardID, Amount: decimal.NewFromInt(int64(i))}))
	}

	byCard, err := s.Entries().ListByCard(ctx, a, 2)
	require.NoError(t, err)
	require.Len(t, byCard, 2)
	assert.True(t, byCard[0].Amount.Equal(decimal.NewFromInt(5)))
	assert.True(t, byCard[1].Amount.Equal(decimal.NewFromInt(3)))

	recent, err := s.Entries().ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].Amount.Equal(decimal.NewFromInt(5)))
	assert.True(t, recent[2].Amount.Equal(decimal.NewFromInt(3)))

	req := &model.TopUpRequest{CardID: a, Amount: decimal.NewFromInt(10)}
	require.NoError(t, s.TopUps().Create(ctx, req))
	assert.Equal(t, model.TopUpStatusPending, req.Status)

	pending, err := s.TopUps().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	req.MarkProcessed(model.TopUpStatusRejected, uuid.New(), time.Now(), "no")
	require.NoError(t, s.TopUps().Update(ctx, req))
	pending, err = s.TopUps().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, s.TopUps().Update(ctx, &model.TopUpRequest{ID: uuid.New()}), ErrNotFound)
	_, err = s.TopUps().FindByIDForUpdate(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "conflict", err: fmt.Errorf("commit: %w", ErrConflict), want: true},
		{name: "mysql deadlock", err: &mysqldriver.MySQLError{Number: 1213}, want: true},
		{name: "mysql lock wait timeout", err: fmt.Errorf("update: %w", &mysqldriver.MySQLError{Number: 1205}), want: true},
		{name: "mysql duplicate", err: &mysqldriver.MySQLError{Number: 1062}, want: false},
		{name: "postgres serialization", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "postgres deadlock", err: &pgconn.PgError{Code: "40P01"}, want: true},
		{name: "postgres unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "not found", err: ErrNotFound, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
