package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mealcard/internal/auth"
	"mealcard/internal/cache"
	"mealcard/internal/errors"
	"mealcard/internal/model"
	"mealcard/internal/repository"
)

func TestCardService_CreateCard(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	holderID := uuid.New()

	card, err := env.cards.CreateCard(ctx, holderID, " R-2024-001 ")
	require.NoError(t, err)
	assert.Equal(t, "R-2024-001", card.HolderRef)
	assert.Equal(t, holderID, card.HolderID)
	assert.True(t, card.Balance.IsZero())
	assert.Equal(t, model.CardStatusActive, card.Status)
	assert.True(t, NewCardValidator().Validate(card.CardNumber), card.CardNumber)

	_, err = env.cards.CreateCard(ctx, uuid.New(), "R-2024-001")
	assert.ErrorIs(t, err, errors.ErrCardExists)

	_, err = env.cards.CreateCard(ctx, uuid.Nil, "R-2024-002")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	byNumber, err := env.cards.GetCardByNumber(ctx, " "+card.CardNumber[:3]+card.CardNumber[3:]+" ")
	require.NoError(t, err)
	assert.Equal(t, card.ID, byNumber.ID)

	_, err = env.cards.GetCardByNumber(ctx, "MC-12")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
	_, err = env.cards.GetCardByNumber(ctx, "MC-00000000")
	assert.ErrorIs(t, err, errors.ErrCardNotFound)

	cards, err := env.cards.GetCardsByHolder(ctx, "R-2024-001")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, card.ID, cards[0].ID)
}

func TestCardService_StageItem(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(env *testEnv) (cardID uuid.UUID, caller auth.Identity, item *model.Item)
		price   string
		qty     int
		wantErr *errors.Error
	}{
		{
			name: "missing card",
			setup: func(env *testEnv) (uuid.UUID, auth.Identity, *model.Item) {
				_, holder := env.seedCard(t, "10")
				return uuid.New(), holder, env.seedItem(t, "5", true)
			},
			price: "5", wantErr: errors.ErrCardNotFound,
		},
		{
			name: "missing item",
			setup: func(env *testEnv) (uuid.UUID, auth.Identity, *model.Item) {
				card, holder := env.seedCard(t, "10")
				return card.ID, holder, &model.Item{ID: uuid.New()}
			},
			price: "5", wantErr: errors.ErrItemNotFound,
		},
		{
			name: "someone else's card",
			setup: func(env *testEnv) (uuid.UUID, auth.Identity, *model.Item) {
				card, _ := env.seedCard(t, "10")
				_, other := env.seedCard(t, "10")
				return card.ID, other, env.seedItem(t, "5", true)
			},
			price: "5", wantErr: errors.ErrNotCardHolder,
		},
		{
			name: "blocked card",
			setup: func(env *testEnv) (uuid.UUID, auth.Identity, *model.Item) {
				card, holder := env.seedCardWithStatus(t, "10", model.CardStatusBlocked)
				return card.ID, holder, env.seedItem(t, "5", true)
			},
			price: "5", wantErr: errors.ErrCardInactive,
		},
		{
			name: "unavailable item",
			setup: func(env *testEnv) (uuid.UUID, auth.Identity, *model.Item) {
				card, holder := env.seedCard(t, "10")
				return card.ID, holder, env.seedItem(t, "5", false)
			},
			price: "5", wantErr: errors.ErrItemUnavailable,
		},
		{
			name: "price not offered",
			setup: func(env *testEnv) (uuid.UUID, auth.Identity, *model.Item) {
				card, holder := env.seedCard(t, "10")
				return card.ID, holder, env.seedItem(t, "5", true, "7.50")
			},
			price: "6", wantErr: errors.ErrPriceNotOffered,
		},
		{
			name: "negative quantity",
			setup: func(env *testEnv) (uuid.UUID, auth.Identity, *model.Item) {
				card, holder := env.seedCard(t, "10")
				return card.ID, holder, env.seedItem(t, "5", true)
			},
			price: "5", qty: -1, wantErr: errors.ErrInvalidAmount,
		},
		{
			name: "quantity above line limit",
			setup: func(env *testEnv) (uuid.UUID, auth.Identity, *model.Item) {
				card, holder := env.seedCard(t, "10")
				return card.ID, holder, env.seedItem(t, "5", true)
			},
			price: "5", qty: MaxLineQuantity + 1, wantErr: errors.ErrInvalidAmount,
		},
		{
			name: "alternate price accepted",
			setup: func(env *testEnv) (uuid.UUID, auth.Identity, *model.Item) {
				card, holder := env.seedCard(t, "10")
				return card.ID, holder, env.seedItem(t, "5", true, "7.50")
			},
			price: "7.5", qty: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			cardID, caller, item := tt.setup(env)

			card, err := env.cards.StageItem(ctx, caller, cardID, item.ID, dec(tt.price), tt.qty)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, card)
				return
			}
			require.NoError(t, err)
			require.Len(t, card.StagedItems, 1)
			assert.Equal(t, tt.qty, card.StagedItems[0].Quantity)
		})
	}
}

func TestCardService_StageItem_MergesByItemAndPrice(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	card, holder := env.seedCard(t, "100")
	item := env.seedItem(t, "10", true, "12")

	_, err := env.cards.StageItem(ctx, holder, card.ID, item.ID, dec("10"), 0)
	require.NoError(t, err)
	_, err = env.cards.StageItem(ctx, holder, card.ID, item.ID, dec("10.00"), 2)
	require.NoError(t, err)
	staged, err := env.cards.StageItem(ctx, holder, card.ID, item.ID, dec("12"), 1)
	require.NoError(t, err)

	require.Len(t, staged.StagedItems, 2)
	assert.Equal(t, 3, staged.StagedItems[0].Quantity)
	assert.True(t, staged.StagedItems[0].UnitPrice.Equal(dec("10")))
	assert.Equal(t, 1, staged.StagedItems[1].Quantity)

	total, err := env.cards.ComputeTotal(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("42")))
	// staging never touches the balance or the ledger
	assert.True(t, env.card(t, card.ID).Balance.Equal(dec("100")))
	assert.Empty(t, env.entries(t, card.ID))
}

func TestCardService_StageItem_LineQuantityLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("merge past the limit leaves the line unchanged", func(t *testing.T) {
		env := newTestEnv(t, false)
		card, holder := env.seedCard(t, "500")
		item := env.seedItem(t, "2.50", true)

		_, err := env.cards.StageItem(ctx, holder, card.ID, item.ID, dec("2.50"), 60)
		require.NoError(t, err)
		_, err = env.cards.StageItem(ctx, holder, card.ID, item.ID, dec("2.50"), 60)
		assert.ErrorIs(t, err, errors.ErrInvalidAmount)

		got := env.card(t, card.ID)
		require.Len(t, got.StagedItems, 1)
		assert.Equal(t, 60, got.StagedItems[0].Quantity)
		total, err := env.cards.ComputeTotal(ctx, card.ID)
		require.NoError(t, err)
		assert.True(t, total.Equal(dec("150")))

		staged, err := env.cards.StageItem(ctx, holder, card.ID, item.ID, dec("2.50"), MaxLineQuantity-60)
		require.NoError(t, err)
		assert.Equal(t, MaxLineQuantity, staged.StagedItems[0].Quantity)
	})

	t.Run("huge quantities never wrap the total", func(t *testing.T) {
		env := newTestEnv(t, false)
		card, holder := env.seedCard(t, "500")
		cheap := env.seedItem(t, "1", true)
		lunch := env.seedItem(t, "350", true)

		_, err := env.cards.StageItem(ctx, holder, card.ID, lunch.ID, dec("350"), 1)
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			_, err = env.cards.StageItem(ctx, holder, card.ID, cheap.ID, dec("1"), math.MaxInt)
			assert.ErrorIs(t, err, errors.ErrInvalidAmount)
		}

		total, err := env.cards.ComputeTotal(ctx, card.ID)
		require.NoError(t, err)
		assert.True(t, total.Equal(dec("350")))

		_, err = env.tx.FinalizeCartPurchase(ctx, card.ID, env.cashier.AccountID)
		require.NoError(t, err)
		assert.True(t, env.card(t, card.ID).Balance.Equal(dec("150")))
	})

	t.Run("decrement above the limit is rejected", func(t *testing.T) {
		env := newTestEnv(t, false)
		card, holder := env.seedCard(t, "10")
		item := env.seedItem(t, "1", true)
		_, err := env.cards.StageItem(ctx, holder, card.ID, item.ID, dec("1"), 2)
		require.NoError(t, err)

		_, err = env.cards.UnstageItem(ctx, holder, card.ID, item.ID, dec("1"), UnstageDecrement, math.MaxInt)
		assert.ErrorIs(t, err, errors.ErrInvalidAmount)
		assert.Equal(t, 2, env.card(t, card.ID).StagedItems[0].Quantity)
	})
}

func TestCardService_UnstageItem(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*testEnv, *model.Card, auth.Identity, *model.Item) {
		env := newTestEnv(t, false)
		card, holder := env.seedCard(t, "100")
		item := env.seedItem(t, "10", true)
		_, err := env.cards.StageItem(ctx, holder, card.ID, item.ID, dec("10"), 3)
		require.NoError(t, err)
		return env, card, holder, item
	}

	t.Run("decrement by one then remove at zero", func(t *testing.T) {
		env, card, holder, item := setup(t)

		got, err := env.cards.UnstageItem(ctx, holder, card.ID, item.ID, dec("10"), UnstageDecrement, 0)
		require.NoError(t, err)
		require.Len(t, got.StagedItems, 1)
		assert.Equal(t, 2, got.StagedItems[0].Quantity)

		got, err = env.cards.UnstageItem(ctx, holder, card.ID, item.ID, dec("10"), UnstageDecrement, 5)
		require.NoError(t, err)
		assert.Empty(t, got.StagedItems)

		_, err = env.cards.UnstageItem(ctx, holder, card.ID, item.ID, dec("10"), UnstageDecrement, 1)
		assert.ErrorIs(t, err, errors.ErrLineNotFound)
	})

	t.Run("remove whole line", func(t *testing.T) {
		env, card, holder, item := setup(t)

		got, err := env.cards.UnstageItem(ctx, holder, card.ID, item.ID, dec("10"), UnstageAll, 0)
		require.NoError(t, err)
		assert.Empty(t, got.StagedItems)
	})

	t.Run("guards", func(t *testing.T) {
		env, card, holder, item := setup(t)
		_, other := env.seedCard(t, "0")

		_, err := env.cards.UnstageItem(ctx, other, card.ID, item.ID, dec("10"), UnstageAll, 0)
		assert.ErrorIs(t, err, errors.ErrNotCardHolder)
		_, err = env.cards.UnstageItem(ctx, holder, card.ID, item.ID, dec("11"), UnstageAll, 0)
		assert.ErrorIs(t, err, errors.ErrLineNotFound)
		_, err = env.cards.UnstageItem(ctx, holder, card.ID, item.ID, dec("10"), "half", 0)
		assert.Equal(t, errors.KindValidation, errors.KindOf(err))
		assert.Len(t, env.card(t, card.ID).StagedItems, 1)
	})
}

func TestCardService_GetSelection(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	card, holder := env.seedCard(t, "80")

	sel, err := env.cards.GetSelection(ctx, card.ID)
	require.NoError(t, err)
	assert.NotNil(t, sel.Items)
	assert.True(t, sel.Total.IsZero())

	item := env.seedItem(t, "12.50", true)
	_, err = env.cards.StageItem(ctx, holder, card.ID, item.ID, dec("12.50"), 3)
	require.NoError(t, err)

	sel, err = env.cards.GetSelection(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.CardNumber, sel.CardNumber)
	assert.True(t, sel.Balance.Equal(dec("80")))
	assert.True(t, sel.Total.Equal(dec("37.5")))

	_, err = env.cards.GetSelection(ctx, uuid.New())
	assert.ErrorIs(t, err, errors.ErrCardNotFound)
}

func TestCardService_GetCard_Cache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	cards := NewCardCache(client, time.Minute)

	store := repository.NewMemoryStore()
	env := newTestEnv(t, false)
	env.store = store
	log := zap.NewNop()
	env.cards = NewCardService(store, NewCatalog(store.Items()), testUnitOptions, cards, log)
	env.tx = NewTransactionService(store, testUnitOptions, cards, log)
	ctx := context.Background()

	card, _ := env.seedCard(t, "20")

	got, err := env.cards.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("20")))
	assert.True(t, mr.Exists(cardKey(card.ID)))

	// a committed purchase drops the snapshot
	_, err = env.tx.Purchase(ctx, card.ID, dec("5"), "", env.cashier.AccountID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cardKey(card.ID)))

	got, err = env.cards.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("15")))

	_, err = env.cards.GetCard(ctx, uuid.New())
	assert.ErrorIs(t, err, errors.ErrCardNotFound)
}

func TestCardCache_LoadRacingCommit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	cards := NewCardCache(client, time.Minute)

	store := repository.NewMemoryStore()
	env := newTestEnv(t, false)
	env.store = store
	log := zap.NewNop()
	env.cards = NewCardService(store, NewCatalog(store.Items()), testUnitOptions, cards, log)
	env.tx = NewTransactionService(store, testUnitOptions, cards, log)
	ctx := context.Background()

	card, _ := env.seedCard(t, "20")

	// the store read lands before a purchase commits and invalidates
	got, err := cards.Load(ctx, card.ID, func() (*model.Card, error) {
		before := env.card(t, card.ID)
		_, err := env.tx.Purchase(ctx, card.ID, dec("5"), "", env.cashier.AccountID)
		require.NoError(t, err)
		return before, nil
	})
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("20")))
	assert.False(t, mr.Exists(cardKey(card.ID)), "pre-commit read must not be cached")

	got, err = env.cards.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("15")))
	assert.True(t, mr.Exists(cardKey(card.ID)))
}

func TestCardValidator(t *testing.T) {
	v := NewCardValidator()

	number := v.Generate()
	assert.Len(t, number, 11)
	assert.True(t, v.Validate(number))
	assert.True(t, v.Validate(v.Normalize(" mc-0a1b2c3d ")))
	assert.False(t, v.Validate("MC-0a1b2c3d"))
	assert.False(t, v.Validate("XX-0A1B2C3D"))
	assert.Equal(t, "MC-****2C3D", v.MaskCardNumber("MC-0A1B2C3D"))
	assert.Equal(t, "****", v.MaskCardNumber("MC"))
}
