package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mealcard/internal/auth"
	"mealcard/internal/model"
	"mealcard/internal/repository"
)

var testUnitOptions = UnitOptions{Timeout: time.Second, MaxRetries: 3, BaseDelay: time.Millisecond}

type testEnv struct {
	store   *repository.MemoryStore
	cards   CardService
	tx      TransactionService
	topUps  TopUpService
	history HistoryService
	cashier auth.Identity
	manager auth.Identity
}

func newTestEnv(t *testing.T, autoApprove bool) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	return newTestEnvWithStore(t, store, store, autoApprove)
}

// newTestEnvWithStore wires services to engine, which may wrap mem to inject
// faults; seeding always goes to mem directly.
func newTestEnvWithStore(t *testing.T, mem *repository.MemoryStore, engine repository.Store, autoApprove bool) *testEnv {
	t.Helper()
	log := zap.NewNop()
	txs := NewTransactionService(engine, testUnitOptions, nil, log)
	return &testEnv{
		store:   mem,
		cards:   NewCardService(engine, NewCatalog(mem.Items()), testUnitOptions, nil, log),
		tx:      txs,
		topUps:  NewTopUpService(engine, txs, testUnitOptions, TopUpOptions{AutoApprove: autoApprove}, log),
		history: NewHistoryService(engine),
		cashier: auth.Identity{AccountID: uuid.New(), Role: auth.RoleCashier},
		manager: auth.Identity{AccountID: uuid.New(), Role: auth.RoleManager},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedCard creates an active card with balance and returns it with its
// holder's identity.
func (e *testEnv) seedCard(t *testing.T, balance string) (*model.Card, auth.Identity) {
	t.Helper()
	return e.seedCardWithStatus(t, balance, model.CardStatusActive)
}

func (e *testEnv) seedCardWithStatus(t *testing.T, balance string, status model.CardStatus) (*model.Card, auth.Identity) {
	t.Helper()
	ctx := context.Background()
	holder := auth.Identity{AccountID: uuid.New(), Role: auth.RoleHolder, HolderRef: "R-" + uuid.NewString()[:8]}
	card := &model.Card{
		CardNumber: NewCardValidator().Generate(),
		HolderID:   holder.AccountID,
		HolderRef:  holder.HolderRef,
		Status:     status,
	}
	require.NoError(t, e.store.Cards().Create(ctx, card))
	require.NoError(t, e.store.Cards().UpdateBalance(ctx, card.ID, dec(balance)))
	card.Balance = dec(balance)
	return card, holder
}

func (e *testEnv) seedItem(t *testing.T, price string, available bool, options ...string) *model.Item {
	t.Helper()
	item := &model.Item{Name: "item-" + price, Category: "lunch", Price: dec(price), Available: available}
	for _, o := range options {
		item.PriceOptions = append(item.PriceOptions, dec(o))
	}
	require.NoError(t, e.store.Items().Save(context.Background(), item))
	return item
}

func (e *testEnv) card(t *testing.T, cardID uuid.UUID) *model.Card {
	t.Helper()
	card, err := e.store.Cards().FindByID(context.Background(), cardID)
	require.NoError(t, err)
	return card
}

func (e *testEnv) entries(t *testing.T, cardID uuid.UUID) []model.LedgerEntry {
	t.Helper()
	entries, err := e.store.Entries().ListByCard(context.Background(), cardID, 0)
	require.NoError(t, err)
	return entries
}
