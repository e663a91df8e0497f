package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mealcard/internal/model"
)

// MemoryStore is an in-process Store for development and tests.
//
// Every unit runs under one mutex against a copy of the state; the copy
// replaces the state only when the unit returns nil with a live context.
// Writes outside a unit are applied the same way, one call at a time.
type MemoryStore struct {
	db    *memoryDB
	draft *memoryState // set inside WithTransaction
}

type memoryDB struct {
	mu    sync.Mutex
	state *memoryState
	now   func() time.Time
}

// Values only; slices held by a value are never modified in place, so a
// shallow map copy is enough to isolate a draft.
type memoryState struct {
	cards    map[uuid.UUID]model.Card
	entries  []model.LedgerEntry
	topUps   map[uuid.UUID]model.TopUpRequest
	items    map[uuid.UUID]model.Item
	nextLine uint
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{db: &memoryDB{
		state: &memoryState{
			cards:  make(map[uuid.UUID]model.Card),
			topUps: make(map[uuid.UUID]model.TopUpRequest),
			items:  make(map[uuid.UUID]model.Item),
		},
		now: time.Now,
	}}
}

func (st *memoryState) clone() *memoryState {
	out := &memoryState{
		cards:    make(map[uuid.UUID]model.Card, len(st.cards)),
		entries:  st.entries[:len(st.entries):len(st.entries)],
		topUps:   make(map[uuid.UUID]model.TopUpRequest, len(st.topUps)),
		items:    make(map[uuid.UUID]model.Item, len(st.items)),
		nextLine: st.nextLine,
	}
	for k, v := range st.cards {
		out.cards[k] = v
	}
	for k, v := range st.topUps {
		out.topUps[k] = v
	}
	for k, v := range st.items {
		out.items[k] = v
	}
	return out
}

func (s *MemoryStore) Cards() CardRepository          { return memoryCards{s} }
func (s *MemoryStore) Entries() LedgerEntryRepository { return memoryEntries{s} }
func (s *MemoryStore) TopUps() TopUpRepository        { return memoryTopUps{s} }
func (s *MemoryStore) Items() ItemRepository          { return memoryItems{s} }

// WithTransaction runs fn against a private draft and publishes it on success.
// Nested calls join the outer unit.
func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.draft != nil {
		return fn(ctx, s)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	draft := s.db.state.clone()
	if err := fn(ctx, &MemoryStore{db: s.db, draft: draft}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.state = draft
	return nil
}

func (s *MemoryStore) read(fn func(st *memoryState) error) error {
	if s.draft != nil {
		return fn(s.draft)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.state)
}

func (s *MemoryStore) write(fn func(st *memoryState) error) error {
	if s.draft != nil {
		return fn(s.draft)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	draft := s.db.state.clone()
	if err := fn(draft); err != nil {
		return err
	}
	s.db.state = draft
	return nil
}

func copyCard(c model.Card) *model.Card {
	c.StagedItems = append([]model.StagedItem(nil), c.StagedItems...)
	return &c
}

type memoryCards struct{ s *MemoryStore }

func (r memoryCards) Create(ctx context.Context, card *model.Card) error {
	return r.s.write(func(st *memoryState) error {
		for _, existing := range st.cards {
			if existing.HolderRef == card.HolderRef || existing.CardNumber == card.CardNumber {
				return ErrDuplicate
			}
		}
		if card.ID == uuid.Nil {
			card.ID = uuid.New()
		}
		if _, ok := st.cards[card.ID]; ok {
			return ErrDuplicate
		}
		if card.Status == "" {
			card.Status = model.CardStatusActive
		}
		now := r.s.db.now()
		card.CreatedAt, card.UpdatedAt = now, now
		stored := *copyCard(*card)
		stored.StagedItems = nil
		st.cards[card.ID] = stored
		return nil
	})
}

func (r memoryCards) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var out *model.Card
	err := r.s.read(func(st *memoryState) error {
		c, ok := st.cards[id]
		if !ok {
			return ErrNotFound
		}
		out = copyCard(c)
		return nil
	})
	return out, err
}

// FindByIDForUpdate needs no extra locking: units are already serialised.
func (r memoryCards) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	return r.FindByID(ctx, id)
}

func (r memoryCards) FindByNumber(ctx context.Context, cardNumber string) (*model.Card, error) {
	var out *model.Card
	err := r.s.read(func(st *memoryState) error {
		for _, c := range st.cards {
			if c.CardNumber == cardNumber {
				out = copyCard(c)
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r memoryCards) FindByHolderRef(ctx context.Context, holderRef string) ([]model.Card, error) {
	var out []model.Card
	err := r.s.read(func(st *memoryState) error {
		for _, c := range st.cards {
			if c.HolderRef == holderRef {
				out = append(out, *copyCard(c))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r memoryCards) UpdateBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error {
	return r.s.write(func(st *memoryState) error {
		c, ok := st.cards[id]
		if !ok {
			return ErrNotFound
		}
		c.Balance = newBalance
		c.UpdatedAt = r.s.db.now()
		st.cards[id] = c
		return nil
	})
}

func (r memoryCards) SaveStagedItem(ctx context.Context, item *model.StagedItem) error {
	return r.s.write(func(st *memoryState) error {
		c, ok := st.cards[item.CardID]
		if !ok {
			return ErrNotFound
		}
		lines := make([]model.StagedItem, 0, len(c.StagedItems)+1)
		replaced := false
		for _, line := range c.StagedItems {
			switch {
			case item.ID != 0 && line.ID == item.ID:
				lines = append(lines, *item)
				replaced = true
			case line.Matches(item.ItemID, item.UnitPrice):
				return ErrDuplicate
			default:
				lines = append(lines, line)
			}
		}
		if !replaced {
			if item.ID == 0 {
				st.nextLine++
				item.ID = st.nextLine
			}
			lines = append(lines, *item)
		}
		c.StagedItems = lines
		st.cards[c.ID] = c
		return nil
	})
}

func (r memoryCards) DeleteStagedItem(ctx context.Context, cardID, itemID uuid.UUID, unitPrice decimal.Decimal) error {
	return r.s.write(func(st *memoryState) error {
		c, ok := st.cards[cardID]
		if !ok {
			return ErrNotFound
		}
		lines := make([]model.StagedItem, 0, len(c.StagedItems))
		for _, line := range c.StagedItems {
			if !line.Matches(itemID, unitPrice) {
				lines = append(lines, line)
			}
		}
		if len(lines) == len(c.StagedItems) {
			return ErrNotFound
		}
		c.StagedItems = lines
		st.cards[cardID] = c
		return nil
	})
}

func (r memoryCards) ClearStagedItems(ctx context.Context, cardID uuid.UUID) error {
	return r.s.write(func(st *memoryState) error {
		c, ok := st.cards[cardID]
		if !ok {
			return nil
		}
		c.StagedItems = nil
		st.cards[cardID] = c
		return nil
	})
}

type memoryEntries struct{ s *MemoryStore }

func (r memoryEntries) Create(ctx context.Context, entry *model.LedgerEntry) error {
	return r.s.write(func(st *memoryState) error {
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = r.s.db.now()
		}
		st.entries = append(st.entries, *entry)
		return nil
	})
}

// Entries are returned newest first by insertion order.
func (r memoryEntries) ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]model.LedgerEntry, error) {
	return r.list(limit, func(e *model.LedgerEntry) bool { return e.CardID == cardID })
}

func (r memoryEntries) ListRecent(ctx context.Context, limit int) ([]model.LedgerEntry, error) {
	return r.list(limit, func(*model.LedgerEntry) bool { return true })
}

func (r memoryEntries) list(limit int, keep func(*model.LedgerEntry) bool) ([]model.LedgerEntry, error) {
	var out []model.LedgerEntry
	err := r.s.read(func(st *memoryState) error {
		for i := len(st.entries) - 1; i >= 0; i-- {
			if limit > 0 && len(out) >= limit {
				break
			}
			if keep(&st.entries[i]) {
				out = append(out, st.entries[i])
			}
		}
		return nil
	})
	return out, err
}

type memoryTopUps struct{ s *MemoryStore }

func (r memoryTopUps) Create(ctx context.Context, req *model.TopUpRequest) error {
	return r.s.write(func(st *memoryState) error {
		if req.ID == uuid.Nil {
			req.ID = uuid.New()
		}
		if _, ok := st.topUps[req.ID]; ok {
			return ErrDuplicate
		}
		if req.Status == "" {
			req.Status = model.TopUpStatusPending
		}
		now := r.s.db.now()
		req.CreatedAt, req.UpdatedAt = now, now
		st.topUps[req.ID] = *req
		return nil
	})
}

func (r memoryTopUps) Update(ctx context.Context, req *model.TopUpRequest) error {
	return r.s.write(func(st *memoryState) error {
		if _, ok := st.topUps[req.ID]; !ok {
			return ErrNotFound
		}
		req.UpdatedAt = r.s.db.now()
		st.topUps[req.ID] = *req
		return nil
	})
}

func (r memoryTopUps) FindByID(ctx context.Context, id uuid.UUID) (*model.TopUpRequest, error) {
	var out *model.TopUpRequest
	err := r.s.read(func(st *memoryState) error {
		req, ok := st.topUps[id]
		if !ok {
			return ErrNotFound
		}
		out = &req
		return nil
	})
	return out, err
}

func (r memoryTopUps) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.TopUpRequest, error) {
	return r.FindByID(ctx, id)
}

func (r memoryTopUps) ListPending(ctx context.Context, limit int) ([]model.TopUpRequest, error) {
	var out []model.TopUpRequest
	err := r.s.read(func(st *memoryState) error {
		for _, req := range st.topUps {
			if req.IsPending() {
				out = append(out, req)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type memoryItems struct{ s *MemoryStore }

func (r memoryItems) Save(ctx context.Context, item *model.Item) error {
	return r.s.write(func(st *memoryState) error {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		now := r.s.db.now()
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		item.UpdatedAt = now
		st.items[item.ID] = *item
		return nil
	})
}

func (r memoryItems) FindByID(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	var out *model.Item
	err := r.s.read(func(st *memoryState) error {
		item, ok := st.items[id]
		if !ok {
			return ErrNotFound
		}
		out = &item
		return nil
	})
	return out, err
}
