package seed

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mealcard/internal/errors"
	"mealcard/internal/model"
	"mealcard/internal/repository"
	"mealcard/internal/service"
)

const openingBalanceNote = "Opening balance"

// File is the seed document: catalog items and demo cards.
type File struct {
	Items []ItemData `json:"items"`
	Cards []CardData `json:"cards"`
}

// ItemData represents one catalog item in the seed file.
type ItemData struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Price        string   `json:"price"`
	PriceOptions []string `json:"price_options"`
	Available    *bool    `json:"available"`
}

// CardData represents one demo card. Balance is credited as a recharge
// entry when the card is first created.
type CardData struct {
	HolderID  string `json:"holder_id"`
	HolderRef string `json:"holder_ref"`
	Balance   string `json:"balance"`
}

// Result counts what Apply wrote.
type Result struct {
	Items        int
	CardsCreated int
	CardsSkipped int
	Cards        []model.Card
}

// Load reads a seed file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// Apply upserts the items and creates missing cards. Existing cards are
// left untouched.
func Apply(
	ctx context.Context,
	store repository.Store,
	cards service.CardService,
	transactions service.TransactionService,
	f *File,
	log *zap.Logger,
) (*Result, error) {
	res := &Result{}

	for _, data := range f.Items {
		item, err := data.toModel()
		if err != nil {
			return res, err
		}
		if err := store.Items().Save(ctx, item); err != nil {
			return res, fmt.Errorf("save item %q: %w", data.Name, err)
		}
		res.Items++
	}

	for _, data := range f.Cards {
		holderID, err := uuid.Parse(data.HolderID)
		if err != nil {
			return res, fmt.Errorf("card %q: invalid holder_id: %w", data.HolderRef, err)
		}

		card, err := cards.CreateCard(ctx, holderID, data.HolderRef)
		if stderrors.Is(err, errors.ErrCardExists) {
			existing, err := cards.GetCardsByHolder(ctx, data.HolderRef)
			if err != nil {
				return res, err
			}
			log.Info("card exists, skipping", zap.String("holder_ref", data.HolderRef))
			res.CardsSkipped++
			res.Cards = append(res.Cards, existing...)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("card %q: %w", data.HolderRef, err)
		}

		if data.Balance != "" {
			balance, err := decimal.NewFromString(data.Balance)
			if err != nil {
				return res, fmt.Errorf("card %q: invalid balance: %w", data.HolderRef, err)
			}
			if balance.IsPositive() {
				entry, err := transactions.Credit(ctx, card.ID, balance, model.EntryKindRecharge, openingBalanceNote, uuid.Nil)
				if err != nil {
					return res, fmt.Errorf("card %q: opening balance: %w", data.HolderRef, err)
				}
				card.Balance = entry.BalanceAfter
			}
		}
		res.CardsCreated++
		res.Cards = append(res.Cards, *card)
	}

	return res, nil
}

func (d ItemData) toModel() (*model.Item, error) {
	item := &model.Item{Name: d.Name, Category: d.Category, Available: true}
	if d.ID != "" {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return nil, fmt.Errorf("item %q: invalid id: %w", d.Name, err)
		}
		item.ID = id
	}
	if d.Available != nil {
		item.Available = *d.Available
	}

	price, err := parsePrice(d.Price)
	if err != nil {
		return nil, fmt.Errorf("item %q: invalid price: %w", d.Name, err)
	}
	item.Price = price
	for _, p := range d.PriceOptions {
		option, err := parsePrice(p)
		if err != nil {
			return nil, fmt.Errorf("item %q: invalid price option: %w", d.Name, err)
		}
		item.PriceOptions = append(item.PriceOptions, option)
	}
	return item, nil
}

// parsePrice accepts the same values a purchase amount may take.
func parsePrice(s string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !model.ValidAmount(price) {
		return decimal.Zero, fmt.Errorf("%s is not a positive amount with at most %d decimals", s, model.MoneyScale)
	}
	return price, nil
}
