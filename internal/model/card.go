package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CardStatus represents the administrative status of a card.
type CardStatus string

const (
	CardStatusActive  CardStatus = "active"
	CardStatusBlocked CardStatus = "blocked"
	CardStatusLost    CardStatus = "lost"
)

// Card represents a stored-value card issued to one holder.
type Card struct {
	ID         uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	CardNumber string          `json:"card_number" gorm:"size:16;not null;uniqueIndex"`
	HolderID   uuid.UUID       `json:"holder_id" gorm:"type:char(36);not null;index"`
	HolderRef  string          `json:"holder_ref" gorm:"size:64;not null;uniqueIndex"` // one card per holder
	Balance    decimal.Decimal `json:"balance" gorm:"type:decimal(20,2);not null;default:0"`
	Status     CardStatus      `json:"status" gorm:"type:varchar(16);not null;default:'active';index"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`

	// Relations
	StagedItems []StagedItem `json:"staged_items" gorm:"foreignKey:CardID"`
}

// BeforeCreate sets UUID before creating the record.
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the card can be debited or have its selection changed.
func (c *Card) IsActive() bool {
	return c.Status == CardStatusActive
}

// SelectionTotal returns the sum of unit price times quantity over the staged lines.
func (c *Card) SelectionTotal() decimal.Decimal {
	return SelectionTotal(c.StagedItems)
}

// StagedItem is one line of a card's staged selection. Lines are keyed by
// (item, unit price), so one item staged at two prices is two lines.
type StagedItem struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	CardID    uuid.UUID       `json:"-" gorm:"type:char(36);not null;uniqueIndex:idx_staged_line"`
	ItemID    uuid.UUID       `json:"item_id" gorm:"type:char(36);not null;uniqueIndex:idx_staged_line"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(20,2);not null;uniqueIndex:idx_staged_line"`
	Quantity  int             `json:"quantity" gorm:"not null;default:1"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`
}

// Matches reports whether the line is keyed by itemID at unitPrice.
func (s *StagedItem) Matches(itemID uuid.UUID, unitPrice decimal.Decimal) bool {
	return s.ItemID == itemID && s.UnitPrice.Equal(unitPrice)
}

// LineTotal returns unit price times quantity.
func (s *StagedItem) LineTotal() decimal.Decimal {
	return s.UnitPrice.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

// SelectionTotal sums the line totals of items.
func SelectionTotal(items []StagedItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].LineTotal())
	}
	return total
}
