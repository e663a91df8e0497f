package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item is a purchasable catalog entry. The ledger only reads items.
type Item struct {
	ID           uuid.UUID         `json:"id" gorm:"type:char(36);primaryKey"`
	Name         string            `json:"name" gorm:"size:255;not null"`
	Category     string            `json:"category" gorm:"size:32;index"`
	Price        decimal.Decimal   `json:"price" gorm:"type:decimal(20,2);not null"`
	PriceOptions []decimal.Decimal `json:"price_options,omitempty" gorm:"serializer:json"`
	Available    bool              `json:"available" gorm:"default:true;index"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Prices returns every price the item is currently offered at.
func (i *Item) Prices() []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(i.PriceOptions)+1)
	prices = append(prices, i.Price)
	return append(prices, i.PriceOptions...)
}
