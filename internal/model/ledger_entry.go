package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EntryKind is the type of balance operation an entry records.
type EntryKind string

const (
	EntryKindRecharge EntryKind = "recharge"
	EntryKindPurchase EntryKind = "purchase"
	EntryKindRefund   EntryKind = "refund"
)

// IsCredit reports whether the kind increases the balance.
func (k EntryKind) IsCredit() bool {
	return k == EntryKindRecharge || k == EntryKindRefund
}

// EntryOutcome is the result of the attempted operation.
type EntryOutcome string

const (
	EntryOutcomeSuccess EntryOutcome = "success"
	EntryOutcomeFailed  EntryOutcome = "failed"
	EntryOutcomePending EntryOutcome = "pending"
)

// ErrImmutableEntry is returned by the update and delete hooks of LedgerEntry.
var ErrImmutableEntry = errors.New("ledger entries are immutable")

// LedgerEntry is an immutable audit record of one balance-affecting attempt.
// A failed entry has BalanceBefore == BalanceAfter.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	CardID        uuid.UUID       `json:"card_id" gorm:"type:char(36);not null;index:idx_entry_card_created,priority:1"`
	Kind          EntryKind       `json:"kind" gorm:"type:varchar(16);not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	Outcome       EntryOutcome    `json:"outcome" gorm:"type:varchar(16);not null;index"`
	BalanceBefore decimal.Decimal `json:"balance_before" gorm:"type:decimal(20,2);not null"`
	BalanceAfter  decimal.Decimal `json:"balance_after" gorm:"type:decimal(20,2);not null"`
	Actor         uuid.UUID       `json:"actor" gorm:"type:char(36);not null;index"`
	Note          string          `json:"note" gorm:"type:text"`
	CreatedAt     time.Time       `json:"created_at" gorm:"index:idx_entry_card_created,priority:2;index"`
}

// BeforeCreate sets UUID before creating the record.
func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// BeforeUpdate refuses any update.
func (e *LedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableEntry
}

// BeforeDelete refuses any delete.
func (e *LedgerEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableEntry
}
