package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TopUpStatus represents the status of a top-up request.
type TopUpStatus string

const (
	TopUpStatusPending  TopUpStatus = "pending"
	TopUpStatusApproved TopUpStatus = "approved"
	TopUpStatusRejected TopUpStatus = "rejected"
)

// TopUpRequest is a holder's request to add balance to a card.
// Status moves from pending to approved or rejected exactly once.
type TopUpRequest struct {
	ID          uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	HolderID    uuid.UUID       `json:"holder_id" gorm:"type:char(36);not null;index"`
	CardID      uuid.UUID       `json:"card_id" gorm:"type:char(36);not null;index"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	Status      TopUpStatus     `json:"status" gorm:"type:varchar(16);not null;default:'pending';index"`
	ProcessedBy *uuid.UUID      `json:"processed_by,omitempty" gorm:"type:char(36)"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	Note        string          `json:"note" gorm:"type:text"`
	CreatedAt   time.Time       `json:"requested_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (r *TopUpRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsPending reports whether the request can still be processed.
func (r *TopUpRequest) IsPending() bool {
	return r.Status == TopUpStatusPending
}

// MarkProcessed moves the request to a terminal status.
func (r *TopUpRequest) MarkProcessed(status TopUpStatus, by uuid.UUID, at time.Time, note string) {
	r.Status = status
	r.ProcessedBy = &by
	r.ProcessedAt = &at
	r.Note = note
}
