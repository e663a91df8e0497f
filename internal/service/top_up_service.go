package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mealcard/internal/auth"
	"mealcard/internal/errors"
	"mealcard/internal/model"
	"mealcard/internal/repository"
)

const (
	noteAutoApproved    = "Auto-approved recharge"
	noteManagerApproved = "manager approved"

	defaultPendingLimit = 100
)

// Decision is an approver's verdict on a pending top-up request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// TopUpOptions configures the approval workflow.
type TopUpOptions struct {
	// AutoApprove credits new requests immediately.
	AutoApprove bool
}

// TopUpResult is the state of a request after an operation, with the
// recharge entry when one was written.
type TopUpResult struct {
	Request *model.TopUpRequest `json:"request"`
	Entry   *model.LedgerEntry  `json:"entry,omitempty"`
}

// TopUpService manages the top-up request lifecycle.
type TopUpService interface {
	RequestTopUp(ctx context.Context, caller auth.Identity, cardID uuid.UUID, amount decimal.Decimal) (*TopUpResult, error)
	ProcessTopUp(ctx context.Context, caller auth.Identity, requestID uuid.UUID, decision Decision, note string) (*TopUpResult, error)
	ListPending(ctx context.Context, limit int) ([]model.TopUpRequest, error)
}

type topUpService struct {
	store        repository.Store
	transactions TransactionService
	units        *unitRunner
	opts         TopUpOptions
	now          func() time.Time
	log          *zap.Logger
}

// NewTopUpService creates a new top-up service.
func NewTopUpService(store repository.Store, transactions TransactionService, unitOpts UnitOptions, opts TopUpOptions, log *zap.Logger) TopUpService {
	units := newUnitRunner(store, unitOpts, log)
	return &topUpService{
		store:        store,
		transactions: transactions,
		units:        units,
		opts:         opts,
		now:          time.Now,
		log:          units.log,
	}
}

// RequestTopUp records a holder's request. With auto-approval the request
// is created approved and credited in the same unit.
func (s *topUpService) RequestTopUp(ctx context.Context, caller auth.Identity, cardID uuid.UUID, amount decimal.Decimal) (*TopUpResult, error) {
	if err := validateAmount(amount); err != nil {
		observe(s.log, "request_top_up", err, zap.Stringer("card_id", cardID))
		return nil, err
	}

	req := &model.TopUpRequest{
		HolderID: caller.AccountID,
		CardID:   cardID,
		Amount:   amount,
		Status:   model.TopUpStatusPending,
	}

	if s.opts.AutoApprove {
		entry, err := s.transactions.Credit(ctx, cardID, amount, model.EntryKindRecharge, noteAutoApproved, caller.AccountID,
			func(ctx context.Context, tx repository.Store) error {
				if err := s.checkRequester(ctx, tx, caller, cardID); err != nil {
					return err
				}
				req.ID = uuid.Nil
				req.MarkProcessed(model.TopUpStatusApproved, caller.AccountID, s.now(), noteAutoApproved)
				if err := tx.TopUps().Create(ctx, req); err != nil {
					return fmt.Errorf("create top-up request: %w", err)
				}
				return nil
			})
		if err != nil {
			return nil, err
		}
		s.log.Info("top-up auto-approved", zap.Stringer("request_id", req.ID), zap.Stringer("card_id", cardID))
		return &TopUpResult{Request: req, Entry: entry}, nil
	}

	err := s.units.run(ctx, "request_top_up", func(ctx context.Context, tx repository.Store) error {
		req.ID = uuid.Nil
		if err := s.checkRequester(ctx, tx, caller, cardID); err != nil {
			return err
		}
		if err := tx.TopUps().Create(ctx, req); err != nil {
			return fmt.Errorf("create top-up request: %w", err)
		}
		return nil
	})
	observe(s.log, "request_top_up", err, zap.Stringer("card_id", cardID), zap.Stringer("request_id", req.ID))
	if err != nil {
		return nil, err
	}
	return &TopUpResult{Request: req}, nil
}

// ProcessTopUp approves or rejects a pending request exactly once.
func (s *topUpService) ProcessTopUp(ctx context.Context, caller auth.Identity, requestID uuid.UUID, decision Decision, note string) (*TopUpResult, error) {
	switch decision {
	case DecisionApprove:
		return s.approve(ctx, caller, requestID, note)
	case DecisionReject:
		return s.reject(ctx, caller, requestID, note)
	default:
		return nil, errors.ErrInvalidDecision
	}
}

func (s *topUpService) approve(ctx context.Context, caller auth.Identity, requestID uuid.UUID, note string) (*TopUpResult, error) {
	// CardID and Amount never change, so they can be read before the unit.
	pending, err := s.store.TopUps().FindByID(ctx, requestID)
	if err != nil {
		return nil, topUpLookupError(err)
	}
	if !pending.IsPending() {
		observe(s.log, "approve_top_up", errors.ErrAlreadyProcessed, zap.Stringer("request_id", requestID))
		return nil, errors.ErrAlreadyProcessed
	}
	if note == "" {
		note = noteManagerApproved
	}

	var req *model.TopUpRequest
	entry, err := s.transactions.Credit(ctx, pending.CardID, pending.Amount, model.EntryKindRecharge, note, caller.AccountID,
		func(ctx context.Context, tx repository.Store) error {
			locked, err := s.lockPending(ctx, tx, requestID)
			if err != nil {
				return err
			}
			locked.MarkProcessed(model.TopUpStatusApproved, caller.AccountID, s.now(), note)
			if err := tx.TopUps().Update(ctx, locked); err != nil {
				return fmt.Errorf("update top-up request: %w", err)
			}
			req = locked
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.log.Info("top-up approved", zap.Stringer("request_id", requestID), zap.Stringer("processed_by", caller.AccountID))
	return &TopUpResult{Request: req, Entry: entry}, nil
}

func (s *topUpService) reject(ctx context.Context, caller auth.Identity, requestID uuid.UUID, note string) (*TopUpResult, error) {
	var req *model.TopUpRequest
	err := s.units.run(ctx, "reject_top_up", func(ctx context.Context, tx repository.Store) error {
		locked, err := s.lockPending(ctx, tx, requestID)
		if err != nil {
			return err
		}
		locked.MarkProcessed(model.TopUpStatusRejected, caller.AccountID, s.now(), note)
		if err := tx.TopUps().Update(ctx, locked); err != nil {
			return fmt.Errorf("update top-up request: %w", err)
		}
		req = locked
		return nil
	})
	observe(s.log, "reject_top_up", err, zap.Stringer("request_id", requestID))
	if err != nil {
		return nil, err
	}
	return &TopUpResult{Request: req}, nil
}

// ListPending returns pending requests, oldest first.
func (s *topUpService) ListPending(ctx context.Context, limit int) ([]model.TopUpRequest, error) {
	reqs, err := s.store.TopUps().ListPending(ctx, clampLimit(limit, defaultPendingLimit))
	if err != nil {
		return nil, errors.Storage(fmt.Errorf("list pending top-ups: %w", err))
	}
	return reqs, nil
}

// checkRequester verifies the card exists and that holders only top up
// their own card.
func (s *topUpService) checkRequester(ctx context.Context, tx repository.Store, caller auth.Identity, cardID uuid.UUID) error {
	card, err := tx.Cards().FindByID(ctx, cardID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.ErrCardNotFound
		}
		return fmt.Errorf("get card: %w", err)
	}
	if caller.Role == auth.RoleHolder && card.HolderID != caller.AccountID {
		return errors.ErrNotCardHolder
	}
	return nil
}

func (s *topUpService) lockPending(ctx context.Context, tx repository.Store, requestID uuid.UUID) (*model.TopUpRequest, error) {
	req, err := tx.TopUps().FindByIDForUpdate(ctx, requestID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.ErrTopUpNotFound
		}
		return nil, fmt.Errorf("lock top-up request: %w", err)
	}
	if !req.IsPending() {
		return nil, errors.ErrAlreadyProcessed
	}
	return req, nil
}

func topUpLookupError(err error) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.ErrTopUpNotFound
	}
	return errors.Storage(fmt.Errorf("get top-up request: %w", err))
}
