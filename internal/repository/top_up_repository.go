package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mealcard/internal/model"
)

// TopUpRepository defines top-up request persistence operations.
type TopUpRepository interface {
	Create(ctx context.Context, req *model.TopUpRequest) error
	Update(ctx context.Context, req *model.TopUpRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TopUpRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.TopUpRequest, error)
	ListPending(ctx context.Context, limit int) ([]model.TopUpRequest, error)
}

type topUpRepository struct {
	db *gorm.DB
}

// NewTopUpRepository creates a new top-up request repository.
func NewTopUpRepository(db *gorm.DB) TopUpRepository {
	return &topUpRepository{db: db}
}

// Create creates a new top-up request.
func (r *topUpRepository) Create(ctx context.Context, req *model.TopUpRequest) error {
	return translate(r.db.WithContext(ctx).Create(req).Error)
}

// Update updates an existing top-up request.
func (r *topUpRepository) Update(ctx context.Context, req *model.TopUpRequest) error {
	return r.db.WithContext(ctx).Save(req).Error
}

// FindByID finds a top-up request by ID.
func (r *topUpRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TopUpRequest, error) {
	var req model.TopUpRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// FindByIDForUpdate finds a top-up request by ID with row-level lock for update.
func (r *topUpRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.TopUpRequest, error) {
	var req model.TopUpRequest
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// ListPending lists pending requests, oldest first.
func (r *topUpRepository) ListPending(ctx context.Context, limit int) ([]model.TopUpRequest, error) {
	var reqs []model.TopUpRequest
	if err := r.db.WithContext(ctx).Where("status = ?", model.TopUpStatusPending).
		Order("created_at ASC").Limit(limit).Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}
