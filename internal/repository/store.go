package repository

import (
	"context"
	"errors"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a transaction lost a race and may be retried.
	ErrConflict = errors.New("transaction conflict")
)

// Store groups the ledger repositories behind one atomic commit boundary.
type Store interface {
	Cards() CardRepository
	Entries() LedgerEntryRepository
	TopUps() TopUpRepository
	Items() ItemRepository
	// WithTransaction runs fn as one atomic unit. The Store passed to fn is
	// bound to the unit; returning an error rolls every write back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a GORM-backed store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Cards() CardRepository          { return NewCardRepository(s.db) }
func (s *gormStore) Entries() LedgerEntryRepository { return NewLedgerEntryRepository(s.db) }
func (s *gormStore) TopUps() TopUpRepository        { return NewTopUpRepository(s.db) }
func (s *gormStore) Items() ItemRepository          { return NewItemRepository(s.db) }

// WithTransaction executes a function within a database transaction.
func (s *gormStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormStore{db: tx})
	})
}

// IsRetryable reports whether err is a transient conflict worth retrying:
// MySQL deadlock (1213) or lock wait timeout (1205), PostgreSQL
// serialization failure (40001) or deadlock (40P01).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
