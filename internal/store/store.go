package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"bizpadi-api/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

var (
	// ErrNotFound is returned when a row does not exist for the given owner
	ErrNotFound = errors.New("record not found")
	// ErrNegativeStock is returned when a stock adjustment would drive quantity below zero
	ErrNegativeStock = errors.New("stock adjustment would make quantity negative")
	// ErrTxConflict is returned on serialization failures and deadlocks
	ErrTxConflict = errors.New("transaction conflict")
	// ErrDuplicate is returned when a unique constraint rejects a row
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalidValue is returned when a column check or numeric range rejects a value
	ErrInvalidValue = errors.New("value rejected by database")
)

// SQLSTATE codes the store translates into sentinels
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeCheckViolation       = "23514"
	codeUniqueViolation      = "23505"
	codeNumericOutOfRange    = "22003"
)

// quantityChecks are the CHECK constraints guarding product stock
var quantityChecks = map[string]bool{
	"products_quantity_check": true,
}

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// LedgerTx is the set of row-level operations a ledger transaction may perform.
// Lock* methods take a FOR UPDATE lock that is held until commit or rollback.
type LedgerTx interface {
	LockProduct(ctx context.Context, ownerID, productID string) (*models.Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) error
	InsertSale(ctx context.Context, sale *models.Sale) error
	LockSale(ctx context.Context, ownerID, saleID string) (*models.Sale, error)
	UpdateSale(ctx context.Context, sale *models.Sale) error
	DeleteSale(ctx context.Context, ownerID, saleID string) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProductSales(ctx context.Context, ownerID, productID string) ([]models.Sale, error)
	DeleteProduct(ctx context.Context, ownerID, productID string) error
}

// RunInTx runs fn inside a single database transaction.
// The transaction commits only if fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", translateError(err))
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translateError(err))
	}
	return nil
}

// Tx implements LedgerTx on top of a sqlx transaction
type Tx struct {
	tx *sqlx.Tx
}

// translateError maps driver errors onto store sentinels
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch string(pqErr.Code) {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %s", ErrTxConflict, pqErr.Message)
	case codeCheckViolation:
		if quantityChecks[pqErr.Constraint] {
			return fmt.Errorf("%w: %s", ErrNegativeStock, pqErr.Message)
		}
		return fmt.Errorf("%w: %s", ErrInvalidValue, pqErr.Message)
	case codeNumericOutOfRange:
		return fmt.Errorf("%w: %s", ErrInvalidValue, pqErr.Message)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}
