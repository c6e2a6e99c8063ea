package service

import (
	"errors"
	"fmt"

	"bizpadi-api/internal/store"
)

// Ledger error taxonomy. Callers match with errors.Is.
var (
	ErrUnauthenticated   = errors.New("authentication required")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient product stock")
	ErrConflict          = errors.New("conflict")
	ErrStoreFailure      = errors.New("store failure")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translateStoreError maps store sentinels onto the ledger taxonomy.
// Errors already in the taxonomy pass through unchanged.
func translateStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrStoreFailure):
		return err
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrNegativeStock):
		return fmt.Errorf("%w: %w", ErrInsufficientStock, err)
	case errors.Is(err, store.ErrInvalidValue):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
}

// failureReason is the metrics label for a ledger error
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "store_failure"
	}
}
