package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation is returned when a request cannot be settled as given
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrConflict is returned when two discounts or requests cannot coexist
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrInsufficientPoints is returned by the ledger when the conditional
// balance decrement matched no row.
type ErrInsufficientPoints struct {
	UserID    int64
	Requested decimal.Decimal
}

func (e *ErrInsufficientPoints) Error() string {
	return fmt.Sprintf("insufficient points for user %d: requested %s", e.UserID, e.Requested.StringFixed(2))
}

// ErrExternalService wraps network, timeout and protocol failures of the
// loyalty and invoice services.
type ErrExternalService struct {
	Service    string
	Operation  string
	StatusCode int
	Err        error
}

func (e *ErrExternalService) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed with status %d: %v", e.Service, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Operation, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}
