package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes surfaced by this service. Callers
// classify with errors.Is and map each class to a distinct outward signal.
var (
	// ErrNotFound covers unknown users, products, and orders.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a state transition guard failed because another
	// trigger already moved the order. Never retried.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock means a debit would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrBadSignature means a payment callback failed authentication.
	ErrBadSignature = errors.New("invalid signature")
	// ErrValidation covers bad or missing request fields.
	ErrValidation = errors.New("validation failed")
)

// UnavailableError names the product whose stock cannot cover a request.
type UnavailableError struct {
	ProductID string
	Requested int64
	Available int64
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("product %s unavailable: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *UnavailableError) Unwrap() error { return ErrInsufficientStock }
