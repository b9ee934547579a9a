// Package apperr holds the error kinds every operation reports.
//
// Callers classify with errors.Is against the sentinels; structured errors
// carry the detail a human-readable message needs and unwrap to their sentinel.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks malformed input: bad enum value, missing field, bad number.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing product, sale, image or actor.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock marks a quantity that exceeds what is on hand.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrForbidden marks an actor without access to the requested store.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict marks a duplicate: username already taken, idempotency key replayed.
	ErrConflict = errors.New("conflict")

	// ErrPersistence marks storage that failed or is unavailable.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError names the kind of resource and the id that was looked up.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NotFound builds a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient quantity for %s. Available: %d, requested: %d",
		e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// Forbidden wraps ErrForbidden with a reason.
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// Conflict wraps ErrConflict with a reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Persistence wraps a storage error. Errors that already carry a kind pass through,
// so a domain error returned from inside a transaction keeps its classification.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != "internal" {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// Kind returns a short, stable name for the error class.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	}
	return "internal"
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "insufficient_stock", "conflict":
		return http.StatusConflict
	case "forbidden":
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// IsClientError returns true if the error is due to the request rather than the system.
func IsClientError(err error) bool {
	return HTTPStatus(err) < http.StatusInternalServerError
}
