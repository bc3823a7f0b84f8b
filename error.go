package storefront

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies the failures observable at the service interfaces.
type ErrorCode int

const (
	Unknown ErrorCode = iota
	// NotFound means the entity id is absent from the service's store.
	NotFound
	// Underflow means stock or credit would go negative.
	Underflow
	// NetworkError means a peer was unreachable or timed out.
	NetworkError
	// StoreError means the underlying KV store failed.
	StoreError
	// Conflict is reserved for future per-order locking.
	Conflict
)

// Error is the storefront custom error carrying the interface error code.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e Error) Error() string {
	return fmt.Sprintf("error %d: %v", e.Code, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the given code.
func NewError(code ErrorCode, err error) Error {
	return Error{Code: code, Err: err}
}

// Errorf formats a new Error with the given code.
func Errorf(code ErrorCode, format string, args ...any) Error {
	return Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the ErrorCode from err, or Unknown if it carries none.
func CodeOf(err error) ErrorCode {
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// HTTPStatus maps an error to the status code the HTTP surface reports.
// Business-rule failures and transport failures are 400, persistence and
// unclassified failures are 500.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case NotFound, Underflow, NetworkError, Conflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
