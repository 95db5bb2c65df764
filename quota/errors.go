/*
errors.go - Error types for the quota engine

PURPOSE:
  The engine itself never fails: Calculate is total over validated input.
  Errors exist only for input rejection (user-correctable) and for malformed
  table metadata.

ERROR CATEGORIES:
  1. Input rejection - ValidationError, unwraps to ErrInvalidInput
  2. Table errors    - ErrInvalidTable, returned while loading tables

An unavailable reduced-credit path is NOT an error. It is a nil Path.

SEE ALSO:
  - validate.go: produces ValidationError
*/
package quota

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is the parent of every ValidationError.
	ErrInvalidInput = errors.New("invalid simulation input")

	// ErrInvalidTable is returned when table metadata is malformed.
	ErrInvalidTable = errors.New("invalid table")
)

// Validation codes. Stable strings, safe to expose to clients.
const (
	CodeEmbeddedBidExceedsMax   = "embedded_bid_exceeds_max"
	CodeNonPositiveCredit       = "non_positive_credit"
	CodeNegativeNetCredit       = "negative_net_credit"
	CodeBidNotBelowCredit       = "bid_not_below_credit"
	CodeInvalidTerm             = "invalid_term"
	CodeContemplationOutOfRange = "contemplation_out_of_range"
	CodeInvalidAllocation       = "invalid_allocation"
	CodeNegativeBid             = "negative_bid"
	CodeInvalidAdhesionRate     = "invalid_adhesion_rate"
	CodeTableMismatch           = "table_mismatch"
)

// ValidationError carries a human-readable reason for rejecting an input.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func reject(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidTable)
}
