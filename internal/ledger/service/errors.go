package service

import (
	"errors"
	"fmt"
)

// Lookup failures the ledger surfaces to the HTTP layer as 404s.
var (
	ErrOperatorNotFound = errors.New("operator not found")
	ErrVehicleNotFound  = errors.New("vehicle not found")
	ErrRateNotFound     = errors.New("rate not configured for this vehicle type")
	ErrTokenNotFound    = errors.New("token not found")
)

// ErrCounterConflict is returned after the CAS retry budget is exhausted.
// The operation left no partial state; callers may retry it whole.
var ErrCounterConflict = errors.New("token ledger busy for this operator, retry")

// ErrNotAllowed is returned when someone other than the issuing operator or
// an admin tries to mark a token loaded.
var ErrNotAllowed = errors.New("only the issuing operator or an admin may do this")

// ValidationError rejects a request before any transaction begins.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a request validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
