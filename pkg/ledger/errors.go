package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the ledger service.
var (
	ErrInsufficientCredits      = errors.New("insufficient credits")
	ErrUnknownReservation       = errors.New("unknown reservation")
	ErrReservationWon           = errors.New("reservation won")
	ErrStateNotFound            = errors.New("ledger state not found")
	ErrInvalidListingID         = errors.New("invalid listing id")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrInvalidTransactionType   = errors.New("invalid transaction type")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

// AffordabilityError carries the numbers behind an ErrInsufficientCredits rejection.
type AffordabilityError struct {
	Affordability Affordability
}

// Error returns the formatted error message.
func (affordabilityError AffordabilityError) Error() string {
	return fmt.Sprintf("%v: need %d more credits (available %d)", ErrInsufficientCredits, affordabilityError.Affordability.Deficit, affordabilityError.Affordability.Available)
}

// Unwrap returns ErrInsufficientCredits.
func (affordabilityError AffordabilityError) Unwrap() error {
	return ErrInsufficientCredits
}
