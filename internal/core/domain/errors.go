package domain

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrNotFound               ErrorType = "NOT_FOUND"
	ErrInvalidRequest         ErrorType = "INVALID_REQUEST"
	ErrInvalidAmount          ErrorType = "INVALID_AMOUNT"
	ErrInvalidState           ErrorType = "INVALID_STATE"
	ErrInsufficientFunds      ErrorType = "INSUFFICIENT_FUNDS"
	ErrInvalidHoldState       ErrorType = "INVALID_HOLD_STATE"
	ErrKeyConflict            ErrorType = "KEY_CONFLICT"
	ErrWalletExists           ErrorType = "WALLET_EXISTS"
	ErrRefundExceeded         ErrorType = "REFUND_AMOUNT_EXCEEDED"
	ErrConcurrentModification ErrorType = "CONCURRENT_MODIFICATION"
	ErrTransferFailed         ErrorType = "TRANSFER_FAILED"
	ErrInternal               ErrorType = "INTERNAL_ERROR"
)

// Error is the structured failure every business operation surfaces.
// Type drives the transport mapping, Op names the failing operation.
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s -> %v", e.Type, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Type, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(t ErrorType, op, message string) *Error {
	return &Error{Type: t, Op: op, Message: message}
}

func NewNotFound(op, resource string) *Error {
	return &Error{Type: ErrNotFound, Op: op, Message: resource + " not found"}
}

func NewInvalidRequest(op, message string) *Error {
	return &Error{Type: ErrInvalidRequest, Op: op, Message: message}
}

func NewInvalidAmount(op string) *Error {
	return &Error{Type: ErrInvalidAmount, Op: op, Message: "amount must be positive"}
}

func NewInvalidState(op, message string) *Error {
	return &Error{Type: ErrInvalidState, Op: op, Message: message}
}

func NewInsufficientFunds(op, available string) *Error {
	return &Error{Type: ErrInsufficientFunds, Op: op, Message: "insufficient funds, available: " + available}
}

func NewInvalidHoldState(op, message string) *Error {
	return &Error{Type: ErrInvalidHoldState, Op: op, Message: message}
}

func NewKeyConflict(op, message string) *Error {
	return &Error{Type: ErrKeyConflict, Op: op, Message: message}
}

func NewWalletExists(op, userID string, currency Currency) *Error {
	return &Error{Type: ErrWalletExists, Op: op,
		Message: fmt.Sprintf("wallet already exists for user %s in %s", userID, currency)}
}

func NewRefundExceeded(op, refundable string) *Error {
	return &Error{Type: ErrRefundExceeded, Op: op, Message: "refund amount exceeds refundable: " + refundable}
}

func NewConcurrentModification(op string) *Error {
	return &Error{Type: ErrConcurrentModification, Op: op, Message: "record was modified concurrently, retry"}
}

func NewTransferFailed(op string, cause error) *Error {
	return &Error{Type: ErrTransferFailed, Op: op, Message: "transfer failed", Err: cause}
}

func NewInternal(op string, err error) *Error {
	return &Error{Type: ErrInternal, Op: op, Message: "internal error", Err: err}
}

// IsType reports whether err is a domain Error of the given type.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

func IsNotFound(err error) bool { return IsType(err, ErrNotFound) }
