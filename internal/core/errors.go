package core

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify with errors.Is; the transport layer maps
// each kind to a status code.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrValidation       = errors.New("validation failed")
)

// Error is a classified domain error carrying a client-safe message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Validationf builds an ErrValidation error with a formatted message.
func Validationf(format string, args ...any) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

var (
	ErrEmailRegistered = newError(ErrConflict, "Email already registered")
	ErrBadCredentials  = newError(ErrUnauthorized, "Incorrect email or password")
	ErrInvalidToken    = newError(ErrUnauthorized, "Invalid authentication credentials")
	ErrTokenExpired    = newError(ErrUnauthorized, "Token has expired")
	ErrMissingToken    = newError(ErrUnauthorized, "Not authenticated")

	ErrUserNotFound      = newError(ErrNotFound, "User not found")
	ErrCategoryNotFound  = newError(ErrNotFound, "Category not found")
	ErrExpenseNotFound   = newError(ErrNotFound, "Expense not found")
	ErrBudgetNotFound    = newError(ErrNotFound, "Budget not found")
	ErrRecurringNotFound = newError(ErrNotFound, "Recurring expense not found")

	ErrDefaultCategory = newError(ErrInvalidOperation, "Cannot delete default categories")
)

// Message returns the client-facing text of err, or fallback when err is
// not a classified domain error.
func Message(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return fallback
}
