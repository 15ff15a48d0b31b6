package domain

import (
	stderrors "errors"
	"fmt"
)

// ErrorKind is the machine-distinguishable class of a domain error.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindConflict          ErrorKind = "conflict"
	KindPersistence       ErrorKind = "persistence"
	KindInternal          ErrorKind = "internal"
)

// Error carries a kind, a human-readable message and an optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Kind sentinels for errors.Is
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrPersistence       = &Error{Kind: KindPersistence}
)

func NewValidationError(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewInsufficientStockError(format string, args ...interface{}) error {
	return &Error{Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Err: err}
}

func NewPersistenceError(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindPersistence, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if stderrors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of a domain error.
func MessageOf(err error) string {
	var de *Error
	if stderrors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return "internal error"
}
