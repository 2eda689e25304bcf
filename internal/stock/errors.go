package stock

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure. Callers branch on the kind; the message
// is for humans.
type Kind string

// Failure kinds.
const (
	KindNotFound            Kind = "not_found"
	KindInvalidState        Kind = "invalid_state"
	KindItemReserved        Kind = "item_reserved"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindExceedsHeldQuantity Kind = "exceeds_held_quantity"
	KindDuplicateSerial     Kind = "duplicate_serial"
	KindInvalidInput        Kind = "invalid_input"
)

// Error is an expected, caller-recoverable failure of a stock operation.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrItemReserved        = &Error{Kind: KindItemReserved}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock}
	ErrExceedsHeldQuantity = &Error{Kind: KindExceedsHeldQuantity}
	ErrDuplicateSerial     = &Error{Kind: KindDuplicateSerial}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
)

func errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a domain error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
