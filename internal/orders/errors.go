package orders

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrAuthorization     = errors.New("authorization denied")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrContention        = errors.New("contention")
	ErrInconsistent      = errors.New("inconsistent state")
)

// Error carries the kind of failure, where it came from and a reason a
// client can read. Err is the underlying cause, if any.
type Error struct {
	Kind   error
	Source string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil && !errors.Is(e.Kind, e.Err) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NotFound(what string, id any) error {
	return &Error{Kind: ErrNotFound, Source: what, Reason: fmt.Sprintf("id=%v", id)}
}

func Validation(source, reason string) error {
	return &Error{Kind: ErrValidation, Source: source, Reason: reason}
}

// Rejection wraps a cause as a validation failure of source, keeping the
// cause visible to errors.Is.
func Rejection(source, reason string, cause error) error {
	return &Error{Kind: ErrValidation, Source: source, Reason: reason, Err: cause}
}

func Denied(source, reason string) error {
	return &Error{Kind: ErrAuthorization, Source: source, Reason: reason}
}

func InsufficientStock(productID int64, want, have int) error {
	return &Error{
		Kind:   ErrInsufficientStock,
		Source: "inventory",
		Reason: fmt.Sprintf("product %d: requested %d, available %d", productID, want, have),
	}
}

func InsufficientFunds(reason string, cause error) error {
	return &Error{Kind: ErrInsufficientFunds, Source: "payment", Reason: reason, Err: cause}
}

func Contention(source string, cause error) error {
	return &Error{Kind: ErrContention, Source: source, Reason: "lock wait timed out", Err: cause}
}

func Inconsistent(reason string, cause error) error {
	return &Error{Kind: ErrInconsistent, Source: "lifecycle", Reason: reason, Err: cause}
}

// Reason returns the client-visible reason of a domain error, or the
// plain error text otherwise.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return err.Error()
}

// Retryable reports whether the whole request may be attempted again.
func Retryable(err error) bool {
	return errors.Is(err, ErrContention)
}
