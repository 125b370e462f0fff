package models

import (
	"errors"
	"fmt"
)

// Error taxonomy. All are input-validation failures; none are retryable.
var (
	ErrInsufficientHistory  = errors.New("insufficient history")
	ErrDivisionByZero       = errors.New("division by zero")
	ErrNumericOverflow      = errors.New("numeric overflow")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingPredecessor   = errors.New("missing predecessor")
	ErrMissingBaselineYear  = errors.New("missing baseline year")
)

// FiscalError identifies the offending year and field of a failure.
// errors.Is matches it against its Kind.
type FiscalError struct {
	Kind   error
	Year   int
	Field  string
	Detail string
}

// NewFiscalError builds a FiscalError. Year 0 means "not year specific".
func NewFiscalError(kind error, year int, field, detail string) *FiscalError {
	return &FiscalError{Kind: kind, Year: year, Field: field, Detail: detail}
}

func (e *FiscalError) Error() string {
	msg := e.Kind.Error()
	if e.Year != 0 {
		msg = fmt.Sprintf("%s: year %d", msg, e.Year)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: field %q", msg, e.Field)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

func (e *FiscalError) Unwrap() error { return e.Kind }

// IsInputError reports whether err is one of the taxonomy failures, i.e. a
// data or configuration problem the caller must fix.
func IsInputError(err error) bool {
	var fe *FiscalError
	return errors.As(err, &fe)
}
