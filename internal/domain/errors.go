package domain

import (
	"fmt"
	"strings"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) *DomainError {
	return &DomainError{Message: message}
}

var (
	ErrInvalidDateRange = NewDomainError("invalid date range: end date is before start date")
	ErrDateOutOfRange   = NewDomainError("invalid date range: dates outside the selectable window")
	ErrCycleInProgress  = NewDomainError("a refresh is already running")
	ErrUnknownTable     = NewDomainError("unknown summary table")
)

// TransportError reports a failed fetch: a network failure or a non-success status
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SchemaError reports required columns absent from a parsed table.
// Columns lists what the source actually had.
type SchemaError struct {
	Source  string
	Missing []string
	Columns []string
}

func (e *SchemaError) Error() string {
	if len(e.Columns) == 0 {
		return fmt.Sprintf("%s: no header row found", e.Source)
	}
	return fmt.Sprintf("%s: required columns %s not found", e.Source, strings.Join(e.Missing, ", "))
}
