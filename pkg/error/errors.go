package error

import (
	"context"
	"errors"
	"net/http"

	"github.com/fixora/triage/internal/domain"
)

type AppError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest         = &AppError{Code: "BAD_REQUEST", Message: "Bad request", Status: http.StatusBadRequest}
	ErrNotFound           = &AppError{Code: "NOT_FOUND", Message: "Not found", Status: http.StatusNotFound}
	ErrInternalServer     = &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error", Status: http.StatusInternalServerError}
	ErrConflict           = &AppError{Code: "CONFLICT", Message: "Conflict", Status: http.StatusConflict}
	ErrTooManyRequests    = &AppError{Code: "RATE_LIMITED", Message: "Too many requests, try again later", Status: http.StatusTooManyRequests}
	ErrServiceUnavailable = &AppError{Code: "UNAVAILABLE", Message: "Service unavailable", Status: http.StatusServiceUnavailable}
)

func NewBadRequest(message string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: message, Status: http.StatusBadRequest}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, Status: http.StatusNotFound}
}

func NewInternalServer(message string) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, Status: http.StatusInternalServerError}
}

func NewConflict(message string) *AppError {
	return &AppError{Code: "CONFLICT", Message: message, Status: http.StatusConflict}
}

func NewBadGateway(message string) *AppError {
	return &AppError{Code: "FETCH_FAILED", Message: message, Status: http.StatusBadGateway}
}

func NewUnprocessable(message string, details interface{}) *AppError {
	return &AppError{Code: "SCHEMA_MISMATCH", Message: message, Status: http.StatusUnprocessableEntity, Details: details}
}

// SchemaDetails is attached to schema mismatch errors
type SchemaDetails struct {
	Source  string   `json:"source"`
	Missing []string `json:"missing"`
	Columns []string `json:"columns"`
}

func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		return NewBadGateway("Failed to fetch data")
	}

	var schemaErr *domain.SchemaError
	if errors.As(err, &schemaErr) {
		return NewUnprocessable(schemaErr.Error(), SchemaDetails{
			Source:  schemaErr.Source,
			Missing: schemaErr.Missing,
			Columns: schemaErr.Columns,
		})
	}

	switch {
	case errors.Is(err, domain.ErrInvalidDateRange), errors.Is(err, domain.ErrDateOutOfRange):
		return NewBadRequest(err.Error())
	case errors.Is(err, domain.ErrCycleInProgress):
		return NewConflict(err.Error())
	case errors.Is(err, domain.ErrUnknownTable):
		return NewNotFound(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return NewBadGateway("Failed to fetch data")
	default:
		return NewInternalServer("An unexpected error occurred")
	}
}
