package http

import (
	"encoding/json"
	"net/http"

	apperror "github.com/fixora/triage/pkg/error"
)

// Envelope is the JSON shape of every API response
type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(envelope)
}

func writeSuccessResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	writeJSON(w, statusCode, Envelope{Status: true, Message: message, Data: data})
}

func writeErrorResponse(w http.ResponseWriter, appErr *apperror.AppError) {
	writeJSON(w, appErr.Status, Envelope{
		Status:  false,
		Message: appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}
