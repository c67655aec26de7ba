package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"charteye/pkg/charteye"
)

// ErrorResponse is the failure envelope of every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type errorMessageSetter interface {
	SetErrorMessage(message string)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeErrorBody(w, status, ErrorResponse{Error: message})
}

func writeErrorBody(w http.ResponseWriter, status int, body ErrorResponse) {
	if setter, ok := w.(errorMessageSetter); ok {
		setter.SetErrorMessage(body.Error)
	}
	writeJSON(w, status, body)
}

// writeErrorResponse maps a core error onto the failure envelope.
func writeErrorResponse(w http.ResponseWriter, err error) {
	var coreErr *charteye.Error
	if !errors.As(err, &coreErr) {
		writeErrorBody(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Message: err.Error()})
		return
	}

	status := mapErrorCodeToHTTPStatus(coreErr.Code)
	body := ErrorResponse{Error: coreErr.Message}
	switch coreErr.Code {
	case charteye.ErrCodeLimitExceeded:
		body = ErrorResponse{Error: "Upload limit reached", Message: coreErr.Message}
	case charteye.ErrCodeDatabase, charteye.ErrCodeStorage, charteye.ErrCodePayment, charteye.ErrCodeInternal:
		if coreErr.Err != nil {
			body.Message = coreErr.Err.Error()
		}
	}
	writeErrorBody(w, status, body)
}

// mapErrorCodeToHTTPStatus maps business error codes to HTTP status codes.
func mapErrorCodeToHTTPStatus(code charteye.ErrorCode) int {
	switch code {
	case charteye.ErrCodeInvalidInput, charteye.ErrCodeValidation:
		return http.StatusBadRequest
	case charteye.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case charteye.ErrCodeLimitExceeded:
		return http.StatusForbidden
	case charteye.ErrCodeNotFound:
		return http.StatusNotFound
	case charteye.ErrCodeDuplicate:
		return http.StatusConflict
	case charteye.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
