package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agentgate/agentgate/internal/apperrors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindValidation:      http.StatusBadRequest,
	apperrors.KindNotFound:        http.StatusNotFound,
	apperrors.KindConflict:        http.StatusConflict,
	apperrors.KindUnauthenticated: http.StatusUnauthorized,
	apperrors.KindForbidden:       http.StatusForbidden,
	apperrors.KindThrottled:       http.StatusTooManyRequests,
	apperrors.KindDelivery:        http.StatusBadGateway,
	apperrors.KindInternal:        http.StatusInternalServerError,
}

// WriteAppError maps an application error onto the HTTP response. Throttled
// errors carry a Retry-After header.
func WriteAppError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if kind == apperrors.KindThrottled {
		if retry := apperrors.RetryAfterOf(err); retry > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retry.Seconds())))
		}
	}

	message := err.Error()
	if kind == apperrors.KindInternal {
		message = "internal server error"
	}
	WriteError(w, status, message)
}

// WriteError writes a plain error response
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// WriteSuccess writes a success response
func WriteSuccess(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}
