package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onedayrun/platform/pkg/api"
)

// HTTPStatusFromError maps an AppError type to the corresponding HTTP
// status code. Transport-level conditions (method not allowed, body too
// large) are handled before a handler ever sees the request.
func HTTPStatusFromError(err *api.AppError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeSessionState:
		return http.StatusConflict
	case api.ErrorTypeProviderError:
		return http.StatusBadGateway
	case api.ErrorTypeServerError, api.ErrorTypeToolError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api.
func WriteErrorResponse(w http.ResponseWriter, appErr *api.AppError, statusCode int) {
	WriteJSON(w, statusCode, api.ErrorResponse{Error: appErr})
}

// WriteError writes an error response, deriving the HTTP status code from
// the error type. Errors that are not AppErrors are wrapped as server
// errors.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *api.AppError
	if !errors.As(err, &appErr) {
		appErr = api.NewServerError(err.Error())
	}
	WriteErrorResponse(w, appErr, HTTPStatusFromError(appErr))
}
