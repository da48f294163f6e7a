package api

import "fmt"

// ErrorType represents the category of a platform error.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeProviderError   ErrorType = "provider_error"
	ErrorTypeSessionState    ErrorType = "session_state"
	ErrorTypeToolError       ErrorType = "tool_error"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
)

// AppError represents a structured platform error with type, code, param, and message.
type AppError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an AppError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *AppError `json:"error"`
}

// NewInvalidRequestError creates an AppError for invalid request parameters.
func NewInvalidRequestError(param, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an AppError for resources that cannot be found.
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an AppError for internal server errors.
func NewServerError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewProviderError creates an AppError for failures of the model backend.
func NewProviderError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeProviderError,
		Message: message,
	}
}

// NewSessionStateError creates an AppError for operations invoked in a
// session state that cannot serve them (no project context, chat already
// in flight).
func NewSessionStateError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeSessionState,
		Message: message,
	}
}

// NewToolError creates an AppError for tool dispatch failures.
func NewToolError(toolName, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeToolError,
		Param:   toolName,
		Message: message,
	}
}

// NewTooManyRequestsError creates an AppError for rate limiting.
func NewTooManyRequestsError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}
