package errors

import (
	goerrors "errors"
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the structured JSON error body the HTTP layer returns.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// NewAPIError creates an APIError with the given parameters.
func NewAPIError(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// ErrInternalServer is the fallback for errors with no better mapping.
var ErrInternalServer = NewAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")

// ErrValidation creates a field-level validation error.
func ErrValidation(field, message string) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  "VALIDATION_FAILED",
		Message:    "Request validation failed",
		Details:    map[string]string{"field": field, "message": message},
	}
}

// ToAPIError maps an application error to its HTTP representation.
// Parsing errors become 422 because the request itself was well-formed but
// the uploaded document was not; missing collaborators become 404.
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if goerrors.As(err, &apiErr) {
		return apiErr
	}

	var appErr *AppError
	if goerrors.As(err, &appErr) {
		switch appErr.Type {
		case ErrTypeParsing:
			return &APIError{
				StatusCode: http.StatusUnprocessableEntity,
				ErrorCode:  "UNPROCESSABLE_FILE",
				Message:    appErr.Message,
			}
		case ErrTypeValidation:
			return &APIError{
				StatusCode: http.StatusBadRequest,
				ErrorCode:  "VALIDATION_FAILED",
				Message:    appErr.Message,
			}
		case ErrTypeNotFound:
			return &APIError{
				StatusCode: http.StatusNotFound,
				ErrorCode:  "NOT_FOUND",
				Message:    appErr.Message,
			}
		}
	}
	return ErrInternalServer
}
