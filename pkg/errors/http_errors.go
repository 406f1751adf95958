package errors

import (
	"net/http"
)

// FromError converts a standard error to an AppError
// If the error is, or wraps, an AppError, that error is returned
// Otherwise, it is wrapped as an internal server error
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := As(err); ok {
		return appErr
	}

	return NewInternalServerError("INTERNAL_ERROR", "An unexpected error occurred").Wrap(err)
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetErrorCode extracts the error code from an AppError, returns "UNKNOWN_ERROR" if not an AppError
func GetErrorCode(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// IsPrecondition reports whether err was rejected locally, before any store call
func IsPrecondition(err error) bool {
	for _, target := range []*AppError{ErrInvalidParticipant, ErrEmptyMessage, ErrUnauthorizedSender, ErrNoIdentity} {
		if Is(err, target) {
			return true
		}
	}
	return false
}
