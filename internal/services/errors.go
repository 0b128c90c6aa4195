package services

import (
	"errors"
	"net/http"
)

// Error is a service error carrying the HTTP status it should surface as.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a service error with an explicit status code
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Message: message}
}

func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

// ErrorStatus extracts the HTTP status from an error chain, defaulting to 500
// for anything that is not a service error.
func ErrorStatus(err error) int {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Status
	}
	return http.StatusInternalServerError
}
