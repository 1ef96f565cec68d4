package utils

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("access denied")
	ErrConflict         = errors.New("conflict")
)

// AppError carries the HTTP status a handler should answer with.
type AppError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func BadRequest(message string, details ...any) *AppError {
	e := &AppError{Status: http.StatusBadRequest, Message: message}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

func Unauthorized(message string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Message: message, Err: ErrUnauthenticated}
}

func Forbidden(message string) *AppError {
	return &AppError{Status: http.StatusForbidden, Message: message, Err: ErrForbidden}
}

func NotFound(message string) *AppError {
	return &AppError{Status: http.StatusNotFound, Message: message, Err: ErrorRecordNotFound}
}

func Conflict(message string) *AppError {
	return &AppError{Status: http.StatusConflict, Message: message, Err: ErrConflict}
}

func Internal(message string, err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Message: message, Err: err}
}

// AsAppError maps any error onto the taxonomy; unknown errors become 500.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, ErrorRecordNotFound):
		return NotFound("not found")
	case errors.Is(err, ErrForbidden):
		return Forbidden(err.Error())
	case errors.Is(err, ErrUnauthenticated):
		return Unauthorized(err.Error())
	case errors.Is(err, ErrConflict):
		return Conflict(err.Error())
	}
	return Internal("internal server error", err)
}
