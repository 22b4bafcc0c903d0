package common

import (
	"errors"
	"net/http"
)

// AppError carries the wire code and HTTP status a domain failure should be
// rendered with. Services return sentinel errors; handlers wrap them into
// AppErrors and let RenderError produce the envelope.
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
	Details any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError wraps a domain error with its wire code and status.
func NewAppError(status int, code string, err error) *AppError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// RenderError writes the error as the canonical envelope. Anything that is
// not an AppError renders as an opaque 500.
func RenderError(w http.ResponseWriter, err error) {
	var app *AppError
	if !errors.As(err, &app) {
		app = &AppError{
			Code:    "INTERNAL",
			Message: "internal error",
			Status:  http.StatusInternalServerError,
			Err:     err,
		}
	}
	JSONError(w, app.Status, app.Code, app.Message, app.Details)
}
