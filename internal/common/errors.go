package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// Rule maps a sentinel error onto an API error code and status.
type Rule struct {
	Target error
	Code   string
	Status int
}

// WriteError renders err using the first matching rule. AppErrors are rendered
// as-is and anything unmatched becomes a 500 without leaking the cause.
func WriteError(w http.ResponseWriter, err error, rules ...Rule) {
	if err == nil {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		message := appErr.Message
		if message == "" {
			message = appErr.Error()
		}
		JSONError(w, status, code, message, appErr.Details)
		return
	}
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			JSONError(w, rule.Status, rule.Code, err.Error(), nil)
			return
		}
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
