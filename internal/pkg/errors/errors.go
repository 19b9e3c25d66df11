// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines application error types shared by the CLI and the
// HTTP API. AppError carries an HTTP status code for the API surface; the CLI
// maps invalid-input errors to exit code 2 and everything else to exit code 1.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransferIncomplete signals that a run finished but one or more units of
// work failed. The work has already been done; only the exit status remains.
var ErrTransferIncomplete = errors.New("one or more transfers failed")

// AppError is an error with an associated HTTP status code and a
// human-readable message.
type AppError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapInvalidInput wraps a validation error (HTTP 400, CLI exit 2).
func WrapInvalidInput(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Message: message, Err: err}
}

// WrapTaskNotFound wraps a missing-task error (HTTP 404).
func WrapTaskNotFound(err error) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Message: "Task not found", Err: err}
}

// WrapInternal wraps an unexpected error (HTTP 500).
func WrapInternal(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Message: message, Err: err}
}

// ExitCode maps an error to a process exit code: 0 for nil, 2 for
// configuration/validation errors, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode == http.StatusBadRequest {
		return 2
	}
	return 1
}
