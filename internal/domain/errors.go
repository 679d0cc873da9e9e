package domain

import (
	"errors"
	"fmt"
)

type ErrCode string

const (
	CodeValidation       ErrCode = "validation_error"
	CodeNotFound         ErrCode = "not_found"
	CodeForbidden        ErrCode = "forbidden"
	CodeDuplicate        ErrCode = "duplicate"
	CodeCapacityExceeded ErrCode = "capacity_exceeded"
	CodeStepClosed       ErrCode = "step_closed"
	CodeOwnerNotFound    ErrCode = "owner_not_found"
	CodeTransient        ErrCode = "transient"
)

type AppError struct {
	Code    ErrCode
	Message string
	Meta    map[string]string

	// Err is the underlying cause for transient failures. It is never rendered to clients.
	Err error
}

func (e *AppError) Error() string {
	if len(e.Meta) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Meta)
}

func (e *AppError) Unwrap() error { return e.Err }

func ErrValidation(msg string) error { return &AppError{Code: CodeValidation, Message: msg} }
func ErrValidationMeta(msg string, meta map[string]string) error {
	return &AppError{Code: CodeValidation, Message: msg, Meta: meta}
}
func ErrNotFound(msg string) error         { return &AppError{Code: CodeNotFound, Message: msg} }
func ErrForbidden(msg string) error        { return &AppError{Code: CodeForbidden, Message: msg} }
func ErrDuplicate(msg string) error        { return &AppError{Code: CodeDuplicate, Message: msg} }
func ErrCapacityExceeded(msg string) error { return &AppError{Code: CodeCapacityExceeded, Message: msg} }
func ErrStepClosed(msg string) error       { return &AppError{Code: CodeStepClosed, Message: msg} }
func ErrOwnerNotFound(msg string) error    { return &AppError{Code: CodeOwnerNotFound, Message: msg} }

// ErrTransient marks a store or network failure as retryable.
// Errors that already carry a domain code pass through unchanged.
func ErrTransient(err error) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return err
	}
	return &AppError{Code: CodeTransient, Message: "temporarily unavailable, retry later", Err: err}
}

// CodeOf returns the domain code carried by err, or "" for foreign errors.
func CodeOf(err error) ErrCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func IsCode(err error, code ErrCode) bool { return err != nil && CodeOf(err) == code }

// Retryable reports whether the caller may retry the operation as-is.
func Retryable(err error) bool { return IsCode(err, CodeTransient) }
