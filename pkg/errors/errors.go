package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeMalformed    ErrorType = "malformed"
	ErrorTypeCollaborator ErrorType = "collaborator"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error carries the failing operation and, for file errors, the path involved.
type Error struct {
	Type ErrorType
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Op)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a typed error.
func New(t ErrorType, op string, err error) *Error {
	return &Error{Type: t, Op: op, Err: err}
}

// IO builds an I/O error for path.
func IO(op, path string, err error) *Error {
	return &Error{Type: ErrorTypeIO, Op: op, Path: path, Err: err}
}

// Malformed builds an error for an unparseable persisted file.
func Malformed(op, path string, err error) *Error {
	return &Error{Type: ErrorTypeMalformed, Op: op, Path: path, Err: err}
}

// Collaborator wraps a failure reported by an external collaborator such as a page driver.
func Collaborator(op string, err error) *Error {
	return &Error{Type: ErrorTypeCollaborator, Op: op, Err: err}
}

// TypeOf returns the type of the first *Error in err's chain.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain contains an *Error of type t.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeCollaborator:
		return true
	case ErrorTypeIO, ErrorTypeMalformed, ErrorTypeConfig:
		return false
	default:
		return false
	}
}
