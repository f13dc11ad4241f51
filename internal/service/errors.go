package service

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; the message of *Error is safe to show clients.
var (
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
)

type Error struct {
	Kind    error
	Message string
	// Code is an optional machine-readable hint for clients.
	Code string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error     { return newError(ErrConflict, format, args...) }
func unauthorized(format string, args ...any) error { return newError(ErrUnauthorized, format, args...) }
func badRequest(format string, args ...any) error   { return newError(ErrBadRequest, format, args...) }
func notFound(format string, args ...any) error     { return newError(ErrNotFound, format, args...) }

const (
	msgInvalidCredentials = "Invalid credentials"
	msgAccountLocked      = "Account is temporarily locked due to too many failed login attempts. Please try again later."
	msgResetRequested     = "If an account exists for this email, a password reset link has been sent."
	msgLastSuperAdmin     = "Cannot remove the last active super administrator"
)

// CodePasswordChangeRequired marks logins blocked until the password is changed.
const CodePasswordChangeRequired = "password_change_required"
