package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid email or password",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Permission denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	// ErrInvalidTransition rejects alert status changes that would move a
	// terminal or later status backwards (e.g. reading a dismissed alert).
	ErrInvalidTransition = &AppError{
		Code:       "INVALID_TRANSITION",
		Message:    "Status transition not allowed",
		StatusCode: http.StatusConflict,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// ExternalKind categorises failures of outside collaborators (IMAP, calendar,
// assistant API). They are always recoverable: the owning trigger falls back
// or skips the tick.
type ExternalKind string

const (
	ExternalTimeout     ExternalKind = "timeout"
	ExternalRateLimited ExternalKind = "rate_limited"
	ExternalUnavailable ExternalKind = "unavailable"
)

// ExternalServiceError wraps a failure from an external collaborator.
type ExternalServiceError struct {
	Service string
	Kind    ExternalKind
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Kind)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NewExternal builds an ExternalServiceError for the named service.
func NewExternal(service string, kind ExternalKind, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Kind: kind, Err: err}
}

// IsExternal reports whether err originated from an external collaborator.
func IsExternal(err error) bool {
	var ext *ExternalServiceError
	return errors.As(err, &ext)
}

// MalformedSourceEvent flags a source event missing the identity fields
// required to derive a deterministic source key. Callers drop the event and
// log; it never aborts a batch.
type MalformedSourceEvent struct {
	Reason string
}

func (e *MalformedSourceEvent) Error() string {
	return "malformed source event: " + e.Reason
}

// NewMalformed builds a MalformedSourceEvent error.
func NewMalformed(reason string) *MalformedSourceEvent {
	return &MalformedSourceEvent{Reason: reason}
}

// IsMalformed reports whether err is a MalformedSourceEvent.
func IsMalformed(err error) bool {
	var m *MalformedSourceEvent
	return errors.As(err, &m)
}

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var ext *ExternalServiceError
	if errors.As(err, &ext) {
		return &AppError{
			Code:       "EXTERNAL_SERVICE_ERROR",
			Message:    fmt.Sprintf("%s is unavailable", ext.Service),
			StatusCode: http.StatusBadGateway,
			Internal:   err,
		}
	}

	var malformed *MalformedSourceEvent
	if errors.As(err, &malformed) {
		return &AppError{
			Code:       ErrBadRequest.Code,
			Message:    malformed.Error(),
			StatusCode: http.StatusBadRequest,
			Internal:   err,
		}
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
