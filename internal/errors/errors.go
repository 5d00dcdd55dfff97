package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is the client-facing error taxonomy shared by the BFF and the backend envelope.
type ErrorCode string

const (
	// ErrCodeValidation indicates a malformed request body or parameter.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCodeAuthFailed indicates rejected credentials. Messages never say which part was wrong.
	ErrCodeAuthFailed ErrorCode = "AUTH_FAILED"
	// ErrCodeUnauthorized indicates a missing, invalid or expired session.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeForbidden indicates a valid session without the required permission.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrCodeConfig indicates a required secret or setting is missing.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"
	// ErrCodeServer indicates an unexpected or backend failure.
	ErrCodeServer ErrorCode = "SERVER_ERROR"
	// ErrCodeInvalidToken indicates a session token failed verification.
	// It is internal only and is converted to UNAUTHORIZED before reaching a client.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is safe to show to clients
	Message string
	// Detail carries diagnostic text that is only exposed in development mode
	Detail string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// AuthFailed creates the uniform bad-credentials error.
func AuthFailed() *AppError {
	return New(ErrCodeAuthFailed, "Invalid username or password")
}

// Unauthorized creates a new Unauthorized error.
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

// Forbidden creates a new Forbidden error.
func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

// Config creates a new Config error.
func Config(message string) *AppError {
	return New(ErrCodeConfig, message)
}

// Server creates a new Server error.
func Server(message string) *AppError {
	return New(ErrCodeServer, message)
}

// InvalidToken wraps a token verification failure.
func InvalidToken(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidToken,
		Message: "invalid session token",
		Cause:   cause,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WithDetail returns a copy of e carrying diagnostic detail.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Detail = detail
	return &cp
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsAuthFailed checks if an error is an AuthFailed error.
func IsAuthFailed(err error) bool {
	return isCode(err, ErrCodeAuthFailed)
}

// IsUnauthorized checks if an error is an Unauthorized error.
func IsUnauthorized(err error) bool {
	return isCode(err, ErrCodeUnauthorized)
}

// IsForbidden checks if an error is a Forbidden error.
func IsForbidden(err error) bool {
	return isCode(err, ErrCodeForbidden)
}

// IsConfig checks if an error is a Config error.
func IsConfig(err error) bool {
	return isCode(err, ErrCodeConfig)
}

// IsServer checks if an error is a Server error.
func IsServer(err error) bool {
	return isCode(err, ErrCodeServer)
}

// IsInvalidToken checks if an error is an InvalidToken error.
func IsInvalidToken(err error) bool {
	return isCode(err, ErrCodeInvalidToken)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// IsPublicCode reports whether code may be shown to clients as-is.
func IsPublicCode(code ErrorCode) bool {
	switch code {
	case ErrCodeValidation, ErrCodeAuthFailed, ErrCodeUnauthorized,
		ErrCodeForbidden, ErrCodeConfig, ErrCodeServer:
		return true
	default:
		return false
	}
}
