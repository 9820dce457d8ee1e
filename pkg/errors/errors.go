package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeFetch   ErrorCode = "FETCH_FAILED"
	ErrCodeParse   ErrorCode = "PARSE_FAILED"
	ErrCodeMap     ErrorCode = "MAP_FAILED"
	ErrCodePublish ErrorCode = "PUBLISH_FAILED"
	ErrCodeConfig  ErrorCode = "CONFIG_INVALID"
)

// FetchKind distinguishes the two ways a status fetch can fail.
type FetchKind string

const (
	FetchKindTransport FetchKind = "transport"
	FetchKindStatus    FetchKind = "status"
)

// AppError represents an application error with code and context
type AppError struct {
	Code    ErrorCode
	Message string
	// Kind is only set for ErrCodeFetch.
	Kind FetchKind
	// StatusCode is the upstream HTTP status for FetchKindStatus errors.
	StatusCode int
	Cause      error
	Context    map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// NewFetchTransportError reports a connection, timeout, or body read failure.
func NewFetchTransportError(err error, url string) *AppError {
	e := WrapError(err, ErrCodeFetch, "status request failed")
	e.Kind = FetchKindTransport
	return e.WithContext("url", url)
}

// NewFetchStatusError reports a response whose status code is not 200.
func NewFetchStatusError(statusCode int, url string) *AppError {
	e := NewAppError(ErrCodeFetch, fmt.Sprintf("unexpected status code %d", statusCode))
	e.Kind = FetchKindStatus
	e.StatusCode = statusCode
	return e.WithContext("url", url)
}

func NewParseError(err error, message string) *AppError {
	return WrapError(err, ErrCodeParse, message)
}

func NewMapError(err error, message string) *AppError {
	return WrapError(err, ErrCodeMap, message)
}

func NewPublishError(err error, message string) *AppError {
	return WrapError(err, ErrCodePublish, message)
}

func NewConfigError(message string) *AppError {
	return NewAppError(ErrCodeConfig, message)
}

func WrapConfigError(err error, message string) *AppError {
	return WrapError(err, ErrCodeConfig, message)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

func IsFetchError(err error) bool   { return HasCode(err, ErrCodeFetch) }
func IsParseError(err error) bool   { return HasCode(err, ErrCodeParse) }
func IsMapError(err error) bool     { return HasCode(err, ErrCodeMap) }
func IsPublishError(err error) bool { return HasCode(err, ErrCodePublish) }
func IsConfigError(err error) bool  { return HasCode(err, ErrCodeConfig) }
