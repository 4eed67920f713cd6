package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how the session should react to it
type Kind string

const (
	// KindAuth means the remote rejected the credential. Fatal to the session.
	KindAuth Kind = "auth"
	// KindNetwork means the channel could not be opened
	KindNetwork Kind = "network"
	// KindTransport means the channel failed or was closed while in use
	KindTransport Kind = "transport"
	// KindTimeout means a single request went unanswered within its window
	KindTimeout Kind = "timeout"
	// KindRequest means the server reported an application failure
	KindRequest Kind = "request"
	// KindNotFound means a local lookup failed
	KindNotFound Kind = "not_found"
	// KindInvalid means the caller supplied bad input
	KindInvalid Kind = "invalid"
	// KindState means the operation is not allowed in the current session state
	KindState Kind = "state"
	// KindCanceled means the caller abandoned the operation
	KindCanceled Kind = "canceled"
	// KindRateLimited means a local limiter refused the call
	KindRateLimited Kind = "rate_limited"
	// KindInternal is anything else
	KindInternal Kind = "internal"
)

// AppError represents a chat client error with a kind, a stable code and a message
type AppError struct {
	Kind       Kind   `json:"-"`
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Err        error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches by code when the target carries one, by kind otherwise.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return e.Kind == t.Kind
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Wrap attaches the underlying cause
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// Sentinels for errors.Is checks by kind
var (
	ErrAuth      = &AppError{Kind: KindAuth}
	ErrNetwork   = &AppError{Kind: KindNetwork}
	ErrTransport = &AppError{Kind: KindTransport}
	ErrTimeout   = &AppError{Kind: KindTimeout}
	ErrRequest   = &AppError{Kind: KindRequest}
	ErrNotFound  = &AppError{Kind: KindNotFound}
	ErrInvalid   = &AppError{Kind: KindInvalid}
	ErrState     = &AppError{Kind: KindState}
	ErrCanceled  = &AppError{Kind: KindCanceled}
	ErrRateLimit = &AppError{Kind: KindRateLimited}
)

// NewError creates a new application error
func NewError(kind Kind, code string, message string) *AppError {
	return &AppError{
		Kind:       kind,
		StatusCode: statusFor(kind),
		Code:       code,
		Message:    message,
	}
}

// NewAuthError creates an error for a rejected credential
func NewAuthError(code string, message string) *AppError {
	return NewError(KindAuth, code, message)
}

// NewNetworkError creates an error for a channel that could not be opened
func NewNetworkError(code string, message string, err error) *AppError {
	return NewError(KindNetwork, code, message).Wrap(err)
}

// NewTransportError creates an error for a channel failure during use
func NewTransportError(code string, message string) *AppError {
	return NewError(KindTransport, code, message)
}

// NewTimeoutError creates an error for an unanswered request
func NewTimeoutError(code string, message string) *AppError {
	return NewError(KindTimeout, code, message)
}

// NewRequestError creates an error for a server-reported failure
func NewRequestError(code string, message string) *AppError {
	return NewError(KindRequest, code, message)
}

// NewNotFoundError creates a lookup failure
func NewNotFoundError(code string, message string) *AppError {
	return NewError(KindNotFound, code, message)
}

// NewBadRequestError creates an input validation failure
func NewBadRequestError(code string, message string) *AppError {
	return NewError(KindInvalid, code, message)
}

// NewStateError creates an error for an operation issued in the wrong session state
func NewStateError(code string, message string) *AppError {
	return NewError(KindState, code, message)
}

// NewCanceledError creates an error for an abandoned operation
func NewCanceledError(code string, message string) *AppError {
	return NewError(KindCanceled, code, message)
}

// NewRateLimitError creates an error for a call refused by a limiter
func NewRateLimitError(code string, message string) *AppError {
	return NewError(KindRateLimited, code, message)
}

// NewInternalError creates an unclassified error
func NewInternalError(code string, message string) *AppError {
	return NewError(KindInternal, code, message)
}

// Is reports whether err matches target, following wrapped errors
func Is(err error, target *AppError) bool {
	return stderrors.Is(err, target)
}

// As is errors.As for callers that import this package under its short name
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Recoverable reports whether the session stays usable after err
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindRequest, KindNotFound, KindInvalid, KindState, KindCanceled, KindRateLimited:
		return true
	}
	return false
}

func statusFor(kind Kind) int {
	switch kind {
	case KindAuth:
		return http.StatusUnauthorized
	case KindNetwork, KindTransport:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindRequest:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalid:
		return http.StatusBadRequest
	case KindState:
		return http.StatusConflict
	case KindCanceled:
		return http.StatusRequestTimeout
	case KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
