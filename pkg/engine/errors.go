package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for session control flow.
type ErrorClass string

const (
	// ErrorClassAuthentication indicates the API credential was rejected.
	// It aborts the whole session.
	ErrorClassAuthentication ErrorClass = "authentication"

	// ErrorClassContract indicates the API answered with neither the expected
	// field nor an error. The session continues in a degraded form.
	ErrorClassContract ErrorClass = "contract"

	// ErrorClassRemote indicates the request reached the API (or failed in
	// transport) but the kit operation itself failed, e.g. bad request or not found.
	ErrorClassRemote ErrorClass = "remote"

	// ErrorClassValidation indicates malformed user input. Surfaces default
	// such input instead of returning it.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassInternal indicates a broken invariant inside the engine, such as
	// a handler receiving a result of the wrong shape.
	ErrorClassInternal ErrorClass = "internal"
)

// ErrInputClosed is returned by a Surface when no more user input can be read.
// The dispatcher treats it as a request to terminate the session.
var ErrInputClosed = errors.New("input closed")

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification used by the dispatcher.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message. For remote errors it embeds
	// the HTTP status code, e.g. "404 Not Found".
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Status is the HTTP status code of the response, if any.
	Status int `json:"status,omitempty"`

	// Resource is the kit ID that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Resource != "" && e.Operation != "":
		msg += fmt.Sprintf(" (resource=%s, operation=%s)", e.Resource, e.Operation)
	case e.Resource != "":
		msg += fmt.Sprintf(" (resource=%s)", e.Resource)
	case e.Operation != "":
		msg += fmt.Sprintf(" (operation=%s)", e.Operation)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewAuthenticationError creates a new authentication error.
func NewAuthenticationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassAuthentication,
		Message: message,
		Code:    ErrCodeUnauthorized,
		Err:     err,
	}
}

// NewContractError creates a new contract violation error.
func NewContractError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassContract,
		Message: message,
		Code:    ErrCodeMissingField,
		Err:     err,
	}
}

// NewRemoteError creates a new per-request remote error. A zero status means
// the request never produced a response.
func NewRemoteError(status int, message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassRemote,
		Message: message,
		Status:  status,
		Code:    codeForStatus(status),
		Err:     err,
	}
}

// NewValidationError creates a new input validation error.
func NewValidationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassValidation,
		Message: message,
		Code:    ErrCodeValidation,
		Err:     err,
	}
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassInternal,
		Message: message,
		Code:    ErrCodeInternal,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resourceID string) *EngineError {
	e.Resource = resourceID
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ClassOf returns the class of err, or an empty class if err is not an EngineError.
func ClassOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsAuthentication returns true if the error is classified as an authentication failure.
func IsAuthentication(err error) bool {
	return ClassOf(err) == ErrorClassAuthentication
}

// IsContract returns true if the error is classified as a contract violation.
func IsContract(err error) bool {
	return ClassOf(err) == ErrorClassContract
}

// IsRemote returns true if the error is classified as a per-request remote error.
func IsRemote(err error) bool {
	return ClassOf(err) == ErrorClassRemote
}

// IsInternal returns true if the error is classified as internal.
func IsInternal(err error) bool {
	return ClassOf(err) == ErrorClassInternal
}

// Message returns the user-facing message of err: the EngineError message when
// there is one, otherwise err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *EngineError
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

func codeForStatus(status int) string {
	switch {
	case status == 0:
		return ErrCodeTransport
	case status == 400:
		return ErrCodeBadRequest
	case status == 404:
		return ErrCodeNotFound
	case status == 429:
		return ErrCodeRateLimited
	case status >= 500:
		return ErrCodeServer
	default:
		return ErrCodeRequestFailed
	}
}

// Common error codes.
const (
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeMissingField   = "MISSING_FIELD"
	ErrCodeMalformed      = "MALFORMED_RESPONSE"
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeServer         = "SERVER_ERROR"
	ErrCodeRequestFailed  = "REQUEST_FAILED"
	ErrCodeTransport      = "TRANSPORT"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeUnexpectedType = "UNEXPECTED_RESULT"
)
