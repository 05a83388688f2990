package model

import "fmt"

// Standard error codes.
const (
	ErrConfig    = "CONFIG_ERROR"
	ErrHTTP      = "HTTP_ERROR"
	ErrNotFound  = "NOT_FOUND"
	ErrTransport = "TRANSPORT_ERROR"
)

// Error is the standard error envelope surfaced by the client. It implements
// the error interface. Local validation failures are not Errors; they are
// field-keyed message maps produced by the schema package.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// NewConfigError reports missing or invalid configuration. Raised before any
// network call is attempted.
func NewConfigError(msg string) *Error {
	return &Error{Code: ErrConfig, Message: msg}
}

// NewHTTPError reports a non-success backend response. The message carries
// the status and raw body text.
func NewHTTPError(status int, body string) *Error {
	return &Error{
		Code:    ErrHTTP,
		Message: fmt.Sprintf("HTTP %d: %s", status, body),
		Status:  status,
	}
}

// NewNotFoundError reports a locally-missing entity (unknown form id, etc).
func NewNotFoundError(msg string) *Error {
	return &Error{Code: ErrNotFound, Message: msg}
}

// NewTransportError wraps a network-level failure that produced no response.
func NewTransportError(err error) *Error {
	return &Error{Code: ErrTransport, Message: err.Error()}
}
