package gateway

import (
	"errors"
	"fmt"

	d "github.com/toosale/checkout-service/domain"
)

type ErrorKind string

const (
	// KindNetwork covers transport failures: timeouts, connection errors,
	// 5xx responses. Safe to retry with the same payload.
	KindNetwork ErrorKind = "NETWORK"
	// KindValidation means the backend rejected the payload. Not retryable
	// with the same input.
	KindValidation ErrorKind = "VALIDATION"
	// KindConflict means server-side state moved under us (e.g. cart
	// contents changed). Retryable with fresh data.
	KindConflict ErrorKind = "CONFLICT"
)

// GatewayError is the typed boundary error returned by backend calls. The
// wrapped cause stays internal; Message is safe to show to the user.
type GatewayError struct {
	Kind    ErrorKind
	Message string
	Fields  d.FieldErrors
	cause   error
}

func (e *GatewayError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("gateway %s error: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("gateway %s error: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.cause
}

// Retryable reports whether repeating the call with the same payload can
// succeed.
func (e *GatewayError) Retryable() bool {
	return e.Kind != KindValidation
}

func NewNetworkError(cause error) *GatewayError {
	return &GatewayError{Kind: KindNetwork, Message: "backend unreachable", cause: cause}
}

func NewValidationError(message string, fields d.FieldErrors) *GatewayError {
	if message == "" {
		message = "submitted data was rejected"
	}
	return &GatewayError{Kind: KindValidation, Message: message, Fields: fields}
}

func NewConflictError(message string) *GatewayError {
	if message == "" {
		message = "order data is out of date"
	}
	return &GatewayError{Kind: KindConflict, Message: message}
}

// AsGatewayError unwraps err into a *GatewayError if there is one.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}
