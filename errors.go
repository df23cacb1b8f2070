package jsonrpc

import (
	"errors"
	"fmt"
)

// Error codes carried by Error. The -32768 to -32000 range is reserved by
// JSON-RPC 2.0; application errors may use any other value.
const (
	CodeParseError       = -32700 // Malformed envelope or invalid JSON
	CodeInvalidRequest   = -32600 // Reserved; malformed envelopes report CodeParseError
	CodeMethodNotFound   = -32601 // No registration for (namespace, method)
	CodeInvalidParams    = -32602 // Params failed schema validation
	CodeInternalError    = -32603 // Handler fault or result schema mismatch
	CodeServerBusy       = -32000 // Rate limit exceeded
	CodeRequestTimeout   = -32001 // Handler exceeded the configured timeout
	CodeRequestCancelled = -32800 // Request cancelled by the caller
)

// Configuration errors. Registration returns these wrapped with the
// offending namespace and method; match with errors.Is.
var (
	// ErrDuplicateMethod is returned when a schema is already registered for
	// the (namespace, method) pair.
	ErrDuplicateMethod = errors.New("duplicate method")

	// ErrDuplicateHandler is returned when a handler is already bound to the
	// (namespace, method) pair.
	ErrDuplicateHandler = errors.New("duplicate handler")

	// ErrUnboundSchema is returned when binding a handler for a method that
	// has no registered schema.
	ErrUnboundSchema = errors.New("no schema registered for method")

	// ErrAmbiguousDiscriminator is returned when two members of a union claim
	// the same method.
	ErrAmbiguousDiscriminator = errors.New("ambiguous discriminator")

	// ErrInvalidRegistration is returned for an empty method name, a nil
	// schema or a nil handler.
	ErrInvalidRegistration = errors.New("invalid registration")

	// ErrNotFound is returned by lookups that miss.
	ErrNotFound = errors.New("method not found")
)

// Error is the error object of a response. Handlers return *Error to choose
// the code, message and data sent to the caller; any other error becomes
// CodeInternalError.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewError creates an Error with optional diagnostic data.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// Errorf creates an Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// toError translates a handler failure into a response error. An *Error
// anywhere in the chain is preserved as is.
func toError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) && rpcErr != nil {
		return rpcErr
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}
