package jsonrpc

import (
	"encoding/json"
	"errors"
	"strings"
)

// Schema validates an untrusted payload. On success it returns the parsed
// value; on failure it returns FieldErrors (possibly wrapped).
//
// The router depends only on this interface. Package schema provides a
// builder-based implementation.
type Schema interface {
	Validate(raw json.RawMessage) (any, error)
}

// SchemaFunc adapts a function to the Schema interface.
type SchemaFunc func(raw json.RawMessage) (any, error)

// Validate implements Schema.
func (f SchemaFunc) Validate(raw json.RawMessage) (any, error) {
	return f(raw)
}

// MethodSchema is the schema pair held per registered method. Result is
// only consulted for requests and may be nil.
type MethodSchema struct {
	Params Schema
	Result Schema
}

// FieldError describes one validation failure.
type FieldError struct {
	// Path is the dotted location of the offending value, relative to the
	// validated payload. Empty for the payload itself.
	Path string `json:"path"`

	// Code is a short machine-readable reason such as "required" or "type".
	Code string `json:"code"`

	Message string `json:"message"`
}

// FieldErrors is the failure value of a Schema. It is sent as the data of
// CodeInvalidParams and result-mismatch CodeInternalError responses.
type FieldErrors []FieldError

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(fe))
	for i, e := range fe {
		if e.Path == "" {
			parts[i] = e.Message
			continue
		}
		parts[i] = e.Path + ": " + e.Message
	}
	return strings.Join(parts, "; ")
}

// fieldErrorsOf extracts diagnostics from a validation failure. Schemas that
// return a plain error still produce a single, non-empty entry.
func fieldErrorsOf(err error) FieldErrors {
	var fe FieldErrors
	if errors.As(err, &fe) && len(fe) > 0 {
		return fe
	}
	return FieldErrors{{Code: "invalid", Message: err.Error()}}
}
