// Package schema builds validators for JSON payloads. Schemas implement
// jsonrpc.Schema and report every failure as a jsonrpc.FieldError with a
// dotted path, so callers get all problems at once rather than the first.
//
// Object schemas are declared with field constructors:
//
//	getWeather := schema.Object(
//	    schema.String("city", schema.MinLength(1)),
//	    schema.Integer("days", schema.Optional(), schema.Minimum(1)),
//	)
//
// Unknown keys are accepted unless the object is Strict. Fields are required
// unless marked Optional.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bjaus/jsonrpc"
	"github.com/tidwall/gjson"
)

// check validates one value found at path.
type check func(path string, v gjson.Result) jsonrpc.FieldErrors

// Field is one property of an object schema.
type Field struct {
	name     string
	kind     string
	literal  string
	optional bool
	checks   []check
}

// FieldOption configures a Field.
type FieldOption func(*Field)

// Optional allows the field to be absent. A present null is still checked.
func Optional() FieldOption {
	return func(f *Field) { f.optional = true }
}

// MinLength requires a string of at least n characters.
func MinLength(n int) FieldOption {
	return func(f *Field) {
		f.checks = append(f.checks, func(path string, v gjson.Result) jsonrpc.FieldErrors {
			if len([]rune(v.Str)) < n {
				return fail(path, "min_length", "must be at least %d characters", n)
			}
			return nil
		})
	}
}

// MaxLength requires a string of at most n characters.
func MaxLength(n int) FieldOption {
	return func(f *Field) {
		f.checks = append(f.checks, func(path string, v gjson.Result) jsonrpc.FieldErrors {
			if len([]rune(v.Str)) > n {
				return fail(path, "max_length", "must be at most %d characters", n)
			}
			return nil
		})
	}
}

// Minimum requires a number greater than or equal to min.
func Minimum(min float64) FieldOption {
	return func(f *Field) {
		f.checks = append(f.checks, func(path string, v gjson.Result) jsonrpc.FieldErrors {
			if v.Num < min {
				return fail(path, "minimum", "must be >= %v", min)
			}
			return nil
		})
	}
}

// Maximum requires a number less than or equal to max.
func Maximum(max float64) FieldOption {
	return func(f *Field) {
		f.checks = append(f.checks, func(path string, v gjson.Result) jsonrpc.FieldErrors {
			if v.Num > max {
				return fail(path, "maximum", "must be <= %v", max)
			}
			return nil
		})
	}
}

func newField(name, kind string, typeCheck check, opts []FieldOption) Field {
	f := Field{name: name, kind: kind, checks: []check{typeCheck}}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// String declares a string field.
func String(name string, opts ...FieldOption) Field {
	return newField(name, "string", typeIs("string", gjson.String), opts)
}

// Number declares a numeric field.
func Number(name string, opts ...FieldOption) Field {
	return newField(name, "number", typeIs("number", gjson.Number), opts)
}

// Integer declares a numeric field that must hold a whole number.
func Integer(name string, opts ...FieldOption) Field {
	return newField(name, "integer", func(path string, v gjson.Result) jsonrpc.FieldErrors {
		if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) {
			return fail(path, "type", "expected integer, got %s", describe(v))
		}
		return nil
	}, opts)
}

// Bool declares a boolean field.
func Bool(name string, opts ...FieldOption) Field {
	return newField(name, "boolean", func(path string, v gjson.Result) jsonrpc.FieldErrors {
		if v.Type != gjson.True && v.Type != gjson.False {
			return fail(path, "type", "expected boolean, got %s", describe(v))
		}
		return nil
	}, opts)
}

// Enum declares a string field restricted to values.
func Enum(name string, values []string, opts ...FieldOption) Field {
	allowed := make(map[string]bool, len(values))
	for _, v := range values {
		allowed[v] = true
	}
	return newField(name, "enum", func(path string, v gjson.Result) jsonrpc.FieldErrors {
		if v.Type != gjson.String {
			return fail(path, "type", "expected string, got %s", describe(v))
		}
		if !allowed[v.Str] {
			return fail(path, "enum", "must be one of [%s], got %q", strings.Join(values, ", "), v.Str)
		}
		return nil
	}, opts)
}

// Literal declares a string field that must equal value. Literals are the
// discriminators of a Union.
func Literal(name, value string, opts ...FieldOption) Field {
	f := newField(name, "literal", func(path string, v gjson.Result) jsonrpc.FieldErrors {
		if v.Type != gjson.String || v.Str != value {
			return fail(path, "literal", "must be %q", value)
		}
		return nil
	}, opts)
	f.literal = value
	return f
}

// Nested declares a field holding an object validated by s.
func Nested(name string, s *ObjectSchema, opts ...FieldOption) Field {
	return newField(name, "object", s.check, opts)
}

// Array declares a field holding an array whose elements all satisfy item.
// The item's name is ignored.
func Array(name string, item Field, opts ...FieldOption) Field {
	return newField(name, "array", func(path string, v gjson.Result) jsonrpc.FieldErrors {
		if !v.IsArray() {
			return fail(path, "type", "expected array, got %s", describe(v))
		}
		var errs jsonrpc.FieldErrors
		for i, el := range v.Array() {
			errs = append(errs, item.validate(fmt.Sprintf("%s[%d]", path, i), el)...)
		}
		return errs
	}, opts)
}

func (f Field) validate(path string, v gjson.Result) jsonrpc.FieldErrors {
	for _, c := range f.checks {
		if errs := c(path, v); len(errs) > 0 {
			return errs
		}
	}
	return nil
}

// ObjectSchema validates a JSON object.
type ObjectSchema struct {
	fields   []Field
	strict   bool
	nullable bool
}

// Object declares an object schema.
func Object(fields ...Field) *ObjectSchema {
	return &ObjectSchema{fields: fields}
}

// Strict rejects keys that are not declared fields.
func (o *ObjectSchema) Strict() *ObjectSchema {
	c := *o
	c.strict = true
	return &c
}

// Nullable accepts null, which is also how absent params are validated.
func (o *ObjectSchema) Nullable() *ObjectSchema {
	c := *o
	c.nullable = true
	return &c
}

// Validate implements jsonrpc.Schema. The parsed value is a map[string]any,
// or nil for an accepted null.
func (o *ObjectSchema) Validate(raw json.RawMessage) (any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, jsonrpc.FieldErrors{{Code: "syntax", Message: "invalid JSON"}}
	}
	v := gjson.ParseBytes(raw)
	if errs := o.check("", v); len(errs) > 0 {
		return nil, errs
	}
	return v.Value(), nil
}

// literal returns the value of the Literal field named name, if any.
func (o *ObjectSchema) literal(name string) (string, bool) {
	for _, f := range o.fields {
		if f.name == name && f.kind == "literal" {
			return f.literal, true
		}
	}
	return "", false
}

func (o *ObjectSchema) check(path string, v gjson.Result) jsonrpc.FieldErrors {
	if v.Type == gjson.Null && o.nullable {
		return nil
	}
	if !v.IsObject() {
		return fail(path, "type", "expected object, got %s", describe(v))
	}

	present := make(map[string]gjson.Result)
	v.ForEach(func(k, val gjson.Result) bool {
		present[k.Str] = val
		return true
	})

	var errs jsonrpc.FieldErrors
	declared := make(map[string]bool, len(o.fields))
	for _, f := range o.fields {
		declared[f.name] = true
		fp := join(path, f.name)
		val, ok := present[f.name]
		if !ok {
			if !f.optional {
				errs = append(errs, jsonrpc.FieldError{Path: fp, Code: "required", Message: "is required"})
			}
			continue
		}
		errs = append(errs, f.validate(fp, val)...)
	}

	if o.strict {
		for k := range present {
			if !declared[k] {
				errs = append(errs, jsonrpc.FieldError{Path: join(path, k), Code: "unknown", Message: "is not allowed"})
			}
		}
	}
	return errs
}

func typeIs(name string, t gjson.Type) check {
	return func(path string, v gjson.Result) jsonrpc.FieldErrors {
		if v.Type != t {
			return fail(path, "type", "expected %s, got %s", name, describe(v))
		}
		return nil
	}
}

func describe(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return "null"
	case gjson.False, gjson.True:
		return "boolean"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	default:
		if v.IsArray() {
			return "array"
		}
		return "object"
	}
}

func fail(path, code, format string, args ...any) jsonrpc.FieldErrors {
	return jsonrpc.FieldErrors{{Path: path, Code: code, Message: fmt.Sprintf(format, args...)}}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// Any accepts every JSON value, including the null used for absent params.
func Any() jsonrpc.Schema {
	return jsonrpc.SchemaFunc(func(raw json.RawMessage) (any, error) {
		if !gjson.ValidBytes(raw) {
			return nil, jsonrpc.FieldErrors{{Code: "syntax", Message: "invalid JSON"}}
		}
		return gjson.ParseBytes(raw).Value(), nil
	})
}
