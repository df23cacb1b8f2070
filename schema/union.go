package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bjaus/jsonrpc"
	"github.com/tidwall/gjson"
)

// UnionSchema validates a payload against one of several object schemas,
// chosen by the string value of a discriminator field.
type UnionSchema struct {
	discriminator string
	members       map[string]*ObjectSchema
}

// Union declares a discriminated union. Every member must declare a Literal
// field named discriminator, and no two members may share its value.
//
// Example:
//
//	alert, err := schema.Union("kind",
//	    schema.Object(schema.Literal("kind", "storm"), schema.Number("windSpeed")),
//	    schema.Object(schema.Literal("kind", "heat"), schema.Number("temperature")),
//	)
func Union(discriminator string, members ...*ObjectSchema) (*UnionSchema, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("union on %q: no members: %w", discriminator, jsonrpc.ErrInvalidRegistration)
	}

	u := &UnionSchema{
		discriminator: discriminator,
		members:       make(map[string]*ObjectSchema, len(members)),
	}
	for i, m := range members {
		value, ok := m.literal(discriminator)
		if !ok {
			return nil, fmt.Errorf("union on %q: member %d has no literal %q: %w",
				discriminator, i, discriminator, jsonrpc.ErrInvalidRegistration)
		}
		if _, dup := u.members[value]; dup {
			return nil, fmt.Errorf("union on %q: value %q claimed twice: %w",
				discriminator, value, jsonrpc.ErrAmbiguousDiscriminator)
		}
		u.members[value] = m
	}
	return u, nil
}

// Values returns the discriminator values of the union in sorted order.
func (u *UnionSchema) Values() []string {
	out := make([]string, 0, len(u.members))
	for v := range u.members {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Validate implements jsonrpc.Schema.
func (u *UnionSchema) Validate(raw json.RawMessage) (any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, jsonrpc.FieldErrors{{Code: "syntax", Message: "invalid JSON"}}
	}
	v := gjson.ParseBytes(raw)
	if !v.IsObject() {
		return nil, fail("", "type", "expected object, got %s", describe(v))
	}

	d := v.Get(gjson.Escape(u.discriminator))
	if !d.Exists() {
		return nil, fail(u.discriminator, "required", "is required")
	}
	m, ok := u.members[d.Str]
	if d.Type != gjson.String || !ok {
		return nil, fail(u.discriminator, "discriminator", "must be one of %q", u.Values())
	}
	if errs := m.check("", v); len(errs) > 0 {
		return nil, errs
	}
	return v.Value(), nil
}

// AnyOf accepts a payload that satisfies at least one of schemas. The
// parsed value comes from the first schema that accepts. When none does,
// the failures of the first schema are reported.
func AnyOf(schemas ...jsonrpc.Schema) jsonrpc.Schema {
	return jsonrpc.SchemaFunc(func(raw json.RawMessage) (any, error) {
		var first error
		for _, s := range schemas {
			v, err := s.Validate(raw)
			if err == nil {
				return v, nil
			}
			if first == nil {
				first = err
			}
		}
		if first == nil {
			first = jsonrpc.FieldErrors{{Code: "invalid", Message: "no schema to match"}}
		}
		return nil, first
	})
}
