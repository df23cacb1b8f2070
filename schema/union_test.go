package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/jsonrpc"
)

func alertUnion(t *testing.T) *UnionSchema {
	t.Helper()
	u, err := Union("kind",
		Object(Literal("kind", "storm"), Number("windSpeed")),
		Object(Literal("kind", "heat"), Number("temperature")),
	)
	require.NoError(t, err)
	return u
}

func TestUnion_Validate(t *testing.T) {
	u := alertUnion(t)

	t.Run("selects member by discriminator", func(t *testing.T) {
		v, err := u.Validate(json.RawMessage(`{"kind":"heat","temperature":41}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"kind": "heat", "temperature": float64(41)}, v)
	})

	t.Run("validates against the selected member only", func(t *testing.T) {
		_, err := u.Validate(json.RawMessage(`{"kind":"storm","temperature":41}`))
		fe := fieldErrors(t, err)
		assert.Equal(t, map[string]string{"windSpeed": "required"}, codes(fe))
	})

	t.Run("unknown discriminator value", func(t *testing.T) {
		_, err := u.Validate(json.RawMessage(`{"kind":"flood"}`))
		fe := fieldErrors(t, err)
		assert.Equal(t, map[string]string{"kind": "discriminator"}, codes(fe))
	})

	t.Run("non-string discriminator", func(t *testing.T) {
		_, err := u.Validate(json.RawMessage(`{"kind":7}`))
		fe := fieldErrors(t, err)
		assert.Equal(t, map[string]string{"kind": "discriminator"}, codes(fe))
	})

	t.Run("missing discriminator", func(t *testing.T) {
		_, err := u.Validate(json.RawMessage(`{"windSpeed":90}`))
		fe := fieldErrors(t, err)
		assert.Equal(t, map[string]string{"kind": "required"}, codes(fe))
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := u.Validate(json.RawMessage(`[]`))
		fe := fieldErrors(t, err)
		assert.Equal(t, "type", fe[0].Code)
	})
}

func TestUnion_Construction(t *testing.T) {
	t.Run("rejects overlapping members", func(t *testing.T) {
		_, err := Union("kind",
			Object(Literal("kind", "storm"), Number("windSpeed")),
			Object(Literal("kind", "storm"), Number("rainfall")),
		)
		assert.ErrorIs(t, err, jsonrpc.ErrAmbiguousDiscriminator)
	})

	t.Run("rejects member without literal", func(t *testing.T) {
		_, err := Union("kind",
			Object(Literal("kind", "storm")),
			Object(String("kind")),
		)
		assert.ErrorIs(t, err, jsonrpc.ErrInvalidRegistration)
	})

	t.Run("rejects empty union", func(t *testing.T) {
		_, err := Union("kind")
		assert.ErrorIs(t, err, jsonrpc.ErrInvalidRegistration)
	})

	t.Run("values are sorted", func(t *testing.T) {
		assert.Equal(t, []string{"heat", "storm"}, alertUnion(t).Values())
	})
}

func TestAnyOf(t *testing.T) {
	byCity := Object(String("city")).Strict()
	byCoords := Object(Number("lat"), Number("lon")).Strict()
	s := AnyOf(byCity, byCoords)

	_, err := s.Validate(json.RawMessage(`{"city":"Quito"}`))
	assert.NoError(t, err)

	_, err = s.Validate(json.RawMessage(`{"lat":-0.18,"lon":-78.47}`))
	assert.NoError(t, err)

	_, err = s.Validate(json.RawMessage(`{"zip":"94103"}`))
	fe := fieldErrors(t, err)
	assert.Equal(t, map[string]string{"city": "required", "zip": "unknown"}, codes(fe))

	_, err = AnyOf().Validate(json.RawMessage(`{}`))
	assert.Error(t, err)
}
