package jsonrpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	t.Run("string id round trips verbatim", func(t *testing.T) {
		var id ID
		require.NoError(t, json.Unmarshal([]byte(`"req-1"`), &id))
		assert.Equal(t, `"req-1"`, id.String())
		assert.Equal(t, StringID("req-1"), id)
	})

	t.Run("number id keeps its text", func(t *testing.T) {
		var id ID
		require.NoError(t, json.Unmarshal([]byte(`1.50`), &id))
		b, err := json.Marshal(id)
		require.NoError(t, err)
		assert.Equal(t, `1.50`, string(b))
	})

	t.Run("zero id marshals to null", func(t *testing.T) {
		b, err := json.Marshal(ID{})
		require.NoError(t, err)
		assert.Equal(t, "null", string(b))
		assert.True(t, ID{}.IsZero())
		assert.Equal(t, "null", ID{}.String())
	})

	t.Run("rejects objects, arrays and booleans", func(t *testing.T) {
		for _, raw := range []string{`{}`, `[1]`, `true`} {
			var id ID
			assert.Error(t, json.Unmarshal([]byte(raw), &id), raw)
		}
	})

	t.Run("int id", func(t *testing.T) {
		assert.Equal(t, "-7", IntID(-7).String())
	})
}

func TestResponse_MarshalJSON(t *testing.T) {
	tests := map[string]struct {
		resp *Response
		want string
	}{
		"result": {
			resp: &Response{ID: IntID(1), Result: json.RawMessage(`{"temperature":72}`)},
			want: `{"jsonrpc":"2.0","id":1,"result":{"temperature":72}}`,
		},
		"empty result": {
			resp: &Response{ID: StringID("a")},
			want: `{"jsonrpc":"2.0","id":"a","result":{}}`,
		},
		"error with null id": {
			resp: &Response{Error: Errorf(CodeParseError, "parse error")},
			want: `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`,
		},
		"error wins over result": {
			resp: &Response{ID: IntID(2), Result: json.RawMessage(`{}`), Error: NewError(CodeInvalidParams, "invalid params", FieldErrors{{Path: "city", Code: "required", Message: "is required"}})},
			want: `{"jsonrpc":"2.0","id":2,"error":{"code":-32602,"message":"invalid params","data":[{"path":"city","code":"required","message":"is required"}]}}`,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			b, err := json.Marshal(tt.resp)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestResponse_MarshalJSONByValue(t *testing.T) {
	byID := map[string]Response{
		"1": {ID: IntID(1), Result: json.RawMessage(`{"ok":true}`)},
	}

	b, err := json.Marshal(byID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"jsonrpc":"2.0","id":1,"result":{"ok":true}}}`, string(b))

	b, err = json.Marshal(Response{ID: IntID(2), Error: Errorf(CodeInternalError, "boom")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"error":{"code":-32603,"message":"boom"}}`, string(b))
}

func TestResponse_UnmarshalJSON(t *testing.T) {
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"method not found: x"}}`), &resp))
	assert.Equal(t, IntID(3), resp.ID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)

	assert.Error(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":3}`), &resp))
	assert.Error(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":3,"result":{},"error":{"code":1}}`), &resp))
}

func TestParseMessage(t *testing.T) {
	insp := JSONInspector()

	t.Run("request", func(t *testing.T) {
		msg, err := parseMessage(insp, []byte(`{"jsonrpc":"2.0","id":"x","method":"get_weather","params":{"city":"Paris"}}`))
		require.NoError(t, err)
		assert.Equal(t, kindRequest, msg.kind)
		assert.Equal(t, StringID("x"), msg.id)
		assert.Equal(t, "get_weather", msg.method)
		assert.JSONEq(t, `{"city":"Paris"}`, string(msg.params))
	})

	t.Run("notification without params", func(t *testing.T) {
		msg, err := parseMessage(insp, []byte(`{"jsonrpc":"2.0","method":"alerts/storm"}`))
		require.NoError(t, err)
		assert.Equal(t, kindNotification, msg.kind)
		assert.False(t, msg.idPresent)
		assert.Empty(t, msg.params)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := parseMessage(insp, []byte(`{"jsonrpc":`))
		assert.ErrorIs(t, err, ErrInvalidJSON)
	})

	t.Run("response envelope", func(t *testing.T) {
		msg, err := parseMessage(insp, []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
		assert.ErrorIs(t, err, errMalformed)
		assert.Equal(t, kindResponse, msg.kind)
	})

	t.Run("malformed keeps recoverable id", func(t *testing.T) {
		msg, err := parseMessage(insp, []byte(`{"jsonrpc":"2.0","id":5}`))
		assert.ErrorIs(t, err, errMalformed)
		assert.True(t, msg.idPresent)
		assert.Equal(t, IntID(5), msg.id)
	})

	t.Run("invalid id is present but zero", func(t *testing.T) {
		msg, err := parseMessage(insp, []byte(`{"jsonrpc":"2.0","id":{"a":1},"method":"ping"}`))
		assert.ErrorIs(t, err, errMalformed)
		assert.True(t, msg.idPresent)
		assert.True(t, msg.id.IsZero())
	})

	t.Run("describes the problem", func(t *testing.T) {
		tests := map[string]string{
			`[]`:                      "envelope is not an object",
			`{"id":1,"params":{}}`:    "missing method",
			`{"id":1,"method":false}`: "method is not a string",
			`{"id":[],"method":"m"}`:  "id must be a string or number",
		}
		for raw, want := range tests {
			_, err := parseMessage(insp, []byte(raw))
			require.Error(t, err, raw)
			assert.True(t, errors.Is(err, errMalformed), raw)
			assert.Contains(t, err.Error(), want, raw)
		}
	})
}
