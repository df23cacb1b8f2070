package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Version is the protocol version written on every outbound envelope.
const Version = "2.0"

// ID is a caller-assigned request id. It holds the raw JSON string or number
// so it can be echoed byte for byte. The zero ID marshals to null.
type ID struct {
	raw json.RawMessage
}

// StringID returns an ID holding a JSON string.
func StringID(s string) ID {
	b, _ := json.Marshal(s)
	return ID{raw: b}
}

// IntID returns an ID holding a JSON number.
func IntID(n int64) ID {
	return ID{raw: json.RawMessage(strconv.FormatInt(n, 10))}
}

// IsZero reports whether the id is absent.
func (id ID) IsZero() bool {
	return len(id.raw) == 0
}

// String returns the raw JSON form of the id, or "null".
func (id ID) String() string {
	if id.IsZero() {
		return "null"
	}
	return string(id.raw)
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler. Only strings, numbers and null
// are accepted.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		id.raw = nil
	case len(b) > 0 && (b[0] == '"' || b[0] == '-' || (b[0] >= '0' && b[0] <= '9')):
		id.raw = append(json.RawMessage(nil), b...)
	default:
		return fmt.Errorf("id must be a string or number, got %s", b)
	}
	return nil
}

// Response is the single outbound envelope produced for a request. Exactly
// one of Result and Error is written on the wire.
type Response struct {
	ID     ID
	Result json.RawMessage
	Error  *Error
}

type wireResult struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result"`
}

type wireError struct {
	JSONRPC string `json:"jsonrpc"`
	ID      ID     `json:"id"`
	Error   *Error `json:"error"`
}

// MarshalJSON implements json.Marshaler. An Error takes precedence over a
// Result; a response with neither carries an empty result object.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(wireError{JSONRPC: Version, ID: r.ID, Error: r.Error})
	}
	result := r.Result
	if len(result) == 0 {
		result = json.RawMessage("{}")
	}
	return json.Marshal(wireResult{JSONRPC: Version, ID: r.ID, Result: result})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Response) UnmarshalJSON(b []byte) error {
	var w struct {
		ID     ID              `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if (w.Error == nil) == (len(w.Result) == 0) {
		return errors.New("response must carry exactly one of result and error")
	}
	r.ID, r.Result, r.Error = w.ID, w.Result, w.Error
	return nil
}

// envelopeKind is the classification of an inbound message.
type envelopeKind int

const (
	kindMalformed envelopeKind = iota
	kindRequest
	kindNotification
	kindResponse
)

var (
	isObject       = FieldKind("", KindObject)
	hasMethod      = FieldKind("method", KindString)
	hasValidID     = FieldKind("id", KindString, KindNumber)
	isRequest      = And(isObject, hasMethod, hasValidID)
	isNotification = And(isObject, hasMethod, Not(HasFields("id")))
	isResponse     = And(isObject, Not(HasFields("method")), HasFields("id"), Or(HasFields("result"), HasFields("error")))
)

// errMalformed is reported for messages that are valid JSON but neither a
// request nor a notification.
var errMalformed = errors.New("malformed envelope")

// message is a classified inbound envelope.
type message struct {
	kind      envelopeKind
	id        ID
	idPresent bool
	method    string
	params    json.RawMessage
}

// parseMessage classifies raw. The returned message carries the id whenever
// one could be recovered, even when err is non-nil. A present id that is
// not a string or number leaves idPresent set with a zero id.
func parseMessage(insp Inspector, raw []byte) (message, error) {
	view, err := insp.Inspect(raw)
	if err != nil {
		return message{}, err
	}

	msg := message{idPresent: view.HasField("id")}
	if hasValidID.Match(view) {
		b, _ := view.GetBytes("id")
		msg.id = ID{raw: append(json.RawMessage(nil), b...)}
	}

	switch {
	case isRequest.Match(view):
		msg.kind = kindRequest
	case isNotification.Match(view):
		msg.kind = kindNotification
	case isResponse.Match(view):
		msg.kind = kindResponse
		return msg, fmt.Errorf("unexpected response envelope: %w", errMalformed)
	default:
		return msg, describeMalformed(view)
	}

	msg.method, _ = view.GetString("method")
	if b, ok := view.GetBytes("params"); ok {
		msg.params = append(json.RawMessage(nil), b...)
	}
	return msg, nil
}

func describeMalformed(view View) error {
	switch {
	case !isObject.Match(view):
		return fmt.Errorf("envelope is not an object: %w", errMalformed)
	case !view.HasField("method"):
		return fmt.Errorf("missing method: %w", errMalformed)
	case !hasMethod.Match(view):
		return fmt.Errorf("method is not a string: %w", errMalformed)
	default:
		return fmt.Errorf("id must be a string or number: %w", errMalformed)
	}
}
