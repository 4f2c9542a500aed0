package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID represents a JSON-RPC ID that can be either a string or a number.
//
// The ID keeps the exact bytes it was decoded from so that a response echoes
// the request's ID verbatim: "1" stays a string, 1 stays a number and 1.0 is
// not rewritten to 1.
type RequestID struct {
	raw json.RawMessage
}

// NewRequestID creates a new RequestID from a string or number.
func NewRequestID(value any) *RequestID {
	switch v := value.(type) {
	case string:
		b, _ := json.Marshal(v)
		return &RequestID{raw: b}
	case int:
		return &RequestID{raw: []byte(strconv.Itoa(v))}
	case int64:
		return &RequestID{raw: []byte(strconv.FormatInt(v, 10))}
	case int32, int16, int8, uint, uint8, uint16, uint32, uint64, float32, float64:
		b, err := json.Marshal(v)
		if err != nil {
			return &RequestID{raw: []byte("null")}
		}
		return &RequestID{raw: b}
	default:
		return &RequestID{raw: []byte("null")}
	}
}

// String returns the string representation of the ID. String IDs are
// returned unquoted, numeric IDs in their original textual form.
func (id *RequestID) String() string {
	if id.IsNil() {
		return ""
	}
	if id.IsString() {
		var s string
		if err := json.Unmarshal(id.raw, &s); err == nil {
			return s
		}
	}
	return string(id.raw)
}

// IsString reports whether the ID was sent as a JSON string.
func (id *RequestID) IsString() bool {
	return id != nil && len(id.raw) > 0 && id.raw[0] == '"'
}

// IsNil returns true if the ID is absent or an explicit JSON null.
func (id *RequestID) IsNil() bool {
	return id == nil || len(id.raw) == 0 || bytes.Equal(id.raw, []byte("null"))
}

// Raw returns the ID exactly as it appeared on the wire.
func (id *RequestID) Raw() json.RawMessage {
	if id.IsNil() {
		return json.RawMessage("null")
	}
	return id.raw
}

// MarshalJSON implements json.Marshaler.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	return id.Raw(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("JSON-RPC ID must be a string or number, got nothing")
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid JSON-RPC ID: %w", err)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid JSON-RPC ID: %w", err)
		}
	case bytes.Equal(data, []byte("null")):
	default:
		return fmt.Errorf("JSON-RPC ID must be a string or number, got: %s", string(data))
	}
	id.raw = append(id.raw[:0], data...)
	return nil
}
