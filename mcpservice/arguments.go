package mcpservice

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Arguments is the raw "arguments" object of a tools/call request. Missing
// or null arguments are presented as an empty object.
//
// Get and Has accept gjson path syntax ("location.city", "points.0.x") for
// quick access; Decode unmarshals the whole object into a Go value.
type Arguments struct {
	raw json.RawMessage
}

var emptyObject = json.RawMessage("{}")

// NewArguments wraps raw JSON arguments.
func NewArguments(raw json.RawMessage) Arguments {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Arguments{raw: emptyObject}
	}
	return Arguments{raw: raw}
}

// Raw returns the arguments as JSON.
func (a Arguments) Raw() json.RawMessage {
	if len(a.raw) == 0 {
		return emptyObject
	}
	return a.raw
}

// Get returns the value at path.
func (a Arguments) Get(path string) gjson.Result {
	return gjson.GetBytes(a.Raw(), path)
}

// Has reports whether a value exists at path.
func (a Arguments) Has(path string) bool {
	return a.Get(path).Exists()
}

// Number returns the number at path. A missing or non-numeric value is an
// ErrInvalidArgument.
func (a Arguments) Number(path string) (float64, error) {
	v := a.Get(path)
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %q must be a number", ErrInvalidArgument, path)
	}
	return v.Num, nil
}

// String returns the string at path. A missing or non-string value is an
// ErrInvalidArgument.
func (a Arguments) String(path string) (string, error) {
	v := a.Get(path)
	if v.Type != gjson.String {
		return "", fmt.Errorf("%w: %q must be a string", ErrInvalidArgument, path)
	}
	return v.Str, nil
}

// Decode unmarshals the arguments into v.
func (a Arguments) Decode(v any) error {
	if err := json.Unmarshal(a.Raw(), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// DecodeStrict is like Decode but rejects members v has no field for.
func (a Arguments) DecodeStrict(v any) error {
	dec := json.NewDecoder(bytes.NewReader(a.Raw()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Arguments) MarshalJSON() ([]byte, error) {
	return a.Raw(), nil
}
