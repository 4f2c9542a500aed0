package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

var (
	// ErrParse reports that a message is not valid JSON text.
	ErrParse = errors.New("parse error")
	// ErrInvalidMessage reports valid JSON that is not a JSON-RPC 2.0 envelope.
	ErrInvalidMessage = errors.New("invalid request")
)

// Kind classifies a decoded message.
type Kind int

const (
	KindMalformed Kind = iota
	KindRequest
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "malformed"
	}
}

// Message is the raw JSON representation of a JSON-RPC message.
type Message []byte

// AnyMessage is a generic JSON-RPC message (request, notification, or response).
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request represents a JSON-RPC request (with an ID) or notification (without ID).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	ID             *RequestID      `json:"id,omitempty"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC response. Exactly one of Result and Error
// is set. The id member is always emitted, as null when unknown.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	ID             *RequestID      `json:"id"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Parse decodes one JSON-RPC message.
//
// Text that is not JSON yields an error wrapping ErrParse. JSON that is not a
// valid envelope yields an error wrapping ErrInvalidMessage; in that case the
// returned message is still non-nil and carries whatever ID could be
// recovered, so the caller can address its error response.
func Parse(data []byte) (*AnyMessage, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: message is not valid JSON", ErrParse)
	}
	var m AnyMessage
	if err := m.UnmarshalJSON(data); err != nil {
		return &m, err
	}
	return &m, nil
}

// NewResultResponse builds a successful JSON-RPC response object.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// NewNotification builds a server-to-client notification.
func NewNotification(method string, params any) (*Request, error) {
	req := &Request{JSONRPCVersion: ProtocolVersion, Method: method}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = b
	}
	return req, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for AnyMessage.
// It enforces JSON-RPC 2.0 envelope rules. A missing "jsonrpc" member is
// tolerated; a present one must equal "2.0". The ID is decoded first so it is
// available even when validation fails.
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			return fmt.Errorf("%w: %v", ErrParse, err)
		}
		return fmt.Errorf("%w: message must be a JSON object", ErrInvalidMessage)
	}
	if fields == nil {
		return fmt.Errorf("%w: message must be a JSON object", ErrInvalidMessage)
	}

	if raw, ok := fields["id"]; ok {
		id := new(RequestID)
		if err := id.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		m.ID = id
	}

	m.JSONRPCVersion = ProtocolVersion
	if raw, ok := fields["jsonrpc"]; ok {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil || v != ProtocolVersion {
			return fmt.Errorf("%w: invalid JSON-RPC version: expected %q, got %s", ErrInvalidMessage, ProtocolVersion, string(raw))
		}
	}

	_, hasMethod := fields["method"]
	if hasMethod {
		if err := json.Unmarshal(fields["method"], &m.Method); err != nil {
			return fmt.Errorf("%w: method must be a string", ErrInvalidMessage)
		}
		if m.Method == "" {
			return fmt.Errorf("%w: method must not be empty", ErrInvalidMessage)
		}
	}

	m.Params = nonNull(fields["params"])
	m.Result = nonNull(fields["result"])
	_, hasResult := fields["result"]
	raw, hasError := fields["error"]
	hasError = hasError && !isNull(raw)
	if hasError {
		e := Error{Code: ErrorCodeInternalError, Message: "malformed error object"}
		_ = json.Unmarshal(raw, &e)
		m.Error = &e
	}

	if hasMethod {
		if hasResult || hasError {
			return fmt.Errorf("%w: request message cannot have result or error fields", ErrInvalidMessage)
		}
		return nil
	}
	if m.ID == nil {
		return fmt.Errorf("%w: missing method", ErrInvalidMessage)
	}
	// An id without a method is a response to a peer request, whatever its
	// shape. Responses are never answered, so result/error is not checked.
	if hasResult && m.Result == nil {
		m.Result = json.RawMessage("null")
	}
	return nil
}

// Kind classifies the message by the presence of id and method.
func (m *AnyMessage) Kind() Kind {
	switch {
	case m == nil:
		return KindMalformed
	case m.Method != "" && m.ID != nil:
		return KindRequest
	case m.Method != "":
		return KindNotification
	case m.ID != nil:
		return KindResponse
	default:
		return KindMalformed
	}
}

// Type returns "request", "notification", "response" or "malformed".
func (m *AnyMessage) Type() string {
	return m.Kind().String()
}

// AsRequest returns the message as a Request if it is a request or
// notification, otherwise nil.
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}

	return &Request{
		JSONRPCVersion: m.JSONRPCVersion,
		Method:         m.Method,
		Params:         m.Params,
		ID:             m.ID,
	}
}

// AsResponse returns the message as a Response if it has no method, otherwise nil.
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}

	return &Response{
		JSONRPCVersion: m.JSONRPCVersion,
		Result:         m.Result,
		Error:          m.Error,
		ID:             m.ID,
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || isNull(raw) {
		return nil
	}
	return raw
}
