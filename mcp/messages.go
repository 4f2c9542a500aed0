package mcp

import (
	"encoding/json"
	"slices"
)

// Method is an MCP method identifier used in JSON-RPC messages.
type Method string

const (
	// Lifecycle
	InitializeMethod              Method = "initialize"
	InitializedNotificationMethod Method = "notifications/initialized"

	// Tools
	ToolsListMethod Method = "tools/list"
	ToolsCallMethod Method = "tools/call"

	// Utilities
	PingMethod                  Method = "ping"
	CancelledNotificationMethod Method = "notifications/cancelled"
	ProgressNotificationMethod  Method = "notifications/progress"
)

// Protocol revisions the server can speak, newest first.
const (
	LatestProtocolVersion = "2025-06-18"
	// DefaultProtocolVersion is answered when the client asks for a revision
	// the server does not know.
	DefaultProtocolVersion = "2025-03-26"
)

var supportedProtocolVersions = []string{
	LatestProtocolVersion,
	"2025-03-26",
	"2024-11-05",
}

// SupportedProtocolVersions returns the known protocol revisions, newest first.
func SupportedProtocolVersions() []string {
	return slices.Clone(supportedProtocolVersions)
}

// IsSupportedProtocolVersion reports whether v is a known protocol revision.
func IsSupportedProtocolVersion(v string) bool {
	return slices.Contains(supportedProtocolVersions, v)
}

// ProgressToken is an identifier used to correlate progress updates.
// It may be a string or number and is echoed verbatim.
type ProgressToken = json.RawMessage

// RequestMeta is the optional _meta member of request params.
type RequestMeta struct {
	ProgressToken ProgressToken `json:"progressToken,omitempty"`
}

// ProgressNotificationParams conveys progress of a long-running operation.
type ProgressNotificationParams struct {
	ProgressToken ProgressToken `json:"progressToken"`
	Progress      float64       `json:"progress"`
	Total         float64       `json:"total,omitzero"`
	Message       string        `json:"message,omitzero"`
}

// InitializeRequest starts the MCP initialization handshake.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ImplementationInfo `json:"clientInfo"`
}

// InitializeResult returns negotiated capabilities and server info.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitzero"`
}

// ListToolsResult returns the available tools.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolRequestReceived is the server-received representation for a tool call.
type CallToolRequestReceived struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Meta      *RequestMeta    `json:"_meta,omitempty"`
}

// EmptyResult is the result of requests that carry no data, such as ping.
type EmptyResult struct{}
