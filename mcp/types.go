package mcp

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/mcp-stdio-go/schema"
)

// Capabilities
// ClientCapabilities advertises client features. The server reads but does
// not act on them.
type ClientCapabilities struct {
	Roots *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"roots,omitempty"`
	Sampling    *struct{} `json:"sampling,omitempty"`
	Elicitation *struct{} `json:"elicitation,omitempty"`
}

// ToolsCapability advertises tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ServerCapabilities advertises server features. Only tools are served by
// this library; prompts and resources stay omitted.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ImplementationInfo describes the implementation name and version.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitzero"`
}

// Content types
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
)

// ErrInvalidContent reports a content item that cannot be put on the wire.
var ErrInvalidContent = errors.New("invalid content")

// Content is one unit of tool output. The concrete types are TextContent and
// ImageContent.
type Content interface {
	ContentType() string
	isContent()
}

// TextContent is a text part of a tool result.
type TextContent struct {
	Text string
}

func (TextContent) ContentType() string { return ContentTypeText }
func (TextContent) isContent()          {}

// MarshalJSON renders {"type":"text","text":...}. The text member is always
// present, even when empty.
func (c TextContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{ContentTypeText, c.Text})
}

// ImageContent is an image part of a tool result. Data holds the base64
// encoded image bytes.
type ImageContent struct {
	Data     string
	MIMEType string
}

func (ImageContent) ContentType() string { return ContentTypeImage }
func (ImageContent) isContent()          {}

func (c ImageContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Data     string `json:"data"`
		MIMEType string `json:"mimeType"`
	}{ContentTypeImage, c.Data, c.MIMEType})
}

// Validate checks that Data is standard base64 and MIMEType names an image
// media type.
func (c ImageContent) Validate() error {
	if c.MIMEType == "" {
		return fmt.Errorf("%w: image mime type is required", ErrInvalidContent)
	}
	if mt := contenttype.NewMediaType(c.MIMEType); mt.Type != "image" || mt.Subtype == "" {
		return fmt.Errorf("%w: %q is not an image media type", ErrInvalidContent, c.MIMEType)
	}
	if _, err := base64.StdEncoding.DecodeString(c.Data); err != nil {
		return fmt.Errorf("%w: image data is not base64: %v", ErrInvalidContent, err)
	}
	return nil
}

// BaseMetadata carries optional metadata for responses.
type BaseMetadata struct {
	Meta map[string]any `json:"_meta,omitempty"`
}

// CallToolResult represents a tool invocation result: ordered content plus
// an application-level error flag. IsError does not turn the response into a
// JSON-RPC error; the client sees a successful call whose output describes a
// failure.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitzero"`
	BaseMetadata
}

// NewCallToolResult returns an empty result.
func NewCallToolResult() *CallToolResult {
	return &CallToolResult{Content: []Content{}}
}

// AddText appends a text item.
func (r *CallToolResult) AddText(text string) *CallToolResult {
	r.Content = append(r.Content, TextContent{Text: text})
	return r
}

// AddTextf appends fmt.Sprintf(format, args...) as a text item.
func (r *CallToolResult) AddTextf(format string, args ...any) *CallToolResult {
	return r.AddText(fmt.Sprintf(format, args...))
}

// AddImage appends an image item. data must be base64 encoded.
func (r *CallToolResult) AddImage(data, mimeType string) error {
	img := ImageContent{Data: data, MIMEType: mimeType}
	if err := img.Validate(); err != nil {
		return err
	}
	r.Content = append(r.Content, img)
	return nil
}

// AddImageBytes base64 encodes raw image bytes and appends them.
func (r *CallToolResult) AddImageBytes(raw []byte, mimeType string) error {
	return r.AddImage(base64.StdEncoding.EncodeToString(raw), mimeType)
}

// SetError marks the result as an application-level failure.
func (r *CallToolResult) SetError() *CallToolResult {
	r.IsError = true
	return r
}

// TextResult is shorthand for a result holding a single text item.
func TextResult(text string) *CallToolResult {
	return NewCallToolResult().AddText(text)
}

// ErrorResult is shorthand for a failed result with a formatted message.
func ErrorResult(format string, args ...any) *CallToolResult {
	return NewCallToolResult().AddTextf(format, args...).SetError()
}

// Tools
// Tool describes a callable tool and its input schema. A nil InputSchema is
// omitted from the listing.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema *schema.Schema `json:"inputSchema,omitempty"`
}
