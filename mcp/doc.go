// Package mcp contains protocol data types and constants for the Model
// Context Protocol tool surface. It mirrors the wire representation while
// keeping the surface Go-friendly (exported structs with json tags, string
// constants for method names, small builder helpers).
//
// The package is free of transport logic: the stdio package frames messages
// and the engine serializes these types into JSON-RPC envelopes.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod).
//
// # Content
//
// Tool output is an ordered list of Content items, each either TextContent
// or ImageContent. CallToolResult collects them together with the isError
// flag:
//
//	res := mcp.NewCallToolResult().AddText("5")
//	if err := res.AddImage(b64, "image/png"); err != nil {
//		// data was not base64 or the mime type is not image/*
//	}
//
// # Compatibility
//
// LatestProtocolVersion is the newest revision the library targets. During
// initialize the server echoes a client's requested revision when it is in
// SupportedProtocolVersions and otherwise answers DefaultProtocolVersion.
package mcp
