// Package stdio serves an mcpservice.Server over stdin/stdout. It is meant for
// servers launched as a subprocess by an MCP client.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Auth             : none; the OS user is logged for diagnostics
//	Framing          : one JSON-RPC message per line, "\n" terminated
//	Concurrency      : messages handled strictly in arrival order
//
// Input lines may end in "\r\n" and blank lines are ignored. Every response
// is written as a single line and flushed immediately. Notifications from the
// client are never answered.
//
// Logs must not go to stdout, which carries the protocol. The default logger
// is slog.Default(); point it at stderr.
//
// Example:
//
//	srv := mcpservice.NewServer(
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "my-stdio-server", Version: "0.1.0"}),
//	    mcpservice.WithTools(myTool),
//	)
//	if err := stdio.Serve(ctx, srv); err != nil { log.Fatal(err) }
package stdio
