// Package mcpservice holds the server side model of an MCP tool server: the
// Server (identity plus tools), the bounded Registry, the Tool type and its
// handler interfaces, and helpers for composing results.
//
// Quick start:
//
//	srv := mcpservice.NewServer(
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "calc", Version: "1.0.0"}),
//	)
//	err := srv.RegisterTool(mcpservice.Tool{
//	    Name:        "add",
//	    Description: "Add two numbers",
//	    InputSchema: schema.Object([]schema.Property{
//	        schema.Prop("a", schema.Number("")),
//	        schema.Prop("b", schema.Number("")),
//	    }, "a", "b"),
//	    Handler: mcpservice.ToolHandlerFunc(func(ctx context.Context, args mcpservice.Arguments) (*mcp.CallToolResult, error) {
//	        a, err := args.Number("a")
//	        if err != nil {
//	            return nil, err
//	        }
//	        b, err := args.Number("b")
//	        if err != nil {
//	            return nil, err
//	        }
//	        return mcp.NewCallToolResult().AddTextf("%g", a+b), nil
//	    }),
//	})
//
// Typed tools reflect their input schema from a Go struct:
//
//	type EchoArgs struct {
//	    Message string `json:"message" jsonschema:"description=Text to echo"`
//	}
//	echo := mcpservice.NewTool[EchoArgs]("echo", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[EchoArgs]) error {
//	    return w.AppendText(r.Args().Message)
//	}, mcpservice.WithToolDescription("Echo a message back"))
//
// Serve the result with the stdio package.
package mcpservice
