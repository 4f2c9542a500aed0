package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
	"github.com/ggoodman/mcp-stdio-go/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func addTool() mcpservice.Tool {
	return mcpservice.Tool{
		Name:        "add",
		Description: "Add two numbers",
		InputSchema: schema.Object([]schema.Property{
			schema.Prop("a", schema.Number("")),
			schema.Prop("b", schema.Number("")),
		}, "a", "b"),
		Handler: mcpservice.ToolHandlerFunc(func(ctx context.Context, args mcpservice.Arguments) (*mcp.CallToolResult, error) {
			a, err := args.Number("a")
			if err != nil {
				return nil, err
			}
			b, err := args.Number("b")
			if err != nil {
				return nil, err
			}
			return mcp.NewCallToolResult().AddTextf("%g", a+b), nil
		}),
	}
}

func handlerTool(name string, fn func(ctx context.Context, args mcpservice.Arguments) (*mcp.CallToolResult, error)) mcpservice.Tool {
	return mcpservice.Tool{Name: name, Description: name, Handler: mcpservice.ToolHandlerFunc(fn)}
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	srv := mcpservice.NewServer(
		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "test-server", Version: "1.0.0"}),
		mcpservice.WithLogger(quiet),
	)
	require.NoError(t, srv.RegisterTool(addTool()))
	require.NoError(t, srv.RegisterTool(handlerTool("noargs", func(ctx context.Context, args mcpservice.Arguments) (*mcp.CallToolResult, error) {
		return mcp.TextResult(string(args.Raw())), nil
	})))
	require.NoError(t, srv.RegisterTool(handlerTool("empty", func(ctx context.Context, args mcpservice.Arguments) (*mcp.CallToolResult, error) {
		return mcp.NewCallToolResult(), nil
	})))
	require.NoError(t, srv.RegisterTool(handlerTool("panics", func(ctx context.Context, args mcpservice.Arguments) (*mcp.CallToolResult, error) {
		panic("kaboom")
	})))
	require.NoError(t, srv.RegisterTool(handlerTool("fails", func(ctx context.Context, args mcpservice.Arguments) (*mcp.CallToolResult, error) {
		return nil, fmt.Errorf("secret backend detail")
	})))
	require.NoError(t, srv.RegisterTool(handlerTool("soft", func(ctx context.Context, args mcpservice.Arguments) (*mcp.CallToolResult, error) {
		return mcp.ErrorResult("city %q unknown", "Atlantis"), nil
	})))
	return NewEngine(srv, append([]EngineOption{WithLogger(quiet)}, opts...)...)
}

// roundTrip feeds one raw message and returns the marshaled response, or ""
// when none was produced.
func roundTrip(t *testing.T, e *Engine, in string) string {
	t.Helper()
	resp := e.HandleMessage(context.Background(), []byte(in))
	if resp == nil {
		return ""
	}
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(b)
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *wireError      `json:"error"`
}

func decode(t *testing.T, s string) wireResponse {
	t.Helper()
	var r wireResponse
	require.NoError(t, json.Unmarshal([]byte(s), &r))
	return r
}

func TestToolsCall_Add(t *testing.T) {
	e := newTestEngine(t)
	got := roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add","arguments":{"a":2,"b":3}}}`)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"5"}]}}`, got)
}

func TestToolsCall_UnknownTool(t *testing.T) {
	e := newTestEngine(t)
	r := decode(t, roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nonexistent"}}`))
	assert.Equal(t, "2.0", r.JSONRPC)
	assert.Equal(t, "1", string(r.ID))
	require.NotNil(t, r.Error)
	assert.Equal(t, -32601, r.Error.Code)
	assert.Nil(t, r.Result)
}

func TestToolsCall_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		in   string
		code int
	}{
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"tools/call"}`, -32602},
		{"params not object", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":[1]}`, -32602},
		{"missing name", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`, -32602},
		{"non-string name", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":5}}`, -32602},
		{"arguments not object", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add","arguments":[2,3]}}`, -32602},
		{"handler invalid argument", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add","arguments":{"a":"two","b":3}}}`, -32602},
		{"empty result", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"empty"}}`, -32603},
		{"panic", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"panics"}}`, -32603},
		{"handler error", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"fails"}}`, -32603},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t)
			r := decode(t, roundTrip(t, e, tc.in))
			require.NotNil(t, r.Error, "expected error response")
			assert.Equal(t, tc.code, r.Error.Code)
			assert.NotEmpty(t, r.Error.Message)
			assert.Equal(t, "1", string(r.ID))
		})
	}
}

func TestToolsCall_InternalErrorHidesDetail(t *testing.T) {
	e := newTestEngine(t)
	r := decode(t, roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"fails"}}`))
	require.NotNil(t, r.Error)
	assert.NotContains(t, r.Error.Message, "secret")
}

func TestToolsCall_EmptyResultDistinctFromNotFound(t *testing.T) {
	e := newTestEngine(t)
	empty := decode(t, roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"empty"}}`))
	missing := decode(t, roundTrip(t, e, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"nope"}}`))
	assert.NotEqual(t, empty.Error.Code, missing.Error.Code)
}

func TestToolsCall_DefaultsArgumentsToEmptyObject(t *testing.T) {
	e := newTestEngine(t)
	for _, params := range []string{`{"name":"noargs"}`, `{"name":"noargs","arguments":null}`} {
		got := roundTrip(t, e, `{"jsonrpc":"2.0","id":"x","method":"tools/call","params":`+params+`}`)
		assert.Equal(t, `{"jsonrpc":"2.0","id":"x","result":{"content":[{"type":"text","text":"{}"}]}}`, got)
	}
}

func TestToolsCall_IsErrorIsNotRPCError(t *testing.T) {
	e := newTestEngine(t)
	got := roundTrip(t, e, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"soft"}}`)
	assert.Equal(t, `{"jsonrpc":"2.0","id":3,"result":{"content":[{"type":"text","text":"city \"Atlantis\" unknown"}],"isError":true}}`, got)
}

func TestToolsCall_LoopSurvivesPanic(t *testing.T) {
	e := newTestEngine(t)
	roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"panics"}}`)
	got := roundTrip(t, e, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"add","arguments":{"a":1,"b":1}}}`)
	assert.Equal(t, `{"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"2"}]}}`, got)
}

func TestToolsList(t *testing.T) {
	e := newTestEngine(t)
	first := roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	second := roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	assert.Equal(t, first, second)

	var res struct {
		Tools []map[string]json.RawMessage `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(decode(t, first).Result, &res))
	var names []string
	for _, tool := range res.Tools {
		var name string
		require.NoError(t, json.Unmarshal(tool["name"], &name))
		names = append(names, name)
	}
	assert.Equal(t, []string{"add", "noargs", "empty", "panics", "fails", "soft"}, names)

	assert.JSONEq(t, `{"type":"object","properties":{"a":{"type":"number"},"b":{"type":"number"}},"required":["a","b"]}`, string(res.Tools[0]["inputSchema"]))
	_, hasSchema := res.Tools[1]["inputSchema"]
	assert.False(t, hasSchema)
}

func TestToolsList_Empty(t *testing.T) {
	e := NewEngine(mcpservice.NewServer(mcpservice.WithLogger(quiet)), WithLogger(quiet))
	got := roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`, got)
}

func TestInitialize(t *testing.T) {
	e := newTestEngine(t)
	got := roundTrip(t, e, `{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"cli","version":"9"}}}`)
	assert.Equal(t, `{"jsonrpc":"2.0","id":0,"result":{"protocolVersion":"2025-06-18","capabilities":{"tools":{"listChanged":false}},"serverInfo":{"name":"test-server","version":"1.0.0"}}}`, got)
	assert.True(t, e.Initialized())
	assert.Equal(t, "cli", e.ClientInfo().Name)
	assert.False(t, e.Ready())

	assert.Equal(t, "", roundTrip(t, e, `{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	assert.True(t, e.Ready())

	again := decode(t, roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	require.NotNil(t, again.Error)
	assert.Equal(t, -32600, again.Error.Code)
}

func TestInitialize_IgnoresBadParams(t *testing.T) {
	for _, params := range []string{``, `,"params":"junk"`, `,"params":{"protocolVersion":"1999-01-01"}`} {
		e := newTestEngine(t)
		r := decode(t, roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"initialize"`+params+`}`))
		require.Nil(t, r.Error)
		var res mcp.InitializeResult
		require.NoError(t, json.Unmarshal(r.Result, &res))
		assert.Equal(t, mcp.DefaultProtocolVersion, res.ProtocolVersion)
		assert.Equal(t, "test-server", res.ServerInfo.Name)
	}
}

func TestPing(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, `{"jsonrpc":"2.0","id":"p","result":{}}`, roundTrip(t, e, `{"jsonrpc":"2.0","id":"p","method":"ping"}`))
}

func TestUnknownMethod(t *testing.T) {
	e := newTestEngine(t)
	r := decode(t, roundTrip(t, e, `{"jsonrpc":"2.0","id":9,"method":"prompts/list"}`))
	require.NotNil(t, r.Error)
	assert.Equal(t, -32601, r.Error.Code)
	assert.Equal(t, "9", string(r.ID))
}

func TestNotificationsAreSilent(t *testing.T) {
	e := newTestEngine(t)
	for _, in := range []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":1}}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"add","arguments":{"a":1,"b":2}}}`,
		`{"jsonrpc":"2.0","method":"something/else"}`,
	} {
		assert.Equal(t, "", roundTrip(t, e, in), in)
	}
}

func TestResponsesAreDropped(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, "", roundTrip(t, e, `{"jsonrpc":"2.0","id":5,"result":{}}`))
	assert.Equal(t, "", roundTrip(t, e, `{"jsonrpc":"2.0","id":5,"error":{"code":-1,"message":"x"}}`))
}

func TestIDOnlyMessagesAreDropped(t *testing.T) {
	out := MessageWriterFunc(func(ctx context.Context, msg jsonrpc.Message) error {
		t.Errorf("unexpected outbound message %s", msg)
		return nil
	})
	e := newTestEngine(t, WithMessageWriter(out))
	for _, in := range []string{
		`{"jsonrpc":"2.0","id":1}`,
		`{"jsonrpc":"2.0","id":"x"}`,
		`{"jsonrpc":"2.0","id":null}`,
		`{"id":2}`,
		`{"jsonrpc":"2.0","id":3,"result":{},"error":{"code":1,"message":"x"}}`,
		`{"jsonrpc":"2.0","id":4,"error":"nope"}`,
	} {
		assert.Equal(t, "", roundTrip(t, e, in), in)
	}

	// Without an id it is still an invalid request.
	assert.Equal(t,
		`{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}`,
		roundTrip(t, e, `{"jsonrpc":"2.0","result":{}}`))
}

func TestMalformedMessages(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t,
		`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`,
		roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":`))

	assert.Equal(t,
		`{"jsonrpc":"2.0","id":4,"error":{"code":-32600,"message":"Invalid Request"}}`,
		roundTrip(t, e, `{"jsonrpc":"2.0","id":4,"method":7}`))

	assert.Equal(t,
		`{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}`,
		roundTrip(t, e, `[1,2]`))

	assert.Equal(t,
		`{"jsonrpc":"2.0","id":"s","error":{"code":-32600,"message":"Invalid Request"}}`,
		roundTrip(t, e, `{"jsonrpc":"1.0","id":"s","method":"ping"}`))
}

func TestIDTypesArePreserved(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, `{"jsonrpc":"2.0","id":"1","result":{}}`, roundTrip(t, e, `{"jsonrpc":"2.0","id":"1","method":"ping"}`))
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"ping"}`))
}

func TestToolTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	srv := mcpservice.NewServer(mcpservice.WithLogger(quiet))
	require.NoError(t, srv.RegisterTool(handlerTool("slow", func(ctx context.Context, args mcpservice.Arguments) (*mcp.CallToolResult, error) {
		<-release
		return mcp.TextResult("late"), nil
	})))
	require.NoError(t, srv.RegisterTool(handlerTool("polite", func(ctx context.Context, args mcpservice.Arguments) (*mcp.CallToolResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})))
	e := NewEngine(srv, WithLogger(quiet), WithToolTimeout(20*time.Millisecond))

	for _, name := range []string{"slow", "polite"} {
		r := decode(t, roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"`+name+`"}}`))
		require.NotNil(t, r.Error, name)
		assert.Equal(t, -32603, r.Error.Code)
		assert.Equal(t, ErrTimeout.Error(), r.Error.Message)
	}
}

type captureWriter struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (c *captureWriter) WriteMessage(ctx context.Context, msg jsonrpc.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, string(msg))
	return c.err
}

func TestProgressNotifications(t *testing.T) {
	out := &captureWriter{}
	srv := mcpservice.NewServer(mcpservice.WithLogger(quiet))
	type countArgs struct {
		N int `json:"n"`
	}
	require.NoError(t, srv.RegisterTool(mcpservice.NewTool[countArgs]("count", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[countArgs]) error {
		for i := 1; i <= r.Args().N; i++ {
			if err := w.SendProgress(float64(i), float64(r.Args().N)); err != nil {
				return err
			}
		}
		return w.AppendTextf("counted %d", r.Args().N)
	})))
	e := NewEngine(srv, WithLogger(quiet), WithMessageWriter(out))

	got := roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"count","arguments":{"n":2},"_meta":{"progressToken":"tok"}}}`)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"counted 2"}]}}`, got)
	assert.Equal(t, []string{
		`{"jsonrpc":"2.0","method":"notifications/progress","params":{"progressToken":"tok","progress":1,"total":2}}`,
		`{"jsonrpc":"2.0","method":"notifications/progress","params":{"progressToken":"tok","progress":2,"total":2}}`,
	}, out.msgs)

	// No token: no notifications.
	out.msgs = nil
	roundTrip(t, e, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"count","arguments":{"n":2}}}`)
	assert.Empty(t, out.msgs)

	// A failing notification channel fails the call.
	out.err = errors.New("pipe closed")
	r := decode(t, roundTrip(t, e, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"count","arguments":{"n":1},"_meta":{"progressToken":7}}}`))
	require.NotNil(t, r.Error)
	assert.Equal(t, -32603, r.Error.Code)
}

func TestMessageWriterFunc(t *testing.T) {
	var got []string
	out := MessageWriterFunc(func(ctx context.Context, msg jsonrpc.Message) error {
		got = append(got, string(msg))
		return nil
	})
	srv := mcpservice.NewServer(mcpservice.WithLogger(quiet))
	require.NoError(t, srv.RegisterTool(mcpservice.NewTool[struct{}]("tick", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[struct{}]) error {
		if err := w.SendProgress(1, 0); err != nil {
			return err
		}
		return w.AppendText("ok")
	})))
	e := NewEngine(srv, WithLogger(quiet), WithMessageWriter(out))

	roundTrip(t, e, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"tick","_meta":{"progressToken":1}}}`)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"notifications/progress","params":{"progressToken":1,"progress":1}}`, got[0])
}
