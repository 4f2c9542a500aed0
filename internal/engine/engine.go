// Package engine turns inbound JSON-RPC messages into responses for an
// mcpservice.Server. It owns the method table and the mapping from error
// kinds to JSON-RPC error codes; it knows nothing about framing.
//
// Message policy:
//   - Text that is not JSON is answered with -32700 and a null id.
//   - JSON that is not a valid envelope is answered with -32600, echoing the
//     id when one could be read.
//   - Notifications are never answered. Anything with an id and no method
//     is a client response and is dropped, since the server issues no
//     requests.
//   - Requests are always answered, exactly once.
//
// tools/call error mapping:
//
//	missing/invalid params or name        -32602
//	unknown tool                          -32601
//	handler error wrapping ErrInvalidArgument  -32602
//	handler error wrapping ErrNotFound         -32601
//	empty result (ErrEmptyResult)         -32603
//	any other error, panic or timeout     -32603
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/internal/logctx"
	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
	"github.com/google/uuid"
)

var (
	ErrCancelled = errors.New("operation cancelled")
	ErrInternal  = errors.New("internal error")
	ErrTimeout   = errors.New("tool call timed out")
)

// Engine dispatches messages for one client connection. HandleMessage is
// meant to be called sequentially by a single transport loop.
type Engine struct {
	srv *mcpservice.Server
	log *slog.Logger
	out MessageWriter

	toolTimeout time.Duration

	mu          sync.Mutex
	initialized bool
	ready       bool
	client      mcp.ImplementationInfo
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// NewEngine returns an engine serving srv.
func NewEngine(srv *mcpservice.Server, opts ...EngineOption) *Engine {
	e := &Engine{srv: srv}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logctx.Wrap(e.log)
	return e
}

// WithLogger sets the logger for the engine.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithMessageWriter sets the channel used for server-initiated notifications.
// Without one, progress reports are dropped.
func WithMessageWriter(w MessageWriter) EngineOption {
	return func(e *Engine) { e.out = w }
}

// WithToolTimeout bounds each tool call. Zero disables the bound.
func WithToolTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.toolTimeout = d }
}

// Initialized reports whether an initialize request was answered.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// Ready reports whether the client confirmed initialization.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// ClientInfo returns the implementation info the client sent in initialize.
func (e *Engine) ClientInfo() mcp.ImplementationInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client
}

// HandleMessage processes one inbound message and returns the response to
// send, or nil when nothing must be sent.
func (e *Engine) HandleMessage(ctx context.Context, data []byte) *jsonrpc.Response {
	trace := uuid.NewString()

	msg, err := jsonrpc.Parse(data)
	if err != nil {
		ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Type: jsonrpc.KindMalformed.String(), Trace: trace})
		if errors.Is(err, jsonrpc.ErrParse) {
			e.log.InfoContext(ctx, "engine.handle_message.parse_error", slog.String("err", err.Error()))
			return jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, jsonrpc.ErrorCodeParseError.Message(), nil)
		}
		var id *jsonrpc.RequestID
		if msg != nil {
			id = msg.ID
		}
		e.log.InfoContext(ctx, "engine.handle_message.invalid", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInvalidRequest, jsonrpc.ErrorCodeInvalidRequest.Message(), nil)
	}

	kind := msg.Kind()
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{
		Method: msg.Method,
		ID:     msg.ID.String(),
		Type:   kind.String(),
		Trace:  trace,
	})

	switch kind {
	case jsonrpc.KindRequest:
		return e.HandleRequest(ctx, msg.AsRequest())
	case jsonrpc.KindNotification:
		e.HandleNotification(ctx, msg.AsRequest())
		return nil
	case jsonrpc.KindResponse:
		res := msg.AsResponse()
		e.log.DebugContext(ctx, "engine.handle_message.response_dropped", slog.Bool("is_error", res.Error != nil))
		return nil
	default:
		e.log.InfoContext(ctx, "engine.handle_message.invalid", slog.String("err", "unclassifiable message"))
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidRequest, jsonrpc.ErrorCodeInvalidRequest.Message(), nil)
	}
}

// HandleRequest routes a request by method name. It always returns a response.
func (e *Engine) HandleRequest(ctx context.Context, req *jsonrpc.Request) (resp *jsonrpc.Response) {
	defer func() {
		if r := recover(); r != nil {
			e.log.ErrorContext(ctx, "engine.handle_request.panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, ErrInternal.Error(), nil)
		}
	}()

	switch mcp.Method(req.Method) {
	case mcp.InitializeMethod:
		return e.handleInitialize(ctx, req)
	case mcp.PingMethod:
		return e.result(ctx, req, mcp.EmptyResult{})
	case mcp.ToolsListMethod:
		return e.handleToolsList(ctx, req)
	case mcp.ToolsCallMethod:
		return e.handleToolCall(ctx, req)
	}

	e.log.InfoContext(ctx, "engine.handle_request.unsupported")
	err := fmt.Errorf("%w: method %q", mcpservice.ErrNotImplemented, req.Method)
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, err.Error(), nil)
}

// HandleNotification processes a notification. Nothing is ever sent back.
func (e *Engine) HandleNotification(ctx context.Context, req *jsonrpc.Request) {
	switch mcp.Method(req.Method) {
	case mcp.InitializedNotificationMethod:
		e.mu.Lock()
		e.ready = true
		e.mu.Unlock()
		e.log.DebugContext(ctx, "engine.handle_notification.initialized")
	case mcp.CancelledNotificationMethod:
		// Requests are handled one at a time, so nothing is in flight to cancel.
		e.log.DebugContext(ctx, "engine.handle_notification.cancelled_ignored")
	default:
		e.log.DebugContext(ctx, "engine.handle_notification.ignored")
	}
}

func (e *Engine) result(ctx context.Context, req *jsonrpc.Request, v any) *jsonrpc.Response {
	resp, err := jsonrpc.NewResultResponse(req.ID, v)
	if err != nil {
		e.log.ErrorContext(ctx, "engine.handle_request.encode_fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, ErrInternal.Error(), nil)
	}
	return resp
}

func (e *Engine) handleInitialize(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	// Params are advisory: only the requested protocol version is used and a
	// malformed payload falls back to the server's preferred version.
	var params mcp.InitializeRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			log.DebugContext(ctx, "engine.initialize.params_ignored", slog.String("err", err.Error()))
			params = mcp.InitializeRequest{}
		}
	}

	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "already initialized"), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, "server already initialized", nil)
	}
	e.initialized = true
	e.client = params.ClientInfo
	e.mu.Unlock()

	res := &mcp.InitializeResult{
		ProtocolVersion: e.srv.NegotiateProtocolVersion(params.ProtocolVersion),
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{ListChanged: false},
		},
		ServerInfo:   e.srv.Info(),
		Instructions: e.srv.Instructions(),
	}

	log.InfoContext(ctx, "engine.handle_request.ok",
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
		slog.String("client", params.ClientInfo.Name),
		slog.String("protocol_version", res.ProtocolVersion),
	)

	return e.result(ctx, req, res)
}

func (e *Engine) handleToolsList(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	result := &mcp.ListToolsResult{
		Tools: e.srv.Tools().Descriptors(),
	}

	log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("tool_count", len(result.Tools)))

	return e.result(ctx, req, result)
}

func (e *Engine) handleToolCall(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	invalid := func(reason string) *jsonrpc.Response {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", reason), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params: "+reason, nil)
	}

	if len(req.Params) == 0 {
		return invalid("missing params")
	}
	var params mcp.CallToolRequestReceived
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return invalid(err.Error())
	}
	if params.Name == "" {
		return invalid("missing tool name")
	}
	if args := bytes.TrimSpace(params.Arguments); len(args) > 0 && args[0] != '{' && !bytes.Equal(args, []byte("null")) {
		return invalid("arguments must be an object")
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: params.Name})

	toolCtx := ctx
	if e.out != nil && params.Meta != nil && len(params.Meta.ProgressToken) > 0 {
		toolCtx = mcpservice.WithProgressReporter(toolCtx, &progressReporter{out: e.out, token: params.Meta.ProgressToken})
	}
	if e.toolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeoutCause(toolCtx, e.toolTimeout, ErrTimeout)
		defer cancel()
	}

	res, err := e.invoke(toolCtx, params.Name, mcpservice.NewArguments(params.Arguments))
	if err != nil {
		if toolCtx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			if cause := context.Cause(toolCtx); cause != nil {
				err = cause
			}
		}
		code, message := errorCode(err)
		if code == jsonrpc.ErrorCodeInternalError {
			log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		} else {
			log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		}
		return jsonrpc.NewErrorResponse(req.ID, code, message, nil)
	}

	log.InfoContext(ctx, "engine.handle_request.ok",
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
		slog.Int("content_count", len(res.Content)),
		slog.Bool("is_error", res.IsError),
	)

	return e.result(ctx, req, res)
}

// invoke runs the tool, abandoning it when the tool timeout expires. An
// abandoned handler keeps running until it returns; its result is discarded.
func (e *Engine) invoke(ctx context.Context, name string, args mcpservice.Arguments) (*mcp.CallToolResult, error) {
	if e.toolTimeout <= 0 {
		return e.callTool(ctx, name, args)
	}
	type outcome struct {
		res *mcp.CallToolResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.callTool(ctx, name, args)
		done <- outcome{res, err}
	}()
	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// callTool runs the handler, turning a panic into an error so the serve loop
// survives misbehaving tools.
func (e *Engine) callTool(ctx context.Context, name string, args mcpservice.Arguments) (res *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.ErrorContext(ctx, "engine.tool.panic", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			res, err = nil, fmt.Errorf("%w: tool %q panicked: %v", ErrInternal, name, r)
		}
	}()
	return e.srv.Tools().Call(ctx, name, args)
}

// errorCode maps an error kind onto a JSON-RPC code and client-facing message.
// Unclassified errors are reported without their text.
func errorCode(err error) (jsonrpc.ErrorCode, string) {
	switch {
	case errors.Is(err, mcpservice.ErrInvalidArgument):
		return jsonrpc.ErrorCodeInvalidParams, err.Error()
	case errors.Is(err, mcpservice.ErrNotFound), errors.Is(err, mcpservice.ErrNotImplemented):
		return jsonrpc.ErrorCodeMethodNotFound, err.Error()
	case errors.Is(err, mcpservice.ErrEmptyResult), errors.Is(err, ErrTimeout):
		return jsonrpc.ErrorCodeInternalError, err.Error()
	case errors.Is(err, context.Canceled):
		return jsonrpc.ErrorCodeInternalError, ErrCancelled.Error()
	default:
		return jsonrpc.ErrorCodeInternalError, ErrInternal.Error()
	}
}

type progressReporter struct {
	out   MessageWriter
	token mcp.ProgressToken
}

func (p *progressReporter) Report(ctx context.Context, progress, total float64) error {
	n, err := jsonrpc.NewNotification(string(mcp.ProgressNotificationMethod), mcp.ProgressNotificationParams{
		ProgressToken: p.token,
		Progress:      progress,
		Total:         total,
	})
	if err != nil {
		return err
	}
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal progress notification: %w", err)
	}
	return p.out.WriteMessage(ctx, b)
}
