package mcpservice

import "errors"

// Error kinds. Handlers and library code wrap these with fmt.Errorf("...: %w")
// and the engine maps them onto JSON-RPC error codes with errors.Is:
//
//	ErrInvalidArgument  -32602 Invalid params
//	ErrNotFound         -32601 Method not found
//	ErrNotImplemented   -32601 Method not found
//	ErrEmptyResult      -32603 Internal error
//	anything else       -32603 Internal error
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrEmptyResult     = errors.New("tool returned no content")
	ErrNotImplemented  = errors.New("not implemented")
	ErrIO              = errors.New("i/o error")

	// ErrRegistryFull is returned by Register once the registry holds its
	// maximum number of tools. The tool is dropped and the server keeps
	// running with the tools it has.
	ErrRegistryFull = errors.New("tool registry full")

	// ErrServing is returned when server metadata or tools are changed after
	// serving started.
	ErrServing = errors.New("server already serving")
)
