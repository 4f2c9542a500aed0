package mcpservice

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// Defaults for servers that do not set their identity.
const (
	DefaultServerName    = "mcp-server"
	DefaultServerVersion = "0.0.0"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// Server owns the identity a server reports during initialize and the tools
// it exposes. Identity and tools may change until serving starts; after that
// the server is frozen and setters return ErrServing.
//
// A Server carries no transport. Hand it to stdio.Serve (or stdio.NewHandler)
// to run it.
type Server struct {
	mu           sync.RWMutex
	info         mcp.ImplementationInfo
	instructions string
	protocol     string
	maxTools     int
	tools        []Tool
	log          *slog.Logger

	registry *Registry
	frozen   bool
}

// NewServer builds a Server using functional options.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		info:     mcp.ImplementationInfo{Name: DefaultServerName, Version: DefaultServerVersion},
		protocol: mcp.DefaultProtocolVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.registry = NewRegistry(s.maxTools, s.log)
	for _, t := range s.tools {
		_ = s.register(t)
	}
	s.tools = nil
	return s
}

// WithServerInfo sets a static server info value.
func WithServerInfo(info mcp.ImplementationInfo) ServerOption {
	return func(s *Server) { s.info = info }
}

// WithInstructions sets static human-readable instructions returned during initialize.
func WithInstructions(instr string) ServerOption {
	return func(s *Server) { s.instructions = instr }
}

// WithPreferredProtocolVersion sets the protocol revision answered when the
// client requests one the server does not support.
func WithPreferredProtocolVersion(version string) ServerOption {
	return func(s *Server) {
		if mcp.IsSupportedProtocolVersion(version) {
			s.protocol = version
		}
	}
}

// WithMaxTools sets the tool registry capacity.
func WithMaxTools(n int) ServerOption {
	return func(s *Server) { s.maxTools = n }
}

// WithTools registers tools at construction. Registration errors are logged
// and the offending tools skipped.
func WithTools(tools ...Tool) ServerOption {
	return func(s *Server) { s.tools = append(s.tools, tools...) }
}

// WithLogger sets the logger used for registry diagnostics.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

func (s *Server) checkMutable() error {
	if s.frozen {
		return fmt.Errorf("%w: configuration is frozen", ErrServing)
	}
	return nil
}

// SetName sets the server name reported in serverInfo.
func (s *Server) SetName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	s.info.Name = name
	return nil
}

// SetVersion sets the server version reported in serverInfo.
func (s *Server) SetVersion(version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	s.info.Version = version
	return nil
}

// RegisterTool adds a tool; see Registry.Register for the rules.
func (s *Server) RegisterTool(t Tool) error {
	s.mu.RLock()
	frozen := s.frozen
	s.mu.RUnlock()
	if frozen {
		return fmt.Errorf("%w: cannot register %q", ErrServing, t.Name)
	}
	return s.register(t)
}

// register logs rejected tools. Overflow is already logged by the registry.
func (s *Server) register(t Tool) error {
	err := s.registry.Register(t)
	if err != nil && !errors.Is(err, ErrRegistryFull) {
		s.log.Error("mcpservice.register.fail", slog.String("tool", t.Name), slog.String("err", err.Error()))
	}
	return err
}

// Freeze ends the configuration phase. Transports call it when they start
// serving; calling it again is a no-op.
func (s *Server) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

// Info returns the server's identity.
func (s *Server) Info() mcp.ImplementationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Instructions returns the instructions sent during initialize.
func (s *Server) Instructions() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instructions
}

// NegotiateProtocolVersion picks the revision to answer a client requesting
// requested.
func (s *Server) NegotiateProtocolVersion(requested string) string {
	if mcp.IsSupportedProtocolVersion(requested) {
		return requested
	}
	return s.protocol
}

// Tools returns the server's tool registry.
func (s *Server) Tools() *Registry {
	return s.registry
}
