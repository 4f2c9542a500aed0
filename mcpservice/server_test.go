package mcpservice

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer()
	assert.Equal(t, mcp.ImplementationInfo{Name: DefaultServerName, Version: DefaultServerVersion}, s.Info())
	assert.Equal(t, DefaultMaxTools, s.Tools().Cap())
	assert.Equal(t, 0, s.Tools().Len())
	assert.Empty(t, s.Instructions())
}

func TestNewServer_Options(t *testing.T) {
	s := NewServer(
		WithServerInfo(mcp.ImplementationInfo{Name: "calc", Version: "1.2.3"}),
		WithInstructions("use add"),
		WithMaxTools(1),
		WithTools(textTool("a", "1"), textTool("b", "2")),
	)
	assert.Equal(t, "calc", s.Info().Name)
	assert.Equal(t, "use add", s.Instructions())
	// capacity one: the second tool is dropped
	assert.Equal(t, 1, s.Tools().Len())
	_, ok := s.Tools().Lookup("a")
	assert.True(t, ok)
}

func TestServer_OverflowLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	s := NewServer(
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
		WithMaxTools(1),
		WithTools(textTool("a", "1"), textTool("b", "2")),
	)
	assert.True(t, errors.Is(s.RegisterTool(textTool("c", "3")), ErrRegistryFull))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "mcpservice.register.dropped"), out)
	assert.NotContains(t, out, "mcpservice.register.fail")

	// Other rejections are still reported by the server.
	buf.Reset()
	assert.True(t, errors.Is(s.RegisterTool(Tool{Name: "x"}), ErrInvalidArgument))
	assert.Contains(t, buf.String(), "mcpservice.register.fail")
}

func TestServer_SettersFreeze(t *testing.T) {
	s := NewServer()
	require.NoError(t, s.SetName("hello"))
	require.NoError(t, s.SetVersion("2.0.0"))
	require.NoError(t, s.RegisterTool(textTool("a", "1")))
	assert.Equal(t, mcp.ImplementationInfo{Name: "hello", Version: "2.0.0"}, s.Info())

	s.Freeze()
	s.Freeze()
	assert.True(t, errors.Is(s.SetName("other"), ErrServing))
	assert.True(t, errors.Is(s.SetVersion("3"), ErrServing))
	assert.True(t, errors.Is(s.RegisterTool(textTool("b", "2")), ErrServing))
	assert.Equal(t, "hello", s.Info().Name)
	assert.Equal(t, 1, s.Tools().Len())
}

func TestServer_RegisterToolValidation(t *testing.T) {
	s := NewServer()
	assert.True(t, errors.Is(s.RegisterTool(Tool{Name: "x"}), ErrInvalidArgument))
}

func TestServer_NegotiateProtocolVersion(t *testing.T) {
	s := NewServer()
	assert.Equal(t, "2024-11-05", s.NegotiateProtocolVersion("2024-11-05"))
	assert.Equal(t, mcp.LatestProtocolVersion, s.NegotiateProtocolVersion(mcp.LatestProtocolVersion))
	assert.Equal(t, mcp.DefaultProtocolVersion, s.NegotiateProtocolVersion("1999-01-01"))
	assert.Equal(t, mcp.DefaultProtocolVersion, s.NegotiateProtocolVersion(""))

	s = NewServer(WithPreferredProtocolVersion(mcp.LatestProtocolVersion))
	assert.Equal(t, mcp.LatestProtocolVersion, s.NegotiateProtocolVersion("bogus"))

	s = NewServer(WithPreferredProtocolVersion("bogus"))
	assert.Equal(t, mcp.DefaultProtocolVersion, s.NegotiateProtocolVersion("bogus"))
}
