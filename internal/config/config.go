// Package config loads the environment configuration shared by the bundled
// server binaries.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/joeshaw/envdecode"
)

// Config is decoded from the process environment. Defaults are provided via
// struct tags.
type Config struct {
	// ServerName overrides the binary's advertised name. ENV: MCP_SERVER_NAME
	ServerName string `env:"MCP_SERVER_NAME"`
	// ServerVersion overrides the advertised version. ENV: MCP_SERVER_VERSION
	ServerVersion string `env:"MCP_SERVER_VERSION"`
	// LogLevel is one of debug, info, warn, error. ENV: MCP_LOG_LEVEL
	LogLevel string `env:"MCP_LOG_LEVEL,default=info"`
	// LogFormat is text or json. ENV: MCP_LOG_FORMAT
	LogFormat string `env:"MCP_LOG_FORMAT,default=text"`
	// MaxTools caps the tool registry. ENV: MCP_MAX_TOOLS
	MaxTools int `env:"MCP_MAX_TOOLS,default=128"`
	// ToolTimeout bounds each tool call; zero disables. ENV: MCP_TOOL_TIMEOUT
	ToolTimeout time.Duration `env:"MCP_TOOL_TIMEOUT,default=0s"`
	// HNBaseURL is the Hacker News API root. ENV: HN_BASE_URL
	HNBaseURL string `env:"HN_BASE_URL,default=https://hacker-news.firebaseio.com/v0"`
}

// Load decodes Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: MCP_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.MaxTools < 0 {
		return fmt.Errorf("config: MCP_MAX_TOOLS must not be negative, got %d", c.MaxTools)
	}
	if c.ToolTimeout < 0 {
		return fmt.Errorf("config: MCP_TOOL_TIMEOUT must not be negative, got %s", c.ToolTimeout)
	}
	return nil
}

// Level parses LogLevel. An empty level means info.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid MCP_LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// NewLogger builds the process logger writing to w, which should be stderr.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := c.Level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ServerInfo returns the advertised implementation info, falling back to the
// given defaults for unset fields.
func (c Config) ServerInfo(name, version string) mcp.ImplementationInfo {
	if c.ServerName != "" {
		name = c.ServerName
	}
	if c.ServerVersion != "" {
		version = c.ServerVersion
	}
	return mcp.ImplementationInfo{Name: name, Version: version}
}
