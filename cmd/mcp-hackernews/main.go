// Command mcp-hackernews serves read-only Hacker News tools over stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ggoodman/mcp-stdio-go/examples/hackernews"
	"github.com/ggoodman/mcp-stdio-go/internal/config"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
	"github.com/ggoodman/mcp-stdio-go/stdio"
)

func main() {
	cacheSize := flag.Int("cache-size", 512, "number of items kept in the in-memory cache")
	flag.Parse()

	if err := run(*cacheSize); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cacheSize int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := cfg.NewLogger(os.Stderr)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := hackernews.NewClient(cfg.HNBaseURL, cacheSize)
	if err != nil {
		return err
	}
	srv := hackernews.New(client,
		mcpservice.WithServerInfo(cfg.ServerInfo(hackernews.Name, hackernews.Version)),
		mcpservice.WithMaxTools(cfg.MaxTools),
		mcpservice.WithLogger(log),
	)
	log.Info("HackerNews MCP Server running...", slog.String("base_url", cfg.HNBaseURL))

	err = stdio.Serve(ctx, srv, stdio.WithLogger(log), stdio.WithToolTimeout(cfg.ToolTimeout))
	if err != nil && ctx.Err() != nil {
		// Interrupted by a signal.
		return nil
	}
	return err
}
