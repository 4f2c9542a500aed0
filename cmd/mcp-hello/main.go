// Command mcp-hello serves the hello example tools over stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ggoodman/mcp-stdio-go/examples/hello"
	"github.com/ggoodman/mcp-stdio-go/internal/config"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
	"github.com/ggoodman/mcp-stdio-go/stdio"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *showVersion {
		fmt.Fprintln(os.Stdout, cfg.ServerInfo(hello.Name, hello.Version).Version)
		return
	}

	log := cfg.NewLogger(os.Stderr)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := hello.New(
		mcpservice.WithServerInfo(cfg.ServerInfo(hello.Name, hello.Version)),
		mcpservice.WithMaxTools(cfg.MaxTools),
		mcpservice.WithLogger(log),
	)
	log.Info("MCP Example Server running...")

	if err := stdio.Serve(ctx, srv, stdio.WithLogger(log), stdio.WithToolTimeout(cfg.ToolTimeout)); err != nil && ctx.Err() == nil {
		log.Error("mcp-hello.serve.fail", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
