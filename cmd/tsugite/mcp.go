package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/hanehara/tsugite/internal/adapter/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools over stdio",
	Long: `mcp exposes the ask, query, and schema_summary tools over the Model
Context Protocol's stdio transport. Logs go to stderr; stdout is reserved
for the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := buildOverrides()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		a, err := newApp(ctx, overrides)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		a.logger.Info("starting tsugite",
			slog.String("version", version),
			slog.String("log_level", a.cfg.LogLevel.String()),
			slog.Int("max_limit", a.cfg.MaxLimit),
			slog.String("query_timeout", a.cfg.QueryTimeout.String()),
		)

		askSvc := a.askService(a.cfg.MaxRows, a.cfg.MaxLimit)
		server := mcp.NewServer(version, askSvc, a.explorer, a.logger, a.tracer)

		stdioServer := mcpserver.NewStdioServer(server)

		a.logger.Info("serving MCP over stdio")
		if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
			return fmt.Errorf("stdio server: %w", err)
		}

		a.logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
