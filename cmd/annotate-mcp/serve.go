package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ironsheep/annotation-tools-mcp/internal/server"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Long: `Runs the MCP server. Requests are read from stdin, one JSON-RPC message
per line; responses and notifications are written to stdout. Logs go to
stderr.`,
		Example: `  # Claude Desktop configuration
  {"command": "annotate-mcp", "args": ["serve", "--config", "/etc/annotate.yaml"]}

  # Debug logging
  ANNOTATE_MCP_LOG_LEVEL=debug annotate-mcp serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *options) error {
	sess, err := newSession(opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	slog.Debug("annotation MCP server starting", "version", Version, "built", BuildTime, "commit", GitCommit)
	srv := server.New(sess, Version)
	err = srv.Run(cmd.Context())
	if errors.Is(err, context.Canceled) {
		slog.Info("server stopped")
		return nil
	}
	return err
}
