package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ironsheep/annotation-tools-mcp/internal/config"
	"github.com/ironsheep/annotation-tools-mcp/internal/session"
)

// logLevelEnv selects the log level; "debug" enables debug logging.
const logLevelEnv = config.EnvPrefix + "LOG_LEVEL"

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "annotate-mcp",
		Short: "Image annotation engine with AI-assisted shape proposals",
		Long: `annotate-mcp edits labelme-compatible image annotations.

Without a subcommand it runs the MCP server on stdin/stdout, exposing shape
editing, a pointer-driven canvas, undo/redo and background object detection
to MCP clients. The subcommands run detection and file checks in batch.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			setupLogging(opts.verbose)
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newDetectCmd(opts))
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

// setupLogging sends structured logs to stderr; stdout carries MCP traffic
// and command output.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv(logLevelEnv)) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// newSession loads the configuration and builds a session with its models.
func newSession(opts *options) (*session.Session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	return session.New(cfg, nil)
}
