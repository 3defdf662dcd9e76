package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/annotation-tools-mcp/internal/labelfile"
)

func newExportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <annotation.json>...",
		Short: "Export annotations as YAML or Parquet",
		Long: `Converts annotation files for analysis.

yaml writes one document per file with bounding boxes and areas.
parquet writes one row per shape across all files, for loading into
dataframes or DuckDB.`,
		Example: `  annotate-mcp export page1.json --format yaml
  annotate-mcp export dataset/*.json --format parquet -o shapes.parquet`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]*labelfile.File, 0, len(args))
			for _, path := range args {
				lf, err := labelfile.Load(path)
				if err != nil {
					return err
				}
				files = append(files, lf)
			}

			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				w = f
			}

			switch format {
			case "yaml":
				for i, lf := range files {
					if i > 0 {
						if _, err := io.WriteString(w, "---\n"); err != nil {
							return err
						}
					}
					if err := labelfile.ExportYAML(w, lf); err != nil {
						return fmt.Errorf("%s: %w", args[i], err)
					}
				}
			case "parquet":
				if output == "" {
					return fmt.Errorf("parquet output needs --output")
				}
				if err := labelfile.ExportParquet(w, files...); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q (want yaml or parquet)", format)
			}
			slog.Debug("exported annotations", "files", len(files), "format", format, "output", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or parquet")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout; required for parquet)")

	return cmd
}
