package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/annotation-tools-mcp/internal/labelfile"
)

type validateReport struct {
	File    string              `json:"file"`
	Stats   labelfile.Stats     `json:"stats"`
	Skipped []labelfile.Skipped `json:"skipped,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <annotation.json>...",
		Short: "Check annotation files for unusable shapes",
		Long: `Loads each annotation file the way the editor does and reports shapes
that would be skipped: missing labels or points, unknown types and invalid
geometry. Exits non-zero when any file has problems.`,
		Example: `  annotate-mcp validate dataset/*.json`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			bad := 0
			for _, path := range args {
				rep := validateFile(path)
				if rep.Error != "" || len(rep.Skipped) > 0 {
					bad++
				}
				if err := enc.Encode(rep); err != nil {
					return err
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d files have problems", bad, len(args))
			}
			return nil
		},
	}
}

func validateFile(path string) validateReport {
	rep := validateReport{File: path}
	lf, err := labelfile.Load(path)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	shapes, skipped := lf.ToShapes()
	rep.Stats = labelfile.ShapeStats(shapes)
	rep.Skipped = skipped
	return rep
}
