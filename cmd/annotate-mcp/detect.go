package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/session"
)

func newDetectCmd(opts *options) *cobra.Command {
	var (
		model     string
		region    string
		threshold float64
		prompts   []string
		classes   []string
		output    string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "detect <image>...",
		Short: "Add detection proposals to image annotations",
		Long: `Runs a detection model on each image and adds the proposals that pass
the confidence threshold and do not duplicate existing shapes to the image's
annotation file (the image path with a .json extension).`,
		Example: `  # Built-in rectangle and circle detection
  annotate-mcp detect scans/page1.png --model builtin/shapes

  # Only people from a remote model, in the top half of the image
  annotate-mcp detect street.jpg --model remote --class person --region 0,0,1920,540

  # Report what would be added without writing
  annotate-mcp detect street.jpg --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && len(args) > 1 {
				return fmt.Errorf("--output needs a single image, got %d", len(args))
			}
			req := session.DetectRequest{Model: model, Prompts: prompts, Classes: classes}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}
			if region != "" {
				r, err := parseRegion(region)
				if err != nil {
					return err
				}
				req.Region = &r
			}

			sess, err := newSession(opts)
			if err != nil {
				return err
			}
			defer sess.Close()

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			for _, path := range args {
				if _, err := sess.Open(path, output); err != nil {
					return err
				}
				id, err := sess.Detect(req)
				if err != nil {
					return err
				}
				d, err := sess.Wait(cmd.Context(), id)
				if err != nil {
					return err
				}
				if d.Error != "" {
					return fmt.Errorf("%s: %s", path, d.Error)
				}
				result := map[string]interface{}{"image": path, "delivery": d}
				if !dryRun && len(d.Added) > 0 {
					saved, err := sess.Save("")
					if err != nil {
						return err
					}
					result["saved"] = saved
				}
				if err := enc.Encode(result); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model id (default: the configured default model)")
	cmd.Flags().StringVarP(&region, "region", "r", "", "Region of interest as x1,y1,x2,y2")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Confidence threshold in [0,1] (default: configured)")
	cmd.Flags().StringArrayVarP(&prompts, "prompt", "p", nil, "Text prompt for open-vocabulary models (repeatable)")
	cmd.Flags().StringSliceVar(&classes, "class", nil, "Only keep these classes")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Annotation file to read and write (single image only)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Do not save the annotation file")

	return cmd
}

// parseRegion parses "x1,y1,x2,y2".
func parseRegion(s string) (geometry.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.Rect{}, fmt.Errorf("region %q: want x1,y1,x2,y2", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.Rect{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = f
	}
	return geometry.RectFromPoints(geometry.Pt(v[0], v[1]), geometry.Pt(v[2], v[3])), nil
}
