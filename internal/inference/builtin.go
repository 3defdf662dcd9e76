package inference

import (
	"context"
	"fmt"
	"image"

	"github.com/ironsheep/annotation-tools-mcp/internal/detection"
	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
)

// Builtin detector names.
const (
	BuiltinShapes  = "shapes"
	BuiltinText    = "text"
	BuiltinSegment = "segment"
)

// circleVertices is the polygon resolution used for detected circles.
const circleVertices = 32

// BuiltinBackend runs one of the classical detectors.
type BuiltinBackend struct {
	// Detector is BuiltinShapes, BuiltinText or BuiltinSegment.
	Detector string

	Rectangles detection.RectangleOptions
	Circles    detection.CircleOptions
	Segments   detection.SegmentOptions
}

// NewBuiltinBackend returns a detector with default options.
func NewBuiltinBackend(detector string) (*BuiltinBackend, error) {
	switch detector {
	case BuiltinShapes, BuiltinText, BuiltinSegment:
	default:
		return nil, fmt.Errorf("unknown builtin detector %q", detector)
	}
	return &BuiltinBackend{
		Detector:   detector,
		Rectangles: detection.DefaultRectangleOptions(),
		Circles:    detection.DefaultCircleOptions(),
		Segments:   detection.DefaultSegmentOptions(),
	}, nil
}

// Kind implements Backend.
func (b *BuiltinBackend) Kind() string { return "builtin" }

// Detect implements Backend. Rectangles come back as boxes of class
// "rectangle", circles as 32-vertex contours of class "circle", text
// regions as boxes of class "text" and segments as masks of class "segment".
func (b *BuiltinBackend) Detect(ctx context.Context, img image.Image, _ Request) ([]Detection, error) {
	var out []Detection
	switch b.Detector {
	case BuiltinShapes:
		for _, r := range detection.DetectRectangles(img, b.Rectangles) {
			out = append(out, Detection{Class: "rectangle", Score: r.Score, Box: geometry.FromImageRect(r.Box)})
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, c := range detection.DetectCircles(img, b.Circles) {
			out = append(out, Detection{
				Class:    "circle",
				Score:    c.Score,
				Box:      geometry.FromImageRect(c.Box()),
				Contours: [][]geometry.Point{c.Outline(circleVertices)},
			})
		}

	case BuiltinText:
		for _, r := range detection.DetectTextRegions(img, 0) {
			out = append(out, Detection{Class: "text", Score: r.Score, Box: geometry.FromImageRect(r.Box)})
		}

	case BuiltinSegment:
		for _, s := range detection.Segments(img, b.Segments) {
			out = append(out, Detection{
				Class: "segment",
				Score: s.Score,
				Box:   geometry.FromImageRect(s.Box),
				Mask:  s.Mask,
			})
		}

	default:
		return nil, fmt.Errorf("%w: unknown builtin detector %q", ErrModelUnavailable, b.Detector)
	}
	return out, ctx.Err()
}
