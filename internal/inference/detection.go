package inference

import (
	"image"
	"math"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
)

// Keypoint is one pose landmark.
type Keypoint struct {
	Name  string         `json:"name,omitempty"`
	Point geometry.Point `json:"point"`
	Score float64        `json:"score"`
}

// Detection is one raw model output.
type Detection struct {
	Class string        `json:"class"`
	Score float64       `json:"score"`
	Box   geometry.Rect `json:"box"`

	// Contours are outlines of the object, each a closed ring of points.
	Contours [][]geometry.Point `json:"contours,omitempty"`

	// Mask is a bitmap covering Box; non-zero pixels belong to the object.
	Mask *image.Gray `json:"-"`

	Keypoints []Keypoint `json:"keypoints,omitempty"`
}

// transform returns a deep copy with every coordinate mapped through f.
func (d Detection) transform(f func(geometry.Point) geometry.Point) Detection {
	out := d
	out.Box = geometry.RectFromPoints(f(d.Box.Min), f(d.Box.Max))
	if d.Contours != nil {
		out.Contours = make([][]geometry.Point, len(d.Contours))
		for i, c := range d.Contours {
			ring := make([]geometry.Point, len(c))
			for j, p := range c {
				ring[j] = f(p)
			}
			out.Contours[i] = ring
		}
	}
	if d.Keypoints != nil {
		out.Keypoints = make([]Keypoint, len(d.Keypoints))
		for i, k := range d.Keypoints {
			k.Point = f(k.Point)
			out.Keypoints[i] = k
		}
	}
	return out
}

// Translate returns a copy moved by delta. The mask still covers the box.
func (d Detection) Translate(delta geometry.Point) Detection {
	return d.transform(func(p geometry.Point) geometry.Point { return p.Add(delta) })
}

// Scale returns a copy with every coordinate multiplied by f.
func (d Detection) Scale(f float64) Detection {
	return d.transform(func(p geometry.Point) geometry.Point { return p.Scale(f) })
}

// valid reports whether every coordinate and the score are finite.
func (d Detection) valid() bool {
	if math.IsNaN(d.Score) || math.IsInf(d.Score, 0) || !d.Box.IsFinite() {
		return false
	}
	for _, c := range d.Contours {
		for _, p := range c {
			if !p.IsFinite() {
				return false
			}
		}
	}
	for _, k := range d.Keypoints {
		if !k.Point.IsFinite() {
			return false
		}
	}
	return true
}
