package detection

import (
	"image"
	"sort"

	"github.com/anthonynsimon/bild/segment"
)

// Segment is one connected blob from threshold segmentation.
type Segment struct {
	// Box encloses the blob.
	Box image.Rectangle `json:"box"`

	// Mask covers Box, re-based at (0,0); blob pixels are 255.
	Mask *image.Gray `json:"-"`

	// Area is the blob size in pixels.
	Area int `json:"area"`

	// Score is Area divided by the box area.
	Score float64 `json:"score"`
}

// SegmentOptions tunes Segments.
type SegmentOptions struct {
	// Level is the luminance threshold (0-255).
	Level uint8

	// Dark selects pixels below Level as foreground, for dark objects on a
	// light background. Otherwise pixels at or above Level are foreground.
	Dark bool

	// MinArea drops blobs with fewer pixels.
	MinArea int

	// MaxAreaFraction drops blobs covering more than this fraction of the
	// image, usually the background. Zero disables the check.
	MaxAreaFraction float64
}

// DefaultSegmentOptions segments dark objects at level 128, ignoring blobs
// under 50 pixels or over 90% of the image.
func DefaultSegmentOptions() SegmentOptions {
	return SegmentOptions{Level: 128, Dark: true, MinArea: 50, MaxAreaFraction: 0.9}
}

// Segments binarises img with a luminance threshold and returns each
// 4-connected foreground blob with its own bitmap, largest first.
func Segments(img image.Image, opts SegmentOptions) []Segment {
	bin := segment.Threshold(img, opts.Level)
	bb := bin.Bounds()
	w, h := bb.Dx(), bb.Dy()
	origin := img.Bounds().Min

	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			on := bin.GrayAt(bb.Min.X+x, bb.Min.Y+y).Y != 0
			mask[y*w+x] = on != opts.Dark
		}
	}

	limit := w * h
	if opts.MaxAreaFraction > 0 {
		limit = int(opts.MaxAreaFraction * float64(w*h))
	}

	var out []Segment
	for _, comp := range components(mask, w, h, false, max(opts.MinArea, 1)) {
		if len(comp) > limit {
			continue
		}
		box := boundsOf(comp)
		m := image.NewGray(image.Rect(0, 0, box.Dx(), box.Dy()))
		for _, p := range comp {
			m.Pix[(p.Y-box.Min.Y)*m.Stride+p.X-box.Min.X] = 255
		}
		out = append(out, Segment{
			Box:   box.Add(origin),
			Mask:  m,
			Area:  len(comp),
			Score: float64(len(comp)) / float64(area(box)),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Area > out[j].Area })
	return out
}
