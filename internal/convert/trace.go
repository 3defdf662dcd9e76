package convert

import (
	"image"

	"github.com/anthonynsimon/bild/segment"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
)

// maskLevel is the binarisation threshold applied to model masks.
const maskLevel = 128

// moore lists the 8 neighbours clockwise starting west (y grows downward).
var moore = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// bitmap is a binary image with out-of-range reads as background.
type bitmap struct {
	w, h int
	on   []bool
}

func newBitmap(mask *image.Gray) bitmap {
	bin := segment.Threshold(mask, maskLevel)
	b := bin.Bounds()
	bm := bitmap{w: b.Dx(), h: b.Dy(), on: make([]bool, b.Dx()*b.Dy())}
	for y := 0; y < bm.h; y++ {
		for x := 0; x < bm.w; x++ {
			bm.on[y*bm.w+x] = bin.GrayAt(b.Min.X+x, b.Min.Y+y).Y > 0
		}
	}
	return bm
}

func (bm bitmap) at(p image.Point) bool {
	if p.X < 0 || p.Y < 0 || p.X >= bm.w || p.Y >= bm.h {
		return false
	}
	return bm.on[p.Y*bm.w+p.X]
}

// largest keeps only the biggest 8-connected blob.
func (bm bitmap) largest() bitmap {
	label := make([]int, len(bm.on))
	sizes := []int{0}
	var stack []int
	for i, on := range bm.on {
		if !on || label[i] != 0 {
			continue
		}
		id := len(sizes)
		sizes = append(sizes, 0)
		label[i] = id
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			sizes[id]++
			p := image.Pt(j%bm.w, j/bm.w)
			for _, d := range moore {
				q := p.Add(d)
				if !bm.at(q) {
					continue
				}
				k := q.Y*bm.w + q.X
				if label[k] == 0 {
					label[k] = id
					stack = append(stack, k)
				}
			}
		}
	}

	best := 0
	for id := 1; id < len(sizes); id++ {
		if sizes[id] > sizes[best] {
			best = id
		}
	}
	out := bitmap{w: bm.w, h: bm.h, on: make([]bool, len(bm.on))}
	if best == 0 {
		return out
	}
	for i, l := range label {
		out.on[i] = l == best
	}
	return out
}

// trace follows the outer boundary of the blob containing the first set
// pixel in raster order with Moore-neighbour tracing. It returns pixel
// coordinates clockwise, or nil for an empty bitmap.
func (bm bitmap) trace() []image.Point {
	start := -1
	for i, on := range bm.on {
		if on {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	s := image.Pt(start%bm.w, start/bm.w)
	contour := []image.Point{s}

	// The raster scan guarantees the west neighbour is background.
	p, back := s, s.Add(moore[0])
	limit := 4*len(bm.on) + 8
	for step := 0; step < limit; step++ {
		dir := direction(back.Sub(p))
		var next, nextBack image.Point
		found := false
		for i := 1; i <= 8; i++ {
			c := p.Add(moore[(dir+i)%8])
			if bm.at(c) {
				next, nextBack, found = c, p.Add(moore[(dir+i-1)%8]), true
				break
			}
		}
		if !found {
			// Isolated pixel.
			return contour
		}
		// Back at the start and about to repeat the first move.
		if p == s && len(contour) > 1 && next == contour[1] {
			return contour[:len(contour)-1]
		}
		p, back = next, nextBack
		contour = append(contour, p)
	}
	return contour
}

func direction(d image.Point) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return 0
}

// maskPolygon traces the largest blob of mask and maps it onto box. Each
// mask pixel covers a box.Width()/w by box.Height()/h cell; contour vertices
// sit at cell centres.
func maskPolygon(mask *image.Gray, box geometry.Rect) []geometry.Point {
	if mask == nil || mask.Bounds().Empty() {
		return nil
	}
	bm := newBitmap(mask).largest()
	px := bm.trace()
	if len(px) < 3 {
		return nil
	}
	sx := box.Width() / float64(bm.w)
	sy := box.Height() / float64(bm.h)
	out := make([]geometry.Point, len(px))
	for i, p := range px {
		out[i] = geometry.Pt(box.Min.X+(float64(p.X)+0.5)*sx, box.Min.Y+(float64(p.Y)+0.5)*sy)
	}
	return out
}
