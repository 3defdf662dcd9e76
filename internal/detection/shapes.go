package detection

import (
	"image"
	"math"
	"sort"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
)

// Rectangle is an axis-aligned rectangular outline.
type Rectangle struct {
	// Box encloses the outline.
	Box image.Rectangle `json:"box"`

	// Score is the rectangularity in [0,1].
	Score float64 `json:"score"`
}

// RectangleOptions tunes DetectRectangles.
type RectangleOptions struct {
	// MinArea is the smallest box area in square pixels. Typical: 100-1000.
	MinArea int

	// Tolerance is the minimum rectangularity (0.0 to 1.0). Typical: 0.8-0.95.
	Tolerance float64
}

// DefaultRectangleOptions returns a 100 square pixel minimum and a 0.8
// rectangularity threshold.
func DefaultRectangleOptions() RectangleOptions {
	return RectangleOptions{MinArea: 100, Tolerance: 0.8}
}

// DetectRectangles finds rectangular outlines in img, largest first.
//
// # Algorithm
//
//  1. Canny edge map
//  2. 8-connected edge groups of at least ten pixels
//  3. Bounding box per group
//  4. Rectangularity: a one-pixel outline of a w×h box has about 2(w+h)
//     pixels; the score is 1 - |pixels - 2(w+h)| / 2(w+h)
//  5. Drop boxes below MinArea or scores below Tolerance
//
// # Limitations
//
//   - Only axis-aligned rectangles
//   - A stroked outline yields an inner and an outer rectangle
//   - Rounded corners lower the score
func DetectRectangles(img image.Image, opts RectangleOptions) []Rectangle {
	mask, w, h := edgeMask(img)
	origin := img.Bounds().Min

	var out []Rectangle
	for _, comp := range components(mask, w, h, true, minContour) {
		box := boundsOf(comp)
		bw, bh := box.Dx()-1, box.Dy()-1
		if bw <= 0 || bh <= 0 || bw*bh < opts.MinArea {
			continue
		}
		perimeter := float64(2 * (bw + bh))
		score := 1 - math.Abs(float64(len(comp))-perimeter)/perimeter
		if score < opts.Tolerance {
			continue
		}
		out = append(out, Rectangle{Box: box.Add(origin), Score: math.Min(score, 1)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return area(out[i].Box) > area(out[j].Box)
	})
	return out
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// Circle is a detected circle.
type Circle struct {
	Center image.Point `json:"center"`
	Radius int         `json:"radius"`

	// Score is the fraction of the circumference backed by edge pixels.
	Score float64 `json:"score"`
}

// Box returns the bounding box of the circle.
func (c Circle) Box() image.Rectangle {
	return image.Rect(c.Center.X-c.Radius, c.Center.Y-c.Radius, c.Center.X+c.Radius+1, c.Center.Y+c.Radius+1)
}

// Outline approximates the circle with n vertices.
func (c Circle) Outline(n int) []geometry.Point {
	pts := make([]geometry.Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = geometry.Pt(
			float64(c.Center.X)+float64(c.Radius)*math.Cos(a),
			float64(c.Center.Y)+float64(c.Radius)*math.Sin(a),
		)
	}
	return pts
}

// CircleOptions tunes DetectCircles.
type CircleOptions struct {
	// MinRadius and MaxRadius bound the radii searched, in pixels. The
	// search cost grows linearly with the range.
	MinRadius, MaxRadius int

	// MinScore is the minimum circumference coverage. Typical: 0.5.
	MinScore float64
}

// DefaultCircleOptions searches radii 5 to 100 with a 0.5 coverage threshold.
func DefaultCircleOptions() CircleOptions {
	return CircleOptions{MinRadius: 5, MaxRadius: 100, MinScore: 0.5}
}

// DetectCircles finds circles using the Hough circle transform, highest
// score first.
//
// # Algorithm
//
//  1. Canny edge map
//  2. For each radius, every edge pixel votes for all centers at that
//     distance (one vote per accumulator cell)
//  3. Votes are summed over 3×3 cells to absorb rasterisation error
//  4. Local maxima over a 5 pixel neighbourhood scoring at least MinScore of
//     the circumference become candidates
//  5. Candidates whose centers are closer than half their mean radius are
//     merged, keeping the strongest
func DetectCircles(img image.Image, opts CircleOptions) []Circle {
	mask, w, h := edgeMask(img)
	origin := img.Bounds().Min

	var edgePts []image.Point
	for i, set := range mask {
		if set {
			edgePts = append(edgePts, image.Pt(i%w, i/w))
		}
	}

	type candidate struct {
		c   Circle
		raw float64
	}
	var cands []candidate

	acc := make([]int, w*h)
	sum := make([]int, w*h)
	minR := max(opts.MinRadius, 1)
	for r := minR; r <= opts.MaxRadius; r++ {
		if 2*r > w && 2*r > h {
			break
		}
		clear(acc)
		offsets := ring(r)
		for _, p := range edgePts {
			for _, o := range offsets {
				cx, cy := p.X-o.X, p.Y-o.Y
				if cx >= 0 && cy >= 0 && cx < w && cy < h {
					acc[cy*w+cx]++
				}
			}
		}
		boxSum(acc, sum, w, h)

		circumference := 2 * math.Pi * float64(r)
		need := int(math.Ceil(opts.MinScore * circumference))
		for y := r; y < h-r; y++ {
			for x := r; x < w-r; x++ {
				v := sum[y*w+x]
				if v < need || v == 0 || !localMax(sum, w, h, x, y, 5) {
					continue
				}
				raw := float64(v) / circumference
				cands = append(cands, candidate{
					c:   Circle{Center: image.Pt(x, y).Add(origin), Radius: r, Score: math.Min(raw, 1)},
					raw: raw,
				})
			}
		}
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].raw > cands[j].raw })
	var out []Circle
	for _, cand := range cands {
		dup := false
		for _, kept := range out {
			d := math.Hypot(float64(cand.c.Center.X-kept.Center.X), float64(cand.c.Center.Y-kept.Center.Y))
			if d < float64(cand.c.Radius+kept.Radius)/2 {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, cand.c)
		}
	}
	return out
}

// ring returns the distinct integer offsets on a circle of radius r.
func ring(r int) []image.Point {
	seen := make(map[image.Point]bool)
	var out []image.Point
	steps := int(math.Ceil(2 * math.Pi * float64(r) * 2))
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		p := image.Pt(int(math.Round(float64(r)*math.Cos(a))), int(math.Round(float64(r)*math.Sin(a))))
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// boxSum writes the 3×3 neighbourhood sum of src into dst.
func boxSum(src, dst []int, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && ny >= 0 && nx < w && ny < h {
						s += src[ny*w+nx]
					}
				}
			}
			dst[y*w+x] = s
		}
	}
}

// localMax reports whether no cell within radius n of (x,y) is larger.
func localMax(v []int, w, h, x, y, n int) bool {
	c := v[y*w+x]
	for dy := -n; dy <= n; dy++ {
		for dx := -n; dx <= n; dx++ {
			nx, ny := x+dx, y+dy
			if nx >= 0 && ny >= 0 && nx < w && ny < h && v[ny*w+nx] > c {
				return false
			}
		}
	}
	return true
}
