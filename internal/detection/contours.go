package detection

import (
	"image"

	"github.com/ironsheep/annotation-tools-mcp/internal/imaging"
)

// Edge thresholds handed to the Canny detector.
const (
	edgeLow  = 50
	edgeHigh = 150
)

// minContour is the smallest connected edge group treated as a contour.
const minContour = 10

// edgeMask returns the edge map of img as a row-major boolean grid.
func edgeMask(img image.Image) (mask []bool, w, h int) {
	edges := imaging.EdgeMap(img, edgeLow, edgeHigh)
	w, h = edges.Bounds().Dx(), edges.Bounds().Dy()
	mask = make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask[y*w+x] = edges.Pix[y*edges.Stride+x] != 0
		}
	}
	return mask, w, h
}

// components groups set pixels of a w×h mask into connected components.
// eight selects 8-connectivity instead of 4. Components smaller than minSize
// pixels are dropped.
func components(mask []bool, w, h int, eight bool, minSize int) [][]image.Point {
	visited := make([]bool, len(mask))
	var out [][]image.Point

	for i, set := range mask {
		if !set || visited[i] {
			continue
		}
		comp := fill(mask, visited, w, h, i, eight)
		if len(comp) >= minSize {
			out = append(out, comp)
		}
	}
	return out
}

// fill collects the component containing pixel start. The stack is explicit
// so large blobs cannot overflow the goroutine stack.
func fill(mask, visited []bool, w, h, start int, eight bool) []image.Point {
	var comp []image.Point
	stack := []int{start}
	visited[start] = true

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		comp = append(comp, image.Pt(x, y))

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 || (!eight && dx != 0 && dy != 0) {
					continue
				}
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if mask[j] && !visited[j] {
					visited[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
	return comp
}

// boundsOf returns the bounding box of pts, Max exclusive.
func boundsOf(pts []image.Point) image.Rectangle {
	r := image.Rectangle{Min: pts[0], Max: pts[0].Add(image.Pt(1, 1))}
	for _, p := range pts[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}
