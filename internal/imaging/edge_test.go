package imaging

import (
	"image"
	"image/color"
	"testing"
)

// boxImage draws a black box over the middle half of a white image, giving
// four strong edges.
func boxImage(width, height int) *image.RGBA {
	img := solidImage(width, height, color.White)
	for y := height / 4; y < 3*height/4; y++ {
		for x := width / 4; x < 3*width/4; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

func countSet(g *image.Gray) int {
	n := 0
	for _, v := range g.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

func TestEdgeMap_Box(t *testing.T) {
	edges := EdgeMap(boxImage(100, 100), 50, 150)
	if edges.Bounds() != image.Rect(0, 0, 100, 100) {
		t.Fatalf("bounds: got %v", edges.Bounds())
	}

	near := func(x0, y0 int) bool {
		for y := y0 - 2; y <= y0+2; y++ {
			for x := x0 - 2; x <= x0+2; x++ {
				if edges.GrayAt(x, y).Y == 255 {
					return true
				}
			}
		}
		return false
	}
	for _, p := range []image.Point{{25, 50}, {75, 50}, {50, 25}, {50, 75}} {
		if !near(p.X, p.Y) {
			t.Errorf("no edge detected near %v", p)
		}
	}
	if edges.GrayAt(50, 50).Y != 0 || edges.GrayAt(5, 5).Y != 0 {
		t.Error("flat regions should not contain edges")
	}
}

func TestEdgeMap_Uniform(t *testing.T) {
	edges := EdgeMap(solidImage(40, 40, color.RGBA{128, 128, 128, 255}), 50, 150)
	inner := edges.SubImage(image.Rect(4, 4, 36, 36)).(*image.Gray)
	for y := 4; y < 36; y++ {
		for x := 4; x < 36; x++ {
			if inner.GrayAt(x, y).Y != 0 {
				t.Fatalf("uniform image has an edge at (%d,%d)", x, y)
			}
		}
	}
}

func TestEdgeMap_ThresholdsMonotonic(t *testing.T) {
	img := boxImage(60, 60)
	loose := countSet(EdgeMap(img, 10, 50))
	strict := countSet(EdgeMap(img, 100, 250))
	if loose < strict {
		t.Errorf("lower thresholds found fewer edges: %d < %d", loose, strict)
	}
}

func TestEdgeMap_TinyImages(t *testing.T) {
	for _, size := range []int{0, 1, 3} {
		edges := EdgeMap(solidImage(size, size, color.White), 50, 150)
		if edges.Bounds().Dx() != size {
			t.Errorf("size %d: got bounds %v", size, edges.Bounds())
		}
	}
}

func TestToGray(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 2, 2))
	if ToGray(g) != g {
		t.Error("gray input should be returned as is")
	}
	out := ToGray(solidImage(2, 2, color.White))
	if out.GrayAt(out.Bounds().Min.X, out.Bounds().Min.Y).Y < 250 {
		t.Errorf("white should stay white, got %v", out.GrayAt(0, 0))
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ v, lo, hi, want int }{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
	}
	for _, tt := range tests {
		if got := clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d,%d,%d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
