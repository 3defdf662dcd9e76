package geometry

import (
	"errors"
	"image"
	"math"
	"testing"
)

func square(x1, y1, x2, y2 float64) []Point {
	return []Point{{x1, y1}, {x2, y1}, {x2, y2}, {x1, y2}}
}

func TestPointInPolygon(t *testing.T) {
	poly := square(10, 10, 50, 40)

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"interior", Pt(30, 25), true},
		{"outside", Pt(5, 5), false},
		{"on left edge", Pt(10, 20), true},
		{"on vertex", Pt(50, 40), true},
		{"right of polygon", Pt(51, 20), false},
		{"below polygon", Pt(30, 41), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointInPolygon(tt.p, poly); got != tt.want {
				t.Errorf("PointInPolygon(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestPointInPolygon_Concave(t *testing.T) {
	// U shape opening upward.
	poly := []Point{{0, 0}, {10, 0}, {10, 10}, {7, 10}, {7, 3}, {3, 3}, {3, 10}, {0, 10}}

	if PointInPolygon(Pt(5, 8), poly) {
		t.Error("point in the notch should be outside")
	}
	if !PointInPolygon(Pt(1, 8), poly) {
		t.Error("point in the left arm should be inside")
	}
}

func TestPointInPolygon_Degenerate(t *testing.T) {
	if PointInPolygon(Pt(0, 0), nil) {
		t.Error("empty polygon should contain nothing")
	}
	if PointInPolygon(Pt(0, 0), []Point{{0, 0}, {1, 1}}) {
		t.Error("two vertices should contain nothing")
	}
}

func TestSegmentsIntersect(t *testing.T) {
	tests := []struct {
		name           string
		a1, a2, b1, b2 Point
		want           bool
	}{
		{"crossing", Pt(0, 0), Pt(10, 10), Pt(0, 10), Pt(10, 0), true},
		{"parallel", Pt(0, 0), Pt(10, 0), Pt(0, 1), Pt(10, 1), false},
		{"touching endpoint", Pt(0, 0), Pt(5, 5), Pt(5, 5), Pt(10, 0), true},
		{"collinear overlap", Pt(0, 0), Pt(10, 0), Pt(5, 0), Pt(15, 0), true},
		{"collinear disjoint", Pt(0, 0), Pt(4, 0), Pt(5, 0), Pt(15, 0), false},
		{"zero length on segment", Pt(0, 0), Pt(10, 0), Pt(3, 0), Pt(3, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SegmentsIntersect(tt.a1, tt.a2, tt.b1, tt.b2); got != tt.want {
				t.Errorf("SegmentsIntersect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSegmentIntersection(t *testing.T) {
	p, ok := SegmentIntersection(Pt(0, 0), Pt(10, 10), Pt(0, 10), Pt(10, 0))
	if !ok {
		t.Fatal("expected intersection")
	}
	if math.Abs(p.X-5) > 1e-9 || math.Abs(p.Y-5) > 1e-9 {
		t.Errorf("intersection: got %v, want (5,5)", p)
	}

	if _, ok := SegmentIntersection(Pt(0, 0), Pt(1, 1), Pt(5, 0), Pt(6, -1)); ok {
		t.Error("short segments should not intersect")
	}
}

func TestNearestEdge(t *testing.T) {
	poly := square(0, 0, 10, 10)

	idx, pt, ok := NearestEdge(Pt(5, -1), poly, true, 2)
	if !ok || idx != 0 {
		t.Fatalf("expected top edge, got idx=%d ok=%v", idx, ok)
	}
	if pt != Pt(5, 0) {
		t.Errorf("nearest point: got %v, want (5,0)", pt)
	}

	// Closing edge from (0,10) back to (0,0).
	idx, _, ok = NearestEdge(Pt(-1, 5), poly, true, 2)
	if !ok || idx != 3 {
		t.Errorf("expected closing edge 3, got idx=%d ok=%v", idx, ok)
	}

	if _, _, ok := NearestEdge(Pt(-1, 5), poly, false, 2); ok {
		t.Error("open polyline should not include the closing edge")
	}
	if _, _, ok := NearestEdge(Pt(50, 50), poly, true, 2); ok {
		t.Error("far point should not hit")
	}
	if _, _, ok := NearestEdge(Pt(0, 0), nil, true, 2); ok {
		t.Error("empty input should not hit")
	}
}

func TestNearestVertex(t *testing.T) {
	pts := []Point{{0, 0}, {10, 0}, {10, 1}}
	idx, ok := NearestVertex(Pt(10, 0.8), pts, 2)
	if !ok || idx != 2 {
		t.Errorf("got idx=%d ok=%v, want 2", idx, ok)
	}
	if _, ok := NearestVertex(Pt(5, 5), pts, 2); ok {
		t.Error("expected no vertex within tolerance")
	}
}

func TestAreaAndPerimeter(t *testing.T) {
	poly := square(10, 10, 50, 40)
	if got := Area(poly); got != 1200 {
		t.Errorf("Area: got %v, want 1200", got)
	}
	if got := Perimeter(poly, true); got != 140 {
		t.Errorf("Perimeter closed: got %v, want 140", got)
	}
	if got := Perimeter(poly, false); got != 110 {
		t.Errorf("Perimeter open: got %v, want 110", got)
	}

	// Reversed winding gives the same absolute area.
	rev := []Point{poly[3], poly[2], poly[1], poly[0]}
	if got := Area(rev); got != 1200 {
		t.Errorf("Area reversed: got %v, want 1200", got)
	}

	if Area([]Point{{0, 0}, {1, 1}}) != 0 {
		t.Error("Area of two points should be 0")
	}
	if Perimeter([]Point{{1, 1}}, true) != 0 {
		t.Error("Perimeter of one point should be 0")
	}
}

func TestIoU(t *testing.T) {
	a := RectFromPoints(Pt(0, 0), Pt(10, 10))

	tests := []struct {
		name string
		b    Rect
		want float64
	}{
		{"identical", a, 1},
		{"disjoint", RectFromPoints(Pt(20, 20), Pt(30, 30)), 0},
		{"half overlap", RectFromPoints(Pt(5, 0), Pt(15, 10)), 50.0 / 150.0},
		{"degenerate", RectFromPoints(Pt(5, 5), Pt(5, 5)), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IoU(a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IoU = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectHelpers(t *testing.T) {
	r := RectFromPoints(Pt(50, 40), Pt(10, 10))
	if r.Min != Pt(10, 10) || r.Max != Pt(50, 40) {
		t.Fatalf("RectFromPoints did not normalize: %+v", r)
	}
	if got := r.Clamp(Pt(-5, 100)); got != Pt(10, 40) {
		t.Errorf("Clamp: got %v", got)
	}
	if !r.ContainsRect(RectFromPoints(Pt(20, 20), Pt(30, 30))) {
		t.Error("ContainsRect should be true")
	}
	if r.ContainsRect(RectFromPoints(Pt(20, 20), Pt(60, 30))) {
		t.Error("ContainsRect should be false")
	}
	if b := Bounds(nil); b != (Rect{}) {
		t.Errorf("Bounds(nil): got %+v", b)
	}
}

func TestImageRectConversion(t *testing.T) {
	r := FromImageRect(image.Rect(2, 3, 12, 8))
	if r.Min != Pt(2, 3) || r.Max != Pt(12, 8) {
		t.Errorf("FromImageRect: got %+v", r)
	}
	got := RectFromPoints(Pt(1.5, 2.2), Pt(9.1, 7)).ImageRect()
	if got != image.Rect(1, 2, 10, 7) {
		t.Errorf("ImageRect: got %v", got)
	}
	if (Rect{Max: Pt(math.NaN(), 1)}).IsFinite() {
		t.Error("NaN rectangle reported finite")
	}
}

func TestPolylineIntersectsRect(t *testing.T) {
	r := RectFromPoints(Pt(0, 0), Pt(10, 10))
	crossing := []Point{{-5, 5}, {15, 5}}
	if !PolylineIntersectsRect(crossing, false, r) {
		t.Error("line crossing the rectangle should intersect")
	}
	outside := []Point{{20, 20}, {30, 20}, {30, 30}}
	if PolylineIntersectsRect(outside, true, r) {
		t.Error("distant polygon should not intersect")
	}
}

func TestSimplify(t *testing.T) {
	// A square with extra points on every edge.
	var poly []Point
	for x := 0.0; x < 10; x++ {
		poly = append(poly, Pt(x, 0))
	}
	for y := 0.0; y < 10; y++ {
		poly = append(poly, Pt(10, y))
	}
	for x := 10.0; x > 0; x-- {
		poly = append(poly, Pt(x, 10))
	}
	for y := 10.0; y > 0; y-- {
		poly = append(poly, Pt(0, y))
	}

	got := Simplify(poly, 0.5)
	if len(got) != 4 {
		t.Fatalf("Simplify: got %d vertices (%v), want 4", len(got), got)
	}
	if math.Abs(Area(got)-100) > 1e-9 {
		t.Errorf("simplified area: got %v, want 100", Area(got))
	}

	tri := []Point{{0, 0}, {5, 0}, {0, 5}}
	if got := Simplify(tri, 100); len(got) != 3 {
		t.Errorf("triangle should stay intact, got %v", got)
	}
}

func TestRemoveCollinear(t *testing.T) {
	poly := []Point{{0, 0}, {5, 0.01}, {10, 0}, {10, 10}, {10, 10}, {0, 10}}
	got := RemoveCollinear(poly, 0.1, true)
	if len(got) != 4 {
		t.Errorf("RemoveCollinear closed: got %v, want 4 vertices", got)
	}

	line := []Point{{0, 0}, {1, 0}, {2, 0}}
	got = RemoveCollinear(line, 0.1, false)
	if len(got) != 2 || got[0] != Pt(0, 0) || got[1] != Pt(2, 0) {
		t.Errorf("RemoveCollinear open: got %v", got)
	}

	flat := []Point{{0, 0}, {1, 0}, {2, 0}}
	if got := RemoveCollinear(flat, 0.1, true); len(got) != 3 {
		t.Errorf("closed ring must keep 3 vertices, got %v", got)
	}
}

func TestTransform(t *testing.T) {
	view := NewViewport(2, Pt(100, 50))
	screen := view.Apply(Pt(10, 10))
	if screen != Pt(120, 70) {
		t.Fatalf("Apply: got %v, want (120,70)", screen)
	}

	inv, err := view.Inverse()
	if err != nil {
		t.Fatalf("Inverse failed: %v", err)
	}
	back := inv.Apply(screen)
	if math.Abs(back.X-10) > 1e-9 || math.Abs(back.Y-10) > 1e-9 {
		t.Errorf("round trip: got %v, want (10,10)", back)
	}

	if s := view.Scale(); math.Abs(s-2) > 1e-9 {
		t.Errorf("Scale: got %v, want 2", s)
	}

	composed := NewViewport(1, Pt(5, 5)).Then(NewViewport(3, Pt(0, 0)))
	if got := composed.Apply(Pt(1, 1)); got != Pt(18, 18) {
		t.Errorf("Then: got %v, want (18,18)", got)
	}

	var zero Transform
	if got := zero.Apply(Pt(3, 4)); got != Pt(3, 4) {
		t.Errorf("zero transform should be identity, got %v", got)
	}

	if _, err := NewViewport(0, Pt(0, 0)).Inverse(); !errors.Is(err, ErrSingular) {
		t.Errorf("zero zoom should be singular, got %v", err)
	}
}
