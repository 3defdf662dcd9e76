package selection

import (
	"reflect"
	"testing"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

func newShape(t *testing.T, id int, typ shape.Type, coords ...float64) *shape.Shape {
	t.Helper()
	var pts []geometry.Point
	for i := 0; i+1 < len(coords); i += 2 {
		pts = append(pts, geometry.Pt(coords[i], coords[i+1]))
	}
	s, err := shape.New(typ, pts, "")
	if err != nil {
		t.Fatalf("shape.New: %v", err)
	}
	s.ID = id
	return s
}

func TestHitTest_Rectangle(t *testing.T) {
	ix := NewIndex([]*shape.Shape{newShape(t, 1, shape.TypeRectangle, 10, 10, 50, 40)})
	opts := DefaultOptions()

	hit, ok := ix.HitTest(geometry.Pt(30, 25), opts, PurposeEdit)
	if !ok || hit.ShapeID != 1 || hit.Kind != HitInterior {
		t.Errorf("(30,25): got %+v ok=%v, want interior hit on 1", hit, ok)
	}

	if hit, ok := ix.HitTest(geometry.Pt(5, 5), opts, PurposeEdit); ok {
		t.Errorf("(5,5): expected no hit, got %+v", hit)
	}
}

func TestHitTest_Priorities(t *testing.T) {
	shapes := []*shape.Shape{
		newShape(t, 1, shape.TypePolygon, 0, 0, 100, 0, 100, 100, 0, 100),
		newShape(t, 2, shape.TypeRectangle, 40, 40, 60, 60),
	}
	ix := NewIndex(shapes)
	opts := DefaultOptions()

	tests := []struct {
		name     string
		p        geometry.Point
		wantID   int
		wantKind HitKind
	}{
		{"topmost interior wins", geometry.Pt(50, 50), 2, HitInterior},
		{"lower shape interior", geometry.Pt(20, 20), 1, HitInterior},
		{"vertex of top shape", geometry.Pt(41, 41), 2, HitVertex},
		{"edge of top shape", geometry.Pt(50, 38), 2, HitEdge},
		{"vertex beats edge", geometry.Pt(99, 1), 1, HitVertex},
		{"edge of bottom shape", geometry.Pt(50, 2), 1, HitEdge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := ix.HitTest(tt.p, opts, PurposeEdit)
			if !ok {
				t.Fatal("expected a hit")
			}
			if hit.ShapeID != tt.wantID || hit.Kind != tt.wantKind {
				t.Errorf("got shape %d %s, want shape %d %s", hit.ShapeID, hit.Kind, tt.wantID, tt.wantKind)
			}
		})
	}
}

func TestHitTest_TopmostShapeWins(t *testing.T) {
	// The lower shape's corner sits under the upper shape.
	ix := NewIndex([]*shape.Shape{
		newShape(t, 1, shape.TypeRectangle, 0, 0, 50, 50),
		newShape(t, 2, shape.TypeRectangle, 40, 40, 90, 90),
	})
	hit, ok := ix.HitTest(geometry.Pt(50, 50), DefaultOptions(), PurposeEdit)
	if !ok || hit.ShapeID != 2 {
		t.Errorf("got %+v ok=%v, want a hit on the upper shape", hit, ok)
	}
}

func TestHitTest_Purpose(t *testing.T) {
	locked := newShape(t, 1, shape.TypeRectangle, 0, 0, 20, 20)
	locked.Locked = true
	hidden := newShape(t, 2, shape.TypeRectangle, 30, 0, 50, 20)
	hidden.Visible = false
	ix := NewIndex([]*shape.Shape{locked, hidden})
	opts := DefaultOptions()

	if _, ok := ix.HitTest(geometry.Pt(10, 10), opts, PurposeEdit); ok {
		t.Error("locked shape should be excluded from edit hits")
	}
	if hit, ok := ix.HitTest(geometry.Pt(10, 10), opts, PurposeDisplay); !ok || hit.ShapeID != 1 {
		t.Error("locked shape should be included in display hits")
	}
	if _, ok := ix.HitTest(geometry.Pt(40, 10), opts, PurposeDisplay); ok {
		t.Error("hidden shape should be excluded from display hits")
	}
}

func TestHitTest_Circle(t *testing.T) {
	ix := NewIndex([]*shape.Shape{newShape(t, 7, shape.TypeCircle, 50, 50, 70, 50)})
	opts := DefaultOptions()

	if hit, ok := ix.HitTest(geometry.Pt(50, 71), opts, PurposeEdit); !ok || hit.Kind != HitEdge {
		t.Errorf("rim: got %+v ok=%v", hit, ok)
	}
	if hit, ok := ix.HitTest(geometry.Pt(55, 55), opts, PurposeEdit); !ok || hit.Kind != HitInterior {
		t.Errorf("inside: got %+v ok=%v", hit, ok)
	}
}

func TestSelectRect_Policies(t *testing.T) {
	shapes := []*shape.Shape{
		newShape(t, 1, shape.TypeRectangle, 10, 10, 20, 20), // fully inside the band
		newShape(t, 2, shape.TypeRectangle, 45, 10, 80, 20), // crosses the band edge
		newShape(t, 3, shape.TypeRectangle, 70, 70, 90, 90), // outside
		newShape(t, 4, shape.TypePoint, 30, 30),
	}
	ix := NewIndex(shapes)
	band := geometry.RectFromPoints(geometry.Pt(0, 0), geometry.Pt(50, 50))

	if got := ix.SelectRect(band, PolicyContain, PurposeEdit); !reflect.DeepEqual(got, []int{1, 4}) {
		t.Errorf("contain: got %v, want [1 4]", got)
	}
	if got := ix.SelectRect(band, PolicyTouch, PurposeEdit); !reflect.DeepEqual(got, []int{1, 2, 4}) {
		t.Errorf("touch: got %v, want [1 2 4]", got)
	}
}

func TestSelectRect_BandInsideShape(t *testing.T) {
	ix := NewIndex([]*shape.Shape{newShape(t, 1, shape.TypePolygon, 0, 0, 100, 0, 100, 100, 0, 100)})
	band := geometry.RectFromPoints(geometry.Pt(40, 40), geometry.Pt(60, 60))

	if got := ix.SelectRect(band, PolicyContain, PurposeEdit); len(got) != 0 {
		t.Errorf("contain: got %v, want none", got)
	}
	if got := ix.SelectRect(band, PolicyTouch, PurposeEdit); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("touch: got %v, want [1]", got)
	}
}

func TestSelectRect_LineMissingDiagonal(t *testing.T) {
	// The line's bounding box overlaps the band but the line itself does not.
	ix := NewIndex([]*shape.Shape{newShape(t, 1, shape.TypeLine, 0, 100, 100, 0)})
	band := geometry.RectFromPoints(geometry.Pt(0, 0), geometry.Pt(20, 20))
	if got := ix.SelectRect(band, PolicyTouch, PurposeEdit); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy("Touch"); err != nil || p != PolicyTouch {
		t.Errorf("got %q, %v", p, err)
	}
	if _, err := ParsePolicy("lasso"); err == nil {
		t.Error("expected error")
	}
}

func TestOptionsScaled(t *testing.T) {
	got := DefaultOptions().Scaled(2)
	if got.Tolerance != 2.5 || got.VertexTolerance != 2 {
		t.Errorf("Scaled: got %+v", got)
	}
}
