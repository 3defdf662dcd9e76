package annotation

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

func mustShape(t *testing.T, typ shape.Type, label string, coords ...float64) *shape.Shape {
	t.Helper()
	var pts []geometry.Point
	for i := 0; i+1 < len(coords); i += 2 {
		pts = append(pts, geometry.Pt(coords[i], coords[i+1]))
	}
	s, err := shape.New(typ, pts, label)
	if err != nil {
		t.Fatalf("shape.New(%s): %v", typ, err)
	}
	return s
}

// newTestEngine returns an engine over a 100×100 image holding a polygon
// (id 1), a rectangle (id 2) and a point (id 3).
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	doc := NewDocument(ImageRef{Path: "test.png", Width: 100, Height: 100})
	e := NewEngine(doc)
	err := e.Load(doc.Image(), []*shape.Shape{
		mustShape(t, shape.TypePolygon, "roof", 10, 10, 30, 10, 30, 30, 10, 30),
		mustShape(t, shape.TypeRectangle, "car", 40, 40, 60, 60),
		mustShape(t, shape.TypePoint, "nose", 80, 80),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return e
}

func sameShapes(a, b []*shape.Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func TestUndoRestoresState(t *testing.T) {
	red := shape.Color{R: 255, A: 255}
	group := 4
	mask := image.NewGray(image.Rect(0, 0, 4, 4))
	mask.SetGray(1, 1, color.Gray{Y: 255})
	maskShape, err := shape.NewMask(geometry.RectFromPoints(geometry.Pt(0, 0), geometry.Pt(8, 8)), mask, "blob")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		kind Kind
		cmd  func() Command
	}{
		{"add", KindAdd, func() Command { return AddShapes(mustShape(t, shape.TypeLine, "edge", 0, 0, 5, 5)) }},
		{"add mask", KindAdd, func() Command { return AddShapes(maskShape) }},
		{"remove", KindRemove, func() Command { return RemoveShapes(1, 3) }},
		{"move vertex", KindMoveVertex, func() Command { return MoveVertex(1, 2, geometry.Pt(35, 35)) }},
		{"move shape", KindMoveShape, func() Command { return MoveShape(2, geometry.Pt(5, -5)) }},
		{"move shapes", KindMoveShape, func() Command { return MoveShapes(geometry.Pt(1, 1), 1, 2) }},
		{"insert vertex", KindReshape, func() Command { return InsertVertex(1, 1, geometry.Pt(20, 5)) }},
		{"remove vertex", KindReshape, func() Command { return RemoveVertex(1, 0) }},
		{"reshape", KindReshape, func() Command {
			return Reshape(2, []geometry.Point{geometry.Pt(0, 0), geometry.Pt(10, 10)})
		}},
		{"set label", KindSetLabel, func() Command { return SetLabel(2, "truck") }},
		{"set group", KindSetGroup, func() Command { return SetGroup(3, &group) }},
		{"set visibility", KindSetVisibility, func() Command { return SetVisibility(1, false) }},
		{"set lock", KindSetLock, func() Command { return SetLocked(2, true) }},
		{"set color", KindSetColor, func() Command { return SetColors(2, &red, nil) }},
		{"composite", KindComposite, func() Command {
			return Composite("label and move", SetLabel(1, "wall"), MoveShape(1, geometry.Pt(2, 2)))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			before := e.Document().Shapes()

			cmd := tt.cmd()
			if cmd.Kind() != tt.kind {
				t.Errorf("Kind: got %s, want %s", cmd.Kind(), tt.kind)
			}
			if err := e.Apply(cmd); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			after := e.Document().Shapes()
			if sameShapes(before, after) {
				t.Fatal("command did not change the document")
			}

			if _, ok := e.Undo(); !ok {
				t.Fatal("Undo returned false")
			}
			if !sameShapes(before, e.Document().Shapes()) {
				t.Error("undo did not restore the original shapes")
			}

			if _, ok := e.Redo(); !ok {
				t.Fatal("Redo returned false")
			}
			if !sameShapes(after, e.Document().Shapes()) {
				t.Error("redo did not reproduce the applied state")
			}
		})
	}
}

func TestUndoRedoEmpty(t *testing.T) {
	e := NewEngine(NewDocument(ImageRef{Width: 10, Height: 10}))
	if _, ok := e.Undo(); ok {
		t.Error("Undo on empty stack should return false")
	}
	if _, ok := e.Redo(); ok {
		t.Error("Redo on empty stack should return false")
	}
	if e.Document().Revision() != 0 {
		t.Error("no-op undo/redo must not bump the revision")
	}
}

func TestApplyClearsRedo(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Apply(SetLabel(1, "a")); err != nil {
		t.Fatal(err)
	}
	e.Undo()
	if !e.CanRedo() {
		t.Fatal("expected redo to be available")
	}
	if err := e.Apply(SetLabel(1, "b")); err != nil {
		t.Fatal(err)
	}
	if e.CanRedo() {
		t.Error("new command should clear the redo stack")
	}
}

func TestFailedCommandLeavesDocumentUntouched(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr error
	}{
		{"unknown id", SetLabel(99, "x"), ErrNotFound},
		{"polygon floor", Composite("shrink", RemoveVertex(1, 0), RemoveVertex(1, 0)), shape.ErrWouldInvalidate},
		{"degenerate reshape", Reshape(2, []geometry.Point{geometry.Pt(5, 5), geometry.Pt(5, 5)}), shape.ErrWouldInvalidate},
		{"no change", SetLabel(2, "car"), ErrNoChange},
		{"partial remove", RemoveShapes(1, 42), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			before := e.Document().Shapes()
			rev := e.Document().Revision()

			err := e.Apply(tt.cmd)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !sameShapes(before, e.Document().Shapes()) {
				t.Error("failed command modified the document")
			}
			if e.CanUndo() {
				t.Error("failed command was recorded")
			}
			if e.Document().Revision() != rev {
				t.Error("failed command bumped the revision")
			}
		})
	}
}

func TestLockedShapes(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Apply(SetLocked(2, true)); err != nil {
		t.Fatal(err)
	}

	for name, cmd := range map[string]Command{
		"move":    MoveShape(2, geometry.Pt(1, 1)),
		"reshape": Reshape(2, []geometry.Point{geometry.Pt(0, 0), geometry.Pt(9, 9)}),
		"remove":  RemoveShapes(2),
	} {
		if err := e.Apply(cmd); !errors.Is(err, shape.ErrLocked) {
			t.Errorf("%s: expected ErrLocked, got %v", name, err)
		}
	}

	if err := e.Apply(SetLabel(2, "parked")); err != nil {
		t.Errorf("label edits on locked shapes should be allowed: %v", err)
	}
}

func TestIDsAreStable(t *testing.T) {
	e := newTestEngine(t)
	add := AddShapes(mustShape(t, shape.TypePoint, "a", 1, 1))
	if err := e.Apply(add); err != nil {
		t.Fatal(err)
	}
	ids := AddedIDs(add)
	if len(ids) != 1 || ids[0] != 4 {
		t.Fatalf("expected new id 4, got %v", ids)
	}

	e.Undo()
	e.Redo()
	if _, ok := e.Document().Shape(4); !ok {
		t.Error("redo should restore the same id")
	}

	if err := e.Apply(RemoveShapes(4)); err != nil {
		t.Fatal(err)
	}
	add2 := AddShapes(mustShape(t, shape.TypePoint, "b", 2, 2))
	if err := e.Apply(add2); err != nil {
		t.Fatal(err)
	}
	if got := AddedIDs(add2); got[0] != 5 {
		t.Errorf("ids must never be reused, got %v", got)
	}
}

func TestRemovePreservesZOrder(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Apply(RemoveShapes(3, 1)); err != nil {
		t.Fatal(err)
	}
	if got := e.Document().IDs(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("after remove: %v", got)
	}
	e.Undo()
	got := e.Document().IDs()
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("z-order after undo: got %v, want %v", got, want)
		}
	}
}

func TestAddClampsToImage(t *testing.T) {
	e := newTestEngine(t)
	add := AddShapes(mustShape(t, shape.TypeRectangle, "edge", 90, 90, 130, 120))
	if err := e.Apply(add); err != nil {
		t.Fatal(err)
	}
	s, _ := e.Document().Shape(AddedIDs(add)[0])
	if s.Points[1] != geometry.Pt(100, 100) {
		t.Errorf("expected clamped corner (100,100), got %v", s.Points[1])
	}
}

func TestCompositeSkipsNoOps(t *testing.T) {
	e := newTestEngine(t)
	cmd := Composite("relabel", SetLabel(1, "roof"), SetLabel(2, "bus"))
	if err := e.Apply(cmd); err != nil {
		t.Fatalf("composite with one real change should apply: %v", err)
	}
	e.Undo()
	if s, _ := e.Document().Shape(2); s.Label != "car" {
		t.Errorf("undo: got label %q", s.Label)
	}

	if err := e.Apply(Composite("noop", SetLabel(1, "roof"))); !errors.Is(err, ErrNoChange) {
		t.Errorf("expected ErrNoChange, got %v", err)
	}
}

func TestDirtyTracking(t *testing.T) {
	e := newTestEngine(t)
	if e.Dirty() {
		t.Fatal("freshly loaded document should be clean")
	}
	_ = e.Apply(SetLabel(1, "x"))
	if !e.Dirty() {
		t.Error("edit should make the document dirty")
	}
	e.MarkSaved()
	if e.Dirty() {
		t.Error("save should make the document clean")
	}
	e.Undo()
	if !e.Dirty() {
		t.Error("undo past the save point should be dirty")
	}
	e.Redo()
	if e.Dirty() {
		t.Error("redo back to the save point should be clean")
	}
}

func TestNextGroupID(t *testing.T) {
	e := newTestEngine(t)
	if got := e.Document().NextGroupID(); got != 1 {
		t.Errorf("empty groups: got %d", got)
	}
	g := 7
	_ = e.Apply(SetGroup(1, &g))
	_ = e.Apply(SetGroup(3, &g))
	if got := e.Document().NextGroupID(); got != 8 {
		t.Errorf("NextGroupID: got %d, want 8", got)
	}
	if got := e.Document().GroupMembers(7); len(got) != 2 {
		t.Errorf("GroupMembers: got %v", got)
	}
}
