package canvas

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ironsheep/annotation-tools-mcp/internal/annotation"
	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/selection"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// ErrBadPointer is returned for non-finite pointer coordinates.
var ErrBadPointer = errors.New("pointer position is not finite")

// imageBounds returns the document image area. ok is false when the image
// size is unknown.
func (c *Canvas) imageBounds() (geometry.Rect, bool) {
	b := c.engine.Document().Image().Bounds()
	return b, !b.Empty()
}

// clampImage maps a screen point into the image and clamps it to the image
// bounds.
func (c *Canvas) clampImage(screen geometry.Point) geometry.Point {
	p := c.ToImage(screen)
	if b, ok := c.imageBounds(); ok {
		p = b.Clamp(p)
	}
	return p
}

// PointerDown handles a button press at a screen position.
func (c *Canvas) PointerDown(screen geometry.Point, mods Modifiers) error {
	if !screen.IsFinite() {
		return ErrBadPointer
	}
	c.pressed = true
	c.pressAt = screen
	c.cursor = c.clampImage(screen)

	switch c.mode {
	case ModeIdle:
		if mods.Has(ModPan) {
			c.mode = ModePanning
			c.panOrigin = c.pan
			return nil
		}
		if c.tool.Create {
			return c.startDrawing()
		}
		c.startEdit(screen, mods)
		return nil
	case ModeDrawing:
		return c.drawPress(screen)
	}
	// A press while another gesture is active means the release was lost.
	// Treat it as the end of that gesture.
	return c.PointerUp(screen, mods)
}

// PointerMove handles pointer motion. Only transient preview state changes.
func (c *Canvas) PointerMove(screen geometry.Point, mods Modifiers) error {
	if !screen.IsFinite() {
		return ErrBadPointer
	}
	switch c.mode {
	case ModePanning:
		// The pan only changes the viewport; no command is recorded.
		return c.SetViewport(c.zoom, c.panOrigin.Add(screen.Sub(c.pressAt)))
	case ModeEditingShape:
		c.dragDelta = c.clampDelta(c.ToImage(screen).Sub(c.dragStart))
		c.cursor = c.ToImage(screen)
	case ModeEditingVertex:
		// The vertex keeps its offset from the pointer so a press slightly
		// off the vertex does not make it jump.
		p := c.editOrigin.Add(c.ToImage(screen).Sub(c.ToImage(c.pressAt)))
		if b, ok := c.imageBounds(); ok {
			p = b.Clamp(p)
		}
		c.cursor = p
	default:
		c.cursor = c.clampImage(screen)
	}
	return nil
}

// PointerUp handles a button release and completes the active gesture.
func (c *Canvas) PointerUp(screen geometry.Point, mods Modifiers) error {
	if !screen.IsFinite() {
		return ErrBadPointer
	}
	wasPressed := c.pressed
	c.pressed = false
	if err := c.PointerMove(screen, mods); err != nil {
		return err
	}

	switch c.mode {
	case ModeDrawing:
		if wasPressed && c.tool.Type.MaxPoints() == 2 && len(c.pending) == 1 &&
			screen.Distance(c.pressAt) > c.opts.DragThreshold {
			return c.finishDrawing(append(c.pending, c.cursor))
		}
		return nil

	case ModeEditingVertex:
		id, v, to := c.editID, c.editVertex, c.cursor
		moved := to != c.editOrigin && !c.isClick(screen)
		c.mode = ModeIdle
		if !moved {
			return nil
		}
		return c.apply(annotation.MoveVertex(id, v, to))

	case ModeEditingShape:
		ids, delta := c.dragIDs, c.dragDelta
		click := c.isClick(screen)
		c.Cancel()
		if click || delta == (geometry.Point{}) || len(ids) == 0 {
			return nil
		}
		return c.apply(annotation.MoveShapes(delta, ids...))

	case ModeSelecting:
		c.finishBand(screen)
		return nil

	case ModePanning:
		c.mode = ModeIdle
		return nil
	}
	return nil
}

// isClick reports whether a release at screen is close enough to the press
// to count as a click rather than a drag.
func (c *Canvas) isClick(screen geometry.Point) bool {
	return screen.Distance(c.pressAt) <= c.opts.DragThreshold
}

// KeyPress handles a keyboard command.
func (c *Canvas) KeyPress(k Key) error {
	switch c.mode {
	case ModeDrawing:
		switch k {
		case KeyEscape:
			c.Cancel()
		case KeyBackspace:
			c.pending = c.pending[:len(c.pending)-1]
			if len(c.pending) == 0 {
				c.Cancel()
			}
		case KeyEnter:
			if len(c.pending) >= c.tool.Type.MinPoints() && c.tool.Type.VariableArity() {
				return c.finishDrawing(c.pending)
			}
		}
		return nil

	case ModeIdle:
		switch k {
		case KeyEscape:
			c.ClearSelection()
		case KeyDelete, KeyBackspace:
			ids := c.Selection()
			if len(ids) == 0 {
				return nil
			}
			if err := c.apply(annotation.RemoveShapes(ids...)); err != nil {
				return err
			}
			c.ClearSelection()
		}
		return nil
	}

	if k == KeyEscape {
		if c.mode == ModePanning {
			_ = c.SetViewport(c.zoom, c.panOrigin)
		}
		c.Cancel()
	}
	return nil
}

// apply runs a command through the engine. Edits that change nothing or
// would produce invalid geometry are dropped quietly.
func (c *Canvas) apply(cmd annotation.Command) error {
	err := c.engine.Apply(cmd)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, annotation.ErrNoChange), errors.Is(err, shape.ErrWouldInvalidate):
		slog.Debug("gesture ignored", "desc", cmd.Describe(), "reason", err)
		return nil
	}
	return err
}

func (c *Canvas) startDrawing() error {
	if c.tool.Type == shape.TypePoint {
		return c.finishDrawing([]geometry.Point{c.cursor})
	}
	c.mode = ModeDrawing
	c.pending = []geometry.Point{c.cursor}
	return nil
}

func (c *Canvas) drawPress(screen geometry.Point) error {
	p := c.cursor
	switch {
	case c.tool.Type.MaxPoints() == 2:
		return c.finishDrawing(append(c.pending, p))

	case c.tool.Type == shape.TypePolygon && len(c.pending) >= 3 &&
		screen.Distance(c.ToScreen(c.pending[0])) <= c.opts.CloseDistance:
		return c.finishDrawing(c.pending)
	}

	if last := c.pending[len(c.pending)-1]; last.DistanceSq(p) < geometry.Epsilon {
		return nil
	}
	c.pending = append(c.pending, p)
	return nil
}

// finishDrawing commits the drawn shape. Degenerate results are discarded
// without a command.
func (c *Canvas) finishDrawing(points []geometry.Point) error {
	tool := c.tool
	c.Cancel()

	s, err := shape.New(tool.Type, points, tool.Label)
	if err != nil {
		slog.Debug("discarding degenerate drawing", "type", tool.Type, "error", err)
		return nil
	}
	cmd := annotation.AddShapes(s)
	if err := c.engine.Apply(cmd); err != nil {
		return fmt.Errorf("add drawn shape: %w", err)
	}
	c.selected = annotation.AddedIDs(cmd)
	return nil
}

func (c *Canvas) startEdit(screen geometry.Point, mods Modifiers) {
	hit, ok := c.HitTest(screen, selection.PurposeEdit)
	if !ok {
		c.mode = ModeSelecting
		c.bandStart = c.cursor
		c.bandMods = mods
		return
	}

	if mods.Has(ModCtrl) {
		c.toggle(hit.ShapeID)
		return
	}
	if mods.Has(ModShift) {
		if !c.isSelected(hit.ShapeID) {
			c.selected = c.zOrdered(append(c.selected, hit.ShapeID))
		}
		return
	}

	if hit.Kind == selection.HitVertex {
		c.selected = []int{hit.ShapeID}
		c.mode = ModeEditingVertex
		c.editID = hit.ShapeID
		c.editVertex = hit.Vertex
		c.editOrigin = hit.Point
		c.cursor = hit.Point
		return
	}

	if !c.isSelected(hit.ShapeID) {
		c.selected = []int{hit.ShapeID}
	}
	c.dragIDs = c.dragSet()
	if len(c.dragIDs) == 0 {
		return
	}
	c.mode = ModeEditingShape
	c.dragStart = c.ToImage(screen)
	c.dragDelta = geometry.Point{}
	c.dragBounds = c.unionBounds(c.dragIDs)
}

func (c *Canvas) toggle(id int) {
	if !c.isSelected(id) {
		c.selected = c.zOrdered(append(c.selected, id))
		return
	}
	out := c.selected[:0:0]
	for _, s := range c.selected {
		if s != id {
			out = append(out, s)
		}
	}
	c.selected = out
}

// dragSet expands the selection with every shape sharing a group id and
// keeps only shapes that can be edited.
func (c *Canvas) dragSet() []int {
	doc := c.engine.Document()
	ids := append([]int(nil), c.selected...)
	for _, id := range c.selected {
		if s, ok := doc.Shape(id); ok && s.GroupID != nil {
			ids = append(ids, doc.GroupMembers(*s.GroupID)...)
		}
	}
	var out []int
	for _, id := range c.zOrdered(ids) {
		if s, ok := doc.Shape(id); ok && s.Visible && !s.Locked {
			out = append(out, id)
		}
	}
	return out
}

// unionBounds is the box around the vertices of ids. Vertices are what the
// document keeps inside the image; a circle's rim may extend past it.
func (c *Canvas) unionBounds(ids []int) geometry.Rect {
	doc := c.engine.Document()
	var pts []geometry.Point
	for _, id := range ids {
		if s, ok := doc.Shape(id); ok {
			pts = append(pts, s.Points...)
		}
	}
	return geometry.Bounds(pts)
}

// clampDelta limits a drag so the dragged vertices stay inside the image.
// It only shortens a move; it never pushes shapes that did not move.
func (c *Canvas) clampDelta(d geometry.Point) geometry.Point {
	img, ok := c.imageBounds()
	if !ok {
		return d
	}
	b := c.dragBounds
	d.X = clampAxis(d.X, img.Min.X-b.Min.X, img.Max.X-b.Max.X)
	d.Y = clampAxis(d.Y, img.Min.Y-b.Min.Y, img.Max.Y-b.Max.Y)
	return d
}

func clampAxis(v, lo, hi float64) float64 {
	lo, hi = math.Min(lo, 0), math.Max(hi, 0)
	return math.Max(lo, math.Min(v, hi))
}

func (c *Canvas) finishBand(screen geometry.Point) {
	start := c.bandStart
	mods := c.bandMods
	end := c.cursor
	c.Cancel()

	if c.ToScreen(start).Distance(screen) < c.opts.MinSelectDrag {
		// A plain click on empty space.
		if mods == 0 {
			c.ClearSelection()
		}
		return
	}

	band := geometry.RectFromPoints(start, end)
	ids := c.Index().SelectRect(band, c.opts.Policy, selection.PurposeEdit)
	switch {
	case mods.Has(ModCtrl):
		for _, id := range ids {
			c.toggle(id)
		}
	case mods.Has(ModShift):
		c.selected = c.zOrdered(append(c.selected, ids...))
	default:
		c.selected = ids
	}
}
