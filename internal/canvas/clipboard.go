package canvas

import (
	"errors"
	"fmt"

	"github.com/ironsheep/annotation-tools-mcp/internal/annotation"
	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// ErrEmptyClipboard is returned by Paste before anything was copied.
var ErrEmptyClipboard = errors.New("clipboard is empty")

// ErrNothingSelected is returned by Copy and Duplicate without a selection.
var ErrNothingSelected = errors.New("no shapes selected")

// Copy puts clones of the selected shapes on the clipboard and returns how
// many were copied. The document is not changed.
func (c *Canvas) Copy() (int, error) {
	shapes := c.selectedShapes()
	if len(shapes) == 0 {
		return 0, ErrNothingSelected
	}
	c.clipboard = shapes
	c.pastes = 0
	return len(shapes), nil
}

// Paste adds the clipboard shapes as one command and selects the copies.
// Each paste of the same clipboard lands one PasteOffset further down and
// right so the copies do not stack.
func (c *Canvas) Paste() ([]int, error) {
	if len(c.clipboard) == 0 {
		return nil, ErrEmptyClipboard
	}
	ids, err := c.placeCopies(c.clipboard, float64(c.pastes+1))
	if err != nil {
		return nil, err
	}
	c.pastes++
	return ids, nil
}

// Duplicate copies the selection in place, offset by PasteOffset, as one
// command and selects the copies. The clipboard is left alone.
func (c *Canvas) Duplicate() ([]int, error) {
	shapes := c.selectedShapes()
	if len(shapes) == 0 {
		return nil, ErrNothingSelected
	}
	return c.placeCopies(shapes, 1)
}

func (c *Canvas) selectedShapes() []*shape.Shape {
	doc := c.engine.Document()
	var out []*shape.Shape
	for _, id := range c.Selection() {
		if s, ok := doc.Shape(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// placeCopies adds clones of src shifted by steps offsets. Groups among the
// copies are renumbered so copies never join the groups of their originals.
func (c *Canvas) placeCopies(src []*shape.Shape, steps float64) ([]int, error) {
	if c.mode != ModeIdle {
		return nil, fmt.Errorf("cannot paste while %s", c.mode)
	}
	step := c.opts.PasteOffset / c.zoom * steps
	delta := geometry.Pt(step, step)

	var pts []geometry.Point
	for _, s := range src {
		pts = append(pts, s.Points...)
	}
	if img, ok := c.imageBounds(); ok {
		b := geometry.Bounds(pts)
		delta.X = clampAxis(delta.X, img.Min.X-b.Min.X, img.Max.X-b.Max.X)
		delta.Y = clampAxis(delta.Y, img.Min.Y-b.Min.Y, img.Max.Y-b.Max.Y)
	}

	nextGroup := c.engine.Document().NextGroupID()
	groups := make(map[int]int)
	copies := make([]*shape.Shape, len(src))
	for i, s := range src {
		cp := s.Clone()
		for j := range cp.Points {
			cp.Points[j] = cp.Points[j].Add(delta)
		}
		if cp.GroupID != nil {
			g, ok := groups[*cp.GroupID]
			if !ok {
				g = nextGroup
				nextGroup++
				groups[*cp.GroupID] = g
			}
			cp.GroupID = &g
		}
		cp.Locked = false
		copies[i] = cp
	}

	cmd := annotation.AddShapes(copies...)
	if err := c.engine.Apply(cmd); err != nil {
		return nil, fmt.Errorf("paste: %w", err)
	}
	c.selected = annotation.AddedIDs(cmd)
	return append([]int(nil), c.selected...), nil
}
