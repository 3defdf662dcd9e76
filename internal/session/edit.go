package session

import (
	"errors"
	"fmt"

	"github.com/ironsheep/annotation-tools-mcp/internal/annotation"
	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// NewShape describes a shape to add.
type NewShape struct {
	Type        string           `json:"shape_type"`
	Points      []geometry.Point `json:"points"`
	Label       string           `json:"label"`
	GroupID     *int             `json:"group_id,omitempty"`
	Description string           `json:"description,omitempty"`
	LineColor   string           `json:"line_color,omitempty"`
	FillColor   string           `json:"fill_color,omitempty"`
	Hidden      bool             `json:"hidden,omitempty"`
	Locked      bool             `json:"locked,omitempty"`
}

// ShapeUpdate lists property changes for one shape. Nil fields are left
// alone. An empty colour string clears the override.
type ShapeUpdate struct {
	Label       *string          `json:"label,omitempty"`
	Description *string          `json:"description,omitempty"`
	GroupID     *int             `json:"group_id,omitempty"`
	Ungroup     bool             `json:"ungroup,omitempty"`
	Visible     *bool            `json:"visible,omitempty"`
	Locked      *bool            `json:"locked,omitempty"`
	LineColor   *string          `json:"line_color,omitempty"`
	FillColor   *string          `json:"fill_color,omitempty"`
	Points      []geometry.Point `json:"points,omitempty"`
	Move        *geometry.Point  `json:"move,omitempty"`
}

// VertexOp is a single-vertex edit.
type VertexOp string

const (
	VertexMove   VertexOp = "move"
	VertexInsert VertexOp = "insert"
	VertexRemove VertexOp = "remove"
)

func (s *Session) apply(cmd annotation.Command) error {
	if !s.IsOpen() {
		return ErrNoDocument
	}
	return s.engine.Apply(cmd)
}

// AddShape validates and adds a shape. Points are clamped to the image.
func (s *Session) AddShape(ns NewShape) (int, error) {
	t, err := shape.ParseType(ns.Type)
	if err != nil {
		return 0, err
	}
	if t == shape.TypeMask {
		return 0, fmt.Errorf("%w: masks come from detection, not from points", shape.ErrInvalidGeometry)
	}
	sh, err := shape.New(t, ns.Points, ns.Label)
	if err != nil {
		return 0, err
	}
	sh.GroupID = ns.GroupID
	sh.Description = ns.Description
	sh.Visible = !ns.Hidden
	sh.Locked = ns.Locked
	if sh.LineColor, err = parseColor(ns.LineColor); err != nil {
		return 0, err
	}
	if sh.FillColor, err = parseColor(ns.FillColor); err != nil {
		return 0, err
	}

	cmd := annotation.AddShapes(sh)
	if err := s.apply(cmd); err != nil {
		return 0, err
	}
	return annotation.AddedIDs(cmd)[0], nil
}

// DeleteShapes removes shapes as one undo step.
func (s *Session) DeleteShapes(ids ...int) error {
	if len(ids) == 0 {
		return errors.New("no shape ids given")
	}
	return s.apply(annotation.RemoveShapes(ids...))
}

// UpdateShape applies every requested change as one undo step.
func (s *Session) UpdateShape(id int, u ShapeUpdate) error {
	cur, ok := s.Document().Shape(id)
	if !ok {
		return fmt.Errorf("%w: %d", annotation.ErrNotFound, id)
	}

	var cmds []annotation.Command
	if u.Label != nil {
		cmds = append(cmds, annotation.SetLabel(id, *u.Label))
	}
	if u.Description != nil {
		cmds = append(cmds, annotation.SetDescription(id, *u.Description))
	}
	switch {
	case u.Ungroup:
		cmds = append(cmds, annotation.SetGroup(id, nil))
	case u.GroupID != nil:
		cmds = append(cmds, annotation.SetGroup(id, u.GroupID))
	}
	if u.LineColor != nil || u.FillColor != nil {
		line, fill := cur.LineColor, cur.FillColor
		var err error
		if u.LineColor != nil {
			if line, err = parseColor(*u.LineColor); err != nil {
				return err
			}
		}
		if u.FillColor != nil {
			if fill, err = parseColor(*u.FillColor); err != nil {
				return err
			}
		}
		cmds = append(cmds, annotation.SetColors(id, line, fill))
	}
	if u.Points != nil {
		cmds = append(cmds, annotation.Reshape(id, u.Points))
	}
	if u.Move != nil {
		cmds = append(cmds, annotation.MoveShape(id, *u.Move))
	}
	if u.Visible != nil {
		cmds = append(cmds, annotation.SetVisibility(id, *u.Visible))
	}
	// Lock last so the other edits in this update still apply to an
	// unlocked shape.
	if u.Locked != nil {
		if *u.Locked {
			cmds = append(cmds, annotation.SetLocked(id, true))
		} else {
			cmds = append([]annotation.Command{annotation.SetLocked(id, false)}, cmds...)
		}
	}

	switch len(cmds) {
	case 0:
		return annotation.ErrNoChange
	case 1:
		return s.apply(cmds[0])
	}
	return s.apply(annotation.Composite(fmt.Sprintf("update shape %d", id), cmds...))
}

// EditVertex moves, inserts or removes one vertex.
func (s *Session) EditVertex(id int, op VertexOp, index int, p geometry.Point) error {
	switch op {
	case VertexMove:
		return s.apply(annotation.MoveVertex(id, index, p))
	case VertexInsert:
		return s.apply(annotation.InsertVertex(id, index, p))
	case VertexRemove:
		return s.apply(annotation.RemoveVertex(id, index))
	}
	return fmt.Errorf("unknown vertex operation %q", op)
}

// Undo reverts the last edit. It reports false when there was nothing to
// undo or a gesture is in progress.
func (s *Session) Undo() (string, bool) {
	cmd, ok := s.canvas.Undo()
	if !ok {
		return "", false
	}
	return cmd.Describe(), true
}

// Redo re-applies the last undone edit.
func (s *Session) Redo() (string, bool) {
	cmd, ok := s.canvas.Redo()
	if !ok {
		return "", false
	}
	return cmd.Describe(), true
}

// ResolvedShape is a shape with its effective colours.
type ResolvedShape struct {
	*shape.Shape
	Line string `json:"resolved_line_color"`
	Fill string `json:"resolved_fill_color"`
}

// Shapes returns the document shapes in z-order with palette colours
// resolved.
func (s *Session) Shapes() []ResolvedShape {
	shapes := s.Document().Shapes()
	out := make([]ResolvedShape, len(shapes))
	for i, sh := range shapes {
		out[i] = ResolvedShape{
			Shape: sh,
			Line:  s.palette.LineColor(sh).Hex(),
			Fill:  s.palette.FillColor(sh).Hex(),
		}
	}
	return out
}

func parseColor(hex string) (*shape.Color, error) {
	if hex == "" {
		return nil, nil
	}
	c, err := shape.ParseHex(hex)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
