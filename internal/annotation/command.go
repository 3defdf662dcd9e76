package annotation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// ErrNoChange is returned when an edit would leave the shape as it is.
// Nothing is recorded in the history.
var ErrNoChange = errors.New("edit does not change the shape")

// Kind names a command type.
type Kind string

const (
	KindAdd           Kind = "add"
	KindRemove        Kind = "remove"
	KindMoveVertex    Kind = "move-vertex"
	KindMoveShape     Kind = "move-shape"
	KindReshape       Kind = "reshape"
	KindSetLabel      Kind = "set-label"
	KindSetGroup      Kind = "set-group"
	KindSetVisibility Kind = "set-visibility"
	KindSetLock       Kind = "set-lock"
	KindSetColor      Kind = "set-color"
	KindComposite     Kind = "composite"
)

// Command is a reversible document mutation. Commands are built with the
// constructors in this package and executed through Engine.Apply.
type Command interface {
	Kind() Kind
	Describe() string
	apply(d *Document) error
	revert(d *Document) error
}

// editCommand replaces one shape with an edited copy. The edit runs once,
// on first apply; both snapshots are kept for undo and redo.
type editCommand struct {
	kind     Kind
	id       int
	desc     string
	geomEdit bool
	edit     func(*shape.Shape) error

	before, after *shape.Shape
}

func (c *editCommand) Kind() Kind       { return c.kind }
func (c *editCommand) Describe() string { return c.desc }

func (c *editCommand) apply(d *Document) error {
	i := d.Index(c.id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, c.id)
	}
	if c.after == nil {
		cur := d.shapes[i]
		if c.geomEdit && cur.Locked {
			return fmt.Errorf("shape %d: %w", c.id, shape.ErrLocked)
		}
		next := cur.Clone()
		if err := c.edit(next); err != nil {
			return fmt.Errorf("shape %d: %w", c.id, err)
		}
		if c.geomEdit {
			if err := d.fit(next); err != nil {
				return fmt.Errorf("shape %d: %w", c.id, err)
			}
		}
		if err := next.Validate(); err != nil {
			return fmt.Errorf("shape %d: %w", c.id, err)
		}
		if next.Equal(cur) {
			return ErrNoChange
		}
		c.before, c.after = cur.Clone(), next
	}
	d.shapes[i] = c.after.Clone()
	return nil
}

func (c *editCommand) revert(d *Document) error {
	i := d.Index(c.id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, c.id)
	}
	d.shapes[i] = c.before.Clone()
	return nil
}

// MoveVertex moves vertex index of shape id to p.
func MoveVertex(id, index int, p geometry.Point) Command {
	return &editCommand{
		kind:     KindMoveVertex,
		id:       id,
		desc:     fmt.Sprintf("move vertex %d of shape %d", index, id),
		geomEdit: true,
		edit:     func(s *shape.Shape) error { return s.MoveVertex(index, p) },
	}
}

// InsertVertex inserts p before vertex index of shape id.
func InsertVertex(id, index int, p geometry.Point) Command {
	return &editCommand{
		kind:     KindReshape,
		id:       id,
		desc:     fmt.Sprintf("insert vertex %d into shape %d", index, id),
		geomEdit: true,
		edit:     func(s *shape.Shape) error { return s.InsertVertex(index, p) },
	}
}

// RemoveVertex deletes vertex index of shape id.
func RemoveVertex(id, index int) Command {
	return &editCommand{
		kind:     KindReshape,
		id:       id,
		desc:     fmt.Sprintf("remove vertex %d from shape %d", index, id),
		geomEdit: true,
		edit:     func(s *shape.Shape) error { return s.RemoveVertex(index) },
	}
}

// Reshape replaces every vertex of shape id.
func Reshape(id int, points []geometry.Point) Command {
	pts := append([]geometry.Point(nil), points...)
	return &editCommand{
		kind:     KindReshape,
		id:       id,
		desc:     fmt.Sprintf("reshape shape %d", id),
		geomEdit: true,
		edit: func(s *shape.Shape) error {
			s.Points = append([]geometry.Point(nil), pts...)
			if err := s.Validate(); err != nil {
				return fmt.Errorf("%w: %w", shape.ErrWouldInvalidate, err)
			}
			return nil
		},
	}
}

// MoveShape translates shape id by delta.
func MoveShape(id int, delta geometry.Point) Command {
	return &editCommand{
		kind:     KindMoveShape,
		id:       id,
		desc:     fmt.Sprintf("move shape %d", id),
		geomEdit: true,
		edit:     func(s *shape.Shape) error { return s.Translate(delta) },
	}
}

// MoveShapes translates several shapes by the same delta as one step.
func MoveShapes(delta geometry.Point, ids ...int) Command {
	cmds := make([]Command, len(ids))
	for i, id := range ids {
		cmds[i] = MoveShape(id, delta)
	}
	return &composite{
		kind:     KindMoveShape,
		desc:     fmt.Sprintf("move %d shape(s)", len(ids)),
		children: cmds,
	}
}

// SetLabel changes the label of shape id.
func SetLabel(id int, label string) Command {
	return &editCommand{
		kind: KindSetLabel,
		id:   id,
		desc: fmt.Sprintf("label shape %d %q", id, label),
		edit: func(s *shape.Shape) error {
			s.Label = label
			return nil
		},
	}
}

// SetDescription changes the free-text description of shape id.
func SetDescription(id int, description string) Command {
	return &editCommand{
		kind: KindSetLabel,
		id:   id,
		desc: fmt.Sprintf("describe shape %d", id),
		edit: func(s *shape.Shape) error {
			s.Description = description
			return nil
		},
	}
}

// SetGroup assigns shape id to group, or clears the group when group is nil.
func SetGroup(id int, group *int) Command {
	var g *int
	desc := fmt.Sprintf("ungroup shape %d", id)
	if group != nil {
		v := *group
		g = &v
		desc = fmt.Sprintf("group shape %d as %d", id, v)
	}
	return &editCommand{
		kind: KindSetGroup,
		id:   id,
		desc: desc,
		edit: func(s *shape.Shape) error {
			if g == nil {
				s.GroupID = nil
				return nil
			}
			v := *g
			s.GroupID = &v
			return nil
		},
	}
}

// SetVisibility shows or hides shape id.
func SetVisibility(id int, visible bool) Command {
	return &editCommand{
		kind: KindSetVisibility,
		id:   id,
		desc: fmt.Sprintf("set shape %d visible=%t", id, visible),
		edit: func(s *shape.Shape) error {
			s.Visible = visible
			return nil
		},
	}
}

// SetLocked locks or unlocks shape id.
func SetLocked(id int, locked bool) Command {
	return &editCommand{
		kind: KindSetLock,
		id:   id,
		desc: fmt.Sprintf("set shape %d locked=%t", id, locked),
		edit: func(s *shape.Shape) error {
			s.Locked = locked
			return nil
		},
	}
}

// SetColors overrides the line and fill colours of shape id. A nil colour
// clears the override so the palette decides.
func SetColors(id int, line, fill *shape.Color) Command {
	copyColor := func(c *shape.Color) *shape.Color {
		if c == nil {
			return nil
		}
		v := *c
		return &v
	}
	line, fill = copyColor(line), copyColor(fill)
	return &editCommand{
		kind: KindSetColor,
		id:   id,
		desc: fmt.Sprintf("recolor shape %d", id),
		edit: func(s *shape.Shape) error {
			s.LineColor = copyColor(line)
			s.FillColor = copyColor(fill)
			return nil
		},
	}
}

// addCommand appends shapes on top of the z-order.
type addCommand struct {
	shapes   []*shape.Shape
	assigned bool
}

// AddShapes adds shapes as one step. Ids are assigned on first apply and
// kept for redo.
func AddShapes(shapes ...*shape.Shape) Command {
	c := &addCommand{shapes: make([]*shape.Shape, len(shapes))}
	for i, s := range shapes {
		c.shapes[i] = s.Clone()
	}
	return c
}

func (c *addCommand) Kind() Kind { return KindAdd }

func (c *addCommand) Describe() string {
	if len(c.shapes) == 1 {
		return fmt.Sprintf("add %s %q", c.shapes[0].Type, c.shapes[0].Label)
	}
	return fmt.Sprintf("add %d shapes", len(c.shapes))
}

// IDs returns the ids given to the added shapes, or nil before the command
// has been applied.
func (c *addCommand) IDs() []int {
	if !c.assigned {
		return nil
	}
	ids := make([]int, len(c.shapes))
	for i, s := range c.shapes {
		ids[i] = s.ID
	}
	return ids
}

func (c *addCommand) apply(d *Document) error {
	if len(c.shapes) == 0 {
		return fmt.Errorf("add: %w", ErrNoChange)
	}
	if !c.assigned {
		for i, s := range c.shapes {
			if err := d.fit(s); err != nil {
				return fmt.Errorf("add shape %d: %w", i, err)
			}
			if err := s.Validate(); err != nil {
				return fmt.Errorf("add shape %d: %w", i, err)
			}
		}
		for _, s := range c.shapes {
			s.ID = d.allocID()
		}
		c.assigned = true
	}
	for _, s := range c.shapes {
		d.shapes = append(d.shapes, s.Clone())
	}
	return nil
}

func (c *addCommand) revert(d *Document) error {
	for i := len(c.shapes) - 1; i >= 0; i-- {
		idx := d.Index(c.shapes[i].ID)
		if idx < 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, c.shapes[i].ID)
		}
		d.removeAt(idx)
	}
	return nil
}

// AddedIDs returns the ids assigned by an applied add command, including
// adds inside a composite, or nil for any other command.
func AddedIDs(c Command) []int {
	switch c := c.(type) {
	case *addCommand:
		return c.IDs()
	case *composite:
		var ids []int
		for _, child := range c.children {
			ids = append(ids, AddedIDs(child)...)
		}
		return ids
	}
	return nil
}

type removal struct {
	index int
	shape *shape.Shape
}

// removeCommand deletes shapes and remembers where they were.
type removeCommand struct {
	ids     []int
	removed []removal
}

// RemoveShapes deletes the given shapes as one step. Locked shapes cannot be
// removed.
func RemoveShapes(ids ...int) Command {
	return &removeCommand{ids: append([]int(nil), ids...)}
}

func (c *removeCommand) Kind() Kind { return KindRemove }

func (c *removeCommand) Describe() string {
	strs := make([]string, len(c.ids))
	for i, id := range c.ids {
		strs[i] = fmt.Sprint(id)
	}
	return "remove shape(s) " + strings.Join(strs, ", ")
}

func (c *removeCommand) apply(d *Document) error {
	if len(c.ids) == 0 {
		return fmt.Errorf("remove: %w", ErrNoChange)
	}
	if c.removed == nil {
		var rs []removal
		seen := make(map[int]bool, len(c.ids))
		for _, id := range c.ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			i := d.Index(id)
			if i < 0 {
				return fmt.Errorf("%w: %d", ErrNotFound, id)
			}
			if d.shapes[i].Locked {
				return fmt.Errorf("shape %d: %w", id, shape.ErrLocked)
			}
			rs = append(rs, removal{index: i, shape: d.shapes[i].Clone()})
		}
		sort.Slice(rs, func(a, b int) bool { return rs[a].index < rs[b].index })
		c.removed = rs
	}
	for k := len(c.removed) - 1; k >= 0; k-- {
		i := d.Index(c.removed[k].shape.ID)
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, c.removed[k].shape.ID)
		}
		d.removeAt(i)
	}
	return nil
}

func (c *removeCommand) revert(d *Document) error {
	for _, r := range c.removed {
		i := r.index
		if i > len(d.shapes) {
			i = len(d.shapes)
		}
		d.insert(i, r.shape.Clone())
	}
	return nil
}

// composite runs children in order as one undo step.
type composite struct {
	kind     Kind
	desc     string
	children []Command
	skipped  map[int]bool
}

// Composite groups commands into one atomic step. If any child fails the
// children already applied are reverted. Children that change nothing are
// skipped; a composite where every child is skipped returns ErrNoChange.
func Composite(description string, cmds ...Command) Command {
	return &composite{kind: KindComposite, desc: description, children: cmds}
}

func (c *composite) Kind() Kind       { return c.kind }
func (c *composite) Describe() string { return c.desc }

// Children returns the grouped commands.
func (c *composite) Children() []Command { return c.children }

func (c *composite) apply(d *Document) error {
	first := c.skipped == nil
	if first {
		c.skipped = make(map[int]bool)
	}
	for i, child := range c.children {
		if c.skipped[i] {
			continue
		}
		err := child.apply(d)
		if err == nil {
			continue
		}
		if first && errors.Is(err, ErrNoChange) {
			c.skipped[i] = true
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if !c.skipped[j] {
				_ = c.children[j].revert(d)
			}
		}
		if first {
			c.skipped = nil
		}
		return err
	}
	if len(c.skipped) == len(c.children) {
		c.skipped = nil
		return ErrNoChange
	}
	return nil
}

func (c *composite) revert(d *Document) error {
	for i := len(c.children) - 1; i >= 0; i-- {
		if c.skipped[i] {
			continue
		}
		if err := c.children[i].revert(d); err != nil {
			return err
		}
	}
	return nil
}
