package canvas

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/ironsheep/annotation-tools-mcp/internal/annotation"
	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/selection"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// Mode is the current interaction state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDrawing
	ModeEditingVertex
	ModeEditingShape
	ModeSelecting
	ModePanning
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeDrawing:
		return "drawing"
	case ModeEditingVertex:
		return "editing-vertex"
	case ModeEditingShape:
		return "editing-shape"
	case ModeSelecting:
		return "selecting"
	case ModePanning:
		return "panning"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// MarshalText renders the mode name in JSON output.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Tool is the active pointer tool: editing existing shapes, or creating new
// shapes of one type with a preset label.
type Tool struct {
	Create bool       `json:"create"`
	Type   shape.Type `json:"type,omitempty"`
	Label  string     `json:"label,omitempty"`
}

// EditTool returns the selection and editing tool.
func EditTool() Tool {
	return Tool{}
}

// CreateTool returns a tool that draws shapes of type t labelled label.
func CreateTool(t shape.Type, label string) Tool {
	return Tool{Create: true, Type: t, Label: label}
}

// Modifiers is a set of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	// ModPan turns a press into a viewport drag (middle button or held space).
	ModPan
)

// Has reports whether all of m2 are held.
func (m Modifiers) Has(m2 Modifiers) bool {
	return m&m2 == m2
}

// Key identifies a keyboard command.
type Key string

const (
	KeyEscape    Key = "escape"
	KeyEnter     Key = "enter"
	KeyBackspace Key = "backspace"
	KeyDelete    Key = "delete"
)

// ParseKey converts a key name into a Key.
func ParseKey(s string) (Key, error) {
	switch k := Key(s); k {
	case KeyEscape, KeyEnter, KeyBackspace, KeyDelete:
		return k, nil
	}
	return "", fmt.Errorf("unknown key %q", s)
}

var (
	// ErrNotDrawable is returned when selecting a create tool for a type that
	// cannot be drawn by hand.
	ErrNotDrawable = errors.New("shape type cannot be drawn interactively")

	// ErrInvalidViewport is returned for a non-positive or non-finite zoom.
	ErrInvalidViewport = errors.New("invalid viewport")
)

// Options configures canvas behaviour. Distances are in screen pixels.
type Options struct {
	Hit           selection.Options
	Policy        selection.Policy
	CloseDistance float64
	DragThreshold float64
	MinSelectDrag float64
	PasteOffset   float64
}

// DefaultOptions returns the default hit tolerances, contain selection, an
// 8 pixel polygon-closing radius, a 3 pixel drag threshold and a 10 pixel
// paste offset.
func DefaultOptions() Options {
	return Options{
		Hit:           selection.DefaultOptions(),
		Policy:        selection.PolicyContain,
		CloseDistance: 8,
		DragThreshold: 3,
		MinSelectDrag: 2,
		PasteOffset:   10,
	}
}

// Canvas is the interaction state machine. It turns pointer and key events
// into commands on an annotation engine. Like the engine it belongs to a
// single goroutine.
type Canvas struct {
	engine *annotation.Engine
	opts   Options

	tool     Tool
	mode     Mode
	selected []int

	zoom   float64
	pan    geometry.Point
	toView geometry.Transform
	toImg  geometry.Transform

	pressed bool
	pressAt geometry.Point // screen
	cursor  geometry.Point // image

	pending []geometry.Point

	editID     int
	editVertex int
	editOrigin geometry.Point

	dragIDs    []int
	dragStart  geometry.Point
	dragDelta  geometry.Point
	dragBounds geometry.Rect

	bandStart geometry.Point
	bandMods  Modifiers

	panOrigin geometry.Point

	index    *selection.Index
	indexRev uint64

	clipboard []*shape.Shape
	pastes    int
}

// New creates an idle canvas with the edit tool and an identity viewport.
func New(engine *annotation.Engine, opts Options) *Canvas {
	c := &Canvas{engine: engine, opts: opts}
	_ = c.SetViewport(1, geometry.Point{})
	return c
}

// Options returns the canvas options.
func (c *Canvas) Options() Options { return c.opts }

// SetOptions replaces the canvas options.
func (c *Canvas) SetOptions(opts Options) { c.opts = opts }

// Mode returns the current interaction state.
func (c *Canvas) Mode() Mode { return c.mode }

// Tool returns the active tool.
func (c *Canvas) Tool() Tool { return c.tool }

// SetTool switches tools. Any gesture in progress is cancelled.
func (c *Canvas) SetTool(t Tool) error {
	if t.Create {
		if t.Type == shape.TypeMask || t.Type.MinPoints() == 0 {
			return fmt.Errorf("%w: %q", ErrNotDrawable, t.Type)
		}
	}
	c.Cancel()
	c.tool = t
	return nil
}

// SetViewport sets the zoom factor and the screen position of the image
// origin.
func (c *Canvas) SetViewport(zoom float64, pan geometry.Point) error {
	if !(zoom > 0) || math.IsInf(zoom, 0) || !pan.IsFinite() {
		return fmt.Errorf("%w: zoom %v pan %v", ErrInvalidViewport, zoom, pan)
	}
	view := geometry.NewViewport(zoom, pan)
	inv, err := view.Inverse()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidViewport, err)
	}
	c.zoom, c.pan, c.toView, c.toImg = zoom, pan, view, inv
	return nil
}

// Viewport returns the zoom and pan.
func (c *Canvas) Viewport() (float64, geometry.Point) {
	return c.zoom, c.pan
}

// ToImage maps a screen point into image coordinates.
func (c *Canvas) ToImage(screen geometry.Point) geometry.Point {
	return c.toImg.Apply(screen)
}

// ToScreen maps an image point into screen coordinates.
func (c *Canvas) ToScreen(img geometry.Point) geometry.Point {
	return c.toView.Apply(img)
}

// Index returns the spatial index for the current document revision,
// rebuilding it when the document has changed.
func (c *Canvas) Index() *selection.Index {
	doc := c.engine.Document()
	if c.index == nil || c.indexRev != doc.Revision() {
		c.index = selection.NewIndex(doc.Shapes())
		c.indexRev = doc.Revision()
	}
	return c.index
}

// HitTest finds the shape part under a screen point.
func (c *Canvas) HitTest(screen geometry.Point, purpose selection.Purpose) (selection.Hit, bool) {
	return c.Index().HitTest(c.ToImage(screen), c.opts.Hit.Scaled(c.zoom), purpose)
}

// Selection returns the selected shape ids in z-order.
func (c *Canvas) Selection() []int {
	c.pruneSelection()
	return append([]int(nil), c.selected...)
}

// SetSelection replaces the selection. Every id must exist.
func (c *Canvas) SetSelection(ids []int) error {
	doc := c.engine.Document()
	for _, id := range ids {
		if doc.Index(id) < 0 {
			return fmt.Errorf("%w: %d", annotation.ErrNotFound, id)
		}
	}
	c.selected = c.zOrdered(ids)
	return nil
}

// ClearSelection deselects everything.
func (c *Canvas) ClearSelection() {
	c.selected = nil
}

// zOrdered dedupes ids and sorts them by z-order, dropping missing ids.
func (c *Canvas) zOrdered(ids []int) []int {
	doc := c.engine.Document()
	type pos struct{ id, z int }
	seen := make(map[int]bool, len(ids))
	var ps []pos
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if z := doc.Index(id); z >= 0 {
			ps = append(ps, pos{id, z})
		}
	}
	sort.Slice(ps, func(a, b int) bool { return ps[a].z < ps[b].z })
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.id
	}
	return out
}

func (c *Canvas) pruneSelection() {
	c.selected = c.zOrdered(c.selected)
}

func (c *Canvas) isSelected(id int) bool {
	for _, s := range c.selected {
		if s == id {
			return true
		}
	}
	return false
}

// Undo reverts the last command. It is ignored outside Idle.
func (c *Canvas) Undo() (annotation.Command, bool) {
	if c.mode != ModeIdle {
		slog.Debug("undo ignored during gesture", "mode", c.mode)
		return nil, false
	}
	cmd, ok := c.engine.Undo()
	c.pruneSelection()
	return cmd, ok
}

// Redo re-applies the last undone command. It is ignored outside Idle.
func (c *Canvas) Redo() (annotation.Command, bool) {
	if c.mode != ModeIdle {
		slog.Debug("redo ignored during gesture", "mode", c.mode)
		return nil, false
	}
	cmd, ok := c.engine.Redo()
	c.pruneSelection()
	return cmd, ok
}

// Cancel abandons any gesture in progress without creating a command.
func (c *Canvas) Cancel() {
	c.mode = ModeIdle
	c.pressed = false
	c.pending = nil
	c.dragIDs = nil
	c.dragDelta = geometry.Point{}
}

// State is a snapshot of the canvas for display.
type State struct {
	Mode     Mode             `json:"mode"`
	Tool     Tool             `json:"tool"`
	Selected []int            `json:"selected"`
	Zoom     float64          `json:"zoom"`
	Pan      geometry.Point   `json:"pan"`
	Pending  []geometry.Point `json:"pending,omitempty"`
	Preview  []*shape.Shape   `json:"preview,omitempty"`
	Band     *geometry.Rect   `json:"band,omitempty"`
	CanUndo  bool             `json:"can_undo"`
	CanRedo  bool             `json:"can_redo"`
	Dirty    bool             `json:"dirty"`
	Revision uint64           `json:"revision"`
}

// State returns the current canvas state including transient previews.
func (c *Canvas) State() State {
	c.pruneSelection()
	st := State{
		Mode:     c.mode,
		Tool:     c.tool,
		Selected: append([]int{}, c.selected...),
		Zoom:     c.zoom,
		Pan:      c.pan,
		CanUndo:  c.engine.CanUndo(),
		CanRedo:  c.engine.CanRedo(),
		Dirty:    c.engine.Dirty(),
		Revision: c.engine.Document().Revision(),
	}
	st.Preview = c.preview()
	if c.mode == ModeDrawing {
		st.Pending = append([]geometry.Point(nil), c.pending...)
	}
	if c.mode == ModeSelecting {
		band := geometry.RectFromPoints(c.bandStart, c.cursor)
		st.Band = &band
	}
	return st
}

// preview builds the provisional shapes for the gesture in progress. They are
// not validated and never enter the document.
func (c *Canvas) preview() []*shape.Shape {
	doc := c.engine.Document()
	switch c.mode {
	case ModeDrawing:
		pts := append(append([]geometry.Point(nil), c.pending...), c.cursor)
		if c.tool.Type == shape.TypePoint {
			pts = pts[:1]
		}
		return []*shape.Shape{{Type: c.tool.Type, Points: pts, Label: c.tool.Label, Visible: true}}
	case ModeEditingVertex:
		s, ok := doc.Shape(c.editID)
		if !ok || c.editVertex >= len(s.Points) {
			return nil
		}
		s.Points[c.editVertex] = c.cursor
		return []*shape.Shape{s}
	case ModeEditingShape:
		var out []*shape.Shape
		for _, id := range c.dragIDs {
			s, ok := doc.Shape(id)
			if !ok {
				continue
			}
			for i := range s.Points {
				s.Points[i] = s.Points[i].Add(c.dragDelta)
			}
			out = append(out, s)
		}
		return out
	}
	return nil
}
