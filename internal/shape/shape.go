package shape

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
)

// Type identifies the kind of region a shape describes.
type Type string

const (
	TypePolygon   Type = "polygon"
	TypeRectangle Type = "rectangle"
	TypeCircle    Type = "circle"
	TypeLine      Type = "line"
	TypePoint     Type = "point"
	TypeLineStrip Type = "linestrip"
	TypeMask      Type = "mask"
)

// Unbounded is returned by MaxPoints for types without an upper vertex limit.
const Unbounded = -1

var (
	// ErrInvalidGeometry is returned when a shape cannot be built from the
	// given vertices.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrWouldInvalidate is returned when an edit would leave the shape
	// invalid. The shape is not modified.
	ErrWouldInvalidate = errors.New("edit would invalidate shape")

	// ErrNotEditable is returned for vertex insertion or removal on a type
	// with a fixed vertex count.
	ErrNotEditable = errors.New("vertex count is fixed for this shape type")

	// ErrLocked is returned for geometry edits on a locked shape.
	ErrLocked = errors.New("shape is locked")

	// ErrUnknownType is returned by ParseType for unrecognised names.
	ErrUnknownType = errors.New("unknown shape type")
)

// Types lists every shape type in a stable order.
var Types = []Type{TypePolygon, TypeRectangle, TypeCircle, TypeLine, TypePoint, TypeLineStrip, TypeMask}

// ParseType converts a name such as "polygon" into a Type. Matching is case
// insensitive.
func ParseType(name string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// MinPoints returns the minimum vertex count for t, or 0 for unknown types.
func (t Type) MinPoints() int {
	switch t {
	case TypePolygon:
		return 3
	case TypeRectangle, TypeCircle, TypeLine, TypeLineStrip, TypeMask:
		return 2
	case TypePoint:
		return 1
	}
	return 0
}

// MaxPoints returns the maximum vertex count for t, or Unbounded.
func (t Type) MaxPoints() int {
	switch t {
	case TypePolygon, TypeLineStrip:
		return Unbounded
	case TypePoint:
		return 1
	}
	return 2
}

// Closed reports whether the outline of t wraps back to its first vertex.
func (t Type) Closed() bool {
	switch t {
	case TypePolygon, TypeRectangle, TypeCircle, TypeMask:
		return true
	}
	return false
}

// VariableArity reports whether vertices may be inserted or removed.
func (t Type) VariableArity() bool {
	return t.MaxPoints() == Unbounded
}

// Shape is one annotated region.
type Shape struct {
	ID          int              `json:"id"`
	Type        Type             `json:"shape_type"`
	Points      []geometry.Point `json:"points"`
	Label       string           `json:"label"`
	GroupID     *int             `json:"group_id,omitempty"`
	Description string           `json:"description,omitempty"`
	Flags       map[string]bool  `json:"flags,omitempty"`
	FillColor   *Color           `json:"fill_color,omitempty"`
	LineColor   *Color           `json:"line_color,omitempty"`
	Visible     bool             `json:"visible"`
	Locked      bool             `json:"locked"`
	Mask        *image.Gray      `json:"-"`
}

// New builds a visible, unlocked shape and validates it.
func New(t Type, points []geometry.Point, label string) (*Shape, error) {
	s := &Shape{
		Type:    t,
		Points:  append([]geometry.Point(nil), points...),
		Label:   label,
		Visible: true,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMask builds a mask shape whose bitmap spans the box between two corners.
func NewMask(box geometry.Rect, mask *image.Gray, label string) (*Shape, error) {
	s := &Shape{
		Type:    TypeMask,
		Points:  []geometry.Point{box.Min, box.Max},
		Label:   label,
		Visible: true,
		Mask:    mask,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the type-specific vertex rules.
func (s *Shape) Validate() error {
	if s.Type.MinPoints() == 0 {
		return fmt.Errorf("%w: %w: %q", ErrInvalidGeometry, ErrUnknownType, s.Type)
	}
	if err := checkPoints(s.Type, s.Points); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidGeometry, err)
	}
	if s.Type == TypeMask && (s.Mask == nil || s.Mask.Bounds().Empty()) {
		return fmt.Errorf("%w: mask shape has no bitmap", ErrInvalidGeometry)
	}
	return nil
}

// checkPoints returns a description of the first rule the points break, or nil.
func checkPoints(t Type, points []geometry.Point) error {
	n := len(points)
	if n < t.MinPoints() {
		return fmt.Errorf("%s needs at least %d points, got %d", t, t.MinPoints(), n)
	}
	if limit := t.MaxPoints(); limit != Unbounded && n > limit {
		return fmt.Errorf("%s takes at most %d points, got %d", t, limit, n)
	}
	for i, p := range points {
		if !p.IsFinite() {
			return fmt.Errorf("point %d is not finite", i)
		}
	}
	if t.MaxPoints() == 2 && points[0].DistanceSq(points[1]) < geometry.Epsilon {
		return fmt.Errorf("%s has coincident points", t)
	}
	return nil
}

// Clone returns a deep copy.
func (s *Shape) Clone() *Shape {
	if s == nil {
		return nil
	}
	c := *s
	c.Points = append([]geometry.Point(nil), s.Points...)
	if s.GroupID != nil {
		g := *s.GroupID
		c.GroupID = &g
	}
	if s.Flags != nil {
		c.Flags = make(map[string]bool, len(s.Flags))
		for k, v := range s.Flags {
			c.Flags[k] = v
		}
	}
	if s.FillColor != nil {
		fc := *s.FillColor
		c.FillColor = &fc
	}
	if s.LineColor != nil {
		lc := *s.LineColor
		c.LineColor = &lc
	}
	if s.Mask != nil {
		m := *s.Mask
		m.Pix = append([]uint8(nil), s.Mask.Pix...)
		c.Mask = &m
	}
	return &c
}

// Equal reports whether two shapes have the same value, mask pixels included.
func (s *Shape) Equal(o *Shape) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.ID != o.ID || s.Type != o.Type || s.Label != o.Label || s.Description != o.Description ||
		s.Visible != o.Visible || s.Locked != o.Locked {
		return false
	}
	if len(s.Points) != len(o.Points) {
		return false
	}
	for i := range s.Points {
		if s.Points[i] != o.Points[i] {
			return false
		}
	}
	if !equalIntPtr(s.GroupID, o.GroupID) || !equalColorPtr(s.FillColor, o.FillColor) ||
		!equalColorPtr(s.LineColor, o.LineColor) {
		return false
	}
	if len(s.Flags) != len(o.Flags) {
		return false
	}
	for k, v := range s.Flags {
		if ov, ok := o.Flags[k]; !ok || ov != v {
			return false
		}
	}
	return equalMask(s.Mask, o.Mask)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalColorPtr(a, b *Color) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalMask(a, b *image.Gray) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Rect.Dx() != b.Rect.Dx() || a.Rect.Dy() != b.Rect.Dy() {
		return false
	}
	if a.Stride == b.Stride {
		return bytes.Equal(a.Pix, b.Pix)
	}
	for y := 0; y < a.Rect.Dy(); y++ {
		for x := 0; x < a.Rect.Dx(); x++ {
			if a.GrayAt(a.Rect.Min.X+x, a.Rect.Min.Y+y) != b.GrayAt(b.Rect.Min.X+x, b.Rect.Min.Y+y) {
				return false
			}
		}
	}
	return true
}

// Radius returns the circle radius, or 0 for other types.
func (s *Shape) Radius() float64 {
	if s.Type != TypeCircle || len(s.Points) < 2 {
		return 0
	}
	return s.Points[0].Distance(s.Points[1])
}

// Bounds returns the axis-aligned bounding box of the shape's geometry.
func (s *Shape) Bounds() geometry.Rect {
	if s.Type == TypeCircle && len(s.Points) == 2 {
		r := s.Radius()
		c := s.Points[0]
		return geometry.Rect{
			Min: geometry.Pt(c.X-r, c.Y-r),
			Max: geometry.Pt(c.X+r, c.Y+r),
		}
	}
	return geometry.Bounds(s.Points)
}

// circleSegments is the vertex count used to approximate a circle outline.
const circleSegments = 64

// Outline returns the drawn boundary as a vertex list. Rectangles and masks
// expand to their 4 corners and circles to a regular polygon; other types
// return a copy of their points.
func (s *Shape) Outline() []geometry.Point {
	switch s.Type {
	case TypeRectangle, TypeMask:
		if len(s.Points) == 2 {
			return geometry.RectFromPoints(s.Points[0], s.Points[1]).Corners()
		}
	case TypeCircle:
		if len(s.Points) == 2 {
			c, r := s.Points[0], s.Radius()
			out := make([]geometry.Point, circleSegments)
			for i := range out {
				a := 2 * math.Pi * float64(i) / circleSegments
				out[i] = geometry.Pt(c.X+r*math.Cos(a), c.Y+r*math.Sin(a))
			}
			return out
		}
	}
	return append([]geometry.Point(nil), s.Points...)
}

// Contains reports whether p lies inside the shape's area, boundary
// included. Points, lines and linestrips have no interior.
func (s *Shape) Contains(p geometry.Point) bool {
	switch s.Type {
	case TypePolygon:
		return geometry.PointInPolygon(p, s.Points)
	case TypeRectangle:
		return s.Bounds().Contains(p)
	case TypeCircle:
		return len(s.Points) == 2 && p.Distance(s.Points[0]) <= s.Radius()+geometry.Epsilon
	case TypeMask:
		return s.maskAt(p)
	}
	return false
}

// maskAt samples the bitmap at image point p.
func (s *Shape) maskAt(p geometry.Point) bool {
	if s.Mask == nil || len(s.Points) != 2 {
		return false
	}
	box := geometry.RectFromPoints(s.Points[0], s.Points[1])
	if !box.Contains(p) || box.Empty() {
		return false
	}
	mb := s.Mask.Bounds()
	x := mb.Min.X + int((p.X-box.Min.X)/box.Width()*float64(mb.Dx()))
	y := mb.Min.Y + int((p.Y-box.Min.Y)/box.Height()*float64(mb.Dy()))
	if x >= mb.Max.X {
		x = mb.Max.X - 1
	}
	if y >= mb.Max.Y {
		y = mb.Max.Y - 1
	}
	return s.Mask.GrayAt(x, y).Y > 0
}

// NearestEdge finds the boundary segment closest to p within tol. The index
// identifies the segment from Outline()[i] to Outline()[i+1]; for circles it
// is always 0. Point shapes have no edges.
func (s *Shape) NearestEdge(p geometry.Point, tol float64) (int, geometry.Point, bool) {
	switch s.Type {
	case TypePoint:
		return -1, geometry.Point{}, false
	case TypeCircle:
		if len(s.Points) != 2 {
			return -1, geometry.Point{}, false
		}
		c, r := s.Points[0], s.Radius()
		d := p.Distance(c)
		if math.Abs(d-r) > tol {
			return -1, geometry.Point{}, false
		}
		if d < geometry.Epsilon {
			return 0, s.Points[1], true
		}
		return 0, c.Add(p.Sub(c).Scale(r / d)), true
	}
	return geometry.NearestEdge(p, s.Outline(), s.Type.Closed(), tol)
}

// Area returns the enclosed area. Open types have none.
func (s *Shape) Area() float64 {
	switch s.Type {
	case TypePolygon:
		return geometry.Area(s.Points)
	case TypeRectangle:
		return s.Bounds().Area()
	case TypeCircle:
		r := s.Radius()
		return math.Pi * r * r
	case TypeMask:
		if s.Mask == nil {
			return 0
		}
		mb := s.Mask.Bounds()
		total := mb.Dx() * mb.Dy()
		if total == 0 {
			return 0
		}
		set := 0
		for y := mb.Min.Y; y < mb.Max.Y; y++ {
			for x := mb.Min.X; x < mb.Max.X; x++ {
				if s.Mask.GrayAt(x, y).Y > 0 {
					set++
				}
			}
		}
		return s.Bounds().Area() * float64(set) / float64(total)
	}
	return 0
}

// commit validates the candidate vertex list and installs it on success.
func (s *Shape) commit(points []geometry.Point) error {
	if err := checkPoints(s.Type, points); err != nil {
		return fmt.Errorf("%w: %s", ErrWouldInvalidate, err)
	}
	s.Points = points
	return nil
}

// InsertVertex inserts p before index i. An index equal to the vertex count
// appends. Only polygons and linestrips accept new vertices.
func (s *Shape) InsertVertex(i int, p geometry.Point) error {
	if s.Locked {
		return ErrLocked
	}
	if !s.Type.VariableArity() {
		return fmt.Errorf("%w: %s", ErrNotEditable, s.Type)
	}
	if i < 0 || i > len(s.Points) {
		return fmt.Errorf("vertex index %d out of range [0,%d]", i, len(s.Points))
	}
	if !p.IsFinite() {
		return fmt.Errorf("%w: vertex is not finite", ErrInvalidGeometry)
	}
	pts := make([]geometry.Point, 0, len(s.Points)+1)
	pts = append(pts, s.Points[:i]...)
	pts = append(pts, p)
	pts = append(pts, s.Points[i:]...)
	return s.commit(pts)
}

// RemoveVertex deletes vertex i. Removing below the type's minimum returns
// ErrWouldInvalidate.
func (s *Shape) RemoveVertex(i int) error {
	if s.Locked {
		return ErrLocked
	}
	if !s.Type.VariableArity() {
		return fmt.Errorf("%w: %s", ErrNotEditable, s.Type)
	}
	if i < 0 || i >= len(s.Points) {
		return fmt.Errorf("vertex index %d out of range [0,%d)", i, len(s.Points))
	}
	pts := make([]geometry.Point, 0, len(s.Points)-1)
	pts = append(pts, s.Points[:i]...)
	pts = append(pts, s.Points[i+1:]...)
	return s.commit(pts)
}

// MoveVertex relocates vertex i to p. Mask corners cannot be moved on their
// own because the bitmap is tied to the box.
func (s *Shape) MoveVertex(i int, p geometry.Point) error {
	if s.Locked {
		return ErrLocked
	}
	if s.Type == TypeMask {
		return fmt.Errorf("%w: %s", ErrNotEditable, s.Type)
	}
	if i < 0 || i >= len(s.Points) {
		return fmt.Errorf("vertex index %d out of range [0,%d)", i, len(s.Points))
	}
	pts := append([]geometry.Point(nil), s.Points...)
	pts[i] = p
	return s.commit(pts)
}

// Translate shifts every vertex by d.
func (s *Shape) Translate(d geometry.Point) error {
	if s.Locked {
		return ErrLocked
	}
	pts := make([]geometry.Point, len(s.Points))
	for i, p := range s.Points {
		pts[i] = p.Add(d)
	}
	return s.commit(pts)
}

// ClampTo moves every vertex inside r. Circles are clamped by their center and
// rim point, which may shrink the radius.
func (s *Shape) ClampTo(r geometry.Rect) error {
	if s.Locked {
		return ErrLocked
	}
	pts := make([]geometry.Point, len(s.Points))
	for i, p := range s.Points {
		pts[i] = r.Clamp(p)
	}
	return s.commit(pts)
}

// String returns a short human readable description.
func (s *Shape) String() string {
	label := s.Label
	if label == "" {
		label = "<unlabelled>"
	}
	return fmt.Sprintf("#%d %s %q (%d points)", s.ID, s.Type, label, len(s.Points))
}
