package selection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dhconnelly/rtreego"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// Policy decides which shapes a rubber-band rectangle selects.
type Policy string

const (
	// PolicyContain selects shapes whose bounding box lies fully inside.
	PolicyContain Policy = "contain"
	// PolicyTouch also selects shapes whose geometry overlaps the rectangle.
	PolicyTouch Policy = "touch"
)

// ParsePolicy converts "contain" or "touch" into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyContain, PolicyTouch:
		return p, nil
	}
	return "", fmt.Errorf("unknown selection policy %q (expected contain or touch)", s)
}

// Purpose tells a query which shapes are eligible.
type Purpose int

const (
	// PurposeEdit excludes hidden and locked shapes.
	PurposeEdit Purpose = iota
	// PurposeDisplay excludes only hidden shapes.
	PurposeDisplay
)

// HitKind says which part of a shape was hit.
type HitKind string

const (
	HitVertex   HitKind = "vertex"
	HitEdge     HitKind = "edge"
	HitInterior HitKind = "interior"
)

// Hit describes the result of a point query.
type Hit struct {
	ShapeID int            `json:"shape_id"`
	Kind    HitKind        `json:"kind"`
	Vertex  int            `json:"vertex"`
	Edge    int            `json:"edge"`
	Point   geometry.Point `json:"point"`
}

// Options holds hit-test tolerances in image units.
type Options struct {
	Tolerance       float64
	VertexTolerance float64
}

// DefaultOptions returns a 5 pixel edge tolerance and a tighter 4 pixel
// vertex tolerance.
func DefaultOptions() Options {
	return Options{Tolerance: 5, VertexTolerance: 4}
}

// Scaled divides both tolerances by zoom, converting screen pixels into image
// units.
func (o Options) Scaled(zoom float64) Options {
	if zoom <= 0 {
		return o
	}
	return Options{Tolerance: o.Tolerance / zoom, VertexTolerance: o.VertexTolerance / zoom}
}

// entry is one shape stored in the R-tree.
type entry struct {
	shape *shape.Shape
	z     int
	rect  rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect {
	return e.rect
}

// Index answers spatial queries over a fixed set of shapes. Build a new index
// whenever the document changes.
type Index struct {
	tree    *rtreego.Rtree
	entries []*entry
}

// NewIndex indexes shapes, which must be given in z-order. The index keeps
// the pointers; callers pass copies they will not mutate.
func NewIndex(shapes []*shape.Shape) *Index {
	ix := &Index{entries: make([]*entry, len(shapes))}
	objs := make([]rtreego.Spatial, len(shapes))
	for i, s := range shapes {
		e := &entry{shape: s, z: i, rect: toRTreeRect(s.Bounds())}
		ix.entries[i] = e
		objs[i] = e
	}
	ix.tree = rtreego.NewTree(2, 25, 50, objs...)
	return ix
}

// Len returns the number of indexed shapes.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// rectPad keeps R-tree rectangles non-degenerate for points and axis-aligned
// lines.
const rectPad = 1e-6

func toRTreeRect(b geometry.Rect) rtreego.Rect {
	r, err := rtreego.NewRect(
		rtreego.Point{b.Min.X - rectPad, b.Min.Y - rectPad},
		[]float64{b.Width() + 2*rectPad, b.Height() + 2*rectPad},
	)
	if err != nil {
		// Only reachable for non-finite bounds, which valid shapes never have.
		r, _ = rtreego.NewRect(rtreego.Point{0, 0}, []float64{rectPad, rectPad})
	}
	return r
}

func eligible(s *shape.Shape, purpose Purpose) bool {
	if !s.Visible {
		return false
	}
	return purpose == PurposeDisplay || !s.Locked
}

// candidates returns eligible entries whose boxes intersect r, topmost first.
func (ix *Index) candidates(r geometry.Rect, purpose Purpose) []*entry {
	found := ix.tree.SearchIntersect(toRTreeRect(r))
	out := make([]*entry, 0, len(found))
	for _, obj := range found {
		e := obj.(*entry)
		if eligible(e.shape, purpose) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].z > out[b].z })
	return out
}

// HitTest returns the topmost shape part under p. Shapes are tried from the
// top down and the first one hit wins; within a shape a vertex inside the
// vertex tolerance beats an edge inside the tolerance, which beats the
// interior.
func (ix *Index) HitTest(p geometry.Point, opts Options, purpose Purpose) (Hit, bool) {
	reach := opts.Tolerance
	if opts.VertexTolerance > reach {
		reach = opts.VertexTolerance
	}
	for _, e := range ix.candidates(geometry.Rect{Min: p, Max: p}.Inflate(reach), purpose) {
		if hit, ok := hitShape(e.shape, p, opts); ok {
			return hit, true
		}
	}
	return Hit{}, false
}

func hitShape(s *shape.Shape, p geometry.Point, opts Options) (Hit, bool) {
	if s.Type != shape.TypeMask {
		if v, ok := geometry.NearestVertex(p, s.Points, opts.VertexTolerance); ok {
			return Hit{ShapeID: s.ID, Kind: HitVertex, Vertex: v, Edge: -1, Point: s.Points[v]}, true
		}
	}
	if edge, q, ok := s.NearestEdge(p, opts.Tolerance); ok {
		return Hit{ShapeID: s.ID, Kind: HitEdge, Vertex: -1, Edge: edge, Point: q}, true
	}
	if s.Contains(p) {
		return Hit{ShapeID: s.ID, Kind: HitInterior, Vertex: -1, Edge: -1, Point: p}, true
	}
	return Hit{}, false
}

// SelectRect returns the ids of shapes selected by r under policy, in
// z-order.
func (ix *Index) SelectRect(r geometry.Rect, policy Policy, purpose Purpose) []int {
	var ids []entryID
	for _, e := range ix.candidates(r, purpose) {
		if selects(e.shape, r, policy) {
			ids = append(ids, entryID{id: e.shape.ID, z: e.z})
		}
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a].z < ids[b].z })
	out := make([]int, len(ids))
	for i, v := range ids {
		out[i] = v.id
	}
	return out
}

type entryID struct {
	id, z int
}

func selects(s *shape.Shape, r geometry.Rect, policy Policy) bool {
	b := s.Bounds()
	if r.ContainsRect(b) {
		return true
	}
	if policy != PolicyTouch || !r.Intersects(b) {
		return false
	}
	if geometry.PolylineIntersectsRect(s.Outline(), s.Type.Closed(), r) {
		return true
	}
	// A band drawn entirely inside an area shape still touches it.
	return s.Contains(r.Center())
}
