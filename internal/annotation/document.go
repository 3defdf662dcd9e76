package annotation

import (
	"errors"
	"fmt"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// ErrNotFound is returned when a command names a shape id that is not in
// the document.
var ErrNotFound = errors.New("shape not found")

// ImageRef identifies the image a document annotates. Pixels are owned by
// whoever displays the image, not by the document.
type ImageRef struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Bounds returns the image area in image coordinates.
func (r ImageRef) Bounds() geometry.Rect {
	return geometry.Rect{Max: geometry.Pt(float64(r.Width), float64(r.Height))}
}

// Document is an image reference plus its ordered shapes.
type Document struct {
	image    ImageRef
	shapes   []*shape.Shape
	nextID   int
	revision uint64
}

// NewDocument creates an empty document for img.
func NewDocument(img ImageRef) *Document {
	return &Document{image: img, nextID: 1}
}

// Load replaces the document contents. Shapes are cloned and receive fresh
// ids in order. Every shape must be valid.
func (d *Document) Load(img ImageRef, shapes []*shape.Shape) error {
	loaded := make([]*shape.Shape, 0, len(shapes))
	for i, s := range shapes {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("shape %d: %w", i, err)
		}
		c := s.Clone()
		c.ID = i + 1
		loaded = append(loaded, c)
	}
	d.image = img
	d.shapes = loaded
	d.nextID = len(loaded) + 1
	d.revision++
	return nil
}

// Image returns the annotated image reference.
func (d *Document) Image() ImageRef { return d.image }

// Len returns the number of shapes.
func (d *Document) Len() int { return len(d.shapes) }

// Revision increments on every change. Observers compare revisions to detect
// that cached derived data is stale.
func (d *Document) Revision() uint64 { return d.revision }

// Shapes returns deep copies of all shapes in z-order.
func (d *Document) Shapes() []*shape.Shape {
	out := make([]*shape.Shape, len(d.shapes))
	for i, s := range d.shapes {
		out[i] = s.Clone()
	}
	return out
}

// Shape returns a deep copy of the shape with the given id.
func (d *Document) Shape(id int) (*shape.Shape, bool) {
	if i := d.Index(id); i >= 0 {
		return d.shapes[i].Clone(), true
	}
	return nil, false
}

// Index returns the z-order position of id, or -1.
func (d *Document) Index(id int) int {
	for i, s := range d.shapes {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// IDs returns all shape ids in z-order.
func (d *Document) IDs() []int {
	ids := make([]int, len(d.shapes))
	for i, s := range d.shapes {
		ids[i] = s.ID
	}
	return ids
}

// GroupMembers returns the ids of every shape sharing group id g.
func (d *Document) GroupMembers(g int) []int {
	var ids []int
	for _, s := range d.shapes {
		if s.GroupID != nil && *s.GroupID == g {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// NextGroupID returns a group id not used by any shape.
func (d *Document) NextGroupID() int {
	next := 1
	for _, s := range d.shapes {
		if s.GroupID != nil && *s.GroupID >= next {
			next = *s.GroupID + 1
		}
	}
	return next
}

func (d *Document) allocID() int {
	id := d.nextID
	d.nextID++
	return id
}

// fit clamps s into the image. Documents without a known image size accept
// any coordinates.
func (d *Document) fit(s *shape.Shape) error {
	b := d.image.Bounds()
	if b.Empty() {
		return nil
	}
	locked := s.Locked
	s.Locked = false
	err := s.ClampTo(b)
	s.Locked = locked
	return err
}

func (d *Document) insert(i int, s *shape.Shape) {
	d.shapes = append(d.shapes, nil)
	copy(d.shapes[i+1:], d.shapes[i:])
	d.shapes[i] = s
}

func (d *Document) removeAt(i int) {
	copy(d.shapes[i:], d.shapes[i+1:])
	d.shapes[len(d.shapes)-1] = nil
	d.shapes = d.shapes[:len(d.shapes)-1]
}
