package convert

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/ironsheep/annotation-tools-mcp/internal/annotation"
	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/inference"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// Config controls how detections become shapes.
type Config struct {
	// Confidence drops detections scoring below it.
	Confidence float64 `yaml:"confidence" json:"confidence"`

	// KeypointConfidence drops individual keypoints scoring below it.
	KeypointConfidence float64 `yaml:"keypoint_confidence" json:"keypoint_confidence"`

	// IoU is the box overlap above which a candidate duplicates a shape of
	// the same label.
	IoU float64 `yaml:"iou" json:"iou"`

	// MaxDetections caps how many detections are considered, best first.
	// Zero means no cap.
	MaxDetections int `yaml:"max_detections" json:"max_detections"`

	// Epsilon is the Douglas-Peucker tolerance for contour simplification
	// in image pixels.
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`

	// Labels maps model classes to annotation labels. Unmapped classes keep
	// their name.
	Labels map[string]string `yaml:"labels" json:"labels,omitempty"`

	// Classes restricts conversion to these classes. Empty allows all.
	Classes []string `yaml:"classes" json:"classes,omitempty"`

	// DrawSkeleton adds a line shape for every limb whose two keypoints are
	// both kept.
	DrawSkeleton bool `yaml:"draw_skeleton" json:"draw_skeleton"`
}

// DefaultConfig returns confidence 0.5, keypoint confidence 0.2, IoU 0.5,
// at most 100 detections and a 1.5 pixel simplification tolerance.
func DefaultConfig() Config {
	return Config{
		Confidence:         0.5,
		KeypointConfidence: 0.2,
		IoU:                0.5,
		MaxDetections:      100,
		Epsilon:            1.5,
	}
}

// Validate checks that thresholds are in range.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"confidence":          c.Confidence,
		"keypoint_confidence": c.KeypointConfidence,
		"iou":                 c.IoU,
	} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%s %v outside [0,1]", name, v)
		}
	}
	if c.MaxDetections < 0 {
		return fmt.Errorf("max_detections %d is negative", c.MaxDetections)
	}
	if c.Epsilon < 0 || math.IsNaN(c.Epsilon) {
		return fmt.Errorf("epsilon %v is negative", c.Epsilon)
	}
	return nil
}

// Label returns the annotation label for a model class.
func (c Config) Label(class string) string {
	if l, ok := c.Labels[class]; ok && l != "" {
		return l
	}
	return class
}

func (c Config) allowed(class string) bool {
	if len(c.Classes) == 0 {
		return true
	}
	for _, cl := range c.Classes {
		if strings.EqualFold(cl, class) {
			return true
		}
	}
	return false
}

// Stats counts what happened to each detection.
type Stats struct {
	Considered     int `json:"considered"`
	Accepted       int `json:"accepted"`
	BelowThreshold int `json:"below_threshold"`
	Filtered       int `json:"filtered"`
	Duplicates     int `json:"duplicates"`
	Invalid        int `json:"invalid"`
	Shapes         int `json:"shapes"`
}

// converter holds the state of one Convert call.
type converter struct {
	cfg      Config
	bounds   geometry.Rect
	clamp    bool
	existing []*shape.Shape
	accepted []*shape.Shape
	out      []*shape.Shape
	group    int
	stats    Stats

	// regroup assigns fresh groups to existing person boxes that anchor a
	// pose but had no group.
	regroup map[int]int
}

// Convert turns detections into shapes for doc. The returned command adds
// every accepted shape in one step; it is nil when nothing was accepted.
// doc is only read.
func Convert(doc *annotation.Document, dets []inference.Detection, cfg Config) (annotation.Command, Stats) {
	bounds := doc.Image().Bounds()
	c := &converter{
		cfg:      cfg,
		bounds:   bounds,
		clamp:    !bounds.Empty(),
		existing: doc.Shapes(),
		group:    doc.NextGroupID(),
		regroup:  make(map[int]int),
	}

	sorted := append([]inference.Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if cfg.MaxDetections > 0 && len(sorted) > cfg.MaxDetections {
		sorted = sorted[:cfg.MaxDetections]
	}

	for _, d := range sorted {
		c.stats.Considered++
		c.detection(d)
	}
	c.stats.Shapes = len(c.out)

	slog.Debug("converted detections",
		"considered", c.stats.Considered,
		"accepted", c.stats.Accepted,
		"below_threshold", c.stats.BelowThreshold,
		"duplicates", c.stats.Duplicates,
		"shapes", c.stats.Shapes)

	if len(c.out) == 0 {
		return nil, c.stats
	}
	add := annotation.AddShapes(c.out...)
	if len(c.regroup) == 0 {
		return add, c.stats
	}
	cmds := []annotation.Command{add}
	ids := make([]int, 0, len(c.regroup))
	for id := range c.regroup {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		g := c.regroup[id]
		cmds = append(cmds, annotation.SetGroup(id, &g))
	}
	return annotation.Composite(fmt.Sprintf("add %d proposals", len(c.out)), cmds...), c.stats
}

func (c *converter) detection(d inference.Detection) {
	switch {
	case d.Score < c.cfg.Confidence:
		c.stats.BelowThreshold++
		return
	case !c.cfg.allowed(d.Class):
		c.stats.Filtered++
		return
	}
	label := c.cfg.Label(d.Class)

	var anchor *int
	var person *shape.Shape
	if len(d.Keypoints) > 0 {
		person = c.personBox(d.Box)
		anchor = c.anchorGroup(person)
	}

	var primary *shape.Shape
	if anchor == nil {
		s, err := c.outline(d, label)
		if err != nil {
			slog.Debug("dropping unusable detection", "class", d.Class, "error", err)
			c.stats.Invalid++
			return
		}
		if c.duplicate(s) {
			c.stats.Duplicates++
			return
		}
		primary = s
	}

	var group *int
	switch {
	case anchor != nil:
		group = anchor
	case len(d.Keypoints) > 0:
		g := c.group
		c.group++
		group = &g
	}

	var added []*shape.Shape
	if primary != nil {
		primary.GroupID = copyInt(group)
		added = append(added, primary)
	}
	added = append(added, c.pose(d.Keypoints, group)...)
	if len(added) == 0 {
		c.stats.Invalid++
		return
	}

	c.stats.Accepted++
	if person != nil && person.GroupID == nil {
		if _, ok := c.regroup[person.ID]; !ok {
			c.regroup[person.ID] = *anchor
			c.group++
		}
	}
	if primary != nil {
		c.accepted = append(c.accepted, primary)
	}
	c.out = append(c.out, added...)
}

// outline builds the main shape of a detection: a polygon from its largest
// contour or its mask, else a rectangle from its box.
func (c *converter) outline(d inference.Detection, label string) (*shape.Shape, error) {
	var ring []geometry.Point
	switch {
	case len(d.Contours) > 0:
		ring = largestContour(d.Contours)
	case d.Mask != nil:
		ring = maskPolygon(d.Mask, d.Box)
	}
	if len(ring) >= 3 {
		ring = geometry.Simplify(ring, c.cfg.Epsilon)
		ring = geometry.RemoveCollinear(ring, geometry.Epsilon, true)
		if s, err := c.build(shape.TypePolygon, ring, label); err == nil {
			s.Description = describe(d)
			return s, nil
		}
	}
	s, err := c.build(shape.TypeRectangle, []geometry.Point{d.Box.Min, d.Box.Max}, label)
	if err != nil {
		return nil, err
	}
	s.Description = describe(d)
	return s, nil
}

func describe(d inference.Detection) string {
	return fmt.Sprintf("score=%.2f", d.Score)
}

// build creates a shape clamped to the image.
func (c *converter) build(t shape.Type, pts []geometry.Point, label string) (*shape.Shape, error) {
	if c.clamp {
		clamped := make([]geometry.Point, len(pts))
		for i, p := range pts {
			clamped[i] = c.bounds.Clamp(p)
		}
		pts = clamped
	}
	return shape.New(t, pts, label)
}

func largestContour(contours [][]geometry.Point) []geometry.Point {
	var best []geometry.Point
	bestArea := -1.0
	for _, ring := range contours {
		if len(ring) < 3 {
			continue
		}
		if a := math.Abs(geometry.Area(ring)); a > bestArea {
			best, bestArea = ring, a
		}
	}
	return best
}

// duplicate reports whether s overlaps an existing or accepted shape with
// the same label by more than the IoU threshold.
func (c *converter) duplicate(s *shape.Shape) bool {
	box := s.Bounds()
	for _, list := range [][]*shape.Shape{c.existing, c.accepted} {
		for _, o := range list {
			if o.Label != s.Label {
				continue
			}
			if geometry.IoU(box, o.Bounds()) > c.cfg.IoU {
				return true
			}
		}
	}
	return false
}

// personBox finds the existing person rectangle overlapping box best, or
// nil.
func (c *converter) personBox(box geometry.Rect) *shape.Shape {
	best, bestIoU := (*shape.Shape)(nil), poseAnchorIoU
	for _, s := range c.existing {
		if s.Type != shape.TypeRectangle {
			continue
		}
		if s.Label != personClass && s.Label != c.cfg.Label(personClass) {
			continue
		}
		if iou := geometry.IoU(box, s.Bounds()); iou > bestIoU {
			best, bestIoU = s, iou
		}
	}
	return best
}

// anchorGroup returns the group a pose joins when anchored to person. A
// person box without a group is given the next free group id, which is
// reserved once the pose is accepted.
func (c *converter) anchorGroup(person *shape.Shape) *int {
	if person == nil {
		return nil
	}
	g := c.group
	switch v, ok := c.regroup[person.ID]; {
	case person.GroupID != nil:
		g = *person.GroupID
	case ok:
		g = v
	}
	return &g
}

// pose builds point shapes for the kept keypoints and, when enabled, a line
// per limb joining two kept keypoints.
func (c *converter) pose(kps []inference.Keypoint, group *int) []*shape.Shape {
	var out []*shape.Shape
	kept := make(map[int]*shape.Shape, len(kps))
	for i, k := range kps {
		if k.Score < c.cfg.KeypointConfidence {
			continue
		}
		s, err := c.build(shape.TypePoint, []geometry.Point{k.Point}, keypointName(k.Name, i))
		if err != nil {
			continue
		}
		s.GroupID = copyInt(group)
		kept[i] = s
		out = append(out, s)
	}

	if !c.cfg.DrawSkeleton {
		return out
	}
	for _, limb := range COCOSkeleton {
		a, b := kept[limb[0]], kept[limb[1]]
		if a == nil || b == nil {
			continue
		}
		label := "limb_" + a.Label + "_" + b.Label
		s, err := c.build(shape.TypeLine, []geometry.Point{a.Points[0], b.Points[0]}, label)
		if err != nil {
			continue
		}
		s.GroupID = copyInt(group)
		out = append(out, s)
	}
	return out
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
