package labelfile

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// Summary is the YAML export: the image reference and one entry per shape
// with its bounding box and area precomputed.
type Summary struct {
	Image  SummaryImage   `yaml:"image"`
	Counts map[string]int `yaml:"counts"`
	Shapes []SummaryShape `yaml:"shapes"`
}

type SummaryImage struct {
	Path   string `yaml:"path"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type SummaryShape struct {
	Label       string       `yaml:"label"`
	Type        string       `yaml:"type"`
	GroupID     *int         `yaml:"group_id,omitempty"`
	Description string       `yaml:"description,omitempty"`
	Points      [][2]float64 `yaml:"points,flow"`
	BBox        [4]float64   `yaml:"bbox,flow"`
	Area        float64      `yaml:"area"`
	Hidden      bool         `yaml:"hidden,omitempty"`
	Locked      bool         `yaml:"locked,omitempty"`
}

// Row is one shape in the Parquet export.
type Row struct {
	ImagePath   string  `parquet:"image_path"`
	ImageWidth  int32   `parquet:"image_width"`
	ImageHeight int32   `parquet:"image_height"`
	Index       int32   `parquet:"index"`
	Label       string  `parquet:"label"`
	ShapeType   string  `parquet:"shape_type"`
	GroupID     *int32  `parquet:"group_id,optional"`
	Description string  `parquet:"description"`
	NumPoints   int32   `parquet:"num_points"`
	MinX        float64 `parquet:"min_x"`
	MinY        float64 `parquet:"min_y"`
	MaxX        float64 `parquet:"max_x"`
	MaxY        float64 `parquet:"max_y"`
	Area        float64 `parquet:"area"`
	Points      string  `parquet:"points"`
	Visible     bool    `parquet:"visible"`
	Locked      bool    `parquet:"locked"`
}

// Summarize builds the YAML export for the usable shapes of lf.
func (lf *File) Summarize() Summary {
	shapes, _ := lf.ToShapes()
	sum := Summary{
		Image:  SummaryImage{Path: lf.ImagePath, Width: lf.ImageWidth, Height: lf.ImageHeight},
		Counts: map[string]int{},
		Shapes: make([]SummaryShape, 0, len(shapes)),
	}
	for _, s := range shapes {
		b := s.Bounds()
		sum.Counts[s.Label]++
		sum.Shapes = append(sum.Shapes, SummaryShape{
			Label:       s.Label,
			Type:        string(s.Type),
			GroupID:     s.GroupID,
			Description: s.Description,
			Points:      pairs(s.Points),
			BBox:        [4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y},
			Area:        round(s.Area()),
			Hidden:      !s.Visible,
			Locked:      s.Locked,
		})
	}
	return sum
}

// ExportYAML writes the summary of lf as YAML.
func ExportYAML(w io.Writer, lf *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(lf.Summarize()); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return enc.Close()
}

// Rows flattens the usable shapes of lf into Parquet rows.
func (lf *File) Rows() ([]Row, error) {
	shapes, _ := lf.ToShapes()
	rows := make([]Row, 0, len(shapes))
	for i, s := range shapes {
		pts, err := json.Marshal(pairs(s.Points))
		if err != nil {
			return nil, fmt.Errorf("failed to encode points: %w", err)
		}
		b := s.Bounds()
		row := Row{
			ImagePath:   lf.ImagePath,
			ImageWidth:  int32(lf.ImageWidth),
			ImageHeight: int32(lf.ImageHeight),
			Index:       int32(i),
			Label:       s.Label,
			ShapeType:   string(s.Type),
			Description: s.Description,
			NumPoints:   int32(len(s.Points)),
			MinX:        b.Min.X,
			MinY:        b.Min.Y,
			MaxX:        b.Max.X,
			MaxY:        b.Max.Y,
			Area:        s.Area(),
			Points:      string(pts),
			Visible:     s.Visible,
			Locked:      s.Locked,
		}
		if s.GroupID != nil {
			g := int32(*s.GroupID)
			row.GroupID = &g
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ExportParquet writes one row per usable shape of each file.
func ExportParquet(w io.Writer, files ...*File) error {
	pw := parquet.NewGenericWriter[Row](w)
	for _, lf := range files {
		rows, err := lf.Rows()
		if err != nil {
			return err
		}
		if _, err := pw.Write(rows); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func pairs(pts []geometry.Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Stats counts shapes per label and type.
type Stats struct {
	Shapes  int            `json:"shapes"`
	ByLabel map[string]int `json:"by_label"`
	ByType  map[string]int `json:"by_type"`
	Groups  int            `json:"groups"`
}

// ShapeStats summarises a shape list.
func ShapeStats(shapes []*shape.Shape) Stats {
	st := Stats{ByLabel: map[string]int{}, ByType: map[string]int{}}
	groups := map[int]bool{}
	for _, s := range shapes {
		st.Shapes++
		st.ByLabel[s.Label]++
		st.ByType[string(s.Type)]++
		if s.GroupID != nil {
			groups[*s.GroupID] = true
		}
	}
	st.Groups = len(groups)
	return st
}
