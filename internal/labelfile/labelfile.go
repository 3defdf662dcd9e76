package labelfile

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ironsheep/annotation-tools-mcp/internal/annotation"
	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/imaging"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// Version is written to the version key of saved files.
const Version = "5.5.0"

// Suffix is the conventional annotation file extension.
const Suffix = ".json"

// ErrNoImage is returned when a file names no image.
var ErrNoImage = errors.New("annotation file has no imagePath")

// File is the on-disk annotation document.
type File struct {
	Version     string          `json:"version"`
	Flags       map[string]bool `json:"flags"`
	Shapes      []Record        `json:"shapes"`
	ImagePath   string          `json:"imagePath"`
	ImageData   *string         `json:"imageData"`
	ImageHeight int             `json:"imageHeight"`
	ImageWidth  int             `json:"imageWidth"`
}

// Record is one shape as stored. Label and Points are pointers so a
// missing key can be told apart from an empty value.
type Record struct {
	Label       *string         `json:"label"`
	Points      *[][2]float64   `json:"points"`
	GroupID     *int            `json:"group_id"`
	Description string          `json:"description"`
	ShapeType   string          `json:"shape_type"`
	Flags       map[string]bool `json:"flags"`
	FillColor   *RGBA           `json:"fill_color,omitempty"`
	LineColor   *RGBA           `json:"line_color,omitempty"`
	Visible     *bool           `json:"visible,omitempty"`
	Locked      bool            `json:"locked,omitempty"`
	Mask        *string         `json:"mask"`
}

// RGBA is a colour written as [r, g, b, a].
type RGBA shape.Color

// MarshalJSON writes the array form.
func (c RGBA) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]uint8{c.R, c.G, c.B, c.A})
}

// UnmarshalJSON accepts [r, g, b], [r, g, b, a] or a hex string.
func (c *RGBA) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		col, err := shape.ParseHex(s)
		if err != nil {
			return err
		}
		*c = RGBA(col)
		return nil
	}
	var arr []uint8
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("invalid color %s: %w", data, err)
	}
	switch len(arr) {
	case 3:
		*c = RGBA{R: arr[0], G: arr[1], B: arr[2], A: 255}
	case 4:
		*c = RGBA{R: arr[0], G: arr[1], B: arr[2], A: arr[3]}
	default:
		return fmt.Errorf("invalid color %s: want 3 or 4 components", data)
	}
	return nil
}

// Load reads an annotation file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotation file: %w", err)
	}
	defer f.Close()
	lf, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lf, nil
}

// Decode parses an annotation file.
func Decode(r io.Reader) (*File, error) {
	var lf File
	if err := json.NewDecoder(r).Decode(&lf); err != nil {
		return nil, fmt.Errorf("failed to decode annotation file: %w", err)
	}
	return &lf, nil
}

// Encode writes the file as indented JSON.
func (lf *File) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lf); err != nil {
		return fmt.Errorf("failed to encode annotation file: %w", err)
	}
	return nil
}

// Save writes the file atomically: a temporary file in the same directory
// is renamed over path.
func (lf *File) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := lf.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write annotation file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace annotation file: %w", err)
	}
	return nil
}

// ImageFile resolves ImagePath against the directory of the annotation file
// stored at path.
func (lf *File) ImageFile(path string) (string, error) {
	if lf.ImagePath == "" {
		return "", ErrNoImage
	}
	if filepath.IsAbs(lf.ImagePath) {
		return lf.ImagePath, nil
	}
	return filepath.Join(filepath.Dir(path), filepath.FromSlash(lf.ImagePath)), nil
}

// Skipped describes a record that could not be turned into a shape.
type Skipped struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ToShapes converts the records into validated shapes in file order.
// Records that cannot be used are reported in skipped and logged.
func (lf *File) ToShapes() (shapes []*shape.Shape, skipped []Skipped) {
	for i, rec := range lf.Shapes {
		s, err := rec.shape()
		if err != nil {
			slog.Warn("skipping shape", "index", i, "error", err)
			skipped = append(skipped, Skipped{Index: i, Reason: err.Error()})
			continue
		}
		shapes = append(shapes, s)
	}
	return shapes, skipped
}

// ImageRef returns the document image reference with the given resolved
// path.
func (lf *File) ImageRef(imagePath string) annotation.ImageRef {
	return annotation.ImageRef{Path: imagePath, Width: lf.ImageWidth, Height: lf.ImageHeight}
}

func (rec Record) shape() (*shape.Shape, error) {
	if rec.Label == nil {
		return nil, errors.New("missing label")
	}
	if rec.Points == nil {
		return nil, errors.New("missing points")
	}
	typeName := rec.ShapeType
	if typeName == "" {
		typeName = string(shape.TypePolygon)
	}
	t, err := shape.ParseType(typeName)
	if err != nil {
		return nil, err
	}

	pts := make([]geometry.Point, len(*rec.Points))
	for i, p := range *rec.Points {
		pts[i] = geometry.Pt(p[0], p[1])
	}
	s := &shape.Shape{
		Type:        t,
		Points:      pts,
		Label:       *rec.Label,
		GroupID:     rec.GroupID,
		Description: rec.Description,
		Visible:     rec.Visible == nil || *rec.Visible,
		Locked:      rec.Locked,
	}
	if len(rec.Flags) > 0 {
		s.Flags = rec.Flags
	}
	if rec.FillColor != nil {
		c := shape.Color(*rec.FillColor)
		s.FillColor = &c
	}
	if rec.LineColor != nil {
		c := shape.Color(*rec.LineColor)
		s.LineColor = &c
	}
	if rec.Mask != nil && *rec.Mask != "" {
		img, _, err := imaging.DecodeBase64(*rec.Mask)
		if err != nil {
			return nil, fmt.Errorf("mask: %w", err)
		}
		s.Mask = imaging.ToGray(img)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// FromDocument builds a file for the shapes of doc. imagePath is written
// as given; callers normally make it relative to the annotation file.
// imageData, when non-nil, embeds the encoded image.
func FromDocument(doc *annotation.Document, imagePath string, imageData []byte) (*File, error) {
	img := doc.Image()
	lf := &File{
		Version:     Version,
		Flags:       map[string]bool{},
		Shapes:      []Record{},
		ImagePath:   filepath.ToSlash(imagePath),
		ImageHeight: img.Height,
		ImageWidth:  img.Width,
	}
	if imageData != nil {
		enc := base64.StdEncoding.EncodeToString(imageData)
		lf.ImageData = &enc
	}
	for _, s := range doc.Shapes() {
		rec, err := record(s)
		if err != nil {
			return nil, fmt.Errorf("shape %d: %w", s.ID, err)
		}
		lf.Shapes = append(lf.Shapes, rec)
	}
	return lf, nil
}

func record(s *shape.Shape) (Record, error) {
	label := s.Label
	pts := make([][2]float64, len(s.Points))
	for i, p := range s.Points {
		pts[i] = [2]float64{p.X, p.Y}
	}
	flags := s.Flags
	if flags == nil {
		flags = map[string]bool{}
	}
	visible := s.Visible
	rec := Record{
		Label:       &label,
		Points:      &pts,
		GroupID:     s.GroupID,
		Description: s.Description,
		ShapeType:   string(s.Type),
		Flags:       flags,
		Locked:      s.Locked,
	}
	if !visible {
		rec.Visible = &visible
	}
	if s.FillColor != nil {
		c := RGBA(*s.FillColor)
		rec.FillColor = &c
	}
	if s.LineColor != nil {
		c := RGBA(*s.LineColor)
		rec.LineColor = &c
	}
	if s.Mask != nil {
		enc, err := imaging.EncodeBase64PNG(s.Mask)
		if err != nil {
			return Record{}, err
		}
		rec.Mask = &enc
	}
	return rec, nil
}

// PathFor returns the annotation file path conventionally paired with an
// image: the image path with its extension replaced by Suffix.
func PathFor(imagePath string) string {
	return imagePath[:len(imagePath)-len(filepath.Ext(imagePath))] + Suffix
}

// RelativeImagePath expresses imagePath relative to the directory of the
// annotation file at path, falling back to the absolute path.
func RelativeImagePath(path, imagePath string) string {
	absImage, err := filepath.Abs(imagePath)
	if err != nil {
		return imagePath
	}
	absDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return absImage
	}
	rel, err := filepath.Rel(absDir, absImage)
	if err != nil {
		return absImage
	}
	return rel
}
