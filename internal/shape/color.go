package shape

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an 8-bit RGBA colour.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// RGBA implements color.Color with alpha-premultiplied components.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

// WithAlpha returns c with its alpha replaced.
func (c Color) WithAlpha(a uint8) Color {
	c.A = a
	return c
}

// ParseHex parses "#RRGGBB" or "#RRGGBBAA". The leading '#' is optional and
// a missing alpha means fully opaque.
func ParseHex(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}

	var alpha uint8 = 255
	switch len(s) {
	case 7:
	case 9:
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid alpha in color %q: %w", s, err)
		}
		alpha = uint8(a)
		s = s[:7]
	default:
		return Color{}, fmt.Errorf("invalid color %q: expected #RRGGBB or #RRGGBBAA", s)
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b, A: alpha}, nil
}

// MustParseHex is ParseHex for constants; it panics on malformed input.
func MustParseHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats the colour as "#rrggbb", or "#rrggbbaa" when not opaque.
func (c Color) Hex() string {
	hex := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hex()
	if c.A == 255 {
		return hex
	}
	return fmt.Sprintf("%s%02x", hex, c.A)
}

// String returns the hex form.
func (c Color) String() string {
	return c.Hex()
}

// goldenRatioConjugate spreads successive hues evenly around the wheel.
const goldenRatioConjugate = 0.618033988749895

// AutoColor derives a stable opaque colour from a label. Labels with the same
// characters in any order share a colour.
func AutoColor(label string) Color {
	sum := 0
	for _, r := range label {
		sum += int(r)
	}
	hue := float64(sum%100) * goldenRatioConjugate
	hue -= float64(int(hue))

	c := colorful.Hsv(hue*360, 0.8, 0.95)
	return Color{
		R: uint8(clamp01(c.R) * 255),
		G: uint8(clamp01(c.G) * 255),
		B: uint8(clamp01(c.B) * 255),
		A: 255,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FillAlpha is the default fill opacity for a shape type. Points are drawn
// nearly solid so they stay visible; rectangles stay faint so they do not hide
// the image.
func FillAlpha(t Type) uint8 {
	switch t {
	case TypePoint:
		return 120
	case TypeRectangle:
		return 20
	}
	return 30
}

// ColorMode selects how label colours are chosen when none is configured.
type ColorMode string

const (
	// ColorAuto derives a colour from the label text.
	ColorAuto ColorMode = "auto"
	// ColorManual uses the configured label colours and falls back to the
	// default.
	ColorManual ColorMode = "manual"
)

// Palette resolves display colours for shapes.
type Palette struct {
	Mode         ColorMode
	DefaultColor Color
	LabelColors  map[string]Color
}

// DefaultPalette returns an auto palette with green as the fallback colour.
func DefaultPalette() Palette {
	return Palette{
		Mode:         ColorAuto,
		DefaultColor: Color{R: 0, G: 255, B: 0, A: 255},
		LabelColors:  map[string]Color{},
	}
}

// LabelColor returns the base colour for a label: the configured colour,
// the auto colour in auto mode, or the default.
func (p Palette) LabelColor(label string) Color {
	if c, ok := p.LabelColors[label]; ok {
		return c
	}
	if p.Mode == ColorAuto && label != "" {
		return AutoColor(label)
	}
	return p.DefaultColor
}

// LineColor returns the outline colour for s.
func (p Palette) LineColor(s *Shape) Color {
	if s.LineColor != nil {
		return *s.LineColor
	}
	return p.LabelColor(s.Label).WithAlpha(255)
}

// FillColor returns the fill colour for s.
func (p Palette) FillColor(s *Shape) Color {
	if s.FillColor != nil {
		return *s.FillColor
	}
	return p.LabelColor(s.Label).WithAlpha(FillAlpha(s.Type))
}
