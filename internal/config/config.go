// Package config loads session settings from a YAML file and environment
// variables.
//
// Precedence, lowest first: built-in defaults, the YAML file, then
// ANNOTATE_MCP_* environment variables. The CLI loads a .env file into the
// environment before calling Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/annotation-tools-mcp/internal/canvas"
	"github.com/ironsheep/annotation-tools-mcp/internal/convert"
	"github.com/ironsheep/annotation-tools-mcp/internal/selection"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ANNOTATE_MCP_"

// Model kinds.
const (
	KindHTTP    = "http"
	KindGemini  = "gemini"
	KindOCR     = "ocr"
	KindBuiltin = "builtin"
)

// Config is the complete session configuration.
type Config struct {
	Selection Selection `yaml:"selection"`
	Colors    Colors    `yaml:"colors"`
	Inference Inference `yaml:"inference"`
	Models    []Model   `yaml:"models"`

	// StoreImageData embeds the encoded image in saved annotation files.
	StoreImageData bool `yaml:"store_image_data"`
}

// Selection holds hit-testing and gesture settings in screen pixels.
type Selection struct {
	Policy          string  `yaml:"policy"`
	Tolerance       float64 `yaml:"tolerance"`
	VertexTolerance float64 `yaml:"vertex_tolerance"`
	CloseDistance   float64 `yaml:"close_distance"`
	DragThreshold   float64 `yaml:"drag_threshold"`
	MinSelectDrag   float64 `yaml:"min_select_drag"`
	PasteOffset     float64 `yaml:"paste_offset"`
}

// Colors configures the label palette. Colours are hex strings.
type Colors struct {
	Mode    string            `yaml:"mode"`
	Default string            `yaml:"default"`
	Labels  map[string]string `yaml:"labels"`
}

// Inference holds the assisted-annotation settings.
type Inference struct {
	convert.Config `yaml:",inline"`

	// Timeout bounds one inference task.
	Timeout time.Duration `yaml:"timeout"`

	// DefaultModel is used when a request names no model.
	DefaultModel string `yaml:"default_model"`
}

// Model registers one inference backend.
type Model struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`

	// http
	URL     string            `yaml:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`

	// http and gemini: model name sent to the server.
	Name    string `yaml:"name,omitempty"`
	MaxSide int    `yaml:"max_side,omitempty"`

	// builtin: shapes, text or segment.
	Detector string `yaml:"detector,omitempty"`

	// ocr
	Language       string `yaml:"language,omitempty"`
	TessdataPrefix string `yaml:"tessdata_prefix,omitempty"`
}

// Default returns the built-in configuration: contain selection with 5/4
// pixel tolerances, auto colours, the default conversion thresholds, a 60
// second timeout and the built-in and OCR models.
func Default() *Config {
	sel := selection.DefaultOptions()
	cv := canvas.DefaultOptions()
	return &Config{
		Selection: Selection{
			Policy:          string(cv.Policy),
			Tolerance:       sel.Tolerance,
			VertexTolerance: sel.VertexTolerance,
			CloseDistance:   cv.CloseDistance,
			DragThreshold:   cv.DragThreshold,
			MinSelectDrag:   cv.MinSelectDrag,
			PasteOffset:     cv.PasteOffset,
		},
		Colors: Colors{
			Mode:    string(shape.ColorAuto),
			Default: shape.DefaultPalette().DefaultColor.Hex(),
		},
		Inference: Inference{
			Config:       convert.DefaultConfig(),
			Timeout:      60 * time.Second,
			DefaultModel: "builtin/shapes",
		},
		Models: []Model{
			{ID: "builtin/shapes", Kind: KindBuiltin, Detector: "shapes"},
			{ID: "builtin/text", Kind: KindBuiltin, Detector: "text"},
			{ID: "builtin/segment", Kind: KindBuiltin, Detector: "segment"},
			{ID: "ocr/tesseract", Kind: KindOCR, Language: "eng"},
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		// A models list in the file replaces the built-in one.
		if def := Default().Inference.DefaultModel; cfg.Inference.DefaultModel == def && !cfg.hasModel(def) && len(cfg.Models) > 0 {
			cfg.Inference.DefaultModel = cfg.Models[0].ID
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies ANNOTATE_MCP_* overrides and registers models implied by
// GEMINI_API_KEY and ANNOTATE_MCP_MODEL_URL.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	env := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	floats := map[string]*float64{
		"CONFIDENCE":          &c.Inference.Confidence,
		"KEYPOINT_CONFIDENCE": &c.Inference.KeypointConfidence,
		"IOU":                 &c.Inference.IoU,
		"EPSILON":             &c.Inference.Epsilon,
		"TOLERANCE":           &c.Selection.Tolerance,
		"VERTEX_TOLERANCE":    &c.Selection.VertexTolerance,
	}
	names := make([]string, 0, len(floats))
	for name := range floats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v, ok := env(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*floats[name] = f
		}
	}
	if v, ok := env("MAX_DETECTIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sMAX_DETECTIONS: %w", EnvPrefix, err)
		}
		c.Inference.MaxDetections = n
	}
	if v, ok := env("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sTIMEOUT: %w", EnvPrefix, err)
		}
		c.Inference.Timeout = d
	}
	if v, ok := env("SELECTION_POLICY"); ok {
		c.Selection.Policy = v
	}
	if v, ok := env("DEFAULT_MODEL"); ok {
		c.Inference.DefaultModel = v
	}
	if v, ok := env("DRAW_SKELETON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDRAW_SKELETON: %w", EnvPrefix, err)
		}
		c.Inference.DrawSkeleton = b
	}
	if v, ok := env("MODEL_URL"); ok && !c.hasModel("remote") {
		c.Models = append(c.Models, Model{ID: "remote", Kind: KindHTTP, URL: v})
	}
	if v, ok := lookup("GEMINI_API_KEY"); ok && v != "" && !c.hasKind(KindGemini) {
		c.Models = append(c.Models, Model{ID: "gemini", Kind: KindGemini, Name: "gemini-1.5-flash"})
	}
	return nil
}

func (c *Config) hasModel(id string) bool {
	_, ok := c.Model(id)
	return ok
}

func (c *Config) hasKind(kind string) bool {
	for _, m := range c.Models {
		if m.Kind == kind {
			return true
		}
	}
	return false
}

// Model returns the registered model with the given id.
func (c *Config) Model(id string) (Model, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := selection.ParsePolicy(c.Selection.Policy); err != nil {
		errs = append(errs, err)
	}
	for name, v := range map[string]float64{
		"tolerance":        c.Selection.Tolerance,
		"vertex_tolerance": c.Selection.VertexTolerance,
		"close_distance":   c.Selection.CloseDistance,
		"drag_threshold":   c.Selection.DragThreshold,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("selection.%s must be positive, got %v", name, v))
		}
	}
	if _, err := c.Palette(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Inference.Config.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("inference: %w", err))
	}
	if c.Inference.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("inference.timeout must be positive, got %v", c.Inference.Timeout))
	}

	seen := map[string]bool{}
	for i, m := range c.Models {
		if m.ID == "" {
			errs = append(errs, fmt.Errorf("models[%d]: missing id", i))
			continue
		}
		if seen[m.ID] {
			errs = append(errs, fmt.Errorf("models[%d]: duplicate id %q", i, m.ID))
		}
		seen[m.ID] = true
		switch m.Kind {
		case KindHTTP:
			if m.URL == "" {
				errs = append(errs, fmt.Errorf("model %q: http models need a url", m.ID))
			}
		case KindGemini:
			if m.Name == "" {
				errs = append(errs, fmt.Errorf("model %q: gemini models need a name", m.ID))
			}
		case KindBuiltin:
			switch m.Detector {
			case "shapes", "text", "segment":
			default:
				errs = append(errs, fmt.Errorf("model %q: unknown builtin detector %q", m.ID, m.Detector))
			}
		case KindOCR:
		default:
			errs = append(errs, fmt.Errorf("model %q: unknown kind %q", m.ID, m.Kind))
		}
	}
	if d := c.Inference.DefaultModel; d != "" && !seen[d] {
		errs = append(errs, fmt.Errorf("inference.default_model %q is not a registered model", d))
	}
	return errors.Join(errs...)
}

// CanvasOptions converts the selection settings.
func (c *Config) CanvasOptions() canvas.Options {
	policy, err := selection.ParsePolicy(c.Selection.Policy)
	if err != nil {
		policy = selection.PolicyContain
	}
	return canvas.Options{
		Hit: selection.Options{
			Tolerance:       c.Selection.Tolerance,
			VertexTolerance: c.Selection.VertexTolerance,
		},
		Policy:        policy,
		CloseDistance: c.Selection.CloseDistance,
		DragThreshold: c.Selection.DragThreshold,
		MinSelectDrag: c.Selection.MinSelectDrag,
		PasteOffset:   c.Selection.PasteOffset,
	}
}

// Palette converts the colour settings.
func (c *Config) Palette() (shape.Palette, error) {
	p := shape.DefaultPalette()
	switch mode := shape.ColorMode(strings.ToLower(c.Colors.Mode)); mode {
	case shape.ColorAuto, shape.ColorManual:
		p.Mode = mode
	case "":
	default:
		return p, fmt.Errorf("colors.mode: unknown mode %q", c.Colors.Mode)
	}
	if c.Colors.Default != "" {
		col, err := shape.ParseHex(c.Colors.Default)
		if err != nil {
			return p, fmt.Errorf("colors.default: %w", err)
		}
		p.DefaultColor = col
	}
	for label, hex := range c.Colors.Labels {
		col, err := shape.ParseHex(hex)
		if err != nil {
			return p, fmt.Errorf("colors.labels[%s]: %w", label, err)
		}
		p.LabelColors[label] = col
	}
	return p, nil
}
