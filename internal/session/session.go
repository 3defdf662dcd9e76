package session

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/annotation-tools-mcp/internal/annotation"
	"github.com/ironsheep/annotation-tools-mcp/internal/assist"
	"github.com/ironsheep/annotation-tools-mcp/internal/canvas"
	"github.com/ironsheep/annotation-tools-mcp/internal/config"
	"github.com/ironsheep/annotation-tools-mcp/internal/imaging"
	"github.com/ironsheep/annotation-tools-mcp/internal/inference"
	"github.com/ironsheep/annotation-tools-mcp/internal/labelfile"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// ErrNoDocument is returned by operations that need an open image.
var ErrNoDocument = errors.New("no image is open")

// Session is the editing state of one open image.
type Session struct {
	cfg     *config.Config
	palette shape.Palette
	cache   *imaging.Cache
	adapter *inference.Adapter
	runner  *assist.Runner

	engine *annotation.Engine
	canvas *canvas.Canvas
	pixels image.Image

	// path is the annotation file the document was loaded from or last
	// saved to.
	path string

	pending map[string]pending
}

// New creates a session with no open image. A nil adapter is built from
// the configured models.
func New(cfg *config.Config, adapter *inference.Adapter) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	palette, err := cfg.Palette()
	if err != nil {
		return nil, err
	}
	if adapter == nil {
		adapter, err = NewAdapter(cfg.Models)
		if err != nil {
			return nil, err
		}
	}
	engine := annotation.NewEngine(annotation.NewDocument(annotation.ImageRef{}))
	return &Session{
		cfg:     cfg,
		palette: palette,
		cache:   imaging.NewCache(),
		adapter: adapter,
		runner:  assist.NewRunner(adapter, cfg.Inference.Timeout, 16),
		engine:  engine,
		canvas:  canvas.New(engine, cfg.CanvasOptions()),
		pending: make(map[string]pending),
	}, nil
}

// Close cancels outstanding inference and waits for it to stop.
func (s *Session) Close() {
	s.runner.Close()
}

// Config returns the session configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Engine returns the edit engine.
func (s *Session) Engine() *annotation.Engine { return s.engine }

// Document returns the open document.
func (s *Session) Document() *annotation.Document { return s.engine.Document() }

// Canvas returns the interaction state machine.
func (s *Session) Canvas() *canvas.Canvas { return s.canvas }

// Palette returns the label colour palette.
func (s *Session) Palette() shape.Palette { return s.palette }

// Models lists the registered inference models.
func (s *Session) Models() []inference.ModelInfo { return s.adapter.Models() }

// Path returns the annotation file path, or "" for an unsaved document.
func (s *Session) Path() string { return s.path }

// IsOpen reports whether an image is open.
func (s *Session) IsOpen() bool { return s.pixels != nil }

// OpenResult describes a freshly opened document.
type OpenResult struct {
	Image   annotation.ImageRef `json:"image"`
	Format  string              `json:"format"`
	Path    string              `json:"annotation_path"`
	Shapes  int                 `json:"shapes"`
	Skipped []labelfile.Skipped `json:"skipped,omitempty"`
	Created bool                `json:"created"`
}

// Open opens a document. path is either an image, whose annotations are read
// from annotationPath (default: the image path with a .json extension) when
// that file exists, or an annotation file, whose image is resolved from its
// imagePath or decoded from its embedded imageData.
//
// Inference still running for the previous document is cancelled.
func (s *Session) Open(path, annotationPath string) (*OpenResult, error) {
	var (
		img  image.Image
		info imaging.Info
		lf   *labelfile.File
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), labelfile.Suffix) {
		annotationPath = path
		if lf, err = labelfile.Load(path); err != nil {
			return nil, err
		}
		img, info, err = s.imageFor(path, lf)
		if err != nil {
			return nil, err
		}
	} else {
		if img, info, err = s.cache.Load(path); err != nil {
			return nil, err
		}
		if annotationPath == "" {
			annotationPath = labelfile.PathFor(path)
		}
		lf, err = labelfile.Load(annotationPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	ref := annotation.ImageRef{Path: info.Path, Width: info.Width, Height: info.Height}
	res := &OpenResult{Image: ref, Format: info.Format, Path: annotationPath, Created: lf == nil}

	var shapes []*shape.Shape
	if lf != nil {
		if lf.ImageWidth != 0 && (lf.ImageWidth != ref.Width || lf.ImageHeight != ref.Height) {
			slog.Warn("annotation file image size differs from image",
				"file", annotationPath,
				"file_size", fmt.Sprintf("%dx%d", lf.ImageWidth, lf.ImageHeight),
				"image_size", fmt.Sprintf("%dx%d", ref.Width, ref.Height))
		}
		shapes, res.Skipped = lf.ToShapes()
	}

	if n := s.runner.CancelAll(); n > 0 {
		slog.Info("cancelled inference for previous document", "tasks", n)
	}
	if err := s.engine.Load(ref, shapes); err != nil {
		return nil, err
	}
	s.canvas.Cancel()
	s.canvas.ClearSelection()
	s.pixels = img
	s.path = annotationPath
	res.Shapes = s.Document().Len()

	slog.Info("opened image", "image", ref.Path, "annotations", annotationPath, "shapes", res.Shapes, "skipped", len(res.Skipped))
	return res, nil
}

// imageFor loads the image an annotation file refers to, falling back to the
// embedded image data.
func (s *Session) imageFor(path string, lf *labelfile.File) (image.Image, imaging.Info, error) {
	imagePath, err := lf.ImageFile(path)
	if err == nil {
		img, info, lerr := s.cache.Load(imagePath)
		if lerr == nil {
			return img, info, nil
		}
		err = lerr
	}
	if lf.ImageData == nil {
		return nil, imaging.Info{}, err
	}
	img, info, derr := imaging.DecodeBase64(*lf.ImageData)
	if derr != nil {
		return nil, imaging.Info{}, fmt.Errorf("failed to decode embedded image: %w", derr)
	}
	if imagePath == "" {
		imagePath = strings.TrimSuffix(path, filepath.Ext(path)) + "." + info.Format
	}
	slog.Debug("using embedded image data", "file", path, "image", imagePath)
	info, err = s.cache.Put(imagePath, img, info.Format)
	return img, info, err
}

// Save writes the document to path, or to the current annotation path when
// path is empty, and marks the document saved.
func (s *Session) Save(path string) (string, error) {
	if !s.IsOpen() {
		return "", ErrNoDocument
	}
	if path == "" {
		path = s.path
	}
	doc := s.Document()

	var data []byte
	if s.cfg.StoreImageData {
		raw, err := os.ReadFile(doc.Image().Path)
		if err != nil {
			// Images opened from embedded data have no file.
			if raw, err = imaging.EncodePNG(s.pixels); err != nil {
				return "", fmt.Errorf("failed to encode image data: %w", err)
			}
		}
		data = raw
	}
	lf, err := labelfile.FromDocument(doc, labelfile.RelativeImagePath(path, doc.Image().Path), data)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := lf.Save(path); err != nil {
		return "", err
	}
	s.engine.MarkSaved()
	s.path = path
	slog.Info("saved annotations", "path", path, "shapes", doc.Len())
	return path, nil
}
