package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/imaging"
)

// Request describes one inference call.
type Request struct {
	// Image is the full source image.
	Image image.Image

	// Region restricts inference to part of the image. Nil means the whole
	// image.
	Region *image.Rectangle

	// Model is the registered model id.
	Model string

	// Threshold drops detections scoring below it (0.0 to 1.0).
	Threshold float64

	// Prompts are optional text prompts for open-vocabulary models.
	Prompts []string
}

// Backend runs one model. img always has its origin at (0,0) and is the
// region of interest when one was requested; detections are returned in
// img's coordinates. Backends may be called from several goroutines at once.
type Backend interface {
	Kind() string
	Detect(ctx context.Context, img image.Image, req Request) ([]Detection, error)
}

// ModelInfo describes a registered model.
type ModelInfo struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Adapter is the registry of models and the single entry point for
// inference. It is safe for concurrent use.
type Adapter struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewAdapter returns an empty registry.
func NewAdapter() *Adapter {
	return &Adapter{backends: make(map[string]Backend)}
}

// Register makes b available as model id, replacing any previous entry.
func (a *Adapter) Register(id string, b Backend) {
	a.mu.Lock()
	a.backends[id] = b
	a.mu.Unlock()
}

// Models lists the registered models sorted by id.
func (a *Adapter) Models() []ModelInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ModelInfo, 0, len(a.backends))
	for id, b := range a.backends {
		out = append(out, ModelInfo{ID: id, Kind: b.Kind()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (a *Adapter) backend(id string) (Backend, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.backends[id]
	return b, ok
}

// Detect runs req.Model on req.Image or its region and returns detections in
// full-image coordinates, at or above req.Threshold, highest score first.
//
// The call returns as soon as ctx is done even if the backend has not
// finished; its late result is discarded.
//
// # Errors
//
// Always an *Error:
//   - KindBadInput: no image, a threshold outside [0,1], or a region that is
//     empty or not inside the image
//   - KindModelUnavailable: unknown model id, or the backend could not reach
//     its model
//   - KindTimeout / KindCancelled: ctx deadline or cancellation
//   - KindBackend: anything else, including a backend panic
func (a *Adapter) Detect(ctx context.Context, req Request) ([]Detection, error) {
	start := time.Now()
	if err := validate(req); err != nil {
		return nil, newError(KindBadInput, req.Model, err)
	}
	b, ok := a.backend(req.Model)
	if !ok {
		return nil, newError(KindModelUnavailable, req.Model, fmt.Errorf("no model registered as %q", req.Model))
	}
	if err := ctx.Err(); err != nil {
		return nil, classify(req.Model, err)
	}

	roi := req.Image.Bounds()
	if req.Region != nil {
		roi = *req.Region
	}
	var input image.Image = req.Image
	if roi.Min != (image.Point{}) || roi != req.Image.Bounds() {
		cropped, err := imaging.Crop(req.Image, roi)
		if err != nil {
			return nil, newError(KindBadInput, req.Model, err)
		}
		input = cropped
	}

	raw, err := run(ctx, b, input, req)
	if err != nil {
		e := classify(req.Model, err)
		slog.Warn("inference failed", "model", req.Model, "kind", e.Kind, "error", e.Err)
		return nil, e
	}

	offset := geometry.Pt(float64(roi.Min.X), float64(roi.Min.Y))
	out := make([]Detection, 0, len(raw))
	for _, d := range raw {
		if !d.valid() {
			slog.Debug("dropping malformed detection", "model", req.Model, "class", d.Class)
			continue
		}
		if d.Score < req.Threshold {
			continue
		}
		out = append(out, d.Translate(offset))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	slog.Debug("inference complete", "model", req.Model, "raw", len(raw), "kept", len(out), "elapsed", time.Since(start))
	return out, nil
}

func validate(req Request) error {
	if req.Image == nil || req.Image.Bounds().Empty() {
		return errors.New("no image")
	}
	if math.IsNaN(req.Threshold) || req.Threshold < 0 || req.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [0,1]", req.Threshold)
	}
	if req.Region != nil {
		r := *req.Region
		if r.Empty() {
			return fmt.Errorf("empty region %v", r)
		}
		if !r.In(req.Image.Bounds()) {
			return fmt.Errorf("region %v outside image %v", r, req.Image.Bounds())
		}
	}
	return nil
}

type result struct {
	dets []Detection
	err  error
}

// run calls the backend on its own goroutine so that ctx is honoured even
// by backends that ignore it, and turns a panic into an error.
func run(ctx context.Context, b Backend, img image.Image, req Request) ([]Detection, error) {
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		dets, err := b.Detect(ctx, img, req)
		ch <- result{dets: dets, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.dets, r.err
	}
}
