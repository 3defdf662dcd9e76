package session

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/ironsheep/annotation-tools-mcp/internal/annotation"
	"github.com/ironsheep/annotation-tools-mcp/internal/assist"
	"github.com/ironsheep/annotation-tools-mcp/internal/convert"
	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/inference"
)

// DetectRequest asks for proposals on the open image.
type DetectRequest struct {
	// Model defaults to the configured default model.
	Model string `json:"model,omitempty"`

	// Region limits detection to part of the image, in image coordinates.
	Region *geometry.Rect `json:"region,omitempty"`

	// Threshold overrides the configured confidence threshold.
	Threshold *float64 `json:"threshold,omitempty"`

	// Prompts are passed to open-vocabulary models.
	Prompts []string `json:"prompts,omitempty"`

	// Classes overrides the configured class filter.
	Classes []string `json:"classes,omitempty"`
}

// pending is what Deliver needs to know about a submitted task.
type pending struct {
	ref    annotation.ImageRef
	region *image.Rectangle
	cfg    convert.Config
}

// Drop reasons reported in Delivery.
const (
	DropCancelled = "cancelled"
	DropStale     = "stale"
	DropUnknown   = "unknown task"
)

// Delivery reports what happened to one outcome.
type Delivery struct {
	TaskID     string        `json:"task_id"`
	Model      string        `json:"model"`
	Detections int           `json:"detections"`
	Added      []int         `json:"added"`
	Stats      convert.Stats `json:"stats"`
	Dropped    string        `json:"dropped,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Detect submits an inference task for the open image and returns its id.
// The outcome arrives on Results and must be passed to Deliver.
func (s *Session) Detect(req DetectRequest) (string, error) {
	if !s.IsOpen() {
		return "", ErrNoDocument
	}
	model := req.Model
	if model == "" {
		model = s.cfg.Inference.DefaultModel
	}

	cc := s.cfg.Inference.Config
	if req.Threshold != nil {
		cc.Confidence = *req.Threshold
	}
	if req.Classes != nil {
		cc.Classes = req.Classes
	}
	if err := cc.Validate(); err != nil {
		return "", err
	}

	ir := inference.Request{
		Image:     s.pixels,
		Model:     model,
		Threshold: cc.Confidence,
		Prompts:   req.Prompts,
	}
	if req.Region != nil {
		r, err := pixelRegion(*req.Region, s.pixels.Bounds())
		if err != nil {
			return "", err
		}
		ir.Region = &r
	}

	ref := s.Document().Image()
	id, err := s.runner.Submit(ir, ref)
	if err != nil {
		return "", err
	}
	s.pending[id] = pending{ref: ref, region: ir.Region, cfg: cc}
	return id, nil
}

// pixelRegion rounds r outwards to whole pixels and clips it to bounds.
func pixelRegion(r geometry.Rect, bounds image.Rectangle) (image.Rectangle, error) {
	if !r.IsFinite() {
		return image.Rectangle{}, fmt.Errorf("%w: region is not finite", inference.ErrBadInput)
	}
	px := image.Rect(
		int(math.Floor(r.Min.X)), int(math.Floor(r.Min.Y)),
		int(math.Ceil(r.Max.X)), int(math.Ceil(r.Max.Y)),
	).Intersect(bounds)
	if px.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: region %v is outside the image", inference.ErrBadInput, r)
	}
	return px, nil
}

// Results delivers inference outcomes. The receiver must hand each one to
// Deliver on the editing thread.
func (s *Session) Results() <-chan assist.Outcome {
	return s.runner.Results()
}

// Deliver validates an outcome against the current document and inserts the
// converted shapes as one undo step. Outcomes of cancelled tasks, failed
// tasks and tasks for a document that is no longer open add nothing.
func (s *Session) Deliver(out assist.Outcome) Delivery {
	id := out.Task.ID
	d := Delivery{TaskID: id, Model: out.Task.Model, Detections: len(out.Detections), Added: []int{}}

	p, known := s.pending[id]
	delete(s.pending, id)

	if err := s.runner.Claim(id); err != nil {
		d.Dropped = DropCancelled
		if !known {
			d.Dropped = DropUnknown
		}
		slog.Debug("dropping inference outcome", "task", id, "reason", err)
		return d
	}
	if !known {
		d.Dropped = DropUnknown
		slog.Warn("dropping outcome of unknown task", "task", id)
		return d
	}
	if out.Err != nil {
		d.Error = out.Err.Error()
		slog.Warn("inference failed", "task", id, "model", out.Task.Model, "error", out.Err)
		return d
	}
	if reason := s.stale(p); reason != "" {
		d.Dropped = DropStale
		slog.Warn("dropping stale inference outcome", "task", id, "reason", reason)
		return d
	}

	cmd, stats := convert.Convert(s.Document(), out.Detections, p.cfg)
	d.Stats = stats
	if cmd == nil {
		slog.Info("inference produced no shapes", "task", id, "detections", len(out.Detections))
		return d
	}
	if err := s.engine.Apply(cmd); err != nil {
		d.Error = err.Error()
		slog.Warn("failed to insert proposals", "task", id, "error", err)
		return d
	}
	d.Added = annotation.AddedIDs(cmd)
	slog.Info("inserted proposals", "task", id, "model", out.Task.Model, "shapes", len(d.Added), "elapsed", out.Elapsed)
	return d
}

// stale explains why a task no longer applies to the open document, or
// returns "".
func (s *Session) stale(p pending) string {
	if !s.IsOpen() {
		return "no image is open"
	}
	cur := s.Document().Image()
	if cur != p.ref {
		return fmt.Sprintf("image changed from %s to %s", p.ref.Path, cur.Path)
	}
	if p.region != nil && !p.region.In(s.pixels.Bounds()) {
		return fmt.Sprintf("region %v is no longer inside the image", *p.region)
	}
	return ""
}

// Wait delivers outcomes until the one for task id arrives or ctx ends.
func (s *Session) Wait(ctx context.Context, id string) (Delivery, error) {
	if _, ok := s.pending[id]; !ok {
		return Delivery{}, fmt.Errorf("no pending task %s", id)
	}
	for {
		select {
		case out := <-s.runner.Results():
			d := s.Deliver(out)
			if out.Task.ID == id {
				return d, nil
			}
		case <-ctx.Done():
			return Delivery{}, ctx.Err()
		}
	}
}

// Cancel dismisses a running task. Its late outcome adds nothing.
func (s *Session) Cancel(id string) bool {
	return s.runner.Cancel(id)
}

// CancelAll dismisses every running task.
func (s *Session) CancelAll() int {
	return s.runner.CancelAll()
}

// Task returns the status of one task.
func (s *Session) Task(id string) (assist.Info, error) {
	info, ok := s.runner.Status(id)
	if !ok {
		return assist.Info{}, fmt.Errorf("unknown task %s", id)
	}
	return info, nil
}

// Tasks lists every task submitted in this session.
func (s *Session) Tasks() []assist.Info {
	return s.runner.List()
}
