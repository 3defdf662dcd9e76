package inference

import (
	"context"
	"image"
	"image/color"
	"testing"
)

func paint(img *image.RGBA, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, color.Black)
		}
	}
}

func TestNewBuiltinBackend(t *testing.T) {
	if _, err := NewBuiltinBackend("faces"); err == nil {
		t.Error("expected error for unknown detector")
	}
	b, err := NewBuiltinBackend(BuiltinShapes)
	if err != nil || b.Kind() != "builtin" {
		t.Fatalf("NewBuiltinBackend: %v", err)
	}
}

func TestBuiltinBackend_Shapes(t *testing.T) {
	img := testImage(120, 120)
	paint(img, image.Rect(30, 30, 90, 90))

	b, _ := NewBuiltinBackend(BuiltinShapes)
	dets, err := b.Detect(context.Background(), img, Request{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	var found bool
	for _, d := range dets {
		if d.Class == "rectangle" && d.Box.Width() > 50 && d.Box.Width() < 70 {
			found = true
		}
	}
	if !found {
		t.Errorf("no 60px rectangle among %d detections", len(dets))
	}
}

func TestBuiltinBackend_Segment(t *testing.T) {
	img := testImage(80, 80)
	paint(img, image.Rect(10, 10, 40, 30))

	b, _ := NewBuiltinBackend(BuiltinSegment)
	a := NewAdapter()
	a.Register("seg", b)
	dets, err := a.Detect(context.Background(), Request{Image: img, Model: "seg"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d segments, want 1", len(dets))
	}
	d := dets[0]
	if d.Class != "segment" || d.Mask == nil {
		t.Errorf("segment = %+v", d)
	}
	if d.Box != box(10, 10, 40, 30) {
		t.Errorf("box = %+v, want (10,10)-(40,30)", d.Box)
	}
}

func TestBuiltinBackend_Cancelled(t *testing.T) {
	b, _ := NewBuiltinBackend(BuiltinText)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Detect(ctx, testImage(20, 20), Request{}); err == nil {
		t.Error("expected context error")
	}
}

func TestMatchesAny(t *testing.T) {
	if !matchesAny("Invoice", nil) {
		t.Error("no prompts should match everything")
	}
	if !matchesAny("INVOICE", []string{"voice"}) {
		t.Error("case-insensitive substring should match")
	}
	if matchesAny("total", []string{"date", "name"}) {
		t.Error("unexpected match")
	}
}
