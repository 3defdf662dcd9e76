package inference

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
)

// fakeBackend returns canned detections and records what it was given.
type fakeBackend struct {
	dets  []Detection
	err   error
	delay time.Duration
	panic bool

	gotBounds image.Rectangle
}

func (f *fakeBackend) Kind() string { return "fake" }

func (f *fakeBackend) Detect(ctx context.Context, img image.Image, _ Request) ([]Detection, error) {
	f.gotBounds = img.Bounds()
	if f.panic {
		panic("model exploded")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.dets, f.err
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func box(x1, y1, x2, y2 float64) geometry.Rect {
	return geometry.RectFromPoints(geometry.Pt(x1, y1), geometry.Pt(x2, y2))
}

func errKind(t *testing.T, err error) Kind {
	t.Helper()
	var ie *Error
	if !errors.As(err, &ie) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	return ie.Kind
}

func TestAdapterDetect_ThresholdAndOrder(t *testing.T) {
	a := NewAdapter()
	a.Register("fake", &fakeBackend{dets: []Detection{
		{Class: "cat", Score: 0.6, Box: box(0, 0, 10, 10)},
		{Class: "dog", Score: 0.2, Box: box(0, 0, 10, 10)},
		{Class: "car", Score: 0.9, Box: box(0, 0, 10, 10)},
		{Class: "bad", Score: math.NaN(), Box: box(0, 0, 10, 10)},
	}})

	dets, err := a.Detect(context.Background(), Request{Image: testImage(50, 50), Model: "fake", Threshold: 0.5})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2", len(dets))
	}
	if dets[0].Class != "car" || dets[1].Class != "cat" {
		t.Errorf("order: got %s, %s; want car, cat", dets[0].Class, dets[1].Class)
	}
}

func TestAdapterDetect_RegionTranslation(t *testing.T) {
	fb := &fakeBackend{dets: []Detection{{
		Class:     "person",
		Score:     0.9,
		Box:       box(5, 5, 15, 25),
		Contours:  [][]geometry.Point{{geometry.Pt(5, 5), geometry.Pt(15, 5), geometry.Pt(15, 25)}},
		Keypoints: []Keypoint{{Name: "nose", Point: geometry.Pt(10, 8), Score: 0.8}},
	}}}
	a := NewAdapter()
	a.Register("fake", fb)

	region := image.Rect(20, 30, 60, 80)
	dets, err := a.Detect(context.Background(), Request{Image: testImage(100, 100), Region: &region, Model: "fake"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if fb.gotBounds != image.Rect(0, 0, 40, 50) {
		t.Errorf("backend saw bounds %v, want origin-based 40x50", fb.gotBounds)
	}
	d := dets[0]
	if d.Box != box(25, 35, 35, 55) {
		t.Errorf("box = %+v, want (25,35)-(35,55)", d.Box)
	}
	if d.Contours[0][1] != geometry.Pt(35, 35) {
		t.Errorf("contour point = %v, want (35,35)", d.Contours[0][1])
	}
	if d.Keypoints[0].Point != geometry.Pt(30, 38) {
		t.Errorf("keypoint = %v, want (30,38)", d.Keypoints[0].Point)
	}
	// The backend's own slice must not be modified.
	if fb.dets[0].Box != box(5, 5, 15, 25) {
		t.Error("translation modified the backend's detections")
	}
}

func TestAdapterDetect_BadInput(t *testing.T) {
	a := NewAdapter()
	a.Register("fake", &fakeBackend{})
	img := testImage(20, 20)
	outside := image.Rect(10, 10, 30, 30)
	empty := image.Rect(5, 5, 5, 10)

	tests := []struct {
		name string
		req  Request
	}{
		{"no image", Request{Model: "fake"}},
		{"negative threshold", Request{Image: img, Model: "fake", Threshold: -0.1}},
		{"threshold above one", Request{Image: img, Model: "fake", Threshold: 1.5}},
		{"NaN threshold", Request{Image: img, Model: "fake", Threshold: math.NaN()}},
		{"region outside", Request{Image: img, Model: "fake", Region: &outside}},
		{"empty region", Request{Image: img, Model: "fake", Region: &empty}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Detect(context.Background(), tt.req)
			if errKind(t, err) != KindBadInput {
				t.Errorf("kind = %s, want %s", errKind(t, err), KindBadInput)
			}
			if !errors.Is(err, ErrBadInput) {
				t.Error("errors.Is(err, ErrBadInput) = false")
			}
		})
	}
}

func TestAdapterDetect_UnknownModel(t *testing.T) {
	_, err := NewAdapter().Detect(context.Background(), Request{Image: testImage(10, 10), Model: "nope"})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("got %v, want ErrModelUnavailable", err)
	}
}

func TestAdapterDetect_BackendFailures(t *testing.T) {
	tests := []struct {
		name string
		fb   *fakeBackend
		want Kind
	}{
		{"plain error", &fakeBackend{err: errors.New("boom")}, KindBackend},
		{"panic", &fakeBackend{panic: true}, KindBackend},
		{"unreachable", &fakeBackend{err: ErrModelUnavailable}, KindModelUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter()
			a.Register("m", tt.fb)
			_, err := a.Detect(context.Background(), Request{Image: testImage(10, 10), Model: "m"})
			if got := errKind(t, err); got != tt.want {
				t.Errorf("kind = %s, want %s (%v)", got, tt.want, err)
			}
		})
	}
}

func TestAdapterDetect_Timeout(t *testing.T) {
	a := NewAdapter()
	a.Register("slow", &fakeBackend{delay: 2 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := a.Detect(ctx, Request{Image: testImage(10, 10), Model: "slow"})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Detect took %v; should return at the deadline", elapsed)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("got %v, want ErrTimeout", err)
	}
}

func TestAdapterDetect_Cancelled(t *testing.T) {
	a := NewAdapter()
	a.Register("fake", &fakeBackend{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Detect(ctx, Request{Image: testImage(10, 10), Model: "fake"})
	if errKind(t, err) != KindCancelled {
		t.Errorf("got %v, want cancelled", err)
	}
}

func TestAdapterModels(t *testing.T) {
	a := NewAdapter()
	a.Register("zeta", &fakeBackend{})
	a.Register("alpha", &HTTPBackend{})

	got := a.Models()
	if len(got) != 2 || got[0].ID != "alpha" || got[0].Kind != "http" || got[1].ID != "zeta" {
		t.Errorf("Models() = %+v", got)
	}
}

func TestDetectionScale(t *testing.T) {
	d := Detection{Box: box(10, 20, 30, 40), Keypoints: []Keypoint{{Point: geometry.Pt(4, 6)}}}
	s := d.Scale(0.5)
	if s.Box != box(5, 10, 15, 20) || s.Keypoints[0].Point != geometry.Pt(2, 3) {
		t.Errorf("Scale: got %+v", s)
	}
	if d.Keypoints[0].Point != geometry.Pt(4, 6) {
		t.Error("Scale modified the receiver")
	}
}
