package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func maskPNG(t *testing.T, w, h int) string {
	t.Helper()
	m := image.NewGray(image.Rect(0, 0, w, h))
	for i := range m.Pix {
		if i%2 == 0 {
			m.Pix[i] = 255
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatalf("encode mask: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestHTTPBackend_Detect(t *testing.T) {
	mask := maskPNG(t, 4, 4)
	var gotModel, gotThreshold string
	var gotPrompts []string
	var gotSize image.Point

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotThreshold = r.FormValue("threshold")
		gotPrompts = r.MultipartForm.Value["prompt"]
		f, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		img, err := png.Decode(f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotSize = img.Bounds().Size()

		json.NewEncoder(w).Encode(map[string]any{
			"detections": []map[string]any{{
				"class":     "car",
				"score":     0.87,
				"box":       []float64{10, 5, 30, 25},
				"contours":  [][][2]float64{{{10, 5}, {30, 5}, {30, 25}}},
				"mask":      mask,
				"keypoints": []map[string]any{{"name": "nose", "x": 12, "y": 8, "score": 0.7}},
			}},
		})
	}))
	defer srv.Close()

	b := &HTTPBackend{URL: srv.URL, Model: "yolo", MaxSide: 50}
	dets, err := b.Detect(context.Background(), testImage(100, 60), Request{Threshold: 0.25, Prompts: []string{"car", "truck"}})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if gotModel != "yolo" || gotThreshold != "0.25" || len(gotPrompts) != 2 {
		t.Errorf("form: model=%q threshold=%q prompts=%v", gotModel, gotThreshold, gotPrompts)
	}
	if gotSize != image.Pt(50, 30) {
		t.Errorf("uploaded size = %v, want 50x30", gotSize)
	}

	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	d := dets[0]
	// Coordinates come back at half scale and are doubled.
	if d.Box != box(20, 10, 60, 50) {
		t.Errorf("box = %+v, want (20,10)-(60,50)", d.Box)
	}
	if len(d.Contours) != 1 || len(d.Contours[0]) != 3 {
		t.Errorf("contours = %v", d.Contours)
	}
	if d.Keypoints[0].Point.X != 24 || d.Keypoints[0].Name != "nose" {
		t.Errorf("keypoint = %+v", d.Keypoints[0])
	}
	if d.Mask == nil || d.Mask.Bounds().Dx() != 4 || d.Mask.Pix[0] != 255 || d.Mask.Pix[1] != 0 {
		t.Errorf("mask not decoded: %v", d.Mask)
	}
}

func TestHTTPBackend_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusServiceUnavailable, ErrModelUnavailable},
		{http.StatusNotFound, ErrModelUnavailable},
		{http.StatusUnprocessableEntity, ErrBadInput},
		{http.StatusInternalServerError, nil},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			a := NewAdapter()
			a.Register("m", &HTTPBackend{URL: srv.URL})
			_, err := a.Detect(context.Background(), Request{Image: testImage(8, 8), Model: "m"})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if tt.want == nil && errKind(t, err) != KindBackend {
				t.Errorf("got %v, want backend failure", err)
			}
		})
	}
}

func TestHTTPBackend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := (&HTTPBackend{URL: url}).Detect(context.Background(), testImage(4, 4), Request{})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("got %v, want ErrModelUnavailable", err)
	}
}

func TestHTTPBackend_MalformedBox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detections":[{"class":"x","score":1,"box":[1,2,3]}]}`))
	}))
	defer srv.Close()

	if _, err := (&HTTPBackend{URL: srv.URL}).Detect(context.Background(), testImage(4, 4), Request{}); err == nil {
		t.Error("expected error for a three-value box")
	}
}
