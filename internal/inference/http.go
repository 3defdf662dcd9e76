package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/imaging"
)

// HTTPBackend calls a model server speaking the JSON protocol described in
// the package documentation.
type HTTPBackend struct {
	// URL is the detection endpoint.
	URL string

	// Model is sent as the "model" field so one server can host several
	// models. Empty leaves the field out.
	Model string

	// MaxSide fits uploads so that neither side exceeds it; returned
	// coordinates are scaled back. Zero uploads full resolution.
	MaxSide int

	// Header is added to every request, e.g. Authorization.
	Header http.Header

	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// Kind implements Backend.
func (b *HTTPBackend) Kind() string { return "http" }

type wireKeypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

type wireDetection struct {
	Class     string         `json:"class"`
	Score     float64        `json:"score"`
	Box       []float64      `json:"box"`
	Contours  [][][2]float64 `json:"contours"`
	Mask      string         `json:"mask"`
	Keypoints []wireKeypoint `json:"keypoints"`
}

type wireResponse struct {
	Detections []wireDetection `json:"detections"`
}

// Detect implements Backend.
func (b *HTTPBackend) Detect(ctx context.Context, img image.Image, req Request) ([]Detection, error) {
	upload, scale := imaging.Fit(img, b.MaxSide)
	body, contentType, err := b.form(upload, req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range b.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: failed to send request: %w", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("model server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		switch resp.StatusCode {
		case http.StatusNotFound, http.StatusServiceUnavailable:
			return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return nil, fmt.Errorf("%w: %w", ErrBadInput, err)
		}
		return nil, err
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	out := make([]Detection, 0, len(wire.Detections))
	for i, w := range wire.Detections {
		d, err := w.detection()
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		if scale != 1 {
			d = d.Scale(1 / scale)
		}
		out = append(out, d)
	}
	return out, nil
}

func (b *HTTPBackend) form(img image.Image, req Request) (io.Reader, string, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %w", err)
	}
	fields := [][2]string{{"threshold", strconv.FormatFloat(req.Threshold, 'f', -1, 64)}}
	if b.Model != "" {
		fields = append(fields, [2]string{"model", b.Model})
	}
	for _, p := range req.Prompts {
		fields = append(fields, [2]string{"prompt", p})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func (w wireDetection) detection() (Detection, error) {
	if len(w.Box) != 4 {
		return Detection{}, fmt.Errorf("box has %d values, want 4", len(w.Box))
	}
	d := Detection{
		Class: w.Class,
		Score: w.Score,
		Box:   geometry.RectFromPoints(geometry.Pt(w.Box[0], w.Box[1]), geometry.Pt(w.Box[2], w.Box[3])),
	}
	for _, c := range w.Contours {
		ring := make([]geometry.Point, len(c))
		for i, p := range c {
			ring[i] = geometry.Pt(p[0], p[1])
		}
		d.Contours = append(d.Contours, ring)
	}
	for _, k := range w.Keypoints {
		d.Keypoints = append(d.Keypoints, Keypoint{Name: k.Name, Point: geometry.Pt(k.X, k.Y), Score: k.Score})
	}
	if w.Mask != "" {
		m, err := imaging.DecodeMask(w.Mask)
		if err != nil {
			return Detection{}, fmt.Errorf("mask: %w", err)
		}
		d.Mask = m
	}
	return d, nil
}
