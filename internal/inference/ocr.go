package inference

import (
	"context"
	"image"
	"strings"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/ocr"
)

// OCRBackend reports Tesseract word boxes as class "text".
type OCRBackend struct {
	Options ocr.Options
}

// Kind implements Backend.
func (b *OCRBackend) Kind() string { return "ocr" }

// Detect implements Backend. When prompts are given only words containing
// one of them (case-insensitive) are returned.
func (b *OCRBackend) Detect(ctx context.Context, img image.Image, req Request) ([]Detection, error) {
	words, err := ocr.Words(ctx, img, b.Options)
	if err != nil {
		return nil, err
	}
	out := make([]Detection, 0, len(words))
	for _, w := range words {
		if !matchesAny(w.Text, req.Prompts) {
			continue
		}
		out = append(out, Detection{
			Class: "text",
			Score: w.Confidence,
			Box:   geometry.FromImageRect(w.Box),
		})
	}
	return out, nil
}

func matchesAny(text string, prompts []string) bool {
	if len(prompts) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, p := range prompts {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
