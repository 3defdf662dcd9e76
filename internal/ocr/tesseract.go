package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/annotation-tools-mcp/internal/imaging"
)

// ErrEmptyImage is returned for images with no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Word is one recognised word.
type Word struct {
	// Text is the recognised word.
	Text string `json:"text"`

	// Box is the word's bounding box in the coordinates of the input image.
	Box image.Rectangle `json:"box"`

	// Confidence is Tesseract's confidence (0.0 to 1.0).
	Confidence float64 `json:"confidence"`
}

// Options configures recognition.
type Options struct {
	// Language is the Tesseract language code, "eng" when empty.
	Language string

	// TessdataPrefix overrides the directory holding *.traineddata.
	TessdataPrefix string

	// MinConfidence drops words below this confidence (0.0 to 1.0).
	MinConfidence float64
}

func (o Options) language() string {
	if o.Language == "" {
		return "eng"
	}
	return o.Language
}

// Words runs OCR on img and returns every non-blank word with its box.
//
// The image is handed to Tesseract as an in-memory PNG. Boxes are offset by
// img.Bounds().Min, so a sub-image yields boxes in its parent's coordinates.
//
// # Errors
//
//   - ErrEmptyImage for an image without pixels
//   - the context error when ctx is done before or after recognition
//   - Tesseract initialisation, language or recognition failures
func Words(ctx context.Context, img image.Image, opts Options) ([]Word, error) {
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(opts.language()); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	origin := img.Bounds().Min
	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		conf := b.Confidence / 100
		if text == "" || conf < opts.MinConfidence {
			continue
		}
		words = append(words, Word{Text: text, Box: b.Box.Add(origin), Confidence: conf})
	}
	return words, nil
}

// Version returns the linked Tesseract version.
func Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}
