package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/imaging"
)

// geminiScale is the range Gemini uses for normalised box coordinates.
const geminiScale = 1000

// GeminiBackend asks a Gemini vision model for bounding boxes.
type GeminiBackend struct {
	// Model is the Gemini model name, e.g. "gemini-1.5-flash".
	Model string

	// APIKey defaults to the GEMINI_API_KEY environment variable.
	APIKey string

	// MaxSide fits uploads; Gemini boxes are normalised so no rescaling is
	// needed afterwards.
	MaxSide int
}

// Kind implements Backend.
func (b *GeminiBackend) Kind() string { return "gemini" }

// Detect implements Backend. Prompts name the object classes to look for;
// without prompts the model is asked for every prominent object.
func (b *GeminiBackend) Detect(ctx context.Context, img image.Image, req Request) ([]Detection, error) {
	apiKey := b.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY environment variable not set", ErrModelUnavailable)
	}

	upload, _ := imaging.Fit(img, b.MaxSide)
	data, err := imaging.EncodePNG(upload)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create new gemini client: %w", ErrModelUnavailable, err)
	}
	defer client.Close()

	model := client.GenerativeModel(b.Model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.ImageData("png", data), genai.Text(geminiPrompt(req.Prompts)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates returned from Gemini")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return nil, fmt.Errorf("empty content returned from Gemini")
	}

	var text strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	b0 := img.Bounds()
	return parseGeminiBoxes(text.String(), b0.Dx(), b0.Dy())
}

func geminiPrompt(classes []string) string {
	var sb strings.Builder
	sb.WriteString("Detect ")
	if len(classes) == 0 {
		sb.WriteString("all prominent objects")
	} else {
		sb.WriteString("every instance of: ")
		sb.WriteString(strings.Join(classes, ", "))
	}
	sb.WriteString(" in the image. Return a JSON array with one object per instance: ")
	sb.WriteString(`{"label": <class name>, "box_2d": [ymin, xmin, ymax, xmax], "score": <confidence 0-1>}. `)
	sb.WriteString("Box coordinates are normalised to 0-1000. Return [] when nothing is found.")
	return sb.String()
}

type geminiBox struct {
	Label string    `json:"label"`
	Box   []float64 `json:"box_2d"`
	Score *float64  `json:"score"`
}

// parseGeminiBoxes decodes a Gemini box list for an image of w×h pixels.
// Markdown code fences around the JSON are tolerated. A missing score counts
// as 1.
func parseGeminiBoxes(text string, w, h int) ([]Detection, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var boxes []geminiBox
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &boxes); err != nil {
		return nil, fmt.Errorf("failed to parse Gemini response: %w", err)
	}

	sx := float64(w) / geminiScale
	sy := float64(h) / geminiScale
	out := make([]Detection, 0, len(boxes))
	for i, g := range boxes {
		if len(g.Box) != 4 {
			return nil, fmt.Errorf("box %d has %d values, want 4", i, len(g.Box))
		}
		score := 1.0
		if g.Score != nil {
			score = *g.Score
		}
		ymin, xmin, ymax, xmax := g.Box[0], g.Box[1], g.Box[2], g.Box[3]
		out = append(out, Detection{
			Class: g.Label,
			Score: score,
			Box:   geometry.RectFromPoints(geometry.Pt(xmin*sx, ymin*sy), geometry.Pt(xmax*sx, ymax*sy)),
		})
	}
	return out, nil
}
