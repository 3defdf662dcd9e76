package session

import (
	"fmt"
	"net/http"

	"github.com/ironsheep/annotation-tools-mcp/internal/config"
	"github.com/ironsheep/annotation-tools-mcp/internal/inference"
	"github.com/ironsheep/annotation-tools-mcp/internal/ocr"
)

// NewAdapter registers a backend for every configured model.
func NewAdapter(models []config.Model) (*inference.Adapter, error) {
	a := inference.NewAdapter()
	for _, m := range models {
		b, err := backend(m)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", m.ID, err)
		}
		a.Register(m.ID, b)
	}
	return a, nil
}

func backend(m config.Model) (inference.Backend, error) {
	switch m.Kind {
	case config.KindHTTP:
		h := http.Header{}
		for k, v := range m.Headers {
			h.Set(k, v)
		}
		return &inference.HTTPBackend{URL: m.URL, Model: m.Name, MaxSide: m.MaxSide, Header: h}, nil
	case config.KindGemini:
		return &inference.GeminiBackend{Model: m.Name, MaxSide: m.MaxSide}, nil
	case config.KindOCR:
		return &inference.OCRBackend{Options: ocr.Options{Language: m.Language, TessdataPrefix: m.TessdataPrefix}}, nil
	case config.KindBuiltin:
		return inference.NewBuiltinBackend(m.Detector)
	}
	return nil, fmt.Errorf("unknown model kind %q", m.Kind)
}
