package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// textImage renders text with basicfont on white and scales it up so that
// Tesseract can read it.
func textImage(text string, scale int) *image.RGBA {
	// basicfont.Face7x13 is 7 pixels wide, 13 pixels tall per character
	w, h := len(text)*7+40, 40
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(20), Y: fixed.I(25)},
	}
	d.DrawString(text)

	img := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h*scale; y++ {
		for x := 0; x < w*scale; x++ {
			img.Set(x, y, small.At(x/scale, y/scale))
		}
	}
	return img
}

func TestWords(t *testing.T) {
	img := textImage("HELLO", 4)

	words, err := Words(context.Background(), img, Options{})
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	if len(words) == 0 {
		t.Fatal("no words recognised")
	}
	found := false
	for _, w := range words {
		if strings.Contains(strings.ToUpper(w.Text), "HELLO") {
			found = true
		}
		if !w.Box.In(img.Bounds()) {
			t.Errorf("word box %v outside the image", w.Box)
		}
		if w.Confidence < 0 || w.Confidence > 1 {
			t.Errorf("confidence out of range: %v", w.Confidence)
		}
	}
	if !found {
		t.Errorf("HELLO not recognised: %+v", words)
	}
}

func TestWords_SubImageOffset(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 800, 400))
	draw.Draw(full, full.Bounds(), image.White, image.Point{}, draw.Src)
	text := textImage("WORLD", 4)
	draw.Draw(full, text.Bounds().Add(image.Pt(200, 100)), text, image.Point{}, draw.Src)

	region := image.Rect(180, 80, 800, 400)
	words, err := Words(context.Background(), full.SubImage(region), Options{})
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	for _, w := range words {
		if !w.Box.In(region) {
			t.Errorf("box %v should be in parent coordinates inside %v", w.Box, region)
		}
	}
}

func TestWords_MinConfidence(t *testing.T) {
	img := textImage("FILTER", 4)
	words, err := Words(context.Background(), img, Options{MinConfidence: 1.01})
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	if len(words) != 0 {
		t.Errorf("confidence above 1 should drop everything, got %+v", words)
	}
}

func TestWords_EmptyImage(t *testing.T) {
	_, err := Words(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)), Options{})
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("got %v, want ErrEmptyImage", err)
	}
}

func TestWords_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Words(ctx, textImage("X", 1), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestOptionsLanguage(t *testing.T) {
	if got := (Options{}).language(); got != "eng" {
		t.Errorf("default language: got %q", got)
	}
	if got := (Options{Language: "deu"}).language(); got != "deu" {
		t.Errorf("explicit language: got %q", got)
	}
}
