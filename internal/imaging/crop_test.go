package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// quadrantImage creates an image with red top-left, green top-right, blue
// bottom-left and white bottom-right quadrants.
func quadrantImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{255, 0, 0, 255}
			case y < height/2:
				c = color.RGBA{0, 255, 0, 255}
			case x < width/2:
				c = color.RGBA{0, 0, 255, 255}
			default:
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCrop(t *testing.T) {
	img := quadrantImage(100, 100)

	out, err := Crop(img, image.Rect(50, 0, 100, 50))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 50, 50) {
		t.Errorf("bounds: got %v, want (0,0)-(50,50)", out.Bounds())
	}
	if c := out.NRGBAAt(10, 10); c.R != 0 || c.G != 255 || c.B != 0 {
		t.Errorf("expected green crop, got %v", c)
	}
}

func TestCrop_InvalidRegions(t *testing.T) {
	img := quadrantImage(100, 100)

	tests := []struct {
		name string
		r    image.Rectangle
	}{
		{"empty", image.Rect(10, 10, 10, 50)},
		{"negative origin", image.Rect(-1, 0, 50, 50)},
		{"beyond right edge", image.Rect(50, 50, 101, 100)},
		{"beyond bottom edge", image.Rect(0, 90, 10, 120)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(img, tt.r); err == nil {
				t.Errorf("Crop(%v) should fail", tt.r)
			}
		})
	}
}

func TestFit(t *testing.T) {
	img := quadrantImage(400, 200)

	out, scale := Fit(img, 100)
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 50 {
		t.Errorf("fitted size: got %v, want 100x50", out.Bounds())
	}
	if scale != 0.25 {
		t.Errorf("scale: got %v, want 0.25", scale)
	}

	same, scale := Fit(img, 1000)
	if same != image.Image(img) || scale != 1 {
		t.Errorf("small image should be returned unchanged, scale=%v", scale)
	}
	if _, scale := Fit(img, 0); scale != 1 {
		t.Errorf("maxSide 0 disables fitting, got scale %v", scale)
	}
}

func TestEncodePNG(t *testing.T) {
	data, err := EncodePNG(quadrantImage(20, 10))
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("result is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("decoded bounds %v", img.Bounds())
	}
}

func TestMaskRoundTrip(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 8, 4))
	for x := 2; x < 6; x++ {
		mask.Pix[1*mask.Stride+x] = 255
		mask.Pix[2*mask.Stride+x] = 255
	}

	s, err := EncodeBase64PNG(mask)
	if err != nil {
		t.Fatalf("EncodeBase64PNG: %v", err)
	}
	got, err := DecodeMask(s)
	if err != nil {
		t.Fatalf("DecodeMask: %v", err)
	}
	if !bytes.Equal(got.Pix, mask.Pix) || got.Bounds() != mask.Bounds() {
		t.Errorf("mask changed in round trip:\n got %v\nwant %v", got.Pix, mask.Pix)
	}
}

func TestBinarize(t *testing.T) {
	img := image.NewGray(image.Rect(5, 5, 8, 6))
	img.SetGray(5, 5, color.Gray{Y: 10})
	img.SetGray(6, 5, color.Gray{Y: 128})
	img.SetGray(7, 5, color.Gray{Y: 200})

	got := Binarize(img, 128)
	if got.Bounds() != image.Rect(0, 0, 3, 1) {
		t.Fatalf("bounds: got %v", got.Bounds())
	}
	want := []uint8{0, 255, 255}
	if !bytes.Equal(got.Pix, want) {
		t.Errorf("got %v, want %v", got.Pix, want)
	}
}
