package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// Crop extracts region r of img.
//
// The result is re-based so that its top-left pixel is (0,0); add
// r.Min to map coordinates found in the crop back into img.
//
// # Errors
//
//   - r is empty (r.Min.X >= r.Max.X or r.Min.Y >= r.Max.Y)
//   - r is not fully inside the image bounds
func Crop(img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	bounds := img.Bounds()
	if r.Empty() {
		return nil, fmt.Errorf("invalid crop region %v: empty", r)
	}
	if !r.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", r, bounds)
	}
	return imaging.Crop(img, r), nil
}

// Fit scales img down so that neither side exceeds maxSide, keeping the
// aspect ratio. Images already small enough are returned unchanged.
//
// Returns the image and the factor applied (<= 1). Divide coordinates found
// in the result by the factor to map them back into img.
func Fit(img image.Image, maxSide int) (image.Image, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img, 1
	}
	out := imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	return out, float64(out.Bounds().Dx()) / float64(w)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64PNG encodes img as a base64 PNG string.
func EncodeBase64PNG(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeMask decodes a base64 PNG into a grayscale bitmap. Any non-zero pixel
// is treated as set and stored as 255.
func DecodeMask(data string) (*image.Gray, error) {
	img, _, err := DecodeBase64(data)
	if err != nil {
		return nil, err
	}
	return Binarize(img, 1), nil
}

// Binarize converts img to a 0/255 bitmap re-based at (0,0). A pixel is set
// when its luminance is at least level.
func Binarize(img image.Image, level uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	gray := ToGray(img)
	gb := gray.Bounds()
	for y := 0; y < gb.Dy(); y++ {
		for x := 0; x < gb.Dx(); x++ {
			if gray.GrayAt(gb.Min.X+x, gb.Min.Y+y).Y >= level {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}
