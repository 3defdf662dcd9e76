package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// Info describes a decoded source image.
type Info struct {
	// Path is the absolute path the image was read from. Empty for images
	// decoded from memory.
	Path string `json:"path,omitempty"`

	// Width and Height are the pixel dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Format is the name reported by the decoder: "png", "jpeg", "gif", ...
	Format string `json:"format"`
}

type cached struct {
	img  image.Image
	info Info
}

// Cache provides thread-safe caching of decoded images keyed by absolute
// path.
//
// Once an image is loaded, subsequent Load calls return the cached copy
// without disk I/O. Entries stay until Evict or Clear; the annotation session
// evicts the previous image whenever a different document is opened.
type Cache struct {
	mu     sync.RWMutex
	images map[string]cached
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{images: make(map[string]cached)}
}

// Load returns the image at path, reading and decoding it on first use.
//
// Relative paths are made absolute first so that different spellings of the
// same file share one entry.
//
// # Errors
//
//   - the file does not exist or cannot be read
//   - the file is not in a registered image format
func (c *Cache) Load(path string) (image.Image, Info, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to resolve image path: %w", err)
	}

	c.mu.RLock()
	if e, ok := c.images[abs]; ok {
		c.mu.RUnlock()
		return e.img, e.info, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(abs)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, info, err := Decode(f)
	if err != nil {
		return nil, Info{}, err
	}
	info.Path = abs

	c.mu.Lock()
	c.images[abs] = cached{img: img, info: info}
	c.mu.Unlock()

	return img, info, nil
}

// Put stores an already decoded image under path, replacing any entry. It is
// used for images embedded in annotation files.
func (c *Cache) Put(path string, img image.Image, format string) (Info, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to resolve image path: %w", err)
	}
	b := img.Bounds()
	info := Info{Path: abs, Width: b.Dx(), Height: b.Dy(), Format: format}

	c.mu.Lock()
	c.images[abs] = cached{img: img, info: info}
	c.mu.Unlock()
	return info, nil
}

// Len reports the number of cached images.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear drops every cached image.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]cached)
	c.mu.Unlock()
}

// Evict removes one image from the cache. Unknown paths are ignored.
func (c *Cache) Evict(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	c.mu.Lock()
	delete(c.images, abs)
	c.mu.Unlock()
}

// Decode reads one image from r in any registered format.
func Decode(r io.Reader) (image.Image, Info, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to decode image: %w", err)
	}
	b := img.Bounds()
	return img, Info{Width: b.Dx(), Height: b.Dy(), Format: format}, nil
}

// DecodeBase64 decodes a base64 (standard encoding) image, as embedded in
// annotation files.
func DecodeBase64(data string) (image.Image, Info, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to decode base64 image data: %w", err)
	}
	return Decode(bytes.NewReader(raw))
}
