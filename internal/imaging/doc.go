// Package imaging holds the raster side of the annotation tools: decoding and
// caching source images, cropping regions of interest, encoding PNGs for
// inference uploads and mask storage, and computing edge maps for the
// classical detectors.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Rectangles follow
// image.Rectangle: Min is inclusive, Max is exclusive.
//
// # Thread Safety
//
// Cache is safe for concurrent use; the inference goroutines read images
// through it while the editing thread opens documents. The remaining
// functions are stateless and never modify their input images.
//
// # Formats
//
// PNG, JPEG, GIF, BMP, TIFF and WebP are registered for decoding. Output is
// always PNG.
package imaging
