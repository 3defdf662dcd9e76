// Package detection provides classical computer vision detectors used as
// built-in annotation proposers when no model server is configured.
//
// # Detectors
//
//   - Rectangles: edge map contours scored by rectangularity
//   - Circles: Hough circle transform over the edge map
//   - TextRegions: sliding windows scored by edge density and horizontal structure
//   - Segments: threshold segmentation and connected components, one bitmap per blob
//
// Edge maps come from imaging.EdgeMap (Canny). Segmentation thresholds with
// bild.
//
// # Coordinate System
//
// Results are in the coordinate space of the analysed image: a detector run
// on an image whose bounds start at (x0,y0) reports boxes offset by (x0,y0).
// Boxes are image.Rectangle values, Min inclusive and Max exclusive.
//
// # Scores
//
// Every result carries a score in [0,1]:
//   - Rectangles: 1 - |contour length - box perimeter| / box perimeter
//   - Circles: edge votes at the center divided by the circumference
//   - Text regions: horizontal run ratio weighted by closeness to the
//     typical text edge density
//   - Segments: fraction of the bounding box covered by the blob
//
// # Limitations
//
// These algorithms work best on clean, high-contrast images such as diagrams,
// scans and screenshots. Photographs and noisy images produce poor results;
// use a model backend for those.
package detection
