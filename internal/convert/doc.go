// Package convert turns raw model detections into annotation shapes.
//
// Convert filters detections by score and class, maps classes to labels,
// builds rectangles from boxes, polygons from contours or masks, and point
// shapes (plus optional limb lines) from pose keypoints. Candidates that
// overlap an existing or already accepted shape of the same label are
// dropped. Everything accepted goes into a single add command so the whole
// batch is one undo step.
package convert
