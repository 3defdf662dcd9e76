// Package selection answers "what is under this point" and "what does this
// rectangle select" for a set of shapes.
//
// Shapes are indexed by bounding box in an R-tree; exact geometric tests run
// only on the candidates the tree returns. Point queries scan candidates in
// reverse z-order so the topmost shape wins ties, and vertex hits take
// priority over edge and interior hits.
//
// All tolerances are in image units. Callers working in screen pixels scale
// them by the current zoom with Options.Scaled.
package selection
