// Package canvas implements the interactive state machine that turns pointer
// and keyboard events into annotation edits.
//
// # States
//
//   - Idle: nothing in progress
//   - Drawing: a create tool is collecting vertices for a new shape
//   - EditingVertex: one vertex of one shape is being dragged
//   - EditingShape: the selection (plus group members) is being dragged
//   - Selecting: a rubber-band rectangle is being drawn
//   - Panning: the viewport is being dragged; the document is untouched
//
// Intermediate drag frames only update the preview shown by State. A command
// is created when a gesture completes: one add for a finished drawing, one
// move-vertex for a vertex drag, one composite move for a shape drag. Escape
// cancels any gesture without touching the document.
//
// # Coordinates
//
// Events arrive in screen coordinates and are mapped into image space
// through the viewport (zoom and pan). Hit tolerances and the polygon closing
// radius are screen pixels, so they shrink in image units as the zoom grows.
// Committed points are clamped to the image.
package canvas
