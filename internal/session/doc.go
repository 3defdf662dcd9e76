// Package session ties an open image, its annotation document, the canvas
// and the assisted-annotation pipeline together.
//
// A Session belongs to one goroutine, the editing thread. Inference runs on
// runner goroutines; outcomes come back on Results and must be passed to
// Deliver on the editing thread, which checks that they still apply to the
// open document before converting and inserting them as one undo step.
package session
