// Package geometry provides the planar primitives used by the annotation engine.
//
// Everything in this package is a pure function or a value type. There is no
// shared mutable state, so all functions are safe for concurrent use.
//
// # Coordinate System
//
// Coordinates are float64 image coordinates:
//   - Origin (0, 0) at the top-left corner of the image
//   - X increases rightward
//   - Y increases downward
//
// # Degenerate Input
//
// Functions never fail on degenerate input. Instead they return a defined
// zero or empty result:
//   - Area of fewer than 3 vertices is 0
//   - Bounds of an empty point list is the zero Rect
//   - Nearest-point queries on empty input report ok=false
//   - Zero-length segments behave as single points
//
// # Tolerances
//
// Hit-style queries (NearestVertex, NearestEdge, OnSegment) take an explicit
// tolerance radius in image units. Callers converting from screen pixels must
// divide by the current zoom first (see Transform).
package geometry
