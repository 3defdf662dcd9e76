// Package shape defines the annotated region model: a typed, labelled list of
// vertices in image coordinates plus the presentation attributes that travel
// with it (colours, visibility, lock state, optional mask bitmap).
//
// # Shape Types
//
// Every shape carries one of a closed set of types, each with its own vertex
// rules:
//   - polygon: 3 or more vertices, closed
//   - rectangle: exactly 2 vertices, opposite corners
//   - circle: exactly 2 vertices, center and a point on the rim
//   - line: exactly 2 vertices
//   - point: exactly 1 vertex
//   - linestrip: 2 or more vertices, open
//   - mask: exactly 2 vertices spanning a box, plus a grayscale bitmap
//
// A shape that breaks its type's rules is invalid and must never be stored.
// Mutating methods either succeed and leave a valid shape behind, or return
// an error and leave the shape untouched.
//
// # Errors
//
//   - ErrInvalidGeometry: construction with bad vertices or non-finite values
//   - ErrWouldInvalidate: an edit would drop below the vertex minimum or
//     collapse a two-point shape
//   - ErrNotEditable: vertex insertion/removal on a fixed-arity type
//   - ErrLocked: geometry edits on a locked shape
//
// # Colours
//
// Shapes store optional colour overrides. Palette resolves the effective
// colour at query time: shape override, then the label's colour, then the
// global default. Nothing is baked into the shape.
package shape
