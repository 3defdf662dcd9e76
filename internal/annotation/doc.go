// Package annotation holds the annotated document and the reversible edit
// engine that is the only path for changing it.
//
// A Document is an image reference plus an ordered list of shapes. Order is
// z-order: the last shape is drawn on top and wins hit tests. Shape ids are
// allocated monotonically and never reused or renumbered, so commands can
// refer to shapes by id across undo and redo.
//
// # Commands
//
// Every mutation is a Command. Commands capture deep-copied before and after
// snapshots the first time they are applied, which makes them self-contained:
// undo restores the before snapshot, redo reinstalls the after snapshot.
// A command that fails leaves the document exactly as it was.
//
// # Engine
//
// Engine owns the undo and redo stacks. Apply pushes onto the undo stack and
// clears redo; Undo and Redo on an empty stack are no-ops. History depth is
// unbounded.
//
// # Thread Safety
//
// Document and Engine are not safe for concurrent use. They belong to the
// single editing goroutine; background work hands results back to that
// goroutine instead of touching the document directly.
package annotation
