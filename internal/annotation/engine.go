package annotation

import (
	"fmt"
	"log/slog"

	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// Engine applies commands to a document and keeps the undo history.
type Engine struct {
	doc  *Document
	undo []Command
	redo []Command

	// saved is the undo-stack top when the document was last saved.
	saved      Command
	savedValid bool
}

// NewEngine wraps doc. The history starts empty and the document counts as
// saved.
func NewEngine(doc *Document) *Engine {
	return &Engine{doc: doc, savedValid: true}
}

// Document returns the managed document. Callers must not hold on to it
// across edits expecting a snapshot; use Document.Shapes for that.
func (e *Engine) Document() *Document {
	return e.doc
}

// Load replaces the document contents and clears the history.
func (e *Engine) Load(img ImageRef, shapes []*shape.Shape) error {
	if err := e.doc.Load(img, shapes); err != nil {
		return err
	}
	e.undo, e.redo = nil, nil
	e.MarkSaved()
	slog.Debug("document loaded", "image", img.Path, "shapes", len(shapes))
	return nil
}

// Apply executes cmd. On success it is pushed on the undo stack and the redo
// stack is cleared. On failure the document is unchanged and nothing is
// recorded.
func (e *Engine) Apply(cmd Command) error {
	if err := cmd.apply(e.doc); err != nil {
		return fmt.Errorf("%s: %w", cmd.Describe(), err)
	}
	e.doc.revision++
	e.undo = append(e.undo, cmd)
	e.redo = nil
	slog.Debug("command applied", "kind", cmd.Kind(), "desc", cmd.Describe(), "undo_depth", len(e.undo))
	return nil
}

// Undo reverts the most recent command and returns it. It returns false when
// there is nothing to undo.
func (e *Engine) Undo() (Command, bool) {
	if len(e.undo) == 0 {
		return nil, false
	}
	cmd := e.undo[len(e.undo)-1]
	if err := cmd.revert(e.doc); err != nil {
		// History no longer matches the document; it cannot be trusted.
		slog.Error("undo failed, clearing history", "desc", cmd.Describe(), "error", err)
		e.undo, e.redo = nil, nil
		e.savedValid = false
		e.doc.revision++
		return nil, false
	}
	e.undo = e.undo[:len(e.undo)-1]
	e.redo = append(e.redo, cmd)
	e.doc.revision++
	slog.Debug("command undone", "kind", cmd.Kind(), "desc", cmd.Describe())
	return cmd, true
}

// Redo re-applies the most recently undone command and returns it. It
// returns false when there is nothing to redo.
func (e *Engine) Redo() (Command, bool) {
	if len(e.redo) == 0 {
		return nil, false
	}
	cmd := e.redo[len(e.redo)-1]
	if err := cmd.apply(e.doc); err != nil {
		slog.Error("redo failed, clearing redo history", "desc", cmd.Describe(), "error", err)
		e.redo = nil
		return nil, false
	}
	e.redo = e.redo[:len(e.redo)-1]
	e.undo = append(e.undo, cmd)
	e.doc.revision++
	slog.Debug("command redone", "kind", cmd.Kind(), "desc", cmd.Describe())
	return cmd, true
}

// CanUndo reports whether Undo would do anything.
func (e *Engine) CanUndo() bool { return len(e.undo) > 0 }

// CanRedo reports whether Redo would do anything.
func (e *Engine) CanRedo() bool { return len(e.redo) > 0 }

// UndoDepth returns the number of undoable commands.
func (e *Engine) UndoDepth() int { return len(e.undo) }

// RedoDepth returns the number of redoable commands.
func (e *Engine) RedoDepth() int { return len(e.redo) }

// MarkSaved records the current state as the persisted one.
func (e *Engine) MarkSaved() {
	e.saved = e.top()
	e.savedValid = true
}

// Dirty reports whether the document differs from the last saved state.
// Undoing back to the saved state makes it clean again.
func (e *Engine) Dirty() bool {
	return !e.savedValid || e.top() != e.saved
}

func (e *Engine) top() Command {
	if len(e.undo) == 0 {
		return nil
	}
	return e.undo[len(e.undo)-1]
}
