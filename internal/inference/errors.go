package inference

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies inference failures.
type Kind string

const (
	KindBadInput         Kind = "bad-input"
	KindModelUnavailable Kind = "model-unavailable"
	KindBackend          Kind = "backend"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
)

// Sentinels matched with errors.Is against an *Error of the same Kind.
var (
	ErrBadInput         = errors.New("bad inference input")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrBackend          = errors.New("backend failure")
	ErrTimeout          = errors.New("inference timed out")
	ErrCancelled        = errors.New("inference cancelled")
)

func (k Kind) sentinel() error {
	switch k {
	case KindBadInput:
		return ErrBadInput
	case KindModelUnavailable:
		return ErrModelUnavailable
	case KindTimeout:
		return ErrTimeout
	case KindCancelled:
		return ErrCancelled
	}
	return ErrBackend
}

// Error is the failure type returned by Adapter.Detect.
type Error struct {
	Kind  Kind
	Model string
	Err   error
}

func (e *Error) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("inference: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("inference %q: %s: %v", e.Model, e.Kind, e.Err)
}

// Unwrap exposes both the Kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

func newError(kind Kind, model string, err error) *Error {
	return &Error{Kind: kind, Model: model, Err: err}
}

// classify turns a backend or context error into an *Error. Errors that
// already carry a Kind keep it.
func classify(model string, err error) *Error {
	var ie *Error
	switch {
	case errors.As(err, &ie):
		if ie.Model == "" {
			ie.Model = model
		}
		return ie
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindTimeout, model, err)
	case errors.Is(err, context.Canceled):
		return newError(KindCancelled, model, err)
	case errors.Is(err, ErrModelUnavailable):
		return newError(KindModelUnavailable, model, err)
	case errors.Is(err, ErrBadInput):
		return newError(KindBadInput, model, err)
	}
	return newError(KindBackend, model, err)
}
