package docgen

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindCompile       ErrorKind = "compile"
	KindNotFound      ErrorKind = "not_found"
	KindPoolExhausted ErrorKind = "pool_exhausted"
	KindRenderTimeout ErrorKind = "render_timeout"
	KindRenderCrash   ErrorKind = "render_crash"
	KindConflict      ErrorKind = "conflict"
	KindCanceled      ErrorKind = "canceled"
	KindInternal      ErrorKind = "internal"
)

// Stage names the pipeline stage an error originated from.
type Stage string

const (
	StageMap     Stage = "map"
	StageLayout  Stage = "layout"
	StageStore   Stage = "store"
	StageCompile Stage = "compile"
	StageShell   Stage = "shell"
	StageRender  Stage = "render"
)

// Error wraps failures with a kind and the stage of origin.
type Error struct {
	Kind  ErrorKind
	Stage Stage
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new pipeline error.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// TagStage attaches a stage of origin to err. An already tagged error is
// returned unchanged so the first stage wins during propagation.
func TagStage(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Stage == "" {
			pe.Stage = stage
		}
		return err
	}
	kind := KindFromError(err)
	return &Error{Kind: kind, Stage: stage, Msg: err.Error(), Err: err}
}

// KindFromError maps an error to its pipeline kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindRenderTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return KindInternal
}

// StageFromError returns the originating stage, if any.
func StageFromError(err error) Stage {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

// Retryable reports whether the failure is transient backpressure the
// caller may retry with backoff.
func Retryable(err error) bool {
	switch KindFromError(err) {
	case KindPoolExhausted, KindRenderTimeout:
		return true
	default:
		return false
	}
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindFromError(err)
	msg := err.Error()

	var pe *Error
	if errors.As(err, &pe) && pe.Msg != "" {
		msg = pe.Msg
	}

	switch kind {
	case KindValidation, KindCompile:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode(string(kind))
	case KindNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindConflict, KindPoolExhausted, KindRenderTimeout, KindRenderCrash, KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode(string(kind))
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}
