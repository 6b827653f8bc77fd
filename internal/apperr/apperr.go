// Package apperr classifies pipeline failures into the error kinds reported to callers.
// Components wrap their failures in an *Error carrying the Kind, the operation that
// failed and the underlying cause, so the HTTP layer can map them to responses
// without knowing which component produced them.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a pipeline failure.
type Kind string

const (
	// Validation indicates a missing or malformed required input.
	Validation Kind = "VALIDATION_ERROR"
	// NotFound indicates that an object or metadata record does not exist.
	NotFound Kind = "NOT_FOUND"
	// UnsupportedQuality indicates a transcode quality outside the supported set.
	UnsupportedQuality Kind = "UNSUPPORTED_QUALITY"
	// Probe indicates that the media could not be read or is corrupt.
	Probe Kind = "PROBE_ERROR"
	// Transcode indicates an encoder failure.
	Transcode Kind = "TRANSCODE_ERROR"
	// InsufficientHistory indicates a rollback with fewer than two versions.
	InsufficientHistory Kind = "INSUFFICIENT_HISTORY"
	// PartialWrite indicates the object was stored but its metadata append failed.
	PartialWrite Kind = "PARTIAL_WRITE"
	// ConfigResolution indicates a dependency configuration lookup failed.
	ConfigResolution Kind = "CONFIG_RESOLUTION_ERROR"
	// Upstream indicates a failure of the object store, metadata store or search API.
	Upstream Kind = "UPSTREAM_ERROR"
)

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "ingest.Upload".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
// This lets callers write errors.Is(err, &apperr.Error{Kind: apperr.NotFound}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// New creates a classified error with a plain message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap classifies err. It returns nil when err is nil.
// An error that is already classified keeps its original kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain,
// or an empty Kind when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
