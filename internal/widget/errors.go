package widget

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleReference is returned for any operation on a destroyed widget.
	ErrStaleReference = errors.New("stale widget reference")

	// ErrInvalidParent is returned when a widget cannot be attached to its parent.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrUnsupportedProp is returned when a kind does not expose a property.
	ErrUnsupportedProp = errors.New("unsupported property")
)

// StaleReferenceError reports an operation on a dead handle.
type StaleReferenceError struct {
	Op   string
	Ref  Ref
	Kind Kind
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("%s on %s%s: %s", e.Op, e.Kind, e.Ref, ErrStaleReference.Error())
}

func (e *StaleReferenceError) Unwrap() error {
	return ErrStaleReference
}

// InvalidParentError reports malformed widget tree construction.
type InvalidParentError struct {
	Parent Ref
	Kind   Kind
	Reason string
}

func (e *InvalidParentError) Error() string {
	if e.Parent.IsZero() {
		return fmt.Sprintf("%s: %s", ErrInvalidParent.Error(), e.Reason)
	}
	return fmt.Sprintf("%s %s%s: %s", ErrInvalidParent.Error(), e.Kind, e.Parent, e.Reason)
}

func (e *InvalidParentError) Unwrap() error {
	return ErrInvalidParent
}

// BackendError wraps a failure reported by the native engine.
type BackendError struct {
	Op    string
	Cause error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Cause)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}
