package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrGraphConstruction is wrapped by every GraphConstructionError.
	ErrGraphConstruction = errors.New("graph construction error")
	// ErrStaleHandle is wrapped by StaleHandleError.
	ErrStaleHandle = errors.New("stale resource handle")
	// ErrNotRealized is returned when an instance is requested for a
	// transient that has no instance bound.
	ErrNotRealized = errors.New("resource not realized")
	// ErrNoFactory means no realize factory matches a transient's type.
	ErrNoFactory = errors.New("no realize factory registered")
)

// GraphConstructionError reports a programming error in a declaration: an
// invalid or foreign handle, a builder used outside its declare callback, or
// a type pairing that does not match the registered resource.
type GraphConstructionError struct {
	Task string
	Msg  string
}

func (e *GraphConstructionError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("%s: %s", ErrGraphConstruction, e.Msg)
	}
	return fmt.Sprintf("%s: task %q: %s", ErrGraphConstruction, e.Task, e.Msg)
}

func (e *GraphConstructionError) Unwrap() error { return ErrGraphConstruction }

func constructionf(format string, args ...any) error {
	return &GraphConstructionError{Msg: fmt.Sprintf(format, args...)}
}

// TypeMismatchError reports an access whose type pair differs from the one
// the resource was registered with. It unwraps to a GraphConstructionError.
type TypeMismatchError struct {
	Task     string
	Resource ResourceID
	Name     string
	Want     ResourceType
	Got      ResourceType
}

func (e *TypeMismatchError) Error() string {
	return e.Unwrap().Error()
}

func (e *TypeMismatchError) Unwrap() error {
	return &GraphConstructionError{
		Task: e.Task,
		Msg:  fmt.Sprintf("type mismatch on resource %q (#%d): registered as %s, accessed as %s", e.Name, e.Resource, e.Want, e.Got),
	}
}

// StaleHandleError reports a read or write through a handle that a later
// write has superseded.
type StaleHandleError struct {
	Resource ResourceID
	Name     string
	Version  int
	Latest   int
}

func (e *StaleHandleError) Error() string {
	return fmt.Sprintf("%s: resource %q (#%d) version %d superseded by version %d", ErrStaleHandle, e.Name, e.Resource, e.Version, e.Latest)
}

func (e *StaleHandleError) Unwrap() error { return ErrStaleHandle }

// RealizeError wraps a failure to produce the backing instance of a transient
// resource.
type RealizeError struct {
	Resource ResourceID
	Name     string
	Err      error
}

func (e *RealizeError) Error() string {
	return fmt.Sprintf("realize resource %q (#%d): %v", e.Name, e.Resource, e.Err)
}

func (e *RealizeError) Unwrap() error { return e.Err }
