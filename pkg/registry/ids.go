package registry

import (
	"fmt"
	"reflect"
)

// ResourceID identifies a resource within one generation. Ids start at 1.
type ResourceID uint64

// TaskID identifies a task within one generation. Ids start at 1.
type TaskID uint64

// NoTask is the producer of a version that no task wrote, i.e. version 0 of
// an imported retained resource.
const NoTask TaskID = 0

// Kind distinguishes graph-owned resources from borrowed ones.
type Kind int

const (
	// Transient resources live for one generation and are realized lazily.
	Transient Kind = iota
	// Retained resources are owned by the host and imported into the graph.
	Retained
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Retained:
		return "retained"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ResourceType is the registered (description, instance) type pair of a
// resource. Two resources share a factory only when their types are equal.
type ResourceType struct {
	Description reflect.Type
	Instance    reflect.Type
}

// TypeOf returns the ResourceType for description type D and instance type T.
func TypeOf[D, T any]() ResourceType {
	return ResourceType{
		Description: reflect.TypeFor[D](),
		Instance:    reflect.TypeFor[T](),
	}
}

func (t ResourceType) String() string {
	return fmt.Sprintf("resource<%v, %v>", t.Description, t.Instance)
}

// AcceptsDescription reports whether desc can serve as the description of a
// resource of this type.
func (t ResourceType) AcceptsDescription(desc any) bool {
	if t.Description == nil {
		return false
	}
	if desc == nil {
		return t.Description.Kind() == reflect.Interface || t.Description.Kind() == reflect.Pointer
	}
	return reflect.TypeOf(desc).AssignableTo(t.Description)
}

// AcceptsInstance reports whether inst can back a resource of this type. A nil
// instance is accepted so hosts can import placeholders.
func (t ResourceType) AcceptsInstance(inst any) bool {
	if t.Instance == nil {
		return false
	}
	if inst == nil {
		return true
	}
	return reflect.TypeOf(inst).AssignableTo(t.Instance)
}

// Handle names one version of one resource. Handles are values; the zero
// Handle is invalid.
type Handle struct {
	id      ResourceID
	version int
	gen     uint64
}

// ID returns the resource id the handle refers to.
func (h Handle) ID() ResourceID { return h.id }

// Version returns the version sequence number the handle refers to.
func (h Handle) Version() int { return h.version }

// Generation returns the generation the handle was issued in.
func (h Handle) Generation() uint64 { return h.gen }

// IsValid reports whether the handle was issued by a registry.
func (h Handle) IsValid() bool { return h.id != 0 }

func (h Handle) String() string {
	if !h.IsValid() {
		return "#invalid"
	}
	return fmt.Sprintf("#%d@v%d", h.id, h.version)
}
