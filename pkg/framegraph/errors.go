package framegraph

import (
	"errors"
	"fmt"

	"github.com/vk/framegraph/pkg/compiler"
	"github.com/vk/framegraph/pkg/registry"
)

type (
	GraphConstructionError = registry.GraphConstructionError
	TypeMismatchError      = registry.TypeMismatchError
	StaleHandleError       = registry.StaleHandleError
	RealizeError           = registry.RealizeError
	CycleError             = compiler.CycleError
)

var (
	ErrGraphConstruction = registry.ErrGraphConstruction
	ErrStaleHandle       = registry.ErrStaleHandle
	ErrNotRealized       = registry.ErrNotRealized
	ErrNoFactory         = registry.ErrNoFactory
	ErrCycle             = compiler.ErrCycle
	ErrNotCompiled       = errors.New("frame graph not compiled")
)

// NotCompiledError is returned by operations that need a plan when none is
// valid for the current declarations.
type NotCompiledError struct {
	Generation uint64
}

func (e *NotCompiledError) Error() string {
	return fmt.Sprintf("%s: generation %d has declarations without a compiled plan", ErrNotCompiled, e.Generation)
}

func (e *NotCompiledError) Unwrap() error { return ErrNotCompiled }

func constructionf(task, format string, args ...any) error {
	return &GraphConstructionError{Task: task, Msg: fmt.Sprintf(format, args...)}
}
