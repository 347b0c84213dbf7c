package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/framegraph/pkg/registry"
)

var ErrCycle = errors.New("cycle detected")

// CycleError reports tasks whose dependencies form a cycle. Path is one
// deterministic witness, starting and ending at the same task.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCycle.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

func invalidf(task *registry.TaskNode, format string, args ...any) error {
	return &registry.GraphConstructionError{Task: task.Name, Msg: fmt.Sprintf(format, args...)}
}
