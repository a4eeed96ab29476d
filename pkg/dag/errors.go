package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycleFound is the kind of every cycle failure.
var ErrCycleFound = errors.New("cycle detected")

// CycleError reports the nodes that could not be ordered.
type CycleError struct {
	// Remaining holds the nodes left unresolved by the topological sort, in
	// discovery order. At least one cycle runs through them.
	Remaining []string
	// Path is one concrete cycle, first and last element equal. It may be empty
	// when only the sort was attempted.
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s", ErrCycleFound, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("%s among nodes: %s", ErrCycleFound, strings.Join(e.Remaining, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycleFound }
