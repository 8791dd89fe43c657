package compiler

import (
	"errors"
	"fmt"

	"github.com/chicogong/slidegraph/pkg/timeline"
)

var (
	// ErrInvalidDescriptor marks a node that cannot be registered.
	ErrInvalidDescriptor = timeline.ErrInvalidDescriptor

	// ErrGraphIntegrity marks an edge that does not sit between two
	// adjacent nodes, or a second edge for the same position.
	ErrGraphIntegrity = errors.New("graph integrity violation")

	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrInvalidTarget marks unusable output geometry or batch settings.
	ErrInvalidTarget = errors.New("invalid target")
)

// CompileError locates a compilation failure. Index is the node or edge
// position it refers to, or -1.
type CompileError struct {
	Kind    error
	Index   int
	Message string
}

func (e *CompileError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%v at %d: %s", e.Kind, e.Index, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Kind
}

// Code maps a compilation error to a stable machine-readable code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidDescriptor):
		return "INVALID_DESCRIPTOR"
	case errors.Is(err, ErrGraphIntegrity):
		return "GRAPH_INTEGRITY"
	case errors.Is(err, ErrEmptyGraph):
		return "EMPTY_GRAPH"
	case errors.Is(err, ErrInvalidTarget):
		return "INVALID_TARGET"
	default:
		return "COMPILE_ERROR"
	}
}

func integrityError(index int, format string, args ...interface{}) error {
	return &CompileError{Kind: ErrGraphIntegrity, Index: index, Message: fmt.Sprintf(format, args...)}
}
