package operators

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

// Registry maps statement ops to the operators that render them.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operator
}

func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operator)}
}

var defaultRegistry = NewRegistry()

// Default returns the registry the builtin package registers into.
func Default() *Registry { return defaultRegistry }

// Register adds op to the default registry.
func Register(op Operator) { defaultRegistry.Register(op) }

// Get looks name up in the default registry.
func Get(name string) (Operator, error) { return defaultRegistry.Get(name) }

// Register adds op, replacing any operator with the same name.
func (r *Registry) Register(op Operator) {
	r.mu.Lock()
	r.ops[op.Name()] = op
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Operator, error) {
	r.mu.RLock()
	op, ok := r.ops[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", name)
	}
	return op, nil
}

// List returns the registered operators of the given categories sorted by
// name, or every operator when no category is given.
func (r *Registry) List(categories ...Category) []Operator {
	r.mu.RLock()
	out := make([]Operator, 0, len(r.ops))
	for _, op := range r.ops {
		if len(categories) == 0 || slices.Contains(categories, op.Category()) {
			out = append(out, op)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Operator) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// Render validates one statement against its operator and returns the
// filtergraph text for it.
func (r *Registry) Render(stmt schemas.Statement) (string, error) {
	op, err := r.Get(stmt.Op)
	if err != nil {
		return "", err
	}
	if err := ValidateArity(op.Describe(), len(stmt.Inputs), len(stmt.Outputs)); err != nil {
		return "", err
	}
	if err := op.ValidateParams(stmt.Params); err != nil {
		return "", fmt.Errorf("%s: %w", stmt.Op, err)
	}

	ctx := &CompileContext{Params: stmt.Params, OutputLabels: stmt.Outputs}
	for _, in := range stmt.Inputs {
		ctx.InputStreams = append(ctx.InputStreams, StreamRef{Label: in})
	}
	res, err := op.Compile(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", stmt.Op, err)
	}
	return res.FilterExpression, nil
}
