// Package compiler turns a show description into a program of filtergraph
// statements for the media engine.
//
// Compilation is a pure function of the nodes, the edges, the target
// geometry and the batch ceiling. Nodes are normalized to a common canvas,
// adjacent pairs are joined by cross-fades or cuts with offsets computed so
// that the timeline length is exactly the sum of node durations, and shows
// with more inputs than the engine accepts at once are split into windows
// that are rendered separately and recomposed.
package compiler

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/chicogong/slidegraph/pkg/operators"
	_ "github.com/chicogong/slidegraph/pkg/operators/builtin"
	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/timeline"
)

// Compiler is safe for concurrent use; it holds configuration only.
type Compiler struct {
	emitter        *Emitter
	logger         *slog.Logger
	maxBatchInputs int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRegistry renders statements through r instead of the global
// operator registry.
func WithRegistry(r *operators.Registry) Option {
	return func(c *Compiler) {
		c.emitter = NewEmitter(r)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// WithMaxBatchInputs sets the ceiling used when a show does not set one.
func WithMaxBatchInputs(n int) Option {
	return func(c *Compiler) {
		c.maxBatchInputs = n
	}
}

func New(opts ...Option) *Compiler {
	c := &Compiler{
		emitter:        NewEmitter(operators.Default()),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxBatchInputs: DefaultMaxBatchInputs,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles spec with default settings.
func Compile(spec *schemas.ShowSpec) (*schemas.Program, error) {
	return New().Compile(spec)
}

// Compile builds the program for spec. Errors wrap ErrInvalidDescriptor,
// ErrGraphIntegrity, ErrEmptyGraph or ErrInvalidTarget.
func (c *Compiler) Compile(spec *schemas.ShowSpec) (*schemas.Program, error) {
	if spec == nil || len(spec.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	geometry, ceiling, err := c.target(spec.Target)
	if err != nil {
		return nil, err
	}

	registry := timeline.NewRegistry()
	for i, n := range spec.Nodes {
		kind, err := timeline.ParseKind(n.Kind)
		if err != nil {
			return nil, &CompileError{Kind: ErrInvalidDescriptor, Index: i, Message: err.Error()}
		}
		_, err = registry.Register(timeline.Descriptor{
			SourceRef:    n.Source,
			Duration:     n.Duration.Duration,
			Kind:         kind,
			ExtraFilters: n.Filters,
		})
		if err != nil {
			return nil, &CompileError{Kind: ErrInvalidDescriptor, Index: i, Message: err.Error()}
		}
	}
	nodes := registry.All()
	if err := c.emitter.checkNodes(nodes, geometry); err != nil {
		return nil, err
	}

	edges := make([]Edge, len(spec.Edges))
	for i, e := range spec.Edges {
		edges[i] = Edge{After: e.AfterNodeIndex, Effect: e.Effect, Duration: e.Duration.Duration}
	}
	byPos, err := IndexEdges(len(nodes), edges)
	if err != nil {
		return nil, err
	}

	plans, records, err := planStages(nodes, byPos, geometry, ceiling)
	if err != nil {
		return nil, err
	}
	if len(plans) > 1 {
		c.logger.Debug("show split into batches",
			slog.String("show_id", spec.ShowID),
			slog.Int("nodes", len(nodes)),
			slog.Int("ceiling", ceiling),
			slog.Int("stages", len(plans)),
		)
	}

	program, err := c.emitter.emit(plans, records, spec.Target)
	if err != nil {
		return nil, err
	}
	program.ShowID = spec.ShowID
	program.Target.MaxBatchInputs = ceiling

	if got, want := program.Elapsed.Duration, elapsedOf(nodes); got != want {
		return nil, integrityError(-1, "composed %s but nodes sum to %s", got, want)
	}

	c.logger.Debug("show compiled",
		slog.String("show_id", spec.ShowID),
		slog.Int("stages", len(program.Stages)),
		slog.Duration("elapsed", program.Elapsed.Duration),
	)
	return program, nil
}

func (c *Compiler) target(t schemas.Target) (Geometry, int, error) {
	g := Geometry{Width: t.Width, Height: t.Height, FrameRate: t.FrameRate}
	if g.Width <= 0 || g.Height <= 0 || g.Width%2 != 0 || g.Height%2 != 0 {
		return g, 0, &CompileError{Kind: ErrInvalidTarget, Index: -1, Message: fmt.Sprintf("geometry %dx%d must be positive and even", g.Width, g.Height)}
	}
	if g.FrameRate <= 0 {
		return g, 0, &CompileError{Kind: ErrInvalidTarget, Index: -1, Message: fmt.Sprintf("frame rate %v must be positive", g.FrameRate)}
	}
	switch t.OutputKind {
	case "", schemas.OutputVideo, schemas.OutputGIF:
	default:
		return g, 0, &CompileError{Kind: ErrInvalidTarget, Index: -1, Message: fmt.Sprintf("unknown output kind %q", t.OutputKind)}
	}

	ceiling := t.MaxBatchInputs
	if ceiling == 0 {
		ceiling = c.maxBatchInputs
	}
	if ceiling < 2 {
		return g, 0, &CompileError{Kind: ErrInvalidTarget, Index: -1, Message: fmt.Sprintf("batch ceiling %d must be at least 2", ceiling)}
	}
	return g, ceiling, nil
}
