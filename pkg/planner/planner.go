package planner

import (
	"context"
	"fmt"

	"github.com/chicogong/slidegraph/pkg/operators"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// Planner schedules the stages of a compiled program: it orders them,
// groups independent stages for parallel rendering, predicts the media
// each stage produces and estimates render cost.
type Planner struct {
	builder    *Builder
	propagator *MetadataPropagator
	estimator  *ResourceEstimator
	registry   *operators.Registry
}

// NewPlanner creates a new planner with default configuration
func NewPlanner() *Planner {
	return NewPlannerWithRegistry(operators.Default())
}

// NewPlannerWithRegistry creates a new planner with a custom operator registry
func NewPlannerWithRegistry(registry *operators.Registry) *Planner {
	return &Planner{
		builder:    NewBuilder(),
		propagator: NewMetadataPropagator(registry),
		estimator:  NewResourceEstimator(registry),
		registry:   registry,
	}
}

// PlanOptions contains options for plan generation
type PlanOptions struct {
	// Sources holds probed media keyed by source reference.
	Sources map[string]*schemas.MediaInfo

	// SkipMetadataPropagation skips metadata propagation and, with it,
	// resource estimation.
	SkipMetadataPropagation bool

	// SkipResourceEstimation skips resource estimation
	SkipResourceEstimation bool
}

// Plan annotates program in place with its execution order, parallel
// execution levels, per-stage metadata and resource estimates.
func (p *Planner) Plan(ctx context.Context, program *schemas.Program, opts *PlanOptions) (*schemas.Program, error) {
	if opts == nil {
		opts = &PlanOptions{}
	}

	if err := p.Validate(program); err != nil {
		return nil, err
	}

	graph, err := p.builder.BuildDAG(ctx, program)
	if err != nil {
		return nil, fmt.Errorf("failed to build DAG: %w", err)
	}

	order, err := graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("failed to compute execution order: %w", err)
	}

	levels, err := graph.ComputeExecutionStages()
	if err != nil {
		return nil, fmt.Errorf("failed to compute execution stages: %w", err)
	}

	program.ExecutionOrder = order
	program.ExecutionStages = levels

	if opts.SkipMetadataPropagation {
		return program, nil
	}

	labels, err := p.propagator.Propagate(ctx, graph, program.Target, opts.Sources)
	if err != nil {
		return nil, fmt.Errorf("metadata propagation failed: %w", err)
	}

	if !opts.SkipResourceEstimation {
		estimates, err := p.estimator.Estimate(ctx, graph, labels, program.FinalStage, program.Target.OutputKind)
		if err != nil {
			return nil, fmt.Errorf("resource estimation failed: %w", err)
		}
		program.ResourceEstimate = estimates
	}

	return program, nil
}

// Validate checks every statement against its operator. Programs built by
// the compiler always pass; programs decoded from JSON may not.
func (p *Planner) Validate(program *schemas.Program) error {
	for _, stage := range program.Stages {
		for i, stmt := range stage.Statements {
			op, err := p.registry.Get(stmt.Op)
			if err != nil {
				return fmt.Errorf("stage %s: statement %d: %w", stage.ID, i, err)
			}
			if err := op.ValidateParams(stmt.Params); err != nil {
				return fmt.Errorf("stage %s: statement %d (%s): %w", stage.ID, i, stmt.Op, err)
			}
		}
	}
	return nil
}
