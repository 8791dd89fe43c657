package planner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

// Builder builds the stage graph of a compiled program and checks that
// each stage's filtergraph is wired correctly.
type Builder struct{}

// NewBuilder creates a new graph builder
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildDAG builds the stage DAG from a program's DependsOn lists.
func (b *Builder) BuildDAG(ctx context.Context, program *schemas.Program) (*Graph, error) {
	graph := NewGraph()

	for _, stage := range program.Stages {
		if err := graph.AddStage(stage); err != nil {
			return nil, err
		}
	}

	for _, stage := range program.Stages {
		deps := make(map[string]bool, len(stage.DependsOn))
		for _, dep := range stage.DependsOn {
			if graph.GetStage(dep) == nil {
				return nil, fmt.Errorf("stage %s: dependency '%s' not found", stage.ID, dep)
			}
			deps[dep] = true
			graph.AddDependency(dep, stage.ID)
		}

		for _, in := range stage.Inputs {
			if in.Stage != "" && !deps[in.Stage] {
				return nil, fmt.Errorf("stage %s: input %d reads stage '%s' without depending on it", stage.ID, in.Index, in.Stage)
			}
		}

		if err := ValidateLabels(stage); err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage.ID, err)
		}
	}

	if err := graph.DetectCycles(); err != nil {
		return nil, fmt.Errorf("cyclic dependency detected: %w", err)
	}

	if graph.GetStage(program.FinalStage) == nil {
		return nil, fmt.Errorf("final stage '%s' not found", program.FinalStage)
	}
	sinks := graph.Sinks()
	if len(sinks) != 1 || sinks[0].ID != program.FinalStage {
		ids := make([]string, len(sinks))
		for i, s := range sinks {
			ids[i] = s.ID
		}
		return nil, fmt.Errorf("stages %v are not consumed; only final stage '%s' may be", ids, program.FinalStage)
	}

	return graph, nil
}

// inputIndex parses a decoder label such as "3:v".
func inputIndex(label string) (int, bool) {
	idx, stream, ok := strings.Cut(label, ":")
	if !ok || stream != "v" {
		return 0, false
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ValidateLabels checks the label discipline of a stage: decoder labels
// refer to existing inputs, every intermediate label is produced before it
// is read and read exactly once, and the stage output is left unconsumed.
func ValidateLabels(stage *schemas.Stage) error {
	produced := make(map[string]bool)
	consumed := make(map[string]bool)
	usedInputs := make(map[int]bool)

	for i, stmt := range stage.Statements {
		for _, label := range stmt.Inputs {
			if n, ok := inputIndex(label); ok {
				if n >= len(stage.Inputs) {
					return fmt.Errorf("statement %d (%s): input %d does not exist", i, stmt.Op, n)
				}
				usedInputs[n] = true
				continue
			}
			if !produced[label] {
				return fmt.Errorf("statement %d (%s): label '%s' read before it is written", i, stmt.Op, label)
			}
			if consumed[label] {
				return fmt.Errorf("statement %d (%s): label '%s' read twice", i, stmt.Op, label)
			}
			consumed[label] = true
		}
		for _, label := range stmt.Outputs {
			if produced[label] {
				return fmt.Errorf("statement %d (%s): label '%s' written twice", i, stmt.Op, label)
			}
			produced[label] = true
		}
	}

	if !produced[stage.Output] {
		return fmt.Errorf("output label '%s' is never written", stage.Output)
	}
	if consumed[stage.Output] {
		return fmt.Errorf("output label '%s' is consumed inside the stage", stage.Output)
	}
	for label := range produced {
		if label != stage.Output && !consumed[label] {
			return fmt.Errorf("label '%s' is never read", label)
		}
	}
	for i := range stage.Inputs {
		if !usedInputs[i] {
			return fmt.Errorf("input %d is never read", i)
		}
	}
	return nil
}
