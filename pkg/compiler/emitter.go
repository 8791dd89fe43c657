package compiler

import (
	"fmt"
	"strings"
	"time"

	"github.com/chicogong/slidegraph/pkg/operators"
	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/timeline"
)

// GIFLabel is the final label of an animated-image program.
const GIFLabel = "gif"

// Emitter turns compiled stages into a Program, rendering each statement
// through the operator registry.
type Emitter struct {
	registry *operators.Registry
}

func NewEmitter(registry *operators.Registry) *Emitter {
	return &Emitter{registry: registry}
}

func (e *Emitter) emit(plans []*stagePlan, records []schemas.TransitionRecord, target schemas.Target) (*schemas.Program, error) {
	program := &schemas.Program{
		Target:      target,
		Transitions: records,
	}

	for i, plan := range plans {
		stage := &schemas.Stage{
			ID:      plan.id,
			Level:   plan.level,
			Inputs:  decodeOptions(plan.nodes),
			Output:  plan.comp.Output,
			Outputs: []string{plan.comp.Output},
			Elapsed: schemas.Duration{Duration: plan.comp.Elapsed},
		}
		stage.Statements = append(stage.Statements, plan.normalize...)
		stage.Statements = append(stage.Statements, plan.comp.Statements...)

		for _, n := range plan.nodes {
			if n.Kind == timeline.KindStage {
				stage.DependsOn = append(stage.DependsOn, n.StageRef)
			}
		}

		final := i == len(plans)-1
		if final && target.OutputKind == schemas.OutputGIF {
			stage.Statements = append(stage.Statements, paletteStatements(stage.Output)...)
			stage.Outputs = append(stage.Outputs, GIFLabel)
			stage.Output = GIFLabel
		}

		graph, err := e.render(stage.Statements)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage.ID, err)
		}
		stage.Filtergraph = graph

		program.Stages = append(program.Stages, stage)
		if final {
			program.FinalStage = stage.ID
			program.OutputLabels = append([]string(nil), stage.Outputs...)
			program.Elapsed = stage.Elapsed
		}
	}

	return program, nil
}

// render joins rendered statements with ';'.
func (e *Emitter) render(statements []schemas.Statement) (string, error) {
	parts := make([]string, 0, len(statements))
	for i, stmt := range statements {
		text, err := e.registry.Render(stmt)
		if err != nil {
			return "", fmt.Errorf("statement %d: %w", i, err)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, ";"), nil
}

// checkNodes validates the normalize statement of every node before any
// stage is built, so a bad extra filter is reported against its node.
func (e *Emitter) checkNodes(nodes []timeline.MediaNode, g Geometry) error {
	statements, _ := Normalize(nodes, g)
	for i, stmt := range statements {
		op, err := e.registry.Get(stmt.Op)
		if err != nil {
			return err
		}
		if err := op.ValidateParams(stmt.Params); err != nil {
			return &CompileError{Kind: ErrInvalidDescriptor, Index: nodes[i].InputIndex, Message: err.Error()}
		}
	}
	return nil
}

// decodeOptions derives the per-input flags: stills are looped for exactly
// their duration, clips and stage outputs are read as they are.
func decodeOptions(nodes []timeline.MediaNode) []schemas.StageInput {
	inputs := make([]schemas.StageInput, len(nodes))
	for i, n := range nodes {
		in := schemas.StageInput{
			Index:  n.InputIndex,
			Kind:   string(n.Kind),
			Length: schemas.Duration{Duration: n.Duration + n.Lead()},
		}
		switch n.Kind {
		case timeline.KindStill:
			d := schemas.Duration{Duration: n.Duration}
			in.Source = n.SourceRef
			in.Decode = schemas.DecodeOptions{Loop: true, Duration: &d}
		case timeline.KindClip:
			in.Source = n.SourceRef
		case timeline.KindStage:
			in.Stage = n.StageRef
		}
		inputs[i] = in
	}
	return inputs
}

// paletteStatements quantize the composed video into an animated image.
func paletteStatements(video string) []schemas.Statement {
	return []schemas.Statement{
		{
			Inputs:  []string{video},
			Op:      "split",
			Params:  map[string]interface{}{"outputs": 2},
			Outputs: []string{"gs0", "gs1"},
		},
		{
			Inputs:  []string{"gs0"},
			Op:      "palettegen",
			Params:  map[string]interface{}{"stats_mode": "diff"},
			Outputs: []string{"pal"},
		},
		{
			Inputs:  []string{"gs1", "pal"},
			Op:      "paletteuse",
			Params:  map[string]interface{}{"dither": "bayer"},
			Outputs: []string{GIFLabel},
		},
	}
}

// elapsedOf is the total length of a node list.
func elapsedOf(nodes []timeline.MediaNode) time.Duration {
	var total time.Duration
	for _, n := range nodes {
		total += n.Duration
	}
	return total
}
