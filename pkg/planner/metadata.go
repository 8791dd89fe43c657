package planner

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chicogong/slidegraph/pkg/operators"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// LabelMetadata holds the predicted media of every filtergraph label,
// keyed by stage ID and then label.
type LabelMetadata map[string]map[string]*schemas.MediaInfo

// MetadataPropagator propagates media metadata through each stage's
// statements and from stage to stage.
type MetadataPropagator struct {
	registry *operators.Registry
}

func cloneMediaInfo(mi *schemas.MediaInfo) *schemas.MediaInfo {
	if mi == nil {
		return nil
	}

	clone := *mi
	clone.VideoStreams = append([]schemas.VideoStream(nil), mi.VideoStreams...)
	clone.AudioStreams = append([]schemas.AudioStream(nil), mi.AudioStreams...)
	return &clone
}

// NewMetadataPropagator creates a new metadata propagator
func NewMetadataPropagator(registry *operators.Registry) *MetadataPropagator {
	return &MetadataPropagator{
		registry: registry,
	}
}

// Propagate walks the stages in topological order and sets Stage.Metadata
// to the predicted media of each stage output. sources holds probed media
// keyed by source reference; sources without an entry are assumed to
// match the target geometry.
func (mp *MetadataPropagator) Propagate(
	ctx context.Context,
	graph *Graph,
	target schemas.Target,
	sources map[string]*schemas.MediaInfo,
) (LabelMetadata, error) {
	order, err := graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("failed to get topological order: %w", err)
	}

	result := make(LabelMetadata, len(order))
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stage := graph.GetStage(id)
		inputs := make([]*schemas.MediaInfo, len(stage.Inputs))
		for i, in := range stage.Inputs {
			info, err := mp.inputMetadata(graph, in, target, sources)
			if err != nil {
				return nil, fmt.Errorf("stage %s: input %d: %w", id, i, err)
			}
			inputs[i] = info
		}

		labels, err := mp.propagateStage(stage, inputs)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", id, err)
		}
		result[id] = labels
		stage.Metadata = cloneMediaInfo(labels[stage.Output])
	}

	return result, nil
}

// inputMetadata describes what the decoder hands to a stage for one input.
// The length always follows the timeline: stills are looped and clips are
// expected to match their node duration.
func (mp *MetadataPropagator) inputMetadata(
	graph *Graph,
	in schemas.StageInput,
	target schemas.Target,
	sources map[string]*schemas.MediaInfo,
) (*schemas.MediaInfo, error) {
	if in.Stage != "" {
		pred := graph.GetStage(in.Stage)
		if pred == nil || pred.Metadata == nil {
			return nil, fmt.Errorf("stage %s has no metadata", in.Stage)
		}
		return cloneMediaInfo(pred.Metadata), nil
	}

	info := cloneMediaInfo(sources[in.Source])
	if info == nil {
		info = &schemas.MediaInfo{
			Format: schemas.FormatInfo{Filename: in.Source},
			VideoStreams: []schemas.VideoStream{{
				Width:     target.Width,
				Height:    target.Height,
				FrameRate: target.FrameRate,
			}},
		}
	}
	info.AudioStreams = nil
	info.Format.Duration = in.Length.Duration
	for i := range info.VideoStreams {
		info.VideoStreams[i].Duration = in.Length.Duration
	}
	return info, nil
}

// propagateStage runs every statement of one stage through its operator.
func (mp *MetadataPropagator) propagateStage(stage *schemas.Stage, inputs []*schemas.MediaInfo) (map[string]*schemas.MediaInfo, error) {
	labels := make(map[string]*schemas.MediaInfo, len(inputs)+len(stage.Statements))
	for i, info := range inputs {
		labels[strconv.Itoa(i)+":v"] = info
	}

	for i, stmt := range stage.Statements {
		op, err := mp.registry.Get(stmt.Op)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}

		in, err := statementInputs(stmt, labels)
		if err != nil {
			return nil, fmt.Errorf("statement %d (%s): %w", i, stmt.Op, err)
		}

		out, err := op.ComputeOutputMetadata(stmt.Params, in)
		if err != nil {
			return nil, fmt.Errorf("statement %d (%s): failed to compute output metadata: %w", i, stmt.Op, err)
		}
		for _, label := range stmt.Outputs {
			labels[label] = cloneMediaInfo(out)
		}
	}

	if labels[stage.Output] == nil {
		return nil, fmt.Errorf("output label '%s' has no metadata", stage.Output)
	}
	return labels, nil
}

// statementInputs resolves the input labels of stmt against the decoder
// inputs and the labels written by earlier statements.
func statementInputs(stmt schemas.Statement, labels map[string]*schemas.MediaInfo) ([]*schemas.MediaInfo, error) {
	out := make([]*schemas.MediaInfo, 0, len(stmt.Inputs))
	for _, label := range stmt.Inputs {
		info, ok := labels[label]
		if !ok {
			return nil, fmt.Errorf("label '%s' has no metadata", label)
		}
		out = append(out, cloneMediaInfo(info))
	}
	return out, nil
}
