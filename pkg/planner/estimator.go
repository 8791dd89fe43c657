package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/chicogong/slidegraph/pkg/operators"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// Encoder throughput assumptions at 1080p, in seconds of work per second of
// output, and the bitrates used to size stage outputs on disk.
const (
	intermediateEncodeFactor = 0.6
	finalEncodeFactor        = 1.0
	gifEncodeFactor          = 0.3

	intermediateBitrateMbps = 60.0
	finalBitrateMbps        = 6.0
	gifBitrateMbps          = 12.0

	referencePixels = 1920 * 1080
)

// ResourceEstimator estimates resource requirements for a program
type ResourceEstimator struct {
	registry *operators.Registry
}

// NewResourceEstimator creates a new resource estimator
func NewResourceEstimator(registry *operators.Registry) *ResourceEstimator {
	return &ResourceEstimator{
		registry: registry,
	}
}

// Estimate computes per-stage estimates and program totals. Stages of the
// same execution level may run concurrently, so the total duration adds
// the slowest stage of each level and peak memory is the largest level sum.
func (re *ResourceEstimator) Estimate(
	ctx context.Context,
	graph *Graph,
	labels LabelMetadata,
	final string,
	kind schemas.OutputKind,
) (*schemas.ResourceEstimates, error) {
	levels, err := graph.ComputeExecutionStages()
	if err != nil {
		return nil, fmt.Errorf("failed to compute execution stages: %w", err)
	}

	estimates := make(map[string]*schemas.NodeEstimates, len(graph.Stages))
	var totalDuration time.Duration
	var peakMemoryMB int64
	var totalDiskMB int64

	for _, level := range levels {
		var levelDuration time.Duration
		var levelMemoryMB int64

		for _, id := range level {
			stage := graph.GetStage(id)
			if stage.Metadata == nil {
				return nil, fmt.Errorf("stage %s has no metadata (run metadata propagation first)", id)
			}

			est, err := re.estimateStage(stage, labels[id], id == final, kind)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", id, err)
			}
			estimates[id] = est
			stage.Estimates = est

			if est.Duration > levelDuration {
				levelDuration = est.Duration
			}
			levelMemoryMB += est.MemoryMB
			totalDiskMB += est.DiskMB
		}

		totalDuration += levelDuration
		if levelMemoryMB > peakMemoryMB {
			peakMemoryMB = levelMemoryMB
		}
	}

	return &schemas.ResourceEstimates{
		StageEstimates: estimates,
		TotalDuration:  totalDuration,
		PeakMemoryMB:   peakMemoryMB,
		TotalDiskMB:    totalDiskMB,
	}, nil
}

// estimateStage adds up the filter costs of one stage, which all run in
// the same engine process, then the cost of encoding its output.
func (re *ResourceEstimator) estimateStage(
	stage *schemas.Stage,
	labels map[string]*schemas.MediaInfo,
	final bool,
	kind schemas.OutputKind,
) (*schemas.NodeEstimates, error) {
	total := &schemas.NodeEstimates{CPUCores: 1}

	for i, stmt := range stage.Statements {
		op, err := re.registry.Get(stmt.Op)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		in, err := statementInputs(stmt, labels)
		if err != nil {
			return nil, fmt.Errorf("statement %d (%s): %w", i, stmt.Op, err)
		}
		est, err := op.EstimateResources(stmt.Params, in)
		if err != nil {
			return nil, fmt.Errorf("statement %d (%s): failed to estimate resources: %w", i, stmt.Op, err)
		}
		total.Duration += est.Duration
		total.MemoryMB += est.MemoryMB
	}

	factor, mbps := intermediateEncodeFactor, intermediateBitrateMbps
	switch {
	case final && kind == schemas.OutputGIF:
		factor, mbps = gifEncodeFactor, gifBitrateMbps
	case final:
		factor, mbps = finalEncodeFactor, finalBitrateMbps
	}

	area := float64(referencePixels)
	if len(stage.Metadata.VideoStreams) > 0 {
		v := stage.Metadata.VideoStreams[0]
		area = float64(v.Width * v.Height)
	}
	scale := area / referencePixels
	seconds := stage.Elapsed.Seconds()

	total.Duration += time.Duration(float64(stage.Elapsed.Duration) * factor * scale)
	total.DiskMB = int64(seconds*mbps*scale/8) + 1
	if final {
		total.CPUCores = 2
	}
	return total, nil
}
