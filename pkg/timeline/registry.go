package timeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDescriptor is returned for descriptors that cannot become nodes.
var ErrInvalidDescriptor = errors.New("invalid media descriptor")

// Descriptor is the input form of a node.
type Descriptor struct {
	SourceRef    string
	Duration     time.Duration
	Kind         Kind
	ExtraFilters []string
}

// Registry assigns dense input indices in registration order. A Registry is
// built once per compilation and is not safe for concurrent use.
type Registry struct {
	nodes []MediaNode
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register validates d and appends it as the next node.
func (r *Registry) Register(d Descriptor) (MediaNode, error) {
	index := len(r.nodes)

	if d.Duration < 0 {
		return MediaNode{}, fmt.Errorf("node %d: negative duration %s: %w", index, d.Duration, ErrInvalidDescriptor)
	}
	switch d.Kind {
	case KindStill, KindClip:
	default:
		return MediaNode{}, fmt.Errorf("node %d: unsupported kind %q: %w", index, d.Kind, ErrInvalidDescriptor)
	}

	node := MediaNode{
		InputIndex:   index,
		SourceRef:    d.SourceRef,
		Duration:     d.Duration,
		Kind:         d.Kind,
		ExtraFilters: append([]string(nil), d.ExtraFilters...),
	}
	r.nodes = append(r.nodes, node)
	return node, nil
}

// RegisterStage appends a synthetic node standing for the output of stage
// stageID. elapsed is the stage's share of the timeline and lead the extra
// length its stream carries for the incoming cross-fade. head and tail are
// the durations of the first and last real nodes rendered by that stage.
func (r *Registry) RegisterStage(stageID string, elapsed, lead, head, tail time.Duration) MediaNode {
	node := MediaNode{
		InputIndex: len(r.nodes),
		Duration:   elapsed,
		lead:       lead,
		Kind:       KindStage,
		StageRef:   stageID,
		head:       head,
		tail:       tail,
	}
	r.nodes = append(r.nodes, node)
	return node
}

// All returns the registered nodes in index order.
func (r *Registry) All() []MediaNode {
	out := make([]MediaNode, len(r.nodes))
	copy(out, r.nodes)
	return out
}

func (r *Registry) Len() int {
	return len(r.nodes)
}

// Total is the sum of all node durations.
func (r *Registry) Total() time.Duration {
	var total time.Duration
	for _, n := range r.nodes {
		total += n.Duration
	}
	return total
}
