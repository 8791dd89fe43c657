// Package timeline holds the ordered set of media nodes a show is built from.
package timeline

import (
	"fmt"
	"strings"
	"time"
)

// Kind tells the compiler how a node's source is decoded.
type Kind string

const (
	// KindStill is a single picture held on screen for the node duration.
	KindStill Kind = "still"
	// KindClip is a moving picture played at its source length. Duration
	// only places the following transitions and should match the source.
	KindClip Kind = "clip"
	// KindStage is the rendered output of an earlier stage. Only the batch
	// splitter creates these.
	KindStage Kind = "stage"
)

// ParseKind maps a user-facing kind name onto a Kind. The empty string means
// still. Synthetic stage nodes cannot be requested this way.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "still", "image":
		return KindStill, nil
	case "clip", "video":
		return KindClip, nil
	default:
		return "", fmt.Errorf("unknown node kind %q", s)
	}
}

// MediaNode is one registered timeline entry.
type MediaNode struct {
	InputIndex   int
	SourceRef    string
	Duration     time.Duration
	Kind         Kind
	ExtraFilters []string

	// StageRef names the stage whose output this node reads. Set for
	// KindStage only.
	StageRef string

	head time.Duration
	tail time.Duration
	lead time.Duration
}

// HeadDuration is the duration of the first real node covered by n. For
// ordinary nodes it is n.Duration.
func (n MediaNode) HeadDuration() time.Duration {
	if n.Kind == KindStage {
		return n.head
	}
	return n.Duration
}

// TailDuration is the duration of the last real node covered by n.
func (n MediaNode) TailDuration() time.Duration {
	if n.Kind == KindStage {
		return n.tail
	}
	return n.Duration
}

// Lead is how much longer than Duration the node's stream already is. A
// stage that follows a cross-fade plays the incoming overlap itself, so its
// output runs Lead past its timeline share and must not be padded again.
func (n MediaNode) Lead() time.Duration {
	return n.lead
}

// WithIndex returns a copy of n renumbered to i.
func (n MediaNode) WithIndex(i int) MediaNode {
	n.InputIndex = i
	if n.ExtraFilters != nil {
		n.ExtraFilters = append([]string(nil), n.ExtraFilters...)
	}
	return n
}
