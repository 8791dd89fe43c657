package compiler

import (
	"fmt"
	"time"

	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/timeline"
	"github.com/chicogong/slidegraph/pkg/transitions"
)

// OutputLabel is the label of the composed video in every stage.
const OutputLabel = "vout"

// Edge requests a transition between node After and node After+1.
type Edge struct {
	After    int
	Effect   string
	Duration time.Duration
}

// Composition is the result of composing one sequence of nodes.
type Composition struct {
	Statements []schemas.Statement
	Output     string
	Elapsed    time.Duration

	// One record per adjacent pair, positions and offsets local to the
	// composed sequence.
	Transitions []schemas.TransitionRecord
}

// IndexEdges checks that every edge sits between two of n nodes and that no
// position has two edges, and returns the edges keyed by position.
func IndexEdges(n int, edges []Edge) (map[int]Edge, error) {
	byPos := make(map[int]Edge, len(edges))
	for i, e := range edges {
		if e.After < 0 || e.After > n-2 {
			return nil, integrityError(i, "edge after node %d has no following node (%d nodes)", e.After, n)
		}
		if _, dup := byPos[e.After]; dup {
			return nil, integrityError(i, "second edge after node %d", e.After)
		}
		byPos[e.After] = e
	}
	return byPos, nil
}

// step is the resolved composition of one adjacent pair.
type step struct {
	res transitions.Resolution
	cut bool
}

// resolveStep resolves the edge between before and after. A transition
// capped below the shortest cut cannot be rendered as a cross-fade and
// becomes a cut.
func resolveStep(e Edge, before, after timeline.MediaNode) step {
	res := transitions.Resolve(e.Effect, e.Duration)
	if !res.Cut {
		res = res.Cap(before.TailDuration(), after.HeadDuration())
	}
	if !res.Cut && res.Duration < transitions.CutDuration {
		res.Effect = transitions.DefaultEffect
		res.Duration = transitions.CutDuration
		res.Cut = true
	}
	return step{res: res, cut: res.Cut}
}

func resolveSteps(nodes []timeline.MediaNode, edges map[int]Edge) []step {
	steps := make([]step, len(nodes)-1)
	for i := range steps {
		steps[i] = resolveStep(edges[i], nodes[i], nodes[i+1])
	}
	return steps
}

// Compose builds the statements that join labels, in order, into output.
// labels[i] must be the normalized label of nodes[i]. edges is sparse;
// positions without an edge are cuts.
func Compose(nodes []timeline.MediaNode, labels []string, edges map[int]Edge, output string) (*Composition, error) {
	return compose(nodes, labels, edges, output, 0)
}

// compose is Compose for a sequence whose first node is also the incoming
// side of a cross-fade of length lead composed elsewhere. That node is
// padded by lead, unless its stream already carries it, and the sequence
// runs lead longer than its nodes.
func compose(nodes []timeline.MediaNode, labels []string, edges map[int]Edge, output string, lead time.Duration) (*Composition, error) {
	n := len(nodes)
	if n == 0 {
		return nil, ErrEmptyGraph
	}
	if len(labels) != n {
		return nil, integrityError(-1, "%d labels for %d nodes", len(labels), n)
	}
	for pos := range edges {
		if pos < 0 || pos > n-2 {
			return nil, integrityError(pos, "edge after node %d has no following node (%d nodes)", pos, n)
		}
	}

	comp := &Composition{}
	labels = append([]string(nil), labels...)
	if pad := lead - nodes[0].Lead(); pad > 0 {
		out := "l0"
		if n == 1 {
			out = output
		}
		comp.Statements = append(comp.Statements, tpad(labels[0], out, pad))
		labels[0] = out
	}

	if n == 1 {
		comp.Output = labels[0]
		comp.Elapsed = nodes[0].Duration + lead
		return comp, nil
	}

	steps := resolveSteps(nodes, edges)

	allCuts := true
	for _, s := range steps {
		if !s.cut {
			allCuts = false
			break
		}
	}
	if allCuts {
		concatAll(comp, nodes, labels, steps, output, lead)
	} else {
		chain(comp, nodes, labels, steps, output, lead)
	}
	return comp, nil
}

func tpad(in, out string, d time.Duration) schemas.Statement {
	return schemas.Statement{
		Inputs:  []string{in},
		Op:      "tpad",
		Params:  map[string]interface{}{"stop_mode": "clone", "stop_duration": schemas.Duration{Duration: d}},
		Outputs: []string{out},
	}
}

func concatAll(comp *Composition, nodes []timeline.MediaNode, labels []string, steps []step, output string, lead time.Duration) {
	comp.Output = output
	comp.Elapsed = lead

	for i, n := range nodes {
		comp.Elapsed += n.Duration
		if i < len(steps) {
			comp.Transitions = append(comp.Transitions, cutRecord(i, steps[i].res, comp.Elapsed))
		}
	}

	comp.Statements = append(comp.Statements, schemas.Statement{
		Inputs:  append([]string(nil), labels...),
		Op:      "concat",
		Params:  map[string]interface{}{"n": len(labels)},
		Outputs: []string{output},
	})
}

// chain composes pairwise from left to right. Before step i the running
// stream is exactly elapsed long; a cross-fade overlaps the last d of it
// with the incoming node, which is padded by d so the step still adds the
// full node duration. A stage node that already carries the overlap is not
// padded again.
func chain(comp *Composition, nodes []timeline.MediaNode, labels []string, steps []step, output string, lead time.Duration) {
	current := labels[0]
	elapsed := nodes[0].Duration + lead

	for i, s := range steps {
		incoming := labels[i+1]
		out := output

		if s.cut {
			if i < len(steps)-1 {
				out = fmt.Sprintf("c%d", i+1)
			}
			comp.Statements = append(comp.Statements, schemas.Statement{
				Inputs:  []string{current, incoming},
				Op:      "concat",
				Params:  map[string]interface{}{"n": 2},
				Outputs: []string{out},
			})
			comp.Transitions = append(comp.Transitions, cutRecord(i, s.res, elapsed))
		} else {
			if i < len(steps)-1 {
				out = fmt.Sprintf("x%d", i+1)
			}
			d := s.res.Duration
			offset := elapsed - d
			if offset < 0 {
				offset = 0
			}

			if pad := d - nodes[i+1].Lead(); pad > 0 {
				padded := fmt.Sprintf("p%d", i+1)
				comp.Statements = append(comp.Statements, tpad(incoming, padded, pad))
				incoming = padded
			}
			comp.Statements = append(comp.Statements, schemas.Statement{
				Inputs: []string{current, incoming},
				Op:     "xfade",
				Params: map[string]interface{}{
					"transition": s.res.Effect,
					"duration":   schemas.Duration{Duration: d},
					"offset":     schemas.Duration{Duration: offset},
				},
				Outputs: []string{out},
			})
			comp.Transitions = append(comp.Transitions, schemas.TransitionRecord{
				After:     i,
				Effect:    s.res.Effect,
				Requested: schemas.Duration{Duration: s.res.Requested},
				Duration:  schemas.Duration{Duration: d},
				Offset:    schemas.Duration{Duration: offset},
				Known:     s.res.Known,
			})
		}

		elapsed += nodes[i+1].Duration
		current = out
	}

	comp.Output = current
	comp.Elapsed = elapsed
}

func cutRecord(after int, res transitions.Resolution, at time.Duration) schemas.TransitionRecord {
	return schemas.TransitionRecord{
		After:     after,
		Effect:    res.Effect,
		Requested: schemas.Duration{Duration: res.Requested},
		Offset:    schemas.Duration{Duration: at},
		Cut:       true,
		Known:     res.Known,
	}
}
