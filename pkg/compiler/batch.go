package compiler

import (
	"fmt"
	"sort"
	"time"

	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/timeline"
)

// DefaultMaxBatchInputs is the input ceiling used when none is configured.
const DefaultMaxBatchInputs = 15

// FinalStageID names the stage that produces the program output.
const FinalStageID = "main"

// stagePlan is one compiled stage before emission.
type stagePlan struct {
	id        string
	level     int
	nodes     []timeline.MediaNode
	normalize []schemas.Statement
	comp      *Composition
}

// span maps a node at some level back onto the original timeline: the
// first and last original nodes it covers and where it starts.
type span struct {
	first int
	last  int
	start time.Duration
}

type window struct {
	start int
	end   int // exclusive
}

// partition splits n nodes into the fewest windows of at most ceiling nodes,
// with sizes differing by at most one.
func partition(n, ceiling int) []window {
	k := (n + ceiling - 1) / ceiling
	base, extra := n/k, n%k

	windows := make([]window, 0, k)
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < extra {
			size++
		}
		windows = append(windows, window{start: start, end: start + size})
		start += size
	}
	return windows
}

// planStages compiles nodes into one stage, or, above the ceiling, into
// window stages plus the stages that recompose them. Stages are returned in
// dependency order with the final stage last. Transition records are
// returned in timeline order with absolute positions.
func planStages(nodes []timeline.MediaNode, edges map[int]Edge, g Geometry, ceiling int) ([]*stagePlan, []schemas.TransitionRecord, error) {
	spans := make([]span, len(nodes))
	var at time.Duration
	for i, n := range nodes {
		spans[i] = span{first: i, last: i, start: at}
		at += n.Duration
	}

	plans, records, err := planLevel(nodes, edges, spans, 0, g, ceiling)
	if err != nil {
		return nil, nil, err
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].After < records[j].After })
	return plans, records, nil
}

func planLevel(nodes []timeline.MediaNode, edges map[int]Edge, spans []span, level int, g Geometry, ceiling int) ([]*stagePlan, []schemas.TransitionRecord, error) {
	if len(nodes) <= ceiling {
		plan, err := compileStage(FinalStageID, level, nodes, edges, g, 0)
		if err != nil {
			return nil, nil, err
		}
		return []*stagePlan{plan}, rebase(plan, spans, 0), nil
	}

	windows := partition(len(nodes), ceiling)
	upper := timeline.NewRegistry()
	upperEdges := make(map[int]Edge)
	upperSpans := make([]span, 0, len(windows))

	var plans []*stagePlan
	var records []schemas.TransitionRecord

	for k, w := range windows {
		sub := make([]timeline.MediaNode, 0, w.end-w.start)
		for i := w.start; i < w.end; i++ {
			sub = append(sub, nodes[i].WithIndex(i-w.start))
		}
		subEdges := make(map[int]Edge)
		for pos, e := range edges {
			if pos >= w.start && pos < w.end-1 {
				e.After = pos - w.start
				subEdges[e.After] = e
			}
		}

		// A window entered by a cross-fade starts that much before its
		// share of the timeline, exactly as its first node would unbatched.
		var lead time.Duration
		if k > 0 {
			if s := resolveStep(edges[w.start-1], nodes[w.start-1], nodes[w.start]); !s.cut {
				lead = s.res.Duration
			}
		}

		id := fmt.Sprintf("w%d-%d", level, k)
		plan, err := compileStage(id, level, sub, subEdges, g, lead)
		if err != nil {
			return nil, nil, err
		}
		plans = append(plans, plan)
		records = append(records, rebase(plan, spans[w.start:w.end], lead)...)

		upper.RegisterStage(id, plan.comp.Elapsed-lead, lead, sub[0].HeadDuration(), sub[len(sub)-1].TailDuration())
		upperSpans = append(upperSpans, span{
			first: spans[w.start].first,
			last:  spans[w.end-1].last,
			start: spans[w.start].start,
		})

		// The edge leaving this window becomes an edge of the next level.
		if e, ok := edges[w.end-1]; ok && k < len(windows)-1 {
			e.After = k
			upperEdges[k] = e
		}
	}

	rest, restRecords, err := planLevel(upper.All(), upperEdges, upperSpans, level+1, g, ceiling)
	if err != nil {
		return nil, nil, err
	}
	return append(plans, rest...), append(records, restRecords...), nil
}

func compileStage(id string, level int, nodes []timeline.MediaNode, edges map[int]Edge, g Geometry, lead time.Duration) (*stagePlan, error) {
	normalize, labels := Normalize(nodes, g)
	comp, err := compose(nodes, labels, edges, OutputLabel, lead)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", id, err)
	}
	return &stagePlan{
		id:        id,
		level:     level,
		nodes:     nodes,
		normalize: normalize,
		comp:      comp,
	}, nil
}

// rebase moves a stage's local transition records onto the original
// timeline. spans is aligned with the stage's nodes; the stage's stream
// begins lead before the first of them.
func rebase(plan *stagePlan, spans []span, lead time.Duration) []schemas.TransitionRecord {
	base := spans[0].start - lead
	out := make([]schemas.TransitionRecord, len(plan.comp.Transitions))
	for i, r := range plan.comp.Transitions {
		r.After = spans[r.After].last
		r.Offset = schemas.Duration{Duration: base + r.Offset.Duration}
		r.Stage = plan.id
		out[i] = r
	}
	return out
}
