package planner

import (
	"fmt"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

// Graph is the dependency DAG between the stages of a program. An edge
// From -> To means stage To decodes the rendered output of stage From.
type Graph struct {
	Stages []*schemas.Stage

	// Internal indexes for fast lookup
	stageIndex map[string]*schemas.Stage
	outgoing   map[string][]string
	incoming   map[string][]string
}

// NewGraph creates a new empty graph
func NewGraph() *Graph {
	return &Graph{
		Stages:     []*schemas.Stage{},
		stageIndex: make(map[string]*schemas.Stage),
		outgoing:   make(map[string][]string),
		incoming:   make(map[string][]string),
	}
}

// AddStage adds a stage to the graph. IDs must be unique.
func (g *Graph) AddStage(stage *schemas.Stage) error {
	if _, dup := g.stageIndex[stage.ID]; dup {
		return fmt.Errorf("duplicate stage id '%s'", stage.ID)
	}
	g.Stages = append(g.Stages, stage)
	g.stageIndex[stage.ID] = stage
	return nil
}

// AddDependency records that stage to consumes the output of stage from.
func (g *Graph) AddDependency(from, to string) {
	g.outgoing[from] = append(g.outgoing[from], to)
	g.incoming[to] = append(g.incoming[to], from)
}

// GetStage retrieves a stage by ID
func (g *Graph) GetStage(id string) *schemas.Stage {
	return g.stageIndex[id]
}

// GetPredecessors returns the stages id depends on, in dependency order.
func (g *Graph) GetPredecessors(id string) []*schemas.Stage {
	return g.lookup(g.incoming[id])
}

// GetSuccessors returns the stages that depend on id.
func (g *Graph) GetSuccessors(id string) []*schemas.Stage {
	return g.lookup(g.outgoing[id])
}

func (g *Graph) lookup(ids []string) []*schemas.Stage {
	stages := make([]*schemas.Stage, 0, len(ids))
	for _, id := range ids {
		if s := g.GetStage(id); s != nil {
			stages = append(stages, s)
		}
	}
	return stages
}

// DetectCycles checks if the graph contains any cycles using DFS
func (g *Graph) DetectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, stage := range g.Stages {
		if !visited[stage.ID] {
			if err := g.dfsCheckCycle(stage.ID, visited, recStack); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *Graph) dfsCheckCycle(id string, visited, recStack map[string]bool) error {
	visited[id] = true
	recStack[id] = true

	for _, successor := range g.outgoing[id] {
		if !visited[successor] {
			if err := g.dfsCheckCycle(successor, visited, recStack); err != nil {
				return err
			}
		} else if recStack[successor] {
			return fmt.Errorf("cycle detected: %s -> %s", id, successor)
		}
	}

	recStack[id] = false
	return nil
}

// Sinks returns stages nothing depends on. A well-formed program has
// exactly one: its final stage.
func (g *Graph) Sinks() []*schemas.Stage {
	var sinks []*schemas.Stage
	for _, stage := range g.Stages {
		if len(g.outgoing[stage.ID]) == 0 {
			sinks = append(sinks, stage)
		}
	}
	return sinks
}
