package planner

import "fmt"

func (g *Graph) inDegrees() map[string]int {
	deg := make(map[string]int, len(g.Stages))
	for _, s := range g.Stages {
		deg[s.ID] = len(g.incoming[s.ID])
	}
	return deg
}

// TopologicalSort orders stages so every stage follows the stages whose
// outputs it reads. Ties keep the order of g.Stages, so windows render
// left to right.
func (g *Graph) TopologicalSort() ([]string, error) {
	levels, err := g.ComputeExecutionStages()
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(g.Stages))
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}

// ComputeExecutionStages groups stages into levels. Stages of one level do
// not depend on each other and may render concurrently; every window of a
// batching level lands in the same execution level.
func (g *Graph) ComputeExecutionStages() ([][]string, error) {
	deg := g.inDegrees()

	var frontier []string
	for _, s := range g.Stages {
		if deg[s.ID] == 0 {
			frontier = append(frontier, s.ID)
		}
	}

	var levels [][]string
	placed := 0
	for len(frontier) > 0 {
		levels = append(levels, frontier)
		placed += len(frontier)

		ready := make(map[string]bool)
		for _, id := range frontier {
			for _, next := range g.outgoing[id] {
				if deg[next]--; deg[next] == 0 {
					ready[next] = true
				}
			}
		}
		frontier = nil
		for _, s := range g.Stages {
			if ready[s.ID] {
				frontier = append(frontier, s.ID)
			}
		}
	}

	if placed != len(g.Stages) {
		return nil, fmt.Errorf("stage graph contains a cycle (ordered %d of %d stages)", placed, len(g.Stages))
	}
	return levels, nil
}
