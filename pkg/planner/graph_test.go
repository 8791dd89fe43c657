package planner

import (
	"reflect"
	"strings"
	"testing"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

// diamond builds a -> b, a -> c, b -> d, c -> d.
func diamond(t *testing.T) *Graph {
	t.Helper()
	graph := NewGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		if err := graph.AddStage(&schemas.Stage{ID: id}); err != nil {
			t.Fatalf("AddStage(%s): %v", id, err)
		}
	}
	graph.AddDependency("a", "b")
	graph.AddDependency("a", "c")
	graph.AddDependency("b", "d")
	graph.AddDependency("c", "d")
	return graph
}

func TestGraph_AddStage(t *testing.T) {
	graph := NewGraph()

	if err := graph.AddStage(&schemas.Stage{ID: "main"}); err != nil {
		t.Fatalf("AddStage failed: %v", err)
	}
	if graph.GetStage("main") == nil {
		t.Fatal("stage not found")
	}
	if err := graph.AddStage(&schemas.Stage{ID: "main"}); err == nil {
		t.Error("expected error for duplicate stage id")
	}
	if len(graph.Stages) != 1 {
		t.Errorf("expected 1 stage, got %d", len(graph.Stages))
	}
}

func TestGraph_Neighbours(t *testing.T) {
	graph := diamond(t)

	succ := graph.GetSuccessors("a")
	if len(succ) != 2 || succ[0].ID != "b" || succ[1].ID != "c" {
		t.Errorf("unexpected successors of a: %v", succ)
	}

	pred := graph.GetPredecessors("d")
	if len(pred) != 2 || pred[0].ID != "b" || pred[1].ID != "c" {
		t.Errorf("unexpected predecessors of d: %v", pred)
	}

	sinks := graph.Sinks()
	if len(sinks) != 1 || sinks[0].ID != "d" {
		t.Errorf("expected d as only sink, got %v", sinks)
	}
}

func TestGraph_DetectCycles(t *testing.T) {
	graph := diamond(t)
	if err := graph.DetectCycles(); err != nil {
		t.Fatalf("unexpected cycle: %v", err)
	}

	graph.AddDependency("d", "a")
	err := graph.DetectCycles()
	if err == nil {
		t.Fatal("expected cycle to be detected")
	}
	if !strings.Contains(err.Error(), "cycle detected") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGraph_TopologicalSort(t *testing.T) {
	graph := diamond(t)

	// Repeat to catch any dependence on map iteration order.
	for i := 0; i < 20; i++ {
		order, err := graph.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort failed: %v", err)
		}
		if want := []string{"a", "b", "c", "d"}; !reflect.DeepEqual(order, want) {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestGraph_TopologicalSortCycle(t *testing.T) {
	graph := diamond(t)
	graph.AddDependency("d", "b")

	if _, err := graph.TopologicalSort(); err == nil {
		t.Error("expected error for cyclic graph")
	}
	if _, err := graph.ComputeExecutionStages(); err == nil {
		t.Error("expected error computing stages of cyclic graph")
	}
}

func TestGraph_ComputeExecutionStages(t *testing.T) {
	graph := diamond(t)

	levels, err := graph.ComputeExecutionStages()
	if err != nil {
		t.Fatalf("ComputeExecutionStages failed: %v", err)
	}

	want := [][]string{{"a"}, {"b", "c"}, {"d"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("expected %v, got %v", want, levels)
	}
}

func TestGraph_Empty(t *testing.T) {
	graph := NewGraph()

	order, err := graph.TopologicalSort()
	if err != nil || len(order) != 0 {
		t.Errorf("expected empty order, got %v (%v)", order, err)
	}
	levels, err := graph.ComputeExecutionStages()
	if err != nil || len(levels) != 0 {
		t.Errorf("expected no levels, got %v (%v)", levels, err)
	}
}
