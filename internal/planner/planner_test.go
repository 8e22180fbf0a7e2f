package planner

import (
	"testing"

	"github.com/sipeed/toolcore/internal/toolcall"
)

func call(index int, deps []int, canParallelize bool) toolcall.AnnotatedCall {
	return toolcall.AnnotatedCall{
		Index:          index,
		Call:           toolcall.ToolCall{Name: "tool"},
		Dependencies:   deps,
		CanParallelize: canParallelize,
	}
}

func TestPlan_IndependentCallsFormOneParallelGroup(t *testing.T) {
	calls := []toolcall.AnnotatedCall{
		call(0, nil, true),
		call(1, nil, true),
		call(2, nil, true),
	}
	groups := Plan(calls)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if !groups[0].IsParallel || len(groups[0].Calls) != 3 {
		t.Fatalf("expected one parallel group of 3, got %+v", groups[0])
	}
}

func TestPlan_SingleParallelizableCallIsASingleton(t *testing.T) {
	calls := []toolcall.AnnotatedCall{call(0, nil, true)}
	groups := Plan(calls)

	if len(groups) != 1 || groups[0].IsParallel {
		t.Fatalf("a lone parallelizable call should be a singleton group, got %+v", groups)
	}
}

func TestPlan_DependencyChainIsFullySequential(t *testing.T) {
	calls := []toolcall.AnnotatedCall{
		call(0, nil, true),
		call(1, []int{0}, false),
		call(2, []int{1}, false),
	}
	groups := Plan(calls)

	if len(groups) != 3 {
		t.Fatalf("expected 3 sequential groups, got %d", len(groups))
	}
	for _, g := range groups {
		if g.IsParallel {
			t.Error("a chain of single dependents must never be grouped as parallel")
		}
	}
	if groups[0].Calls[0].Index != 0 || groups[1].Calls[0].Index != 1 || groups[2].Calls[0].Index != 2 {
		t.Fatalf("groups out of order: %+v", groups)
	}
}

func TestPlan_PreservesDependencyOrderAcrossLevels(t *testing.T) {
	// 0 and 1 are independent reads; 2 writes the same path as both, so it
	// must run only after both complete.
	calls := []toolcall.AnnotatedCall{
		call(0, nil, true),
		call(1, nil, true),
		call(2, []int{0, 1}, false),
	}
	groups := Plan(calls)

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups (parallel reads, then the write), got %d", len(groups))
	}
	if !groups[0].IsParallel || len(groups[0].Calls) != 2 {
		t.Fatalf("expected first group to be the parallel pair, got %+v", groups[0])
	}
	if groups[1].Calls[0].Index != 2 {
		t.Fatalf("expected second group to be the write, got %+v", groups[1])
	}
}

func TestPlan_SequentialAndParallelReadyNodesSplitIntoSeparateGroups(t *testing.T) {
	// index 0 is a terminal-like call with no deps (sequential by category,
	// CanParallelize=false), indices 1 and 2 are independent parallel reads.
	calls := []toolcall.AnnotatedCall{
		call(0, nil, false),
		call(1, nil, true),
		call(2, nil, true),
	}
	groups := Plan(calls)

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(groups), groups)
	}
	// The planner drains parallelizable ready nodes before sequential ones
	// within the same round, so the parallel pair (1, 2) comes first.
	if !groups[0].IsParallel || len(groups[0].Calls) != 2 {
		t.Fatalf("expected first group to be the parallel pair, got %+v", groups[0])
	}
	if groups[1].IsParallel || groups[1].Calls[0].Index != 0 {
		t.Fatalf("expected second group to be the lone sequential call, got %+v", groups[1])
	}
}

func TestPlan_EmptyInputProducesNoGroups(t *testing.T) {
	if groups := Plan(nil); groups != nil {
		t.Fatalf("expected nil for empty input, got %+v", groups)
	}
}

func TestPlan_EveryCallAppearsExactlyOnce(t *testing.T) {
	calls := []toolcall.AnnotatedCall{
		call(0, nil, true),
		call(1, nil, true),
		call(2, []int{0, 1}, false),
		call(3, nil, true),
	}
	groups := Plan(calls)

	seen := make(map[int]int)
	for _, g := range groups {
		for _, ac := range g.Calls {
			seen[ac.Index]++
		}
	}
	if len(seen) != len(calls) {
		t.Fatalf("expected every call to appear, got %v", seen)
	}
	for idx, count := range seen {
		if count != 1 {
			t.Errorf("call %d appeared %d times", idx, count)
		}
	}
}
