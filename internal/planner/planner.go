// Package planner turns an annotated call list into an ordered sequence of
// ExecutionGroups via a Kahn-style leveling pass, preserving every
// dependency edge while maximizing parallel breadth.
package planner

import (
	"sort"

	"github.com/sipeed/toolcore/internal/toolcall"
)

// Plan partitions annotated calls into ordered groups.
//
// Dependency rules in the analyzer only ever point from a higher index to a
// lower one, so a true cycle cannot occur; the "no ready node" branch below
// is a defensive fallback kept for robustness against future rule changes.
func Plan(calls []toolcall.AnnotatedCall) []toolcall.ExecutionGroup {
	n := len(calls)
	if n == 0 {
		return nil
	}

	completed := make(map[int]struct{}, n)
	remaining := make(map[int]struct{}, n)
	for i := range calls {
		remaining[i] = struct{}{}
	}

	var groups []toolcall.ExecutionGroup

	for len(remaining) > 0 {
		ready := readyIndices(calls, remaining, completed)

		if len(ready) == 0 {
			// Defensive fallback: no dependency-satisfied node exists among
			// the remaining set. Treat the lowest-index remaining call as a
			// singleton so the planner always makes forward progress.
			idx := lowestIndex(remaining)
			groups = append(groups, singleton(calls[idx]))
			delete(remaining, idx)
			completed[idx] = struct{}{}
			continue
		}

		var parallelizable, sequential []int
		for _, idx := range ready {
			if calls[idx].CanParallelize {
				parallelizable = append(parallelizable, idx)
			} else {
				sequential = append(sequential, idx)
			}
		}

		switch {
		case len(parallelizable) >= 2:
			group := toolcall.ExecutionGroup{IsParallel: true}
			for _, idx := range parallelizable {
				group.Calls = append(group.Calls, calls[idx])
				delete(remaining, idx)
				completed[idx] = struct{}{}
			}
			groups = append(groups, group)

		case len(parallelizable) == 1:
			idx := parallelizable[0]
			groups = append(groups, singleton(calls[idx]))
			delete(remaining, idx)
			completed[idx] = struct{}{}

		default:
			// No parallelizable candidates this round; fall through to
			// draining the sequential ones below.
		}

		for _, idx := range sequential {
			groups = append(groups, singleton(calls[idx]))
			delete(remaining, idx)
			completed[idx] = struct{}{}
		}
	}

	return groups
}

func singleton(call toolcall.AnnotatedCall) toolcall.ExecutionGroup {
	return toolcall.ExecutionGroup{Calls: []toolcall.AnnotatedCall{call}, IsParallel: false}
}

// readyIndices returns remaining indices, in ascending order, whose
// dependencies are all satisfied.
func readyIndices(calls []toolcall.AnnotatedCall, remaining, completed map[int]struct{}) []int {
	var ready []int
	for idx := range remaining {
		ok := true
		for _, dep := range calls[idx].Dependencies {
			if _, done := completed[dep]; !done {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, idx)
		}
	}
	sort.Ints(ready)
	return ready
}

func lowestIndex(set map[int]struct{}) int {
	min := -1
	for idx := range set {
		if min == -1 || idx < min {
			min = idx
		}
	}
	return min
}
