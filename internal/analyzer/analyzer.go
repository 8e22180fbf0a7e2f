// Package analyzer classifies each tool call in a batch and derives a
// partial order over the batch from declared argument paths, without
// inspecting tool content.
package analyzer

import (
	"sort"

	"github.com/sipeed/toolcore/internal/toolcall"
)

// Config holds the inputs the analyzer needs to classify and order a batch.
type Config struct {
	SequentialCategories map[toolcall.Category]struct{}
	Enabled              bool
	Categorize           toolcall.CategorizerFunc
}

// NewConfig builds a Config from a plain category list, defaulting the
// categorizer to toolcall.DefaultCategorizer when none is supplied.
func NewConfig(enabled bool, sequential []toolcall.Category, categorize toolcall.CategorizerFunc) Config {
	set := make(map[toolcall.Category]struct{}, len(sequential))
	for _, c := range sequential {
		set[c] = struct{}{}
	}
	if categorize == nil {
		categorize = toolcall.DefaultCategorizer
	}
	return Config{SequentialCategories: set, Enabled: enabled, Categorize: categorize}
}

// Analyze produces an annotated list, one entry per input call, in the same
// order. It is deterministic: identical input yields identical output.
func Analyze(calls []toolcall.ToolCall, cfg Config) []toolcall.AnnotatedCall {
	out := make([]toolcall.AnnotatedCall, len(calls))

	priorReads := make(map[string][]int)
	priorWrites := make(map[string][]int)

	for i, call := range calls {
		category, _ := cfg.Categorize(call.Name)
		path, hasPath := toolcall.ExtractTargetPath(call.Arguments)

		ac := toolcall.AnnotatedCall{
			Index:         i,
			Call:          call,
			Category:      category,
			TargetPath:    path,
			HasTargetPath: hasPath,
		}

		if !cfg.Enabled {
			ac.Dependencies = nil
			ac.CanParallelize = false
			out[i] = ac
			continue
		}

		_, sequential := cfg.SequentialCategories[category]

		switch {
		case sequential:
			// Terminal/session-bearing tools share implicit global state, so
			// every prior call in the batch must finish first.
			deps := make([]int, i)
			for j := 0; j < i; j++ {
				deps[j] = j
			}
			ac.Dependencies = deps

		case category == toolcall.CategoryFileWrite && hasPath:
			// A write depends on every prior write AND every prior read of
			// the same path (read-before-write, the safer ordering).
			deps := append([]int(nil), priorWrites[path]...)
			deps = append(deps, priorReads[path]...)
			ac.Dependencies = dedupSorted(deps)
			priorWrites[path] = append(priorWrites[path], i)

		case (category == toolcall.CategoryFileRead || category == toolcall.CategoryFileSearch) && hasPath:
			// A read/search depends on every prior write to the same path.
			ac.Dependencies = dedupSorted(append([]int(nil), priorWrites[path]...))
			priorReads[path] = append(priorReads[path], i)

		default:
			ac.Dependencies = nil
		}

		ac.CanParallelize = len(ac.Dependencies) == 0 && !sequential
		out[i] = ac
	}

	return out
}

func dedupSorted(indices []int) []int {
	if len(indices) == 0 {
		return nil
	}
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	n := 0
	for i, v := range sorted {
		if i == 0 || v != sorted[n-1] {
			sorted[n] = v
			n++
		}
	}
	return sorted[:n]
}
