// Package toolcall holds the data model shared by the analyzer, planner,
// dispatcher, cache, and truncator: ToolCall, ToolResult, the derived
// AnnotatedCall/ExecutionGroup shapes, and the tool categorizer.
package toolcall

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Category is the closed set of tool categories the analyzer classifies
// calls into.
type Category string

const (
	CategoryFileRead   Category = "file-read"
	CategoryFileSearch Category = "file-search"
	CategoryFileWrite  Category = "file-write"
	CategoryTerminal   Category = "terminal"
	CategoryOther      Category = "other"
)

// ToolCall is the identity of a single invocation produced by the agent.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments map[string]any
}

// Timing captures wall-clock bookkeeping for one executor invocation.
type Timing struct {
	StartedAt   time.Time
	CompletedAt time.Time
	DurationMs  int64
}

// ToolResult is the uniform outcome of running a ToolCall. Failure is a
// value, never a thrown control signal at the core boundary.
type ToolResult struct {
	ToolName string
	Success  bool
	Output   string
	Timing   Timing
	Metadata map[string]any
}

// AnnotatedCall enriches a ToolCall with everything the planner needs.
type AnnotatedCall struct {
	Index          int
	Call           ToolCall
	Category       Category
	TargetPath     string // empty if none could be extracted
	HasTargetPath  bool
	Dependencies   []int // sorted, deduplicated predecessor indices
	CanParallelize bool
}

// ExecutionGroup is a scheduling unit emitted by the planner: either a
// single serialized call or a parallel set.
type ExecutionGroup struct {
	Calls      []AnnotatedCall
	IsParallel bool
}

// ParallelExecutionResult is the dispatcher's overall batch outcome.
type ParallelExecutionResult struct {
	Results        []ToolResult
	Succeeded      []string
	Failed         []string
	TotalDurationMs int64
	TimeSavedMs     int64
	WasParallel     bool
}

// targetPathKeys lists the argument keys, in priority order, from which a
// call's target path may be extracted.
var targetPathKeys = []string{"path", "filePath", "file", "directory"}

// ExtractTargetPath returns the path-like argument for a call, if any.
func ExtractTargetPath(args map[string]any) (string, bool) {
	for _, key := range targetPathKeys {
		if v, ok := args[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// argPreviewLimit bounds how much of a call's raw arguments gets echoed
// back in a diagnostic message.
const argPreviewLimit = 200

// ArgumentDiagnostic builds the "argument parse error on the call itself"
// failure message (error taxonomy kind 5): the required keys that were
// missing, the keys actually received, and a bounded preview of the raw
// arguments, so the caller sees what it sent rather than a flat
// "X is required" string. The executor is never invoked for this kind.
func ArgumentDiagnostic(toolName string, missing []string, args map[string]any) string {
	received := make([]string, 0, len(args))
	for k := range args {
		received = append(received, k)
	}
	sort.Strings(received)

	return fmt.Sprintf("tool %q call is missing required argument(s) %v; received keys %v; arguments preview: %s",
		toolName, missing, received, argsPreview(args))
}

func argsPreview(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("<unable to preview: %s>", err.Error())
	}
	if len(data) > argPreviewLimit {
		return string(data[:argPreviewLimit]) + "..."
	}
	return string(data)
}

// UnknownToolMessage builds the "unknown tool name" failure message
// (error taxonomy kind 6): it enumerates the tools actually available so
// the caller can tell a typo from a genuinely missing capability. The
// call is never sent to any executor for this kind.
func UnknownToolMessage(toolName string, available []string) string {
	known := append([]string(nil), available...)
	sort.Strings(known)
	return fmt.Sprintf("unknown tool %q; available tools: %v", toolName, known)
}

// CategorizerFunc classifies a tool name into a category and an opaque
// action string, pluggable so callers can override the default mapping.
type CategorizerFunc func(toolName string) (Category, string)

// defaultReadTools, defaultSearchTools, and defaultWriteTools map common
// tool names by fs/web grouping conventions.
var (
	defaultReadTools = map[string]string{
		"read":      "read",
		"read_file": "read",
		"cat":       "read",
	}
	defaultSearchTools = map[string]string{
		"ls":        "list",
		"list_dir":  "list",
		"glob":      "search",
		"grep":      "search",
		"symbols":   "search",
		"web_search": "search",
	}
	defaultWriteTools = map[string]string{
		"write":       "create",
		"write_file":  "create",
		"edit":        "edit",
		"edit_file":   "edit",
		"append_file": "edit",
		"create_file": "create",
	}
	defaultTerminalTools = map[string]string{
		"run":             "exec",
		"exec":            "exec",
		"shell":           "exec",
		"check_terminal":  "read",
		"kill_terminal":   "delete",
	}
)

// DefaultCategorizer classifies tool names using the pattern conventions
// established by the sample tool set (internal/tools): names are matched
// exactly against the known default tables above, and anything not in
// them falls into CategoryOther. No suffix/prefix matching is done.
func DefaultCategorizer(toolName string) (Category, string) {
	if action, ok := defaultReadTools[toolName]; ok {
		return CategoryFileRead, action
	}
	if action, ok := defaultSearchTools[toolName]; ok {
		return CategoryFileSearch, action
	}
	if action, ok := defaultWriteTools[toolName]; ok {
		return CategoryFileWrite, action
	}
	if action, ok := defaultTerminalTools[toolName]; ok {
		return CategoryTerminal, action
	}
	return CategoryOther, "read"
}
