package tools

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/sipeed/toolcore/internal/toolcall"
)

// knownToolNames lists every name Execute recognizes, in the same grouping
// order as the switch below, so an unknown-tool failure can enumerate them.
var knownToolNames = []string{
	"read_file", "read",
	"write_file", "write", "create_file",
	"list_dir", "ls",
	"run", "shell", "exec",
}

// Registry maps tool names to dispatcher.Executor-compatible functions,
// all sharing one FileSystem so sandbox policy is consistent across them.
type Registry struct {
	fs             FileSystem
	shellTimeout   time.Duration
}

// NewRegistry builds the sample tool set against fs. shellTimeout bounds
// how long a shell invocation is allowed to run before it's killed.
func NewRegistry(fs FileSystem, shellTimeout time.Duration) *Registry {
	if shellTimeout <= 0 {
		shellTimeout = 30 * time.Second
	}
	return &Registry{fs: fs, shellTimeout: shellTimeout}
}

// Execute dispatches call to the matching tool executor. Unknown tool
// names come back as a failure result enumerating the tools this registry
// actually knows, rather than a panic or error return, matching the
// "unknown tool name" kind of the error taxonomy; the call is never sent
// to an executor in that case.
func (r *Registry) Execute(ctx context.Context, call toolcall.ToolCall) toolcall.ToolResult {
	start := time.Now()
	var result toolcall.ToolResult

	switch call.Name {
	case "read_file", "read":
		result = r.readFile(call.Name, call.Arguments)
	case "write_file", "write", "create_file":
		result = r.writeFile(call.Name, call.Arguments)
	case "list_dir", "ls":
		result = r.listDir(call.Arguments)
	case "run", "shell", "exec":
		result = r.shell(ctx, call.Name, call.Arguments)
	default:
		result = toolcall.ToolResult{Success: false, Output: toolcall.UnknownToolMessage(call.Name, knownToolNames)}
	}

	result.ToolName = call.Name
	completed := time.Now()
	result.Timing = toolcall.Timing{StartedAt: start, CompletedAt: completed, DurationMs: completed.Sub(start).Milliseconds()}
	return result
}

func (r *Registry) readFile(toolName string, args map[string]any) toolcall.ToolResult {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return toolcall.ToolResult{Success: false, Output: toolcall.ArgumentDiagnostic(toolName, []string{"path"}, args)}
	}
	content, err := r.fs.ReadFile(path)
	if err != nil {
		return toolcall.ToolResult{Success: false, Output: err.Error()}
	}
	return toolcall.ToolResult{Success: true, Output: string(content)}
}

func (r *Registry) writeFile(toolName string, args map[string]any) toolcall.ToolResult {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return toolcall.ToolResult{Success: false, Output: toolcall.ArgumentDiagnostic(toolName, []string{"path"}, args)}
	}
	content, _ := args["content"].(string)
	if err := r.fs.WriteFile(path, []byte(content)); err != nil {
		return toolcall.ToolResult{Success: false, Output: err.Error()}
	}
	return toolcall.ToolResult{Success: true, Output: fmt.Sprintf("wrote %d bytes to %s", len(content), path)}
}

func (r *Registry) listDir(args map[string]any) toolcall.ToolResult {
	path, _ := args["directory"].(string)
	if path == "" {
		path, _ = args["path"].(string)
	}
	if path == "" {
		path = "."
	}
	entries, err := r.fs.ReadDir(path)
	if err != nil {
		return toolcall.ToolResult{Success: false, Output: err.Error()}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return toolcall.ToolResult{Success: true, Output: strings.Join(names, "\n")}
}

func (r *Registry) shell(ctx context.Context, toolName string, args map[string]any) toolcall.ToolResult {
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return toolcall.ToolResult{Success: false, Output: toolcall.ArgumentDiagnostic(toolName, []string{"command"}, args)}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.shellTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return toolcall.ToolResult{Success: false, Output: fmt.Sprintf("%s\n%s", err.Error(), output)}
	}
	return toolcall.ToolResult{Success: true, Output: string(output)}
}
