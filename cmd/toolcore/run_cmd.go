package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/toolcore/internal/analyzer"
	"github.com/sipeed/toolcore/internal/dispatcher"
	"github.com/sipeed/toolcore/internal/planner"
	"github.com/sipeed/toolcore/internal/toolcall"
	"github.com/sipeed/toolcore/internal/truncate"
)

// rawCall is the JSON shape accepted on stdin/--file for the run command.
type rawCall struct {
	CallID    string         `json:"call_id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func newRunCommand() *cobra.Command {
	var (
		file      string
		workspace string
		sessionID string
		dbPath    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze, plan, and execute a batch of tool calls from JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(dbPath)
			if err != nil {
				return err
			}
			if a.store != nil {
				defer a.store.Close()
			}

			calls, err := readCalls(file)
			if err != nil {
				return err
			}
			if sessionID == "" {
				sessionID = "cli"
			}

			result := runBatch(cmd.Context(), a, calls, workspace, sessionID)
			return printBatchResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a JSON array of tool calls (defaults to stdin)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace identifier used in cache keys")
	cmd.Flags().StringVar(&sessionID, "session", "", "session identifier for state tracking (default: cli)")
	cmd.Flags().StringVar(&dbPath, "db", "", "optional sqlite path; opened, but this command writes no snapshots to it")
	return cmd
}

func readCalls(file string) ([]toolcall.ToolCall, error) {
	var r io.Reader
	if file == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}

	var raw []rawCall
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse tool call batch: %w", err)
	}

	calls := make([]toolcall.ToolCall, len(raw))
	for i, rc := range raw {
		id := rc.CallID
		if id == "" {
			id = newCallID()
		}
		calls[i] = toolcall.ToolCall{CallID: id, Name: rc.Name, Arguments: rc.Arguments}
	}
	return calls, nil
}

// batchOutput is what newRunCommand prints: one truncated result per call
// plus the dispatcher's aggregate timing.
type batchOutput struct {
	Results         []truncate.Result `json:"results"`
	Succeeded       []string          `json:"succeeded"`
	Failed          []string          `json:"failed"`
	TotalDurationMs int64             `json:"total_duration_ms"`
	TimeSavedMs     int64             `json:"time_saved_ms"`
	WasParallel     bool              `json:"was_parallel"`
}

func runBatch(ctx context.Context, a *app, calls []toolcall.ToolCall, workspace, sessionID string) batchOutput {
	annotated := analyzer.Analyze(calls, a.analyzerConfig())
	groups := planner.Plan(annotated)

	categoryByName := make(map[string]toolcall.Category, len(annotated))
	for _, ac := range annotated {
		categoryByName[ac.Call.Name] = ac.Category
	}

	execute := func(ctx context.Context, call toolcall.ToolCall) toolcall.ToolResult {
		if cached, ok := a.cache.Get(call.Name, call.Arguments, workspace); ok {
			return cached
		}

		result := a.registry.Execute(ctx, call)

		if result.Success {
			a.sessions.RecordSuccess(sessionID, call.Name)
			a.cache.Set(call.Name, call.Arguments, result, workspace, sessionID)
		} else {
			a.sessions.RecordError(sessionID, call.Name, result.Output)
		}
		if a.cache.IsInvalidator(call.Name) {
			if path, ok := toolcall.ExtractTargetPath(call.Arguments); ok {
				a.cache.InvalidatePath(path)
			}
		}
		return result
	}

	execResult := dispatcher.Run(ctx, a.parallelCfg, calls, groups, execute)

	truncated := make([]truncate.Result, len(execResult.Results))
	for i, r := range execResult.Results {
		truncated[i] = truncate.Truncate(r.Output, r.ToolName, categoryByName[r.ToolName], a.truncCfg)
	}

	return batchOutput{
		Results:         truncated,
		Succeeded:       nonNil(execResult.Succeeded),
		Failed:          nonNil(execResult.Failed),
		TotalDurationMs: execResult.TotalDurationMs,
		TimeSavedMs:     execResult.TimeSavedMs,
		WasParallel:     execResult.WasParallel,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func printBatchResult(w io.Writer, out batchOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
