package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/toolcore/internal/analyzer"
	"github.com/sipeed/toolcore/internal/corelog"
	"github.com/sipeed/toolcore/internal/dispatcher"
	"github.com/sipeed/toolcore/internal/janitor"
	"github.com/sipeed/toolcore/internal/livefeed"
	"github.com/sipeed/toolcore/internal/planner"
	"github.com/sipeed/toolcore/internal/toolcall"
)

// newServeCommand starts an HTTP server exposing POST /run (submit a tool
// call batch) and GET /ws (subscribe to per-group completion events), with
// an optional gronx-scheduled janitor sweeping expired cache entries and
// recording telemetry snapshots in the background. Session state is not
// swept.
func newServeCommand() *cobra.Command {
	var (
		addr     string
		dbPath   string
		cronExpr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an HTTP server with a live WebSocket feed of dispatch activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(dbPath)
			if err != nil {
				return err
			}
			if a.store != nil {
				defer a.store.Close()
			}

			feed := livefeed.NewFeed()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if cronExpr != "" {
				j := janitor.New(a.cache, a.sessions, a.store, cronExpr)
				go j.Run(ctx)
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/ws", feed.HandleWS)
			mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
				handleRunRequest(r.Context(), a, feed, w, r)
			})

			corelog.InfoCF("serve", "listening", map[string]any{"addr": addr})
			return http.ListenAndServe(addr, mux)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "address to listen on")
	cmd.Flags().StringVar(&dbPath, "db", "", "optional sqlite path for telemetry mirroring")
	cmd.Flags().StringVar(&cronExpr, "janitor-cron", "*/5 * * * *", "cron expression for the cache sweep and telemetry snapshot (empty disables it)")
	return cmd
}

func handleRunRequest(ctx context.Context, a *app, feed *livefeed.Feed, w http.ResponseWriter, r *http.Request) {
	var raw []rawCall
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return
	}

	calls := make([]toolcall.ToolCall, len(raw))
	for i, rc := range raw {
		id := rc.CallID
		if id == "" {
			id = newCallID()
		}
		calls[i] = toolcall.ToolCall{CallID: id, Name: rc.Name, Arguments: rc.Arguments}
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = "http"
	}
	workspace := r.URL.Query().Get("workspace")

	annotated := analyzer.Analyze(calls, a.analyzerConfig())
	groups := planner.Plan(annotated)

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

	// Run one group at a time so we can broadcast a livefeed event as each
	// group finishes, rather than waiting for the whole batch.
	results := make([]toolcall.ToolResult, len(calls))
	for gi, group := range groups {
		groupCalls := make([]toolcall.ToolCall, len(group.Calls))
		for i, ac := range group.Calls {
			groupCalls[i] = ac.Call
		}
		start := time.Now()
		groupResult := dispatcher.Run(ctx, a.parallelCfg, groupCalls, retarget(group), execute)
		duration := time.Since(start).Milliseconds()

		for i, ac := range group.Calls {
			results[ac.Index] = groupResult.Results[i]
		}
		feed.Broadcast(livefeed.EventFromGroup(sessionID, gi, group, results, duration))
	}

	succeeded, failed := 0, 0
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"results":   results,
		"succeeded": succeeded,
		"failed":    failed,
	})
}

// retarget re-indexes a single group so its AnnotatedCall.Index values
// start at zero, matching the fresh groupCalls slice passed to
// dispatcher.Run for that group in isolation.
func retarget(original toolcall.ExecutionGroup) []toolcall.ExecutionGroup {
	reindexed := toolcall.ExecutionGroup{IsParallel: original.IsParallel}
	for i, ac := range original.Calls {
		ac.Index = i
		ac.Dependencies = nil
		reindexed.Calls = append(reindexed.Calls, ac)
	}
	return []toolcall.ExecutionGroup{reindexed}
}
