// Package dispatcher executes an ordered list of ExecutionGroups under a
// bounded concurrency budget, isolates per-call failures, and assembles
// results in original batch order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sipeed/toolcore/internal/config"
	"github.com/sipeed/toolcore/internal/toolcall"
)

// Executor runs a single tool call. It may suspend and must return a value
// even on semantic failure; it may panic only for truly unexpected defects,
// which Run converts into a failure result.
type Executor func(ctx context.Context, call toolcall.ToolCall) toolcall.ToolResult

// Run executes calls according to the precomputed groups, honoring cfg's
// concurrency bound and timeout, and returns results in original batch
// order. Cancellation observed via ctx.Done() is sticky: once seen, every
// remaining call is filled in with a cancelled result rather than run.
func Run(
	ctx context.Context,
	cfg config.ParallelExecutionConfig,
	calls []toolcall.ToolCall,
	groups []toolcall.ExecutionGroup,
	execute Executor,
) toolcall.ParallelExecutionResult {
	if len(calls) == 0 {
		return toolcall.ParallelExecutionResult{Results: []toolcall.ToolResult{}}
	}

	if len(calls) == 1 || !cfg.Enabled {
		return runSerial(ctx, cfg, calls, execute)
	}

	n := len(calls)
	results := make([]toolcall.ToolResult, n)
	sem := newSemaphore(cfg.MaxConcurrency)

	start := time.Now()
	var estimatedSequential int64
	wasParallel := false
	cancelled := false

	for gi, group := range groups {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			fillCancelled(results, groups[gi:])
			break
		}

		if group.IsParallel && len(group.Calls) >= 2 {
			wasParallel = true
			var wg sync.WaitGroup
			var mu sync.Mutex
			for _, ac := range group.Calls {
				wg.Add(1)
				go func(ac toolcall.AnnotatedCall) {
					defer wg.Done()
					sem.withPermit(func() {
						var result toolcall.ToolResult
						if ctx.Err() != nil {
							result = cancelledResult(ac.Call.Name)
						} else {
							result = runOne(ctx, ac.Call, execute, cfg.ToolTimeout())
						}
						results[ac.Index] = result
						mu.Lock()
						estimatedSequential += result.Timing.DurationMs
						mu.Unlock()
					})
				}(ac)
			}
			wg.Wait()
			continue
		}

		// Singleton group: run sequentially, checking cancellation first.
		ac := group.Calls[0]
		if ctx.Err() != nil {
			cancelled = true
			fillCancelled(results, groups[gi:])
			break
		}
		result := runOne(ctx, ac.Call, execute, cfg.ToolTimeout())
		results[ac.Index] = result
		estimatedSequential += result.Timing.DurationMs
	}

	totalDurationMs := time.Since(start).Milliseconds()
	timeSaved := estimatedSequential - totalDurationMs
	if timeSaved < 0 {
		timeSaved = 0
	}

	succeeded, failed := splitOutcomes(results)
	return toolcall.ParallelExecutionResult{
		Results:         results,
		Succeeded:       succeeded,
		Failed:          failed,
		TotalDurationMs: totalDurationMs,
		TimeSavedMs:     timeSaved,
		WasParallel:     wasParallel,
	}
}

// runSerial handles the "single call OR parallelism disabled" path: total
// duration is the sum of per-call durations, never a wall-clock
// measurement, and no time is ever reported saved.
func runSerial(ctx context.Context, cfg config.ParallelExecutionConfig, calls []toolcall.ToolCall, execute Executor) toolcall.ParallelExecutionResult {
	results := make([]toolcall.ToolResult, len(calls))
	var total int64
	cancelled := false

	for i, call := range calls {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			results[i] = cancelledResult(call.Name)
			continue
		}
		result := runOne(ctx, call, execute, cfg.ToolTimeout())
		results[i] = result
		total += result.Timing.DurationMs
	}

	succeeded, failed := splitOutcomes(results)
	return toolcall.ParallelExecutionResult{
		Results:         results,
		Succeeded:       succeeded,
		Failed:          failed,
		TotalDurationMs: total,
		TimeSavedMs:     0,
		WasParallel:     false,
	}
}

func fillCancelled(results []toolcall.ToolResult, remaining []toolcall.ExecutionGroup) {
	for _, group := range remaining {
		for _, ac := range group.Calls {
			if results[ac.Index].ToolName == "" && !results[ac.Index].Success {
				results[ac.Index] = cancelledResult(ac.Call.Name)
			}
		}
	}
}

func cancelledResult(toolName string) toolcall.ToolResult {
	now := time.Now()
	return toolcall.ToolResult{
		ToolName: toolName,
		Success:  false,
		Output:   "Execution cancelled",
		Timing:   toolcall.Timing{StartedAt: now, CompletedAt: now},
	}
}

// runOne executes a single call with timeout enforcement and panic
// recovery, converting a tool defect, a timeout, or a cancellation into a
// failure result value rather than letting it escape. It always fills in a
// timing block when the executor omitted one.
func runOne(ctx context.Context, call toolcall.ToolCall, execute Executor, timeout time.Duration) toolcall.ToolResult {
	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resultCh := make(chan toolcall.ToolResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- toolcall.ToolResult{
					ToolName: call.Name,
					Success:  false,
					Output:   fmt.Sprintf("%v", r),
				}
			}
		}()
		resultCh <- execute(callCtx, call)
	}()

	var result toolcall.ToolResult
	select {
	case result = <-resultCh:
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			result = toolcall.ToolResult{
				ToolName: call.Name,
				Success:  false,
				Output:   fmt.Sprintf("tool %q timed out after %s", call.Name, timeout),
			}
		} else {
			result = cancelledResult(call.Name)
		}
	}

	completed := time.Now()
	if result.Timing.StartedAt.IsZero() && result.Timing.DurationMs == 0 {
		result.Timing = toolcall.Timing{
			StartedAt:   start,
			CompletedAt: completed,
			DurationMs:  completed.Sub(start).Milliseconds(),
		}
	}
	if result.ToolName == "" {
		result.ToolName = call.Name
	}
	return result
}

func splitOutcomes(results []toolcall.ToolResult) (succeeded, failed []string) {
	for _, r := range results {
		if r.Success {
			succeeded = append(succeeded, r.ToolName)
		} else {
			failed = append(failed, r.ToolName)
		}
	}
	return succeeded, failed
}
