package analyzer

import (
	"testing"

	"github.com/sipeed/toolcore/internal/toolcall"
)

func defaultConfig() Config {
	return NewConfig(true, []toolcall.Category{toolcall.CategoryTerminal}, toolcall.DefaultCategorizer)
}

func TestAnalyze_IndependentReadsHaveNoDependencies(t *testing.T) {
	calls := []toolcall.ToolCall{
		{Name: "read_file", Arguments: map[string]any{"path": "a.go"}},
		{Name: "read_file", Arguments: map[string]any{"path": "b.go"}},
	}
	annotated := Analyze(calls, defaultConfig())

	for _, ac := range annotated {
		if len(ac.Dependencies) != 0 {
			t.Errorf("call %d: expected no dependencies, got %v", ac.Index, ac.Dependencies)
		}
		if !ac.CanParallelize {
			t.Errorf("call %d: expected CanParallelize=true", ac.Index)
		}
	}
}

func TestAnalyze_WriteDependsOnPriorReadOfSamePath(t *testing.T) {
	calls := []toolcall.ToolCall{
		{Name: "read_file", Arguments: map[string]any{"path": "a.go"}},
		{Name: "write_file", Arguments: map[string]any{"path": "a.go"}},
	}
	annotated := Analyze(calls, defaultConfig())

	if got := annotated[1].Dependencies; len(got) != 1 || got[0] != 0 {
		t.Fatalf("expected write to depend on [0], got %v", got)
	}
	if annotated[1].CanParallelize {
		t.Error("expected write with a dependency to not be parallelizable")
	}
}

func TestAnalyze_ReadDependsOnPriorWriteOfSamePath(t *testing.T) {
	calls := []toolcall.ToolCall{
		{Name: "write_file", Arguments: map[string]any{"path": "a.go"}},
		{Name: "read_file", Arguments: map[string]any{"path": "a.go"}},
	}
	annotated := Analyze(calls, defaultConfig())

	if got := annotated[1].Dependencies; len(got) != 1 || got[0] != 0 {
		t.Fatalf("expected read to depend on [0], got %v", got)
	}
}

func TestAnalyze_WriteDependsOnAllPriorWritesAndReads(t *testing.T) {
	calls := []toolcall.ToolCall{
		{Name: "read_file", Arguments: map[string]any{"path": "a.go"}},
		{Name: "write_file", Arguments: map[string]any{"path": "a.go"}},
		{Name: "write_file", Arguments: map[string]any{"path": "a.go"}},
	}
	annotated := Analyze(calls, defaultConfig())

	got := annotated[2].Dependencies
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("expected second write to depend on [0 1], got %v", got)
	}
}

func TestAnalyze_DifferentPathsAreIndependent(t *testing.T) {
	calls := []toolcall.ToolCall{
		{Name: "write_file", Arguments: map[string]any{"path": "a.go"}},
		{Name: "read_file", Arguments: map[string]any{"path": "b.go"}},
	}
	annotated := Analyze(calls, defaultConfig())

	if len(annotated[1].Dependencies) != 0 {
		t.Errorf("expected no cross-path dependency, got %v", annotated[1].Dependencies)
	}
}

func TestAnalyze_TerminalCallsAreFullySequential(t *testing.T) {
	calls := []toolcall.ToolCall{
		{Name: "read_file", Arguments: map[string]any{"path": "a.go"}},
		{Name: "run", Arguments: map[string]any{"command": "echo hi"}},
		{Name: "run", Arguments: map[string]any{"command": "echo bye"}},
	}
	annotated := Analyze(calls, defaultConfig())

	if len(annotated[1].Dependencies) != 1 {
		t.Fatalf("expected first terminal call to depend on all 1 prior call, got %v", annotated[1].Dependencies)
	}
	if len(annotated[2].Dependencies) != 2 {
		t.Fatalf("expected second terminal call to depend on all 2 prior calls, got %v", annotated[2].Dependencies)
	}
	if annotated[1].CanParallelize || annotated[2].CanParallelize {
		t.Error("terminal calls must never be marked parallelizable")
	}
}

func TestAnalyze_DisabledProducesNoDependencies(t *testing.T) {
	cfg := NewConfig(false, nil, toolcall.DefaultCategorizer)
	calls := []toolcall.ToolCall{
		{Name: "write_file", Arguments: map[string]any{"path": "a.go"}},
		{Name: "write_file", Arguments: map[string]any{"path": "a.go"}},
	}
	annotated := Analyze(calls, cfg)

	for _, ac := range annotated {
		if ac.Dependencies != nil {
			t.Errorf("expected nil dependencies when disabled, got %v", ac.Dependencies)
		}
		if ac.CanParallelize {
			t.Error("expected CanParallelize=false when disabled")
		}
	}
}

func TestAnalyze_IsDeterministic(t *testing.T) {
	calls := []toolcall.ToolCall{
		{Name: "read_file", Arguments: map[string]any{"path": "a.go"}},
		{Name: "write_file", Arguments: map[string]any{"path": "a.go"}},
		{Name: "read_file", Arguments: map[string]any{"path": "b.go"}},
		{Name: "run", Arguments: map[string]any{"command": "ls"}},
	}
	cfg := defaultConfig()

	first := Analyze(calls, cfg)
	second := Analyze(calls, cfg)

	for i := range first {
		if len(first[i].Dependencies) != len(second[i].Dependencies) {
			t.Fatalf("non-deterministic output at index %d", i)
		}
		for j := range first[i].Dependencies {
			if first[i].Dependencies[j] != second[i].Dependencies[j] {
				t.Fatalf("non-deterministic dependency order at index %d", i)
			}
		}
	}
}
