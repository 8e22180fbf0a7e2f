package session

import "testing"

func TestManager_GetAgentControlledToolsUnionsRequestedAndDiscovered(t *testing.T) {
	m := NewManager(10)
	m.AddRequested("s1", "read_file", "agent asked for it")
	m.AddDiscovered("s1", "grep")

	got := m.GetAgentControlledTools("s1")
	if len(got) != 2 || got[0] != "grep" || got[1] != "read_file" {
		t.Fatalf("expected sorted [grep read_file], got %v", got)
	}
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m := NewManager(10)
	m.AddRequested("s1", "read_file", "")
	m.AddRequested("s2", "write_file", "")

	s1Tools := m.GetAgentControlledTools("s1")
	s2Tools := m.GetAgentControlledTools("s2")

	if len(s1Tools) != 1 || s1Tools[0] != "read_file" {
		t.Fatalf("s1 leaked state from s2: %v", s1Tools)
	}
	if len(s2Tools) != 1 || s2Tools[0] != "write_file" {
		t.Fatalf("s2 leaked state from s1: %v", s2Tools)
	}
}

func TestManager_RecentErrorsRingBufferOverwritesOldest(t *testing.T) {
	m := NewManager(3)
	m.RecordError("s1", "t1", "err1")
	m.RecordError("s1", "t2", "err2")
	m.RecordError("s1", "t3", "err3")
	m.RecordError("s1", "t4", "err4")

	errs := m.GetRecentErrors("s1")
	if len(errs) != 3 {
		t.Fatalf("expected ring buffer capped at 3, got %d", len(errs))
	}
	if errs[0].ToolName != "t2" || errs[2].ToolName != "t4" {
		t.Fatalf("expected oldest (t1) evicted, got %+v", errs)
	}
}

func TestManager_RecentErrorsChronologicalOrder(t *testing.T) {
	m := NewManager(5)
	m.RecordError("s1", "a", "e1")
	m.RecordError("s1", "b", "e2")
	m.RecordError("s1", "c", "e3")

	errs := m.GetRecentErrors("s1")
	for i, name := range []string{"a", "b", "c"} {
		if errs[i].ToolName != name {
			t.Fatalf("expected chronological order a,b,c; got %+v", errs)
		}
	}
}

func TestManager_CleanupSessionRemovesState(t *testing.T) {
	m := NewManager(10)
	m.AddRequested("s1", "read_file", "")
	m.RecordError("s1", "read_file", "boom")

	result := m.CleanupSession("s1")
	if result.RequestedCleared != 1 || result.ErrorsCleared != 1 {
		t.Fatalf("expected cleanup to report cleared counts, got %+v", result)
	}

	if tools := m.GetAgentControlledTools("s1"); len(tools) != 0 {
		t.Fatalf("expected session state to be gone after cleanup, got %v", tools)
	}
	if m.ActiveSessionCount() != 0 {
		t.Fatalf("expected 0 active sessions after cleanup, got %d", m.ActiveSessionCount())
	}
}

func TestManager_CleanupAllSessionsClearsEverything(t *testing.T) {
	m := NewManager(10)
	m.AddRequested("s1", "a", "")
	m.AddRequested("s2", "b", "")

	results := m.CleanupAllSessions()
	if len(results) != 2 {
		t.Fatalf("expected 2 cleanup results, got %d", len(results))
	}
	if m.ActiveSessionCount() != 0 {
		t.Fatalf("expected 0 active sessions, got %d", m.ActiveSessionCount())
	}
}

func TestManager_CleanupUnknownSessionIsANoop(t *testing.T) {
	m := NewManager(10)
	result := m.CleanupSession("nonexistent")
	if result.RequestedCleared != 0 || result.BytesFreed != 0 {
		t.Fatalf("expected zero-value result for unknown session, got %+v", result)
	}
}

func TestManager_ActiveSessionCountTracksDistinctSessions(t *testing.T) {
	m := NewManager(10)
	m.AddRequested("s1", "a", "")
	m.AddRequested("s1", "b", "") // same session, different tool
	m.AddRequested("s2", "c", "")

	if got := m.ActiveSessionCount(); got != 2 {
		t.Fatalf("expected 2 active sessions, got %d", got)
	}
}
