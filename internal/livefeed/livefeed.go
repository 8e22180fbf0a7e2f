// Package livefeed broadcasts one JSON event per completed ExecutionGroup
// to any connected WebSocket client, e.g. a dashboard watching dispatch
// activity live.
package livefeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sipeed/toolcore/internal/corelog"
	"github.com/sipeed/toolcore/internal/toolcall"
)

// GroupEvent is the JSON payload broadcast after a group finishes.
type GroupEvent struct {
	SessionID    string   `json:"session_id"`
	GroupIndex   int      `json:"group_index"`
	IsParallel   bool     `json:"is_parallel"`
	ToolNames    []string `json:"tool_names"`
	Succeeded    []string `json:"succeeded"`
	Failed       []string `json:"failed"`
	DurationMs   int64    `json:"duration_ms"`
	EmittedAtUTC string   `json:"emitted_at_utc"`
}

// Feed is a broadcast hub: any number of WebSocket clients can subscribe,
// and Broadcast fans a single event out to all of them.
type Feed struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*websocket.Conn]struct{}
}

func NewFeed() *Feed {
	return &Feed{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// HandleWS upgrades the HTTP request to a WebSocket connection and
// registers it as a broadcast subscriber until it disconnects.
func (f *Feed) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		corelog.ErrorCF("livefeed", "upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	f.mu.Lock()
	f.clients[conn] = struct{}{}
	f.mu.Unlock()

	// Drain and discard inbound traffic; this is a publish-only feed, but
	// we must read to detect disconnects.
	go func() {
		defer f.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (f *Feed) remove(conn *websocket.Conn) {
	f.mu.Lock()
	delete(f.clients, conn)
	f.mu.Unlock()
	conn.Close()
}

// Broadcast sends event to every connected client, dropping any that fail
// to write (they're removed from the client set and closed).
func (f *Feed) Broadcast(event GroupEvent) {
	event.EmittedAtUTC = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(event)
	if err != nil {
		corelog.ErrorCF("livefeed", "failed to marshal event", map[string]any{"error": err.Error()})
		return
	}

	f.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(f.clients))
	for c := range f.clients {
		conns = append(conns, c)
	}
	f.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			f.remove(c)
		}
	}
}

// EventFromGroup builds a GroupEvent from a completed group's annotated
// calls and their corresponding results.
func EventFromGroup(sessionID string, groupIndex int, group toolcall.ExecutionGroup, results []toolcall.ToolResult, durationMs int64) GroupEvent {
	names := make([]string, 0, len(group.Calls))
	var succeeded, failed []string
	for _, ac := range group.Calls {
		names = append(names, ac.Call.Name)
		if ac.Index < len(results) {
			r := results[ac.Index]
			if r.Success {
				succeeded = append(succeeded, r.ToolName)
			} else {
				failed = append(failed, r.ToolName)
			}
		}
	}
	return GroupEvent{
		SessionID:  sessionID,
		GroupIndex: groupIndex,
		IsParallel: group.IsParallel,
		ToolNames:  names,
		Succeeded:  succeeded,
		Failed:     failed,
		DurationMs: durationMs,
	}
}
