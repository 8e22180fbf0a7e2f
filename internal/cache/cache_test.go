package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/toolcore/internal/config"
	"github.com/sipeed/toolcore/internal/toolcall"
)

func testConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:              true,
		MaxEntries:           3,
		TTLMs:                60_000,
		CacheableTools:       []string{"read_file"},
		InvalidatorTools:     []string{"write_file"},
		CompressionThreshold: 20,
		EnableCompression:    true,
	}
}

func TestCache_SetThenGetHits(t *testing.T) {
	c := New(testConfig())
	args := map[string]any{"path": "a.go"}
	result := toolcall.ToolResult{Success: true, Output: "package main"}

	c.Set("read_file", args, result, "ws", "sess-1")
	got, ok := c.Get("read_file", args, "ws")

	require.True(t, ok)
	assert.Equal(t, "package main", got.Output)
}

func TestCache_MissOnDifferentArgs(t *testing.T) {
	c := New(testConfig())
	c.Set("read_file", map[string]any{"path": "a.go"}, toolcall.ToolResult{Success: true, Output: "x"}, "ws", "s")

	_, ok := c.Get("read_file", map[string]any{"path": "b.go"}, "ws")
	assert.False(t, ok)
}

func TestCache_DoesNotCacheFailures(t *testing.T) {
	c := New(testConfig())
	c.Set("read_file", map[string]any{"path": "a.go"}, toolcall.ToolResult{Success: false, Output: "err"}, "ws", "s")

	_, ok := c.Get("read_file", map[string]any{"path": "a.go"}, "ws")
	assert.False(t, ok, "a failed result must never be cached")
}

func TestCache_DoesNotCacheNonCacheableTools(t *testing.T) {
	c := New(testConfig())
	c.Set("write_file", map[string]any{"path": "a.go"}, toolcall.ToolResult{Success: true, Output: "ok"}, "ws", "s")

	_, ok := c.Get("write_file", map[string]any{"path": "a.go"}, "ws")
	assert.False(t, ok, "write_file is not in CacheableTools")
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	cfg := testConfig()
	cfg.TTLMs = 1
	c := New(cfg)
	c.Set("read_file", map[string]any{"path": "a.go"}, toolcall.ToolResult{Success: true, Output: "x"}, "ws", "s")

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("read_file", map[string]any{"path": "a.go"}, "ws")
	assert.False(t, ok, "expired entry must be a miss")
}

func TestCache_EvictsWhenOverCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEntries = 2
	c := New(cfg)

	for i := 0; i < 3; i++ {
		path := string(rune('a' + i))
		c.Set("read_file", map[string]any{"path": path}, toolcall.ToolResult{Success: true, Output: "x"}, "ws", "s")
	}

	stats := c.GetStats()
	assert.LessOrEqual(t, stats.Size, 2)
}

func TestCache_InvalidatePathRemovesMatchingEntries(t *testing.T) {
	c := New(testConfig())
	c.Set("read_file", map[string]any{"path": "src/a.go"}, toolcall.ToolResult{Success: true, Output: "x"}, "ws", "s")
	c.Set("read_file", map[string]any{"path": "src/b.go"}, toolcall.ToolResult{Success: true, Output: "y"}, "ws", "s")

	removed := c.InvalidatePath("src/a.go")
	assert.Equal(t, 1, removed)

	_, ok := c.Get("read_file", map[string]any{"path": "src/a.go"}, "ws")
	assert.False(t, ok)
	_, ok = c.Get("read_file", map[string]any{"path": "src/b.go"}, "ws")
	assert.True(t, ok)
}

func TestCache_ClearSessionOnlyRemovesThatSessionsEntries(t *testing.T) {
	c := New(testConfig())
	c.Set("read_file", map[string]any{"path": "a.go"}, toolcall.ToolResult{Success: true, Output: "x"}, "ws", "s1")
	c.Set("read_file", map[string]any{"path": "b.go"}, toolcall.ToolResult{Success: true, Output: "y"}, "ws", "s2")

	n, _ := c.ClearSession("s1")
	assert.Equal(t, 1, n)

	_, ok := c.Get("read_file", map[string]any{"path": "b.go"}, "ws")
	assert.True(t, ok, "other sessions' entries must survive")
}

func TestCache_CompressionRoundTripIsLossless(t *testing.T) {
	cfg := testConfig()
	cfg.CompressionThreshold = 1
	c := New(cfg)

	original := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 200)
	c.Set("read_file", map[string]any{"path": "big.go"}, toolcall.ToolResult{Success: true, Output: original}, "ws", "s")

	got, ok := c.Get("read_file", map[string]any{"path": "big.go"}, "ws")
	require.True(t, ok)
	assert.Equal(t, original, got.Output)

	stats := c.GetStats()
	assert.Equal(t, 1, stats.CompressedEntries)
}

func TestCache_KeyIsOrderInsensitiveOverObjectFields(t *testing.T) {
	k1 := Key("ws", "read_file", map[string]any{"path": "a.go", "encoding": "utf8"})
	k2 := Key("ws", "read_file", map[string]any{"encoding": "utf8", "path": "a.go"})
	assert.Equal(t, k1, k2)
}

func TestCache_StatsReportsHitRate(t *testing.T) {
	c := New(testConfig())
	c.Set("read_file", map[string]any{"path": "a.go"}, toolcall.ToolResult{Success: true, Output: "x"}, "ws", "s")

	c.Get("read_file", map[string]any{"path": "a.go"}, "ws") // hit
	c.Get("read_file", map[string]any{"path": "missing.go"}, "ws") // miss

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}
