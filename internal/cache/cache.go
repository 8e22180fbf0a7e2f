// Package cache is a size-bounded, TTL-governed, optionally compressed map
// keyed by (tool, normalized arguments, workspace), invalidated by writes.
package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sipeed/toolcore/internal/config"
	"github.com/sipeed/toolcore/internal/corelog"
	"github.com/sipeed/toolcore/internal/toolcall"
)

// entry is a single cached tool result. payload holds either the raw bytes
// or a gzip-compressed variant behind the compressed flag; compression is
// never exposed to callers.
type entry struct {
	key          string
	tool         string
	payload      []byte
	compressed   bool
	rawSize      int
	result       toolcall.ToolResult // Output is always cleared; payload carries it
	timestamp    time.Time
	hitCount     int
	sessionID    string
}

// Stats summarizes cache effectiveness for telemetry and the CLI.
type Stats struct {
	Hits                   int64
	Misses                 int64
	HitRate                float64
	Size                   int
	MaxSize                int
	ByTool                 map[string]int
	EstimatedTokensSaved   int64
	CompressedEntries      int
	CompressionBytesSaved  int64
	SessionsWithCache      int
}

// Cache is the process-wide result cache.
type Cache struct {
	mu      sync.RWMutex
	cfg     config.CacheConfig
	entries map[string]*entry

	hits   int64
	misses int64
	compressionBytesSaved int64
}

func New(cfg config.CacheConfig) *Cache {
	cacheable := make(map[string]struct{}, len(cfg.CacheableTools))
	for _, t := range cfg.CacheableTools {
		cacheable[t] = struct{}{}
	}
	invalidators := make(map[string]struct{}, len(cfg.InvalidatorTools))
	for _, t := range cfg.InvalidatorTools {
		invalidators[t] = struct{}{}
	}
	return &Cache{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
}

// Key builds the canonical cache key: workspace (or "global"), tool, and
// sorted-key-JSON of arguments. Object keys sort; arrays keep their
// original order because json.Marshal never reorders slice elements.
func Key(workspace, tool string, args map[string]any) string {
	ws := workspace
	if ws == "" {
		ws = "global"
	}
	argsJSON := canonicalJSON(args)
	return ws + ":" + tool + ":" + argsJSON
}

func canonicalJSON(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(args[k])
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.String()
}

// IsCacheable reports whether tool belongs to the configured read-set.
func (c *Cache) IsCacheable(tool string) bool {
	if !c.cfg.Enabled {
		return false
	}
	for _, t := range c.cfg.CacheableTools {
		if t == tool {
			return true
		}
	}
	return false
}

// IsInvalidator reports whether a successful completion of tool should
// purge cache entries.
func (c *Cache) IsInvalidator(tool string) bool {
	for _, t := range c.cfg.InvalidatorTools {
		if t == tool {
			return true
		}
	}
	return false
}

// Get returns a cached success result, or (zero, false) on a miss or
// expiry. It never returns a failure result, because Set never stores one.
func (c *Cache) Get(tool string, args map[string]any, workspace string) (toolcall.ToolResult, bool) {
	key := Key(workspace, tool, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return toolcall.ToolResult{}, false
	}

	ttl := c.cfg.TTLFor(tool)
	if time.Since(e.timestamp) > ttl {
		delete(c.entries, key)
		c.misses++
		return toolcall.ToolResult{}, false
	}

	e.hitCount++
	c.hits++

	result := e.result
	output, err := decode(e)
	if err != nil {
		corelog.ErrorCF("cache", "failed to decode cached payload", map[string]any{"tool": tool, "error": err.Error()})
		delete(c.entries, key)
		c.misses++
		return toolcall.ToolResult{}, false
	}
	result.Output = output
	return result, true
}

// Set stores result iff it is cacheable (IsCacheable(tool)), the result
// succeeded, and the cache is enabled. Failures are never cached.
func (c *Cache) Set(tool string, args map[string]any, result toolcall.ToolResult, workspace, sessionID string) {
	if !c.cfg.Enabled || !c.IsCacheable(tool) || !result.Success {
		return
	}

	key := Key(workspace, tool, args)
	payload, compressed, rawSize := encode([]byte(result.Output), c.cfg)

	c.mu.Lock()
	defer c.mu.Unlock()

	if compressed {
		c.compressionBytesSaved += int64(rawSize - len(payload))
	}

	stored := result
	stored.Output = "" // the payload carries the output; avoid double storage

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		c.evictLocked()
	}

	c.entries[key] = &entry{
		key:        key,
		tool:       tool,
		payload:    payload,
		compressed: compressed,
		rawSize:    rawSize,
		result:     stored,
		timestamp:  time.Now(),
		sessionID:  sessionID,
	}
}

// evictLocked removes the lowest-value entry: score = hitCount - age/ttl,
// ties broken by oldest timestamp.
func (c *Cache) evictLocked() {
	var victimKey string
	var victimScore float64
	var victimTime time.Time
	first := true

	now := time.Now()
	for key, e := range c.entries {
		ttl := c.cfg.TTLFor(e.tool)
		if ttl <= 0 {
			ttl = c.cfg.TTL()
		}
		age := now.Sub(e.timestamp)
		ageRatio := 0.0
		if ttl.Seconds() > 0 {
			ageRatio = age.Seconds() / ttl.Seconds()
		}
		score := float64(e.hitCount) - ageRatio

		if first || score < victimScore || (score == victimScore && e.timestamp.Before(victimTime)) {
			victimKey = key
			victimScore = score
			victimTime = e.timestamp
			first = false
		}
	}

	if victimKey != "" {
		delete(c.entries, victimKey)
	}
}

// InvalidatePath removes every entry whose key contains path, returning the
// count removed.
func (c *Cache) InvalidatePath(path string) int {
	if path == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.Contains(key, path) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// InvalidateTool removes every entry for a given tool.
func (c *Cache) InvalidateTool(tool string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.tool == tool {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// ClearSession removes every entry tagged with sessionID.
func (c *Cache) ClearSession(sessionID string) (entriesCleared int, bytesFreed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if e.sessionID == sessionID {
			bytesFreed += int64(len(e.payload))
			delete(c.entries, key)
			entriesCleared++
		}
	}
	return entriesCleared, bytesFreed
}

// Cleanup removes every TTL-expired entry and returns the count removed.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range c.entries {
		ttl := c.cfg.TTLFor(e.tool)
		if now.Sub(e.timestamp) > ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byTool := make(map[string]int)
	compressedEntries := 0
	sessions := make(map[string]struct{})
	var tokensSaved int64

	for _, e := range c.entries {
		byTool[e.tool]++
		if e.compressed {
			compressedEntries++
		}
		if e.sessionID != "" {
			sessions[e.sessionID] = struct{}{}
		}
		tokensSaved += int64(e.hitCount) * int64((e.rawSize+3)/4)
	}

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Hits:                  c.hits,
		Misses:                c.misses,
		HitRate:               hitRate,
		Size:                  len(c.entries),
		MaxSize:               c.cfg.MaxEntries,
		ByTool:                byTool,
		EstimatedTokensSaved:  tokensSaved,
		CompressedEntries:     compressedEntries,
		CompressionBytesSaved: c.compressionBytesSaved,
		SessionsWithCache:     len(sessions),
	}
}

// encode compresses payload when it exceeds the configured threshold and
// compression is enabled. The round trip through decode is always lossless.
func encode(payload []byte, cfg config.CacheConfig) (out []byte, compressed bool, rawSize int) {
	rawSize = len(payload)
	if !cfg.EnableCompression || rawSize <= cfg.CompressionThreshold {
		return payload, false, rawSize
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return payload, false, rawSize
	}
	if err := gz.Close(); err != nil {
		return payload, false, rawSize
	}
	if buf.Len() >= rawSize {
		// Compression didn't help; store inline.
		return payload, false, rawSize
	}
	return buf.Bytes(), true, rawSize
}

func decode(e *entry) (string, error) {
	if !e.compressed {
		return string(e.payload), nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(e.payload))
	if err != nil {
		return "", err
	}
	defer gz.Close()
	data, err := io.ReadAll(gz)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
