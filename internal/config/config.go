// Package config holds the execution core's configuration structs. Fields
// carry env tags so github.com/caarlos0/env/v11 can populate them directly
// from the process environment, the way the rest of the codebase configures
// itself; json tags are kept for a future file-based loader.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// ParallelExecutionConfig controls the dispatcher.
type ParallelExecutionConfig struct {
	MaxConcurrency      int           `json:"max_concurrency" env:"TOOLCORE_MAX_CONCURRENCY" envDefault:"5"`
	Enabled             bool          `json:"enabled" env:"TOOLCORE_PARALLEL_ENABLED" envDefault:"true"`
	ToolTimeoutMs       int           `json:"tool_timeout_ms" env:"TOOLCORE_TOOL_TIMEOUT_MS" envDefault:"120000"`
	SequentialCategories []string     `json:"sequential_categories" env:"TOOLCORE_SEQUENTIAL_CATEGORIES" envDefault:"terminal" envSeparator:","`
}

func (c ParallelExecutionConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutMs) * time.Millisecond
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Enabled               bool              `json:"enabled" env:"TOOLCORE_CACHE_ENABLED" envDefault:"true"`
	MaxEntries            int               `json:"max_entries" env:"TOOLCORE_CACHE_MAX_ENTRIES" envDefault:"100"`
	TTLMs                 int               `json:"ttl_ms" env:"TOOLCORE_CACHE_TTL_MS" envDefault:"300000"`
	CacheableTools        []string          `json:"cacheable_tools" env:"TOOLCORE_CACHEABLE_TOOLS" envSeparator:","`
	InvalidatorTools      []string          `json:"invalidator_tools" env:"TOOLCORE_INVALIDATOR_TOOLS" envSeparator:","`
	CompressionThreshold  int               `json:"compression_threshold" env:"TOOLCORE_CACHE_COMPRESSION_THRESHOLD" envDefault:"100"`
	EnableCompression     bool              `json:"enable_compression" env:"TOOLCORE_CACHE_COMPRESSION_ENABLED" envDefault:"true"`
	TTLOverrideMs         map[string]int    `json:"-" env:"-"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

// TTLFor returns the configured TTL for a specific tool, falling back to the
// default when no override exists.
func (c CacheConfig) TTLFor(tool string) time.Duration {
	if ms, ok := c.TTLOverrideMs[tool]; ok {
		return time.Duration(ms) * time.Millisecond
	}
	return c.TTL()
}

// TruncatorConfig controls the output truncator.
type TruncatorConfig struct {
	MaxTokens int `json:"max_tokens" env:"TOOLCORE_TRUNCATOR_MAX_TOKENS" envDefault:"2000"`
}

// SessionConfig controls session tool state bookkeeping.
type SessionConfig struct {
	RecentErrorCapacity int `json:"recent_error_capacity" env:"TOOLCORE_SESSION_ERROR_CAPACITY" envDefault:"10"`
}

// DefaultCacheableTools is the default read-class tool set eligible for caching.
var DefaultCacheableTools = []string{"read", "read_file", "ls", "list_dir", "glob", "grep", "symbols"}

// DefaultInvalidatorTools is the default write-class tool set that purges the cache.
var DefaultInvalidatorTools = []string{"edit", "write", "create_file", "run", "kill_terminal"}

// Defaults returns the baseline configuration used when the caller hasn't
// customized anything.
func Defaults() (ParallelExecutionConfig, CacheConfig, TruncatorConfig, SessionConfig) {
	p := ParallelExecutionConfig{
		MaxConcurrency:        5,
		Enabled:               true,
		ToolTimeoutMs:         120_000,
		SequentialCategories:  []string{"terminal"},
	}
	c := CacheConfig{
		Enabled:              true,
		MaxEntries:           100,
		TTLMs:                300_000,
		CacheableTools:       append([]string(nil), DefaultCacheableTools...),
		InvalidatorTools:     append([]string(nil), DefaultInvalidatorTools...),
		CompressionThreshold: 100,
		EnableCompression:    true,
	}
	t := TruncatorConfig{MaxTokens: 2000}
	s := SessionConfig{RecentErrorCapacity: 10}
	return p, c, t, s
}

// FromEnv loads configuration from the process environment, falling back to
// Defaults() for any field without a corresponding variable set.
func FromEnv() (ParallelExecutionConfig, CacheConfig, TruncatorConfig, SessionConfig, error) {
	p, c, t, s := Defaults()
	if err := env.Parse(&p); err != nil {
		return p, c, t, s, err
	}
	if err := env.Parse(&c); err != nil {
		return p, c, t, s, err
	}
	if err := env.Parse(&t); err != nil {
		return p, c, t, s, err
	}
	if err := env.Parse(&s); err != nil {
		return p, c, t, s, err
	}
	if len(c.CacheableTools) == 0 {
		c.CacheableTools = append([]string(nil), DefaultCacheableTools...)
	}
	if len(c.InvalidatorTools) == 0 {
		c.InvalidatorTools = append([]string(nil), DefaultInvalidatorTools...)
	}
	return p, c, t, s, nil
}
