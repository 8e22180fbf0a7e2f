package main

import (
	"github.com/google/uuid"

	"github.com/sipeed/toolcore/internal/analyzer"
	"github.com/sipeed/toolcore/internal/cache"
	"github.com/sipeed/toolcore/internal/config"
	"github.com/sipeed/toolcore/internal/session"
	"github.com/sipeed/toolcore/internal/store"
	"github.com/sipeed/toolcore/internal/toolcall"
	"github.com/sipeed/toolcore/internal/tools"
)

// app bundles every long-lived component the CLI subcommands share, built
// once from the environment (or defaults) per invocation.
type app struct {
	parallelCfg config.ParallelExecutionConfig
	cacheCfg    config.CacheConfig
	truncCfg    config.TruncatorConfig
	sessionCfg  config.SessionConfig

	cache    *cache.Cache
	sessions *session.Manager
	registry *tools.Registry
	store    *store.Store // optional, nil unless --db is given
}

func newApp(dbPath string) (*app, error) {
	p, c, t, s, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	a := &app{
		parallelCfg: p,
		cacheCfg:    c,
		truncCfg:    t,
		sessionCfg:  s,
		cache:       cache.New(c),
		sessions:    session.NewManager(s.RecentErrorCapacity),
		registry:    tools.NewRegistry(tools.HostFS{}, p.ToolTimeout()),
	}

	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, err
		}
		a.store = st
	}

	return a, nil
}

func (a *app) analyzerConfig() analyzer.Config {
	sequential := make([]toolcall.Category, 0, len(a.parallelCfg.SequentialCategories))
	for _, c := range a.parallelCfg.SequentialCategories {
		sequential = append(sequential, toolcall.Category(c))
	}
	return analyzer.NewConfig(a.parallelCfg.Enabled, sequential, toolcall.DefaultCategorizer)
}

// newCallID generates a fresh call identifier for tool calls read without
// one already assigned.
func newCallID() string {
	return uuid.NewString()
}
