// Package janitor runs periodic maintenance against the cache and session
// managers on a cron schedule, checking a cron expression for due-ness on
// a fixed poll tick. The sqlite mirror in internal/store is written here
// too, off the hot path.
package janitor

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/sipeed/toolcore/internal/cache"
	"github.com/sipeed/toolcore/internal/corelog"
	"github.com/sipeed/toolcore/internal/session"
	"github.com/sipeed/toolcore/internal/store"
)

// Janitor periodically sweeps expired cache entries, snapshots telemetry
// to the durable store, and reports active session counts.
type Janitor struct {
	cache       *cache.Cache
	sessions    *session.Manager
	store       *store.Store
	cronExpr    string
	pollEvery   time.Duration
	gron        gronx.Gronx
}

// New builds a Janitor that fires cronExpr (e.g. "*/5 * * * *" for every 5
// minutes). store may be nil, in which case telemetry snapshots are
// skipped and only the cache/session sweep runs.
func New(c *cache.Cache, sessions *session.Manager, st *store.Store, cronExpr string) *Janitor {
	return &Janitor{
		cache:     c,
		sessions:  sessions,
		store:     st,
		cronExpr:  cronExpr,
		pollEvery: time.Second,
		gron:      gronx.New(),
	}
}

// Run blocks, checking the cron schedule every pollEvery until ctx is
// cancelled. Each due tick runs one sweep.
func (j *Janitor) Run(ctx context.Context) {
	if !j.gron.IsValid(j.cronExpr) {
		corelog.ErrorCF("janitor", "invalid cron expression, janitor disabled", map[string]any{"expr": j.cronExpr})
		return
	}

	ticker := time.NewTicker(j.pollEvery)
	defer ticker.Stop()

	var lastFired time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := j.gron.IsDue(j.cronExpr, now)
			if err != nil {
				corelog.ErrorCF("janitor", "cron evaluation failed", map[string]any{"error": err.Error()})
				continue
			}
			// gronx resolves to minute granularity; guard against firing
			// twice within the same due minute.
			if due && now.Sub(lastFired) >= 50*time.Second {
				lastFired = now
				j.sweep(ctx, now)
			}
		}
	}
}

func (j *Janitor) sweep(ctx context.Context, now time.Time) {
	expired := j.cache.Cleanup()
	corelog.InfoCF("janitor", "cache sweep complete", map[string]any{"expired": expired})

	if j.store == nil {
		return
	}

	stats := j.cache.GetStats()
	snap := store.CacheSnapshot{
		TakenAt:               now,
		Hits:                  stats.Hits,
		Misses:                stats.Misses,
		HitRate:               stats.HitRate,
		Size:                  stats.Size,
		MaxSize:               stats.MaxSize,
		CompressedEntries:     stats.CompressedEntries,
		CompressionBytesSaved: stats.CompressionBytesSaved,
		EstimatedTokensSaved:  stats.EstimatedTokensSaved,
	}
	if err := j.store.RecordCacheSnapshot(ctx, snap); err != nil {
		corelog.ErrorCF("janitor", "failed to record cache snapshot", map[string]any{"error": err.Error()})
	}

	active := j.sessions.ActiveSessionCount()
	if err := j.store.RecordSessionSnapshot(ctx, now, active); err != nil {
		corelog.ErrorCF("janitor", "failed to record session snapshot", map[string]any{"error": err.Error()})
	}
}
