// Package store is a write-behind sqlite mirror for session snapshots and
// cache statistics. It is never on the hot path of a tool call: the
// janitor writes to it periodically, and the dispatcher and cache never
// read it. RecentCacheSnapshots reads cache snapshots back, but no CLI
// command or dashboard calls it.
package store

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists periodic snapshots of cache and session telemetry.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) a sqlite database at dbPath and ensures its
// schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			taken_at DATETIME NOT NULL,
			hits INTEGER NOT NULL,
			misses INTEGER NOT NULL,
			hit_rate REAL NOT NULL,
			size INTEGER NOT NULL,
			max_size INTEGER NOT NULL,
			compressed_entries INTEGER NOT NULL,
			compression_bytes_saved INTEGER NOT NULL,
			estimated_tokens_saved INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			taken_at DATETIME NOT NULL,
			active_sessions INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CacheSnapshot is one point-in-time record of cache.Stats.
type CacheSnapshot struct {
	TakenAt               time.Time
	Hits, Misses          int64
	HitRate               float64
	Size, MaxSize         int
	CompressedEntries     int
	CompressionBytesSaved int64
	EstimatedTokensSaved  int64
}

// RecordCacheSnapshot appends one row; it never updates or deletes, so the
// table is an append-only history of cache effectiveness over time.
func (s *Store) RecordCacheSnapshot(ctx context.Context, snap CacheSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_snapshots
			(taken_at, hits, misses, hit_rate, size, max_size, compressed_entries, compression_bytes_saved, estimated_tokens_saved)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.TakenAt, snap.Hits, snap.Misses, snap.HitRate, snap.Size, snap.MaxSize,
		snap.CompressedEntries, snap.CompressionBytesSaved, snap.EstimatedTokensSaved,
	)
	return err
}

// RecordSessionSnapshot appends a point-in-time active-session count.
func (s *Store) RecordSessionSnapshot(ctx context.Context, takenAt time.Time, activeSessions int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_snapshots (taken_at, active_sessions) VALUES (?, ?)`,
		takenAt, activeSessions,
	)
	return err
}

// RecentCacheSnapshots returns up to limit of the most recent cache
// snapshots, newest first.
func (s *Store) RecentCacheSnapshots(ctx context.Context, limit int) ([]CacheSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT taken_at, hits, misses, hit_rate, size, max_size, compressed_entries, compression_bytes_saved, estimated_tokens_saved
		 FROM cache_snapshots ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CacheSnapshot
	for rows.Next() {
		var snap CacheSnapshot
		if err := rows.Scan(&snap.TakenAt, &snap.Hits, &snap.Misses, &snap.HitRate, &snap.Size, &snap.MaxSize,
			&snap.CompressedEntries, &snap.CompressionBytesSaved, &snap.EstimatedTokensSaved); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
