// Package store persists the single most recent usage snapshot so a restart
// can immediately show last-known data marked stale. Exactly one row is
// kept and replaced wholesale on every successful poll -- this is not a
// time series.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/CandyFlex/pinch/internal/usage"
)

type Store struct {
	sql *sql.DB
}

func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	return &Store{sql: conn}, nil
}

func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) Migrate() error {
	_, err := s.sql.Exec(`
		CREATE TABLE IF NOT EXISTS last_snapshot (
			id                  INTEGER PRIMARY KEY CHECK (id = 1),
			fetched_at_ms       INTEGER NOT NULL,
			five_hour_util      REAL NOT NULL,
			five_hour_reset_ms  INTEGER NOT NULL DEFAULT 0,
			seven_day_util      REAL NOT NULL,
			seven_day_reset_ms  INTEGER NOT NULL DEFAULT 0,
			sonnet_util         REAL NOT NULL,
			sonnet_reset_ms     INTEGER NOT NULL DEFAULT 0,
			extra_enabled       INTEGER NOT NULL DEFAULT 0,
			extra_util          REAL NOT NULL DEFAULT 0,
			extra_used_dollars  REAL NOT NULL DEFAULT 0,
			extra_limit_dollars REAL NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("create last_snapshot: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the stored snapshot with snap.
func (s *Store) SaveSnapshot(snap usage.Snapshot) error {
	window := func(kind usage.BucketKind) (float64, int64) {
		b, ok := snap.Bucket(kind)
		if !ok {
			return 0, 0
		}
		var resetMs int64
		if !b.ResetsAt.IsZero() {
			resetMs = b.ResetsAt.UnixMilli()
		}
		return b.Utilization, resetMs
	}
	fiveUtil, fiveReset := window(usage.Rolling5h)
	sevenUtil, sevenReset := window(usage.Opus7d)
	sonnetUtil, sonnetReset := window(usage.Sonnet7d)

	var extraUtil, extraUsed, extraLimit float64
	if b, ok := snap.Bucket(usage.ExtraCredit); ok {
		extraUtil, extraUsed, extraLimit = b.Utilization, b.UsedDollars, b.LimitDollars
	}

	_, err := s.sql.Exec(`
		INSERT OR REPLACE INTO last_snapshot (
			id, fetched_at_ms,
			five_hour_util, five_hour_reset_ms,
			seven_day_util, seven_day_reset_ms,
			sonnet_util, sonnet_reset_ms,
			extra_enabled, extra_util, extra_used_dollars, extra_limit_dollars
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.FetchedAt.UnixMilli(),
		fiveUtil, fiveReset,
		sevenUtil, sevenReset,
		sonnetUtil, sonnetReset,
		boolToInt(snap.ExtraEnabled), extraUtil, extraUsed, extraLimit,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot, or ok=false when none exists.
func (s *Store) LoadSnapshot() (usage.Snapshot, bool, error) {
	row := s.sql.QueryRow(`
		SELECT fetched_at_ms,
			five_hour_util, five_hour_reset_ms,
			seven_day_util, seven_day_reset_ms,
			sonnet_util, sonnet_reset_ms,
			extra_enabled, extra_util, extra_used_dollars, extra_limit_dollars
		FROM last_snapshot WHERE id = 1`)

	var fetchedMs, fiveReset, sevenReset, sonnetReset int64
	var fiveUtil, sevenUtil, sonnetUtil, extraUtil, extraUsed, extraLimit float64
	var extraEnabled int
	err := row.Scan(&fetchedMs,
		&fiveUtil, &fiveReset,
		&sevenUtil, &sevenReset,
		&sonnetUtil, &sonnetReset,
		&extraEnabled, &extraUtil, &extraUsed, &extraLimit)
	if err == sql.ErrNoRows {
		return usage.Snapshot{}, false, nil
	}
	if err != nil {
		return usage.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	snap := usage.Snapshot{
		FetchedAt:    time.UnixMilli(fetchedMs).UTC(),
		ExtraEnabled: extraEnabled != 0,
		Buckets: []usage.Bucket{
			{Kind: usage.Rolling5h, Utilization: fiveUtil, ResetsAt: msToTime(fiveReset)},
			{Kind: usage.Opus7d, Utilization: sevenUtil, ResetsAt: msToTime(sevenReset)},
			{Kind: usage.Sonnet7d, Utilization: sonnetUtil, ResetsAt: msToTime(sonnetReset)},
		},
	}
	if snap.ExtraEnabled {
		snap.Buckets = append(snap.Buckets, usage.Bucket{
			Kind:         usage.ExtraCredit,
			Utilization:  extraUtil,
			UsedDollars:  extraUsed,
			LimitDollars: extraLimit,
		})
	}
	return snap, true, nil
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
