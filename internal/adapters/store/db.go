// Package store persists scored session snapshots and serves session
// records from a sqlite database conforming to the engine's output
// contract. All snapshot writes are transactional upserts keyed by
// session, so rescoring a session is idempotent.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // driver: sqlite
)

// Open opens the database and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = "file:klsi.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenDatabase, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenDatabase, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenDatabase, err)
	}
	return db, nil
}

const schema = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  instrument TEXT NOT NULL DEFAULT 'klsi.v4',
  completed INTEGER NOT NULL DEFAULT 0,
  excluded INTEGER NOT NULL DEFAULT 0,
  items_json TEXT NOT NULL DEFAULT '[]',
  contexts_json TEXT NOT NULL DEFAULT '[]',
  submitted_at INTEGER
);

CREATE TABLE IF NOT EXISTS scale_scores (
  session_id TEXT NOT NULL,
  scale TEXT NOT NULL CHECK (scale IN ('CE','RO','AC','AE')),
  raw REAL NOT NULL,
  PRIMARY KEY (session_id, scale)
);

CREATE TABLE IF NOT EXISTS combination_scores (
  session_id TEXT PRIMARY KEY,
  acce_raw REAL NOT NULL,
  aero_raw REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS style_assignments (
  session_id TEXT PRIMARY KEY,
  style TEXT NOT NULL CHECK (style IN (
    'Initiating','Experiencing','Imagining','Reflecting','Analyzing',
    'Thinking','Deciding','Acting','Balancing'
  ))
);

CREATE TABLE IF NOT EXISTS percentile_records (
  session_id TEXT NOT NULL,
  scale TEXT NOT NULL,
  percentile REAL,
  source_tag TEXT NOT NULL,
  source_kind TEXT NOT NULL CHECK (source_kind IN ('exact_norm_group','fallback_appendix')),
  norm_group TEXT NOT NULL,
  truncated INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (session_id, scale)
);

-- Wide per-session summary mirroring the reporting contract: one source
-- tag column per scale plus the aggregated low-confidence flag.
CREATE TABLE IF NOT EXISTS norm_summaries (
  session_id TEXT PRIMARY KEY,
  ce_source TEXT,
  ro_source TEXT,
  ac_source TEXT,
  ae_source TEXT,
  acce_source TEXT,
  aero_source TEXT,
  used_fallback_any INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS scale_provenance (
  session_id TEXT NOT NULL,
  scale TEXT NOT NULL,
  raw REAL NOT NULL,
  percentile REAL,
  tag TEXT NOT NULL,
  source_kind TEXT NOT NULL,
  norm_group TEXT NOT NULL,
  truncated INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (session_id, scale)
);

CREATE TABLE IF NOT EXISTS context_scores (
  session_id TEXT NOT NULL,
  context TEXT NOT NULL CHECK (context IN (
    'starting_a_new_undertaking','influencing_someone',
    'getting_to_know_someone','learning_in_a_group','planning_something',
    'analyzing_something','evaluating_an_opportunity',
    'choosing_between_alternatives'
  )),
  raw REAL NOT NULL,
  PRIMARY KEY (session_id, context)
);

CREATE TABLE IF NOT EXISTS flexibility_index (
  session_id TEXT PRIMARY KEY,
  w REAL NOT NULL,
  score REAL NOT NULL,
  percentile REAL,
  level TEXT,
  norm_group TEXT
);

CREATE TABLE IF NOT EXISTS session_locks (
  session_id TEXT PRIMARY KEY,
  token TEXT NOT NULL,
  acquired_at INTEGER NOT NULL
);
`
