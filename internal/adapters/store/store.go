package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
)

// Store reads sessions and writes scored snapshots.
type Store struct {
	db *sql.DB
}

// New wraps an opened database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetByID returns the session record, or ErrSessionNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (model.SessionRecord, error) {
	var (
		rec                  model.SessionRecord
		completed, excluded  int
		itemsJSON, ctxsJSON  string
		submittedAt          sql.NullInt64
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, instrument, completed, excluded, items_json, contexts_json, submitted_at
		 FROM sessions WHERE id = ?`, id)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Instrument, &completed, &excluded, &itemsJSON, &ctxsJSON, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionRecord{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return model.SessionRecord{}, fmt.Errorf("load session %s: %w", id, err)
	}
	rec.Completed = completed != 0
	rec.Excluded = excluded != 0
	if submittedAt.Valid {
		rec.SubmittedAt = time.Unix(submittedAt.Int64, 0).UTC()
	}
	if err := json.Unmarshal([]byte(itemsJSON), &rec.Items); err != nil {
		return model.SessionRecord{}, fmt.Errorf("decode items for session %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(ctxsJSON), &rec.ContextResp); err != nil {
		return model.SessionRecord{}, fmt.Errorf("decode context responses for session %s: %w", id, err)
	}
	return rec, nil
}

// SaveSession upserts a session record; used by seeding tools and tests.
func (s *Store) SaveSession(ctx context.Context, rec model.SessionRecord) error {
	itemsJSON, err := json.Marshal(rec.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	ctxsJSON, err := json.Marshal(rec.ContextResp)
	if err != nil {
		return fmt.Errorf("encode context responses: %w", err)
	}
	var submittedAt any
	if !rec.SubmittedAt.IsZero() {
		submittedAt = rec.SubmittedAt.Unix()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, instrument, completed, excluded, items_json, contexts_json, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = excluded.user_id, instrument = excluded.instrument,
		   completed = excluded.completed, excluded = excluded.excluded,
		   items_json = excluded.items_json, contexts_json = excluded.contexts_json,
		   submitted_at = excluded.submitted_at`,
		rec.ID, rec.UserID, rec.Instrument, boolInt(rec.Completed), boolInt(rec.Excluded),
		string(itemsJSON), string(ctxsJSON), submittedAt)
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

// SaveSnapshot persists the full scored snapshot in one transaction. Every
// write is an upsert keyed by session, so concurrent or repeated rescoring
// converges to the same rows.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, sc := range snap.Scales {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scale_scores (session_id, scale, raw) VALUES (?, ?, ?)
			 ON CONFLICT(session_id, scale) DO UPDATE SET raw = excluded.raw`,
			sc.SessionID, string(sc.Scale), sc.Raw); err != nil {
			return fmt.Errorf("save scale score %s/%s: %w", sc.SessionID, sc.Scale, err)
		}
	}

	if snap.Combination != nil {
		c := snap.Combination
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO combination_scores (session_id, acce_raw, aero_raw) VALUES (?, ?, ?)
			 ON CONFLICT(session_id) DO UPDATE SET acce_raw = excluded.acce_raw, aero_raw = excluded.aero_raw`,
			c.SessionID, c.ACCERaw, c.AERORaw); err != nil {
			return fmt.Errorf("save combination scores %s: %w", c.SessionID, err)
		}
	}

	if snap.Style != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO style_assignments (session_id, style) VALUES (?, ?)
			 ON CONFLICT(session_id) DO UPDATE SET style = excluded.style`,
			snap.Style.SessionID, string(snap.Style.Style)); err != nil {
			return fmt.Errorf("save style assignment %s: %w", snap.Style.SessionID, err)
		}
	}

	sources := make(map[types.ScaleCode]string, len(snap.Percentiles))
	for _, rec := range snap.Percentiles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO percentile_records (session_id, scale, percentile, source_tag, source_kind, norm_group, truncated)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(session_id, scale) DO UPDATE SET
			   percentile = excluded.percentile, source_tag = excluded.source_tag,
			   source_kind = excluded.source_kind, norm_group = excluded.norm_group,
			   truncated = excluded.truncated`,
			rec.SessionID, string(rec.Scale), nullable(rec.Percentile), rec.SourceTag,
			string(rec.SourceKind), rec.NormGroup, boolInt(rec.Truncated)); err != nil {
			return fmt.Errorf("save percentile record %s/%s: %w", rec.SessionID, rec.Scale, err)
		}
		sources[rec.Scale] = rec.SourceTag
	}

	if len(snap.Percentiles) > 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO norm_summaries (session_id, ce_source, ro_source, ac_source, ae_source, acce_source, aero_source, used_fallback_any)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(session_id) DO UPDATE SET
			   ce_source = excluded.ce_source, ro_source = excluded.ro_source,
			   ac_source = excluded.ac_source, ae_source = excluded.ae_source,
			   acce_source = excluded.acce_source, aero_source = excluded.aero_source,
			   used_fallback_any = excluded.used_fallback_any`,
			snap.SessionID,
			sources[types.ScaleCE], sources[types.ScaleRO], sources[types.ScaleAC],
			sources[types.ScaleAE], sources[types.ScaleACCE], sources[types.ScaleAERO],
			boolInt(snap.UsedFallbackAny)); err != nil {
			return fmt.Errorf("save norm summary %s: %w", snap.SessionID, err)
		}
	}

	for _, prov := range snap.Provenance {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scale_provenance (session_id, scale, raw, percentile, tag, source_kind, norm_group, truncated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(session_id, scale) DO UPDATE SET
			   raw = excluded.raw, percentile = excluded.percentile, tag = excluded.tag,
			   source_kind = excluded.source_kind, norm_group = excluded.norm_group,
			   truncated = excluded.truncated`,
			prov.SessionID, string(prov.Scale), prov.Raw, nullable(prov.Percentile),
			prov.Tag, string(prov.SourceKind), prov.NormGroup, boolInt(prov.Truncated)); err != nil {
			return fmt.Errorf("save provenance %s/%s: %w", prov.SessionID, prov.Scale, err)
		}
	}

	for _, cs := range snap.Contexts {
		// First computed value wins; reprocessing never overwrites it.
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO context_scores (session_id, context, raw) VALUES (?, ?, ?)
			 ON CONFLICT(session_id, context) DO NOTHING`,
			cs.SessionID, string(cs.Context), cs.Raw); err != nil {
			return fmt.Errorf("save context score %s/%s: %w", cs.SessionID, cs.Context, err)
		}
	}

	if snap.Flexibility != nil {
		f := snap.Flexibility
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO flexibility_index (session_id, w, score, percentile, level, norm_group)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(session_id) DO UPDATE SET
			   w = excluded.w, score = excluded.score, percentile = excluded.percentile,
			   level = excluded.level, norm_group = excluded.norm_group`,
			f.SessionID, f.W, f.Score, nullable(f.Percentile), nullableStr(f.Level), nullableStr(f.NormGroup)); err != nil {
			return fmt.Errorf("save flexibility index %s: %w", f.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", snap.SessionID, err)
	}
	return nil
}

// ScaleScores returns the persisted raw scores in canonical scale order.
func (s *Store) ScaleScores(ctx context.Context, sessionID string) ([]model.ScaleScore, error) {
	out := make([]model.ScaleScore, 0, len(types.BasicModes()))
	for _, mode := range types.BasicModes() {
		var raw float64
		err := s.db.QueryRowContext(ctx,
			`SELECT raw FROM scale_scores WHERE session_id = ? AND scale = ?`,
			sessionID, string(mode)).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load scale score %s/%s: %w", sessionID, mode, err)
		}
		out = append(out, model.ScaleScore{SessionID: sessionID, Scale: mode, Raw: raw})
	}
	return out, nil
}

// ContextScores returns the persisted context scores in canonical order.
func (s *Store) ContextScores(ctx context.Context, sessionID string) ([]model.ContextScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT context, raw FROM context_scores WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load context scores %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	byName := make(map[types.Context]float64, len(types.Contexts()))
	for rows.Next() {
		var name string
		var raw float64
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scan context score %s: %w", sessionID, err)
		}
		byName[types.Context(name)] = raw
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load context scores %s: %w", sessionID, err)
	}

	out := make([]model.ContextScore, 0, len(byName))
	for _, name := range types.Contexts() {
		raw, ok := byName[name]
		if !ok {
			continue
		}
		out = append(out, model.ContextScore{SessionID: sessionID, Context: name, Raw: raw})
	}
	return out, nil
}

// StyleAssignment returns the persisted style, or ErrSessionNotFound when
// the session has no assignment.
func (s *Store) StyleAssignment(ctx context.Context, sessionID string) (model.StyleAssignment, error) {
	var label string
	err := s.db.QueryRowContext(ctx,
		`SELECT style FROM style_assignments WHERE session_id = ?`, sessionID).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StyleAssignment{}, fmt.Errorf("style for session %s: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return model.StyleAssignment{}, fmt.Errorf("load style %s: %w", sessionID, err)
	}
	return model.StyleAssignment{SessionID: sessionID, Style: types.Style(label)}, nil
}

// Acquire takes the per-session scoring lock and returns a release func.
// A held lock yields ErrSessionLocked.
func (s *Store) Acquire(ctx context.Context, sessionID string) (func(), error) {
	token := uuid.NewString()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO session_locks (session_id, token, acquired_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		sessionID, token, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("acquire lock for %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("acquire lock for %s: %w", sessionID, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionLocked)
	}
	release := func() {
		_, _ = s.db.Exec(`DELETE FROM session_locks WHERE session_id = ? AND token = ?`, sessionID, token)
	}
	return release, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
