// Package runtime orchestrates session scoring: it resolves the session,
// dispatches to the instrument strategy, times each phase, persists the
// finalized snapshot, and reports failures and controlled aborts with
// correlation context.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Farid-Ze/kolb-sub001/internal/adapters/reporting"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
	"github.com/Farid-Ze/kolb-sub001/pkg/logger"
	"github.com/Farid-Ze/kolb-sub001/pkg/metrics"
)

// SessionRepository is the engine's sole entry point for session data.
type SessionRepository interface {
	GetByID(ctx context.Context, id string) (model.SessionRecord, error)
}

// SnapshotWriter persists a finalized snapshot.
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
}

// Locker serializes concurrent rescoring of the same session. The engine
// requests exclusivity but does not implement it; the release func must be
// called once scoring ends.
type Locker interface {
	Acquire(ctx context.Context, sessionID string) (func(), error)
}

// Option applies a configuration option to the Runtime.
type Option func(*Runtime)

// WithSink sets the observability sink for failure and abort reports.
func WithSink(sink reporting.Sink) Option {
	return func(r *Runtime) {
		if sink != nil {
			r.sink = sink
		}
	}
}

// WithLocker sets the per-session exclusivity mechanism.
func WithLocker(locker Locker) Option {
	return func(r *Runtime) {
		r.locker = locker
	}
}

// WithLogger sets a custom logger for the runtime.
func WithLogger(l logger.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// Runtime scores sessions one at a time. Instances share no mutable state,
// so independent runtimes may score different sessions concurrently.
type Runtime struct {
	repo     SessionRepository
	writer   SnapshotWriter
	registry *Registry
	locker   Locker
	sink     reporting.Sink
	logger   logger.Logger
}

// New constructs a Runtime. The repository, writer, and registry are
// required collaborators; sink, locker, and logger come in by option.
func New(repo SessionRepository, writer SnapshotWriter, registry *Registry, opts ...Option) *Runtime {
	r := &Runtime{
		repo:     repo,
		writer:   writer,
		registry: registry,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	if r.sink == nil {
		r.sink = reporting.NewLogSink(r.logger)
	}
	return r
}

// ScoreSession runs the full state machine for one session and returns a
// terminal outcome. Hard failures are reported to the sink with full
// context before returning; controlled aborts are reported at warn
// severity and do not count as runtime errors.
func (r *Runtime) ScoreSession(ctx context.Context, sessionID string) Outcome {
	out := Outcome{
		SessionID:     sessionID,
		CorrelationID: uuid.NewString(),
		Timings:       make(map[types.Phase]time.Duration),
	}
	record := func(phase types.Phase, d time.Duration) {
		out.Timings[phase] = d
		metrics.RecordPhaseDuration(string(phase), float64(d.Milliseconds()))
	}

	// Resolving
	start := time.Now()
	sess, err := r.repo.GetByID(ctx, sessionID)
	record(types.PhaseResolving, time.Since(start))
	if err != nil {
		return r.fail(ctx, out, "", types.PhaseResolving, err)
	}

	if !sess.Completed {
		return r.abort(ctx, out, sess.UserID, &Abort{Reason: "session_not_completed"})
	}
	if sess.Excluded {
		return r.abort(ctx, out, sess.UserID, &Abort{Reason: "session_excluded"})
	}

	if r.locker != nil {
		release, err := r.locker.Acquire(ctx, sessionID)
		if err != nil {
			return r.abort(ctx, out, sess.UserID, &Abort{
				Reason:  "session_lock_unavailable",
				Payload: map[string]any{"cause": err.Error()},
			})
		}
		defer release()
	}

	key := sess.Instrument
	if key == "" {
		key = InstrumentKLSIv4
	}
	strategy, ok := r.registry.Lookup(key)
	if !ok {
		return r.fail(ctx, out, sess.UserID, types.PhaseResolving,
			errors.Join(ErrUnknownInstrument, errors.New("instrument "+key)))
	}

	snap, validation, err := strategy.Score(ctx, sess, record)
	if err != nil {
		var ab *Abort
		if errors.As(err, &ab) {
			if ab.Partial == nil {
				ab.Partial = snap.Clone()
			}
			return r.abort(ctx, out, sess.UserID, ab)
		}
		return r.fail(ctx, out, sess.UserID, phaseOf(out.Timings), err)
	}

	if err := r.writer.SaveSnapshot(ctx, snap); err != nil {
		return r.fail(ctx, out, sess.UserID, types.PhaseValidating, err)
	}

	out.Status = StatusFinalized
	out.Snapshot = &snap
	out.Validation = &validation
	metrics.RecordSessionFinalized()
	if len(validation.Anomalies) > 0 {
		metrics.RecordAnomalies(len(validation.Anomalies))
	}
	r.logger.Info(ctx, "session finalized",
		logger.String("session_id", sessionID),
		logger.String("correlation_id", out.CorrelationID),
		logger.String("style", styleOf(&snap)),
		logger.Int("anomalies", len(validation.Anomalies)),
	)
	return out
}

func (r *Runtime) fail(ctx context.Context, out Outcome, userID string, phase types.Phase, err error) Outcome {
	out.Status = StatusFailed
	out.Err = err
	metrics.RecordSessionFailed()
	r.sink.Report(ctx, reporting.Event{
		Event:         "scoring_failed",
		SessionID:     out.SessionID,
		UserID:        userID,
		Err:           err,
		CorrelationID: out.CorrelationID,
		Severity:      reporting.SeverityError,
		Metadata:      map[string]any{"phase": string(phase)},
	})
	return out
}

func (r *Runtime) abort(ctx context.Context, out Outcome, userID string, ab *Abort) Outcome {
	out.Status = StatusAborted
	out.AbortReason = ab.Reason
	out.AbortPayload = ab.Payload
	out.Snapshot = ab.Partial
	metrics.RecordSessionAborted()
	r.sink.Report(ctx, reporting.Event{
		Event:         "scoring_aborted",
		SessionID:     out.SessionID,
		UserID:        userID,
		CorrelationID: out.CorrelationID,
		Severity:      reporting.SeverityWarn,
		Metadata:      map[string]any{"reason": ab.Reason},
	})
	return out
}

// phaseOf returns the last phase that recorded a timing, for failure
// context. Phases run in a fixed order, so the latest one is the current.
func phaseOf(timings map[types.Phase]time.Duration) types.Phase {
	order := []types.Phase{
		types.PhaseValidating,
		types.PhaseContextAggregating,
		types.PhaseNormalizing,
		types.PhaseClassifying,
		types.PhaseScoring,
		types.PhaseResolving,
	}
	for _, p := range order {
		if _, ok := timings[p]; ok {
			return p
		}
	}
	return types.PhaseResolving
}

func styleOf(snap *model.Snapshot) string {
	if snap == nil || snap.Style == nil {
		return ""
	}
	return string(snap.Style.Style)
}
