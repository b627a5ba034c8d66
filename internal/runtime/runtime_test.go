package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Farid-Ze/kolb-sub001/internal/adapters/refdata"
	"github.com/Farid-Ze/kolb-sub001/internal/adapters/reporting"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/validate"
	runtime "github.com/Farid-Ze/kolb-sub001/internal/runtime"
	"github.com/Farid-Ze/kolb-sub001/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type memRepo struct {
	sessions map[string]model.SessionRecord
}

func (m *memRepo) GetByID(ctx context.Context, id string) (model.SessionRecord, error) {
	rec, ok := m.sessions[id]
	if !ok {
		return model.SessionRecord{}, errors.New("session " + id + " not found")
	}
	return rec, nil
}

type memWriter struct {
	snaps []model.Snapshot
	err   error
}

func (m *memWriter) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if m.err != nil {
		return m.err
	}
	m.snaps = append(m.snaps, snap)
	return nil
}

type memSink struct {
	events []reporting.Event
}

func (m *memSink) Report(ctx context.Context, ev reporting.Event) {
	m.events = append(m.events, ev)
}

type busyLocker struct{}

func (busyLocker) Acquire(ctx context.Context, sessionID string) (func(), error) {
	return nil, errors.New("lock held elsewhere")
}

type abortingStrategy struct{}

func (abortingStrategy) Score(ctx context.Context, sess model.SessionRecord, record runtime.PhaseRecorder) (model.Snapshot, validate.Result, error) {
	snap := model.Snapshot{
		SessionID: sess.ID,
		Scales: []model.ScaleScore{
			{SessionID: sess.ID, Scale: types.ScaleCE, Raw: 26},
		},
	}
	return snap, validate.Result{}, &runtime.Abort{Reason: "policy_stop"}
}

func completedSession(id string) model.SessionRecord {
	rec := model.SessionRecord{
		ID:         id,
		UserID:     "user-1",
		Instrument: runtime.InstrumentKLSIv4,
		Completed:  true,
	}
	values := map[types.ScaleCode][]float64{
		types.ScaleCE: {4, 3, 2, 4, 3, 4, 2, 4},
		types.ScaleRO: {3, 2, 4, 3, 4, 3, 4, 4},
		types.ScaleAC: {4, 4, 4, 4, 3, 4, 4, 4},
		types.ScaleAE: {4, 4, 4, 3, 4, 4, 4, 4},
	}
	n := 0
	for _, mode := range types.BasicModes() {
		for _, v := range values[mode] {
			n++
			rec.Items = append(rec.Items, model.ItemResponse{
				ItemID: string(rune('a' + n%26)), Scale: mode, Value: v,
			})
		}
	}
	for i, name := range types.Contexts() {
		rec.ContextResp = append(rec.ContextResp, model.ContextResponse{
			Context: string(name), Value: float64(20 + i),
		})
	}
	return rec
}

func newRuntime(t *testing.T, repo *memRepo, writer *memWriter, sink *memSink, extra ...runtime.Option) *runtime.Runtime {
	t.Helper()
	if err := logger.Init(); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	ref, err := refdata.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	strategy, err := runtime.NewKLSIStrategy(ref)
	if err != nil {
		t.Fatalf("build strategy: %v", err)
	}
	registry := runtime.NewRegistry()
	registry.Register(runtime.InstrumentKLSIv4, strategy)

	opts := append([]runtime.Option{
		runtime.WithLogger(logger.Get()),
		runtime.WithSink(sink),
	}, extra...)
	return runtime.New(repo, writer, registry, opts...)
}

func TestScoreSessionFinalized(t *testing.T) {
	Convey("Given a completed session and a working store", t, func() {
		repo := &memRepo{sessions: map[string]model.SessionRecord{"s1": completedSession("s1")}}
		writer := &memWriter{}
		sink := &memSink{}
		rt := newRuntime(t, repo, writer, sink)

		Convey("When scoring", func() {
			out := rt.ScoreSession(context.Background(), "s1")

			Convey("Then the outcome is finalized with a persisted snapshot", func() {
				So(out.Status, ShouldEqual, runtime.StatusFinalized)
				So(out.Err, ShouldBeNil)
				So(out.CorrelationID, ShouldNotBeEmpty)
				So(writer.snaps, ShouldHaveLength, 1)
				So(sink.events, ShouldBeEmpty)
			})

			Convey("Then the snapshot carries the full output contract", func() {
				snap := out.Snapshot
				So(snap, ShouldNotBeNil)
				So(snap.Scales, ShouldHaveLength, 4)
				So(snap.Combination.ACCERaw, ShouldEqual, 5)
				So(snap.Combination.AERORaw, ShouldEqual, 4)
				So(snap.Style.Style, ShouldEqual, types.StyleExperiencing)
				So(snap.Percentiles, ShouldHaveLength, 7) // six scales plus LFI
				So(snap.Provenance, ShouldHaveLength, 7)
				So(snap.Contexts, ShouldHaveLength, 8)
				So(snap.Flexibility, ShouldNotBeNil)
				So(snap.Flexibility.W, ShouldBeBetween, 0, 1)
				So(snap.Flexibility.Percentile, ShouldNotBeNil)
				So(snap.Flexibility.Level, ShouldNotBeNil)
			})

			Convey("Then the fallback flag ignores the LFI lookup tier", func() {
				// The LFI table lives only on the fallback tier, but LFI does
				// not count toward the session-level flag.
				So(out.Snapshot.UsedFallbackAny, ShouldBeFalse)
			})

			Convey("Then validation collected only the LFI provenance note", func() {
				So(out.Validation, ShouldNotBeNil)
				So(out.Validation.Structural, ShouldBeEmpty)
				So(out.Validation.Psychometric, ShouldBeEmpty)
				So(out.Validation.Provenance, ShouldHaveLength, 1)
			})

			Convey("Then every phase was timed", func() {
				for _, phase := range []types.Phase{
					types.PhaseResolving, types.PhaseScoring, types.PhaseClassifying,
					types.PhaseNormalizing, types.PhaseContextAggregating, types.PhaseValidating,
				} {
					_, ok := out.Timings[phase]
					So(ok, ShouldBeTrue)
				}
			})
		})

		Convey("When scoring the same session twice", func() {
			first := rt.ScoreSession(context.Background(), "s1")
			second := rt.ScoreSession(context.Background(), "s1")

			Convey("Then rescoring converges on identical derived rows", func() {
				So(first.Status, ShouldEqual, runtime.StatusFinalized)
				So(second.Status, ShouldEqual, runtime.StatusFinalized)
				So(second.Snapshot.Scales, ShouldResemble, first.Snapshot.Scales)
				So(second.Snapshot.Combination, ShouldResemble, first.Snapshot.Combination)
				So(second.Snapshot.Style, ShouldResemble, first.Snapshot.Style)
				So(second.Snapshot.Percentiles, ShouldResemble, first.Snapshot.Percentiles)
			})
		})
	})

	Convey("Given a session missing its context responses", t, func() {
		rec := completedSession("s2")
		rec.ContextResp = rec.ContextResp[:5]
		repo := &memRepo{sessions: map[string]model.SessionRecord{"s2": rec}}
		writer := &memWriter{}
		sink := &memSink{}
		rt := newRuntime(t, repo, writer, sink)

		Convey("When scoring", func() {
			out := rt.ScoreSession(context.Background(), "s2")

			Convey("Then the session still finalizes, flagged instead of failed", func() {
				So(out.Status, ShouldEqual, runtime.StatusFinalized)
				So(out.Snapshot.Flexibility, ShouldBeNil)
				So(out.Snapshot.Contexts, ShouldHaveLength, 5)

				var codes []string
				for _, f := range out.Validation.Structural {
					codes = append(codes, f.Code)
				}
				So(codes, ShouldContain, "incomplete_context_set")
			})
		})
	})
}

func TestScoreSessionAborts(t *testing.T) {
	Convey("Given a session that is not completed", t, func() {
		rec := completedSession("s1")
		rec.Completed = false
		repo := &memRepo{sessions: map[string]model.SessionRecord{"s1": rec}}
		writer := &memWriter{}
		sink := &memSink{}
		rt := newRuntime(t, repo, writer, sink)

		Convey("When scoring", func() {
			out := rt.ScoreSession(context.Background(), "s1")

			Convey("Then scoring aborts without persisting anything", func() {
				So(out.Status, ShouldEqual, runtime.StatusAborted)
				So(out.AbortReason, ShouldEqual, "session_not_completed")
				So(out.Err, ShouldBeNil)
				So(writer.snaps, ShouldBeEmpty)
			})

			Convey("Then the abort is reported at warn severity", func() {
				So(sink.events, ShouldHaveLength, 1)
				So(sink.events[0].Event, ShouldEqual, "scoring_aborted")
				So(sink.events[0].Severity, ShouldEqual, reporting.SeverityWarn)
			})
		})
	})

	Convey("Given a session excluded from scoring by policy", t, func() {
		rec := completedSession("s1")
		rec.Excluded = true
		repo := &memRepo{sessions: map[string]model.SessionRecord{"s1": rec}}
		writer := &memWriter{}
		rt := newRuntime(t, repo, writer, &memSink{})

		Convey("Then scoring aborts with the exclusion reason", func() {
			out := rt.ScoreSession(context.Background(), "s1")
			So(out.Status, ShouldEqual, runtime.StatusAborted)
			So(out.AbortReason, ShouldEqual, "session_excluded")
		})
	})

	Convey("Given a session lock held elsewhere", t, func() {
		repo := &memRepo{sessions: map[string]model.SessionRecord{"s1": completedSession("s1")}}
		writer := &memWriter{}
		rt := newRuntime(t, repo, writer, &memSink{}, runtime.WithLocker(busyLocker{}))

		Convey("Then scoring aborts instead of racing the other scorer", func() {
			out := rt.ScoreSession(context.Background(), "s1")
			So(out.Status, ShouldEqual, runtime.StatusAborted)
			So(out.AbortReason, ShouldEqual, "session_lock_unavailable")
			So(writer.snaps, ShouldBeEmpty)
		})
	})

	Convey("Given a strategy that aborts mid-run", t, func() {
		if err := logger.Init(); err != nil {
			t.Fatalf("init logger: %v", err)
		}
		repo := &memRepo{sessions: map[string]model.SessionRecord{"s1": completedSession("s1")}}
		writer := &memWriter{}
		registry := runtime.NewRegistry()
		registry.Register(runtime.InstrumentKLSIv4, abortingStrategy{})
		rt := runtime.New(repo, writer, registry, runtime.WithLogger(logger.Get()), runtime.WithSink(&memSink{}))

		Convey("Then the outcome carries the partial snapshot", func() {
			out := rt.ScoreSession(context.Background(), "s1")
			So(out.Status, ShouldEqual, runtime.StatusAborted)
			So(out.AbortReason, ShouldEqual, "policy_stop")
			So(out.Snapshot, ShouldNotBeNil)
			So(out.Snapshot.Scales, ShouldHaveLength, 1)
			So(writer.snaps, ShouldBeEmpty)
		})
	})
}

func TestScoreSessionFailures(t *testing.T) {
	Convey("Given an unknown session id", t, func() {
		repo := &memRepo{sessions: map[string]model.SessionRecord{}}
		writer := &memWriter{}
		sink := &memSink{}
		rt := newRuntime(t, repo, writer, sink)

		Convey("Then scoring fails and reports at error severity", func() {
			out := rt.ScoreSession(context.Background(), "missing")
			So(out.Status, ShouldEqual, runtime.StatusFailed)
			So(out.Err, ShouldNotBeNil)
			So(sink.events, ShouldHaveLength, 1)
			So(sink.events[0].Event, ShouldEqual, "scoring_failed")
			So(sink.events[0].Severity, ShouldEqual, reporting.SeverityError)
		})
	})

	Convey("Given a session tagged with an unregistered instrument", t, func() {
		rec := completedSession("s1")
		rec.Instrument = "mbti.v1"
		repo := &memRepo{sessions: map[string]model.SessionRecord{"s1": rec}}
		rt := newRuntime(t, repo, &memWriter{}, &memSink{})

		Convey("Then scoring fails with ErrUnknownInstrument", func() {
			out := rt.ScoreSession(context.Background(), "s1")
			So(out.Status, ShouldEqual, runtime.StatusFailed)
			So(errors.Is(out.Err, runtime.ErrUnknownInstrument), ShouldBeTrue)
		})
	})

	Convey("Given a session with an incomplete response set", t, func() {
		rec := completedSession("s1")
		var kept []model.ItemResponse
		for _, item := range rec.Items {
			if item.Scale == types.ScaleAE {
				continue
			}
			kept = append(kept, item)
		}
		rec.Items = kept
		repo := &memRepo{sessions: map[string]model.SessionRecord{"s1": rec}}
		writer := &memWriter{}
		rt := newRuntime(t, repo, writer, &memSink{})

		Convey("Then the scoring phase failure is a hard failure", func() {
			out := rt.ScoreSession(context.Background(), "s1")
			So(out.Status, ShouldEqual, runtime.StatusFailed)
			So(out.Err, ShouldNotBeNil)
			So(writer.snaps, ShouldBeEmpty)
		})
	})

	Convey("Given a store that rejects the snapshot write", t, func() {
		repo := &memRepo{sessions: map[string]model.SessionRecord{"s1": completedSession("s1")}}
		writer := &memWriter{err: errors.New("disk full")}
		sink := &memSink{}
		rt := newRuntime(t, repo, writer, sink)

		Convey("Then a fully scored session still fails on persistence", func() {
			out := rt.ScoreSession(context.Background(), "s1")
			So(out.Status, ShouldEqual, runtime.StatusFailed)
			So(out.Err, ShouldNotBeNil)
			So(sink.events, ShouldHaveLength, 1)
			So(sink.events[0].Event, ShouldEqual, "scoring_failed")
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		registry := runtime.NewRegistry()

		Convey("Then unknown keys miss", func() {
			_, ok := registry.Lookup("nope")
			So(ok, ShouldBeFalse)
		})

		Convey("When registering a strategy", func() {
			registry.Register("x", abortingStrategy{})

			Convey("Then lookup finds it", func() {
				s, ok := registry.Lookup("x")
				So(ok, ShouldBeTrue)
				So(s, ShouldNotBeNil)
			})
		})
	})
}
