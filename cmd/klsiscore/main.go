// Command klsiscore scores completed KLSI 4.0 sessions from the result
// store and prints a terminal outcome per session.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Farid-Ze/kolb-sub001/internal/adapters/refdata"
	"github.com/Farid-Ze/kolb-sub001/internal/adapters/reporting"
	"github.com/Farid-Ze/kolb-sub001/internal/adapters/store"
	"github.com/Farid-Ze/kolb-sub001/internal/config"
	"github.com/Farid-Ze/kolb-sub001/internal/runtime"
	"github.com/Farid-Ze/kolb-sub001/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to flush logs: " + err.Error() + "\n")
		}
	}()
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		os.Stderr.WriteString("usage: klsiscore <session-id> [<session-id>...]\n")
		os.Exit(2)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	ref, err := refdata.Load(cfg.CatalogPath)
	if err != nil {
		log.Error(ctx, "failed to load reference catalog", logger.Error(err))
		os.Exit(1)
	}

	db, err := store.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Error(ctx, "failed to open result store", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	st := store.New(db)

	strategy, err := runtime.NewKLSIStrategy(ref, runtime.WithConcurrentScales(cfg.ConcurrentScales))
	if err != nil {
		log.Error(ctx, "failed to build scoring strategy", logger.Error(err))
		os.Exit(1)
	}
	registry := runtime.NewRegistry()
	registry.Register(runtime.InstrumentKLSIv4, strategy)

	opts := []runtime.Option{
		runtime.WithLogger(log),
		runtime.WithSink(reporting.NewLogSink(log)),
	}
	if cfg.LockSessions {
		opts = append(opts, runtime.WithLocker(st))
	}
	rt := runtime.New(st, st, registry, opts...)

	exit := 0
	for _, sessionID := range os.Args[1:] {
		out := rt.ScoreSession(ctx, sessionID)
		switch out.Status {
		case runtime.StatusFinalized:
			log.Info(ctx, "scored",
				logger.String("session_id", out.SessionID),
				logger.String("style", string(out.Snapshot.Style.Style)),
				logger.Float64("lfi_w", lfiW(out)),
				logger.Int("anomalies", len(out.Validation.Anomalies)),
				logger.Duration("total", total(out)),
			)
		case runtime.StatusAborted:
			log.Warn(ctx, "aborted",
				logger.String("session_id", out.SessionID),
				logger.String("reason", out.AbortReason),
			)
		case runtime.StatusFailed:
			log.Error(ctx, "failed",
				logger.String("session_id", out.SessionID),
				logger.Error(out.Err),
			)
			exit = 1
		}
	}
	os.Exit(exit)
}

func lfiW(out runtime.Outcome) float64 {
	if out.Snapshot == nil || out.Snapshot.Flexibility == nil {
		return 0
	}
	return out.Snapshot.Flexibility.W
}

func total(out runtime.Outcome) (d time.Duration) {
	for _, v := range out.Timings {
		d += v
	}
	return d
}
