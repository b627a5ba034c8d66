package logger

import (
	"context"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}
}

// Basic logging test (slog-backed; no Sugar)
func TestLoggerBasic(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil")
	}

	ctx := context.Background()
	logger.Info(ctx, "test message", String("k", "v"))
	logger.Debug(ctx, "debug message", Int("n", 1))
	logger.Warn(ctx, "warn message", Float64("f", 0.5))
	logger.Error(ctx, "error message", Any("v", []string{"a"}))
}

func TestLoggerNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	named := Named("scoring")
	if named == nil {
		t.Fatal("named logger is nil")
	}
	named.Info(context.Background(), "named message")
}

func TestSetLevelString(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	for _, level := range []string{"debug", "info", "warn", "warning", "error", ""} {
		if err := SetLevelString(level); err != nil {
			t.Errorf("SetLevelString(%q) failed: %v", level, err)
		}
	}

	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
