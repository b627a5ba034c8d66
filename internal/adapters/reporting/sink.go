// Package reporting defines the structured error/observability sink the
// runtime reports to. The runtime never formats log messages itself.
package reporting

import (
	"context"

	"github.com/Farid-Ze/kolb-sub001/pkg/logger"
)

// Severity separates hard failures from controlled aborts.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Event is one structured report.
type Event struct {
	Event         string
	SessionID     string
	UserID        string
	Err           error
	CorrelationID string
	Severity      Severity
	Metadata      map[string]any
}

// Sink accepts structured reports of failures and controlled aborts.
type Sink interface {
	Report(ctx context.Context, event Event)
}

type logSink struct {
	logger logger.Logger
}

// NewLogSink returns a Sink that writes events through the given logger.
func NewLogSink(l logger.Logger) Sink {
	return &logSink{logger: l}
}

func (s *logSink) Report(ctx context.Context, event Event) {
	fields := []logger.Field{
		logger.String("event", event.Event),
		logger.String("session_id", event.SessionID),
		logger.String("correlation_id", event.CorrelationID),
	}
	if event.UserID != "" {
		fields = append(fields, logger.String("user_id", event.UserID))
	}
	if event.Err != nil {
		fields = append(fields, logger.Error(event.Err))
	}
	for k, v := range event.Metadata {
		fields = append(fields, logger.Any(k, v))
	}
	switch event.Severity {
	case SeverityWarn:
		s.logger.Warn(ctx, event.Event, fields...)
	default:
		s.logger.Error(ctx, event.Event, fields...)
	}
}
