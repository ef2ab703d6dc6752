// Package sinks provides Sink implementations for the crawl event hub.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/spindlehq/spindle/internal/events"
)

// LogSink emits structured logs for debugging crawl event streams. It is
// useful during development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.logger.Info("crawl event",
			zap.String("crawl_id", evt.CrawlID),
			zap.String("kind", string(evt.Kind)),
			zap.String("host", evt.Host),
			zap.String("url", evt.URL),
			zap.String("session", evt.Session),
			zap.Int64("bytes", evt.Bytes),
			zap.String("status_class", string(evt.StatusClass)),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
