// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"github.com/spindlehq/spindle/internal/stats"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

// TestWithLevelCountsFeedsAggregator verifies each written record is counted by level.
func TestWithLevelCountsFeedsAggregator(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	agg := stats.New(time.Now())
	logger := WithLevelCounts(zap.New(core), agg)

	logger.Info("first")
	logger.Info("second")
	logger.Warn("careful")
	logger.Error("boom")

	snap := agg.Snapshot(time.Now())
	if got := snap.LogLevels["info"]; got != 2 {
		t.Fatalf("info count = %d, want 2", got)
	}
	if got := snap.LogLevels["warn"]; got != 1 {
		t.Fatalf("warn count = %d, want 1", got)
	}
	if got := snap.LogLevels["error"]; got != 1 {
		t.Fatalf("error count = %d, want 1", got)
	}
	if logs.Len() != 4 {
		t.Fatalf("records written = %d, want 4", logs.Len())
	}
}

// TestWithLevelCountsSurvivesWith keeps counting after the logger gains fields.
func TestWithLevelCountsSurvivesWith(t *testing.T) {
	t.Parallel()

	core, _ := observer.New(zapcore.DebugLevel)
	agg := stats.New(time.Now())
	logger := WithLevelCounts(zap.New(core), agg).With(zap.String("crawl_id", "abc"))

	logger.Debug("trace detail")
	logger.Debug("more detail")

	if got := agg.Snapshot(time.Now()).LogLevels["debug"]; got != 2 {
		t.Fatalf("debug count = %d, want 2", got)
	}
}

// TestWithLevelCountsNilCounter returns the logger unchanged.
func TestWithLevelCountsNilCounter(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop()
	if got := WithLevelCounts(logger, nil); got != logger {
		t.Fatal("expected the same logger back for a nil counter")
	}
}
