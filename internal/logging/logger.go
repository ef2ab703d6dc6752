// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// LevelCounter receives one call per emitted log record; the stats
// aggregator satisfies it so crawl snapshots include per-level log counts.
type LevelCounter interface {
	LogEmitted(level string)
}

// WithLevelCounts wraps logger so every record written through it is also
// counted by counter, keyed by level name.
func WithLevelCounts(logger *zap.Logger, counter LevelCounter) *zap.Logger {
	if counter == nil {
		return logger
	}
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &countingCore{Core: core, counter: counter}
	}))
}

type countingCore struct {
	zapcore.Core
	counter LevelCounter
}

func (c *countingCore) With(fields []zapcore.Field) zapcore.Core {
	return &countingCore{Core: c.Core.With(fields), counter: c.counter}
}

func (c *countingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *countingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	c.counter.LogEmitted(ent.Level.String())
	return c.Core.Write(ent, fields)
}
