// Package logging builds the zap.Logger instances threaded through every
// Scouter component constructor, following the teacher's comp/core/log
// convention of passing a single logger handle into each component rather
// than reaching for a package-level global.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style JSON logger at the given level name
// ("debug", "info", "warn", "error"). An unrecognized level falls back to
// info.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// NewNop returns a no-op logger, used in tests the way the teacher's
// logmock.New(t) stands in for comp/core/log.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
