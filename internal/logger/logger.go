// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps LOG_LEVEL values to zap levels. Python-style names
// (WARNING, CRITICAL) are accepted so existing deployments keep working.
func ParseLevel(s string) (zapcore.Level, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	case "critical", "fatal":
		return zapcore.ErrorLevel, nil
	default:
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(v)); err != nil {
			return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
		}
		return lvl, nil
	}
}

// New returns a production JSON logger at the given level.
// An unknown level falls back to info and is reported through the returned logger.
func New(level string) (*zap.Logger, error) {
	lvl, lvlErr := ParseLevel(level)

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if lvlErr != nil {
		l.Warn("falling back to info level", zap.Error(lvlErr))
	}
	return l, nil
}
