// Package logging builds the zap loggers used across ApplyTrak.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a development logger for "development"/"dev"/"test" and a production JSON logger otherwise.
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch env {
	case "development", "dev", "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
