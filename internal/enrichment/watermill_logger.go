package enrichment

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// watermillLogger routes watermill's logging into zap.
type watermillLogger struct {
	z *zap.Logger
}

func newWatermillLogger(z *zap.Logger) watermill.LoggerAdapter {
	return &watermillLogger{z: z}
}

func fields(f watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (l *watermillLogger) Error(msg string, err error, f watermill.LogFields) {
	l.z.Error(msg, append(fields(f), zap.Error(err))...)
}

func (l *watermillLogger) Info(msg string, f watermill.LogFields) {
	// watermill is chatty at info; keep it at debug.
	l.z.Debug(msg, fields(f)...)
}

func (l *watermillLogger) Debug(msg string, f watermill.LogFields) {
	l.z.Debug(msg, fields(f)...)
}

func (l *watermillLogger) Trace(msg string, f watermill.LogFields) {}

func (l *watermillLogger) With(f watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{z: l.z.With(fields(f)...)}
}
