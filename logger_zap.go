package libsio

import (
	"go.uber.org/zap"
)

// zapLogger adapts a zap.SugaredLogger to the package logger.
type zapLogger struct {
	*zap.SugaredLogger
}

// NewZapLogger wraps l. A nil l yields a no-op zap logger.
func NewZapLogger(l *zap.Logger) logger {
	if l == nil {
		l = zap.NewNop()
	}
	return zapLogger{SugaredLogger: l.Sugar()}
}

func (z zapLogger) WithField(key string, value any) logger {
	return zapLogger{SugaredLogger: z.SugaredLogger.With(key, value)}
}
