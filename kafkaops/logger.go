package kafkaops

import (
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ kgo.Logger = (*logger)(nil)

// logger routes kgo client logs into zap. kgo logs at its own levels only up
// to the level reported by Level, so the zap level decides the verbosity.
type logger struct {
	l *zap.Logger
}

func newLogger(l *zap.Logger) *logger {
	return &logger{
		l: l.Named("kgo"),
	}
}

func (l *logger) Level() kgo.LogLevel {
	switch l.l.Level() {
	case zap.DebugLevel:
		return kgo.LogLevelDebug
	case zap.InfoLevel:
		return kgo.LogLevelInfo
	case zap.WarnLevel:
		return kgo.LogLevelWarn
	case zap.ErrorLevel, zap.PanicLevel, zap.DPanicLevel, zap.FatalLevel:
		return kgo.LogLevelError
	case zapcore.InvalidLevel:
		return kgo.LogLevelNone
	default:
		return kgo.LogLevelDebug
	}
}

func (l *logger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	zf := toFields(keyvals)

	switch level {
	case kgo.LogLevelDebug, kgo.LogLevelNone:
		l.l.Debug(msg, zf...)
	case kgo.LogLevelInfo:
		l.l.Info(msg, zf...)
	case kgo.LogLevelWarn:
		l.l.Warn(msg, zf...)
	case kgo.LogLevelError:
		l.l.Error(msg, zf...)
	default:
		l.l.Debug(msg, zf...)
	}
}

// toFields pairs up kgo key/values. Non string keys are printed, a trailing key
// without a value gets "<missing>".
func toFields(keyvals []any) []zapcore.Field {
	if len(keyvals) == 0 {
		return []zapcore.Field{}
	}

	fields := make([]zapcore.Field, 0, (len(keyvals)+1)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}

		if i+1 == len(keyvals) {
			fields = append(fields, zap.String(key, "<missing>"))
			break
		}

		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}

	return fields
}
