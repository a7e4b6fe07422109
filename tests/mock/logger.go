package mocklogger

import (
	"os"

	"github.com/roadrunner-server/endure/v2/dep"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type ZapLoggerMock struct {
	l *zap.Logger
}

type Logger interface {
	NamedLogger(string) *zap.Logger
}

// ZapTestLogger writes to stdout and records every entry for later assertions.
func ZapTestLogger(enab zapcore.LevelEnabler) (*ZapLoggerMock, *observer.ObservedLogs) {
	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		enab,
	)

	observed, logs := observer.New(enab)

	return &ZapLoggerMock{l: zap.New(zapcore.NewTee(console, observed), zap.Development())}, logs
}

func (z *ZapLoggerMock) Init() error {
	return nil
}

func (z *ZapLoggerMock) Serve() chan error {
	return make(chan error, 1)
}

func (z *ZapLoggerMock) Stop() error {
	_ = z.l.Sync()
	return nil
}

func (z *ZapLoggerMock) Provides() []*dep.Out {
	return []*dep.Out{
		dep.Bind((*Logger)(nil), z.ProvideLogger),
	}
}

func (z *ZapLoggerMock) Weight() uint {
	return 100
}

func (z *ZapLoggerMock) ProvideLogger() *Log {
	return NewLogger(z.l)
}

type Log struct {
	base *zap.Logger
}

func NewLogger(log *zap.Logger) *Log {
	return &Log{
		base: log,
	}
}

func (l *Log) NamedLogger(name string) *zap.Logger {
	return l.base.Named(name)
}
