package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ConsoleLogger logs to stderr so that prompts written to stdout stay readable.
func ConsoleLogger(level logrus.Level) *logrus.Logger {
	return NewLogger(os.Stderr, level)
}

func NewLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	return logger
}

// ParseLevel maps the LOG_LEVEL vocabulary onto logrus levels. Unknown values fall back to info.
func ParseLevel(s string) logrus.Level {
	switch s {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// Discard returns an entry that drops everything; used as the zero value by services.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

type ctxKey struct{}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or nil.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	switch typed := ctx.Value(ctxKey{}).(type) {
	case *logrus.Entry:
		return typed
	case *logrus.Logger:
		return logrus.NewEntry(typed)
	default:
		return nil
	}
}
