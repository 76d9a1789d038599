package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admissions/pkg/logging"
)

func loggerFromContext(ctx context.Context, fallback *logrus.Entry) *logrus.Entry {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return fallback
}

func logWithFields(ctx context.Context, fallback *logrus.Entry, level logrus.Level, msg string, fields logrus.Fields) {
	logger := loggerFromContext(ctx, fallback)
	if logger == nil {
		return
	}
	logger.WithFields(fields).Log(level, msg)
}
