package backend

import (
	"context"
	"errors"
	"log/slog"
)

// retryLogger adapts *slog.Logger to retryablehttp.LeveledLogger. Requests
// that failed because their context was cancelled are logged at debug level.
type retryLogger struct {
	logger *slog.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	if canceled(keysAndValues) {
		l.logger.Debug(msg, keysAndValues...)
		return
	}
	l.logger.Error(msg, keysAndValues...)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func canceled(keysAndValues []interface{}) bool {
	for _, v := range keysAndValues {
		if err, ok := v.(error); ok && errors.Is(err, context.Canceled) {
			return true
		}
	}
	return false
}
