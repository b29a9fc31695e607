package errors

import (
	"github.com/sirupsen/logrus"
)

// Entry returns a log entry carrying err and, for AppErrors, its code,
// retryability and context fields.
func Entry(logger logrus.FieldLogger, err error) *logrus.Entry {
	entry := logger.WithError(err)

	appErr, ok := As(err)
	if !ok {
		return entry
	}

	entry = entry.WithFields(logrus.Fields{
		"error_code": appErr.Code,
		"retryable":  appErr.Retryable,
	})
	for k, v := range appErr.Context {
		if k == "value" || k == "password" {
			continue
		}
		entry = entry.WithField(k, v)
	}
	return entry
}

// LogRetryable logs a retryable error at warn level, non-retryable at error level
func LogRetryable(logger logrus.FieldLogger, err error, message string, fields ...logrus.Fields) {
	entry := Entry(logger, err)
	for _, f := range fields {
		entry = entry.WithFields(f)
	}

	if IsRetryable(err) {
		entry.Warn(message)
		return
	}
	entry.Error(message)
}
