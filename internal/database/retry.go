package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chitchat/internal/constants"
	apperrors "chitchat/internal/errors"
)

// retryableDBOperationNoReturn runs operation, retrying briefly on lock
// contention and other transient SQLite failures.
func retryableDBOperationNoReturn(ctx context.Context, operation func() error, operationName string) error {
	_, err := retryableDBOperation(ctx, func() (struct{}, error) {
		return struct{}{}, operation()
	}, operationName)
	return err
}

func retryableDBOperation[T any](ctx context.Context, operation func() (T, error), operationName string) (T, error) {
	var zero T
	var lastErr error

	maxAttempts := constants.DefaultDatabaseRetryAttempts
	initialBackoff := 50 * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := operation()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableDBError(err) {
			return zero, err
		}

		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(attempt) * initialBackoff
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return zero, apperrors.NewTransientStoreError(operationName,
		fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr))
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked") ||
		strings.Contains(errStr, "disk I/O error")
}

// classify converts a raw driver error into the application taxonomy.
// Errors already carrying an AppError pass through untouched.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if isRetryableDBError(err) || errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "sql: database is closed") {
		return apperrors.NewTransientStoreError(operation, err)
	}
	return apperrors.NewDatabaseError(operation, err)
}
