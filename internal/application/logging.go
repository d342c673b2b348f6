package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/opsboard/internal/logging"
	"github.com/example/opsboard/internal/persistence"
	"github.com/example/opsboard/internal/recurrence"
	"github.com/example/opsboard/internal/timegrid"
)

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps taxonomy errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSeriesDeleteFailed):
		return "series_delete_partial_failure"
	case errors.Is(err, ErrSaveBatchFailed):
		return "save_batch_partial_failure"
	case errors.Is(err, timegrid.ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, recurrence.ErrRangeInvalid):
		return "repeat_range_invalid"
	case errors.Is(err, recurrence.ErrRangeTooLarge):
		return "repeat_range_too_large"
	case errors.Is(err, persistence.ErrVersionConflict):
		return "conflict_from_collaborator"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
