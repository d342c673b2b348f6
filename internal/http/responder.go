package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/opsboard/internal/application"
	"github.com/example/opsboard/internal/logging"
	"github.com/example/opsboard/internal/persistence"
	"github.com/example/opsboard/internal/recurrence"
	"github.com/example/opsboard/internal/rsvp"
	"github.com/example/opsboard/internal/timegrid"
)

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

// serviceError maps the service error taxonomy to HTTP responses. Partial
// batch outcomes are handled by the individual handlers before this runs.
func (r responder) serviceError(c echo.Context, err error) error {
	ctx := c.Request().Context()

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "the submitted entry is invalid",
			Errors:    vErr.FieldErrors,
		})
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, errorResponse{
			ErrorCode: "FORBIDDEN",
			Message:   "you are not allowed to perform this operation",
		})
	case errors.Is(err, application.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{
			ErrorCode: "NOT_FOUND",
			Message:   "the requested resource does not exist",
		})
	case errors.Is(err, persistence.ErrVersionConflict):
		return c.JSON(http.StatusConflict, errorResponse{
			ErrorCode: "CONFLICT_FROM_COLLABORATOR",
			Message:   "the entry changed since you loaded it; reload and retry",
		})
	case errors.Is(err, timegrid.ErrInvalidTimestamp):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "INVALID_TIMESTAMP",
			Message:   "a timestamp is missing or malformed",
		})
	case errors.Is(err, recurrence.ErrRangeInvalid):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "REPEAT_RANGE_INVALID",
			Message:   "the repeat end date precedes the first occurrence",
		})
	case errors.Is(err, recurrence.ErrRangeTooLarge):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "REPEAT_RANGE_TOO_LARGE",
			Message:   "the repeat range produces too many occurrences",
		})
	case errors.Is(err, recurrence.ErrInvalidFrequency), errors.Is(err, recurrence.ErrInvalidDuration):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "REPEAT_INVALID",
			Message:   err.Error(),
		})
	case errors.Is(err, rsvp.ErrUnknownOption):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "UNKNOWN_RSVP_OPTION",
			Message:   "the chosen RSVP option is not offered by this entry",
		})
	}

	r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{
		Message: "internal server error",
	})
}

func (r responder) badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Message: message})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}
