package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/opsboard/internal/ics"
)

// CalendarHandler serves the iCalendar subscription feed.
type CalendarHandler struct {
	service   scheduleService
	responder responder
}

// NewCalendarHandler wires the handler to the schedule service.
func NewCalendarHandler(service scheduleService, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{service: service, responder: newResponder(logger)}
}

// WeekFeed handles GET /calendar/week.ics. The optional date query parameter
// selects the week, as in the availability grid.
func (h *CalendarHandler) WeekFeed(c echo.Context) error {
	window, err := windowFromQuery(c)
	if err != nil {
		return h.responder.badRequest(c, err.Error())
	}

	entries, err := h.service.ListWeek(c.Request().Context(), window)
	if err != nil {
		return h.responder.serviceError(c, err)
	}

	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics.Feed(entries)))
}
