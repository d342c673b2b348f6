package http

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RouterConfig collects the handlers mounted by NewRouter. Nil handlers leave
// their routes unregistered.
type RouterConfig struct {
	Availability *AvailabilityHandler
	Schedules    *ScheduleHandler
	Calendar     *CalendarHandler
	Logger       *slog.Logger
}

// NewRouter builds the echo instance with all routes and middleware mounted.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewRequestValidator()

	e.Use(middleware.Recover())
	e.Use(RequestLogger(cfg.Logger))
	e.Use(IdentityMiddleware())

	if cfg.Availability != nil {
		e.GET("/availability/week", cfg.Availability.WeekGrid)
		e.PUT("/availability/selection", cfg.Availability.SaveSelection)
	}

	if cfg.Schedules != nil {
		e.GET("/entries", cfg.Schedules.List)
		e.POST("/entries", cfg.Schedules.Create)
		e.PUT("/entries/:id", cfg.Schedules.Update)
		e.DELETE("/entries/:id", cfg.Schedules.Delete)
		e.POST("/entries/:id/rsvp", cfg.Schedules.RSVP)
		e.PUT("/series/:series", cfg.Schedules.ReplaceSeries)
		e.DELETE("/series/:series", cfg.Schedules.DeleteSeries)
	}

	if cfg.Calendar != nil {
		e.GET("/calendar/week.ics", cfg.Calendar.WeekFeed)
	}

	return e
}
