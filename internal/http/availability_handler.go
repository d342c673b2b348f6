package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/opsboard/internal/application"
	"github.com/example/opsboard/internal/timegrid"
)

type availabilityService interface {
	WeekGrid(ctx context.Context, window timegrid.WeekWindow) (application.WeekGrid, error)
	SaveSelection(ctx context.Context, window timegrid.WeekWindow, selected map[timegrid.CellID]struct{}) (application.SaveSelectionResult, error)
}

// AvailabilityHandler serves the weekly availability grid.
type AvailabilityHandler struct {
	service   availabilityService
	responder responder
}

// NewAvailabilityHandler wires the handler to its service.
func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, responder: newResponder(logger)}
}

// WeekGrid handles GET /availability/week. The optional date query parameter
// (YYYY-MM-DD) selects the week containing that day in the viewer's timezone;
// it defaults to the current week.
func (h *AvailabilityHandler) WeekGrid(c echo.Context) error {
	window, err := windowFromQuery(c)
	if err != nil {
		return h.responder.badRequest(c, err.Error())
	}

	grid, err := h.service.WeekGrid(c.Request().Context(), window)
	if err != nil {
		return h.responder.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, toWeekGridResponse(grid))
}

// SaveSelection handles PUT /availability/selection. The body carries the full
// desired selection for the week; the service computes and applies the minimal
// diff against stored state.
func (h *AvailabilityHandler) SaveSelection(c echo.Context) error {
	var req saveSelectionRequest
	if err := c.Bind(&req); err != nil {
		return h.responder.badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	weekStart, err := time.Parse(time.RFC3339, req.WeekStart)
	if err != nil {
		return h.responder.badRequest(c, "week_start must be RFC 3339")
	}
	identity, _ := IdentityFromContext(c.Request().Context())
	window := timegrid.NewWeekWindow(weekStart, identity.Location())

	selected := make(map[timegrid.CellID]struct{}, len(req.Cells))
	for _, cell := range req.Cells {
		id := timegrid.CellID{Day: cell.Day, Hour: cell.Hour}
		if !id.Valid() {
			return h.responder.badRequest(c, "cell outside the 7x24 grid")
		}
		selected[id] = struct{}{}
	}

	result, err := h.service.SaveSelection(c.Request().Context(), window, selected)
	if err != nil {
		var batchErr *application.SaveBatchError
		if errors.As(err, &batchErr) {
			return c.JSON(http.StatusMultiStatus, saveSelectionResponse{
				Created:  result.Created,
				Deleted:  result.Deleted,
				Failures: toBatchFailureDTOs(batchErr.Failures),
			})
		}
		return h.responder.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, saveSelectionResponse{
		Created: result.Created,
		Deleted: result.Deleted,
	})
}

func windowFromQuery(c echo.Context) (timegrid.WeekWindow, error) {
	identity, _ := IdentityFromContext(c.Request().Context())
	loc := identity.Location()

	reference := time.Now().In(loc)
	if raw := strings.TrimSpace(c.QueryParam("date")); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return timegrid.WeekWindow{}, errors.New("date must be YYYY-MM-DD")
		}
		reference = day
	}
	return timegrid.WindowContaining(reference, loc), nil
}

type saveSelectionRequest struct {
	WeekStart string    `json:"week_start" validate:"required"`
	Cells     []cellDTO `json:"cells" validate:"dive"`
}

type cellDTO struct {
	Day  int `json:"day" validate:"min=0,max=6"`
	Hour int `json:"hour" validate:"min=0,max=23"`
}

type saveSelectionResponse struct {
	Created  int               `json:"created"`
	Deleted  int               `json:"deleted"`
	Failures []batchFailureDTO `json:"failures,omitempty"`
}

type batchFailureDTO struct {
	Op       string  `json:"op"`
	Cell     cellDTO `json:"cell"`
	RecordID string  `json:"record_id,omitempty"`
	Error    string  `json:"error"`
}

func toBatchFailureDTOs(failures []application.BatchFailure) []batchFailureDTO {
	out := make([]batchFailureDTO, 0, len(failures))
	for _, failure := range failures {
		out = append(out, batchFailureDTO{
			Op:       failure.Op,
			Cell:     cellDTO{Day: failure.Cell.Day, Hour: failure.Cell.Hour},
			RecordID: failure.RecordID,
			Error:    failure.Err.Error(),
		})
	}
	return out
}

type weekGridResponse struct {
	WeekStart string        `json:"week_start"`
	WeekEnd   string        `json:"week_end"`
	Cells     []gridCellDTO `json:"cells"`
}

type gridCellDTO struct {
	Day      int    `json:"day"`
	Hour     int    `json:"hour"`
	Count    int    `json:"count"`
	Owned    bool   `json:"owned"`
	RecordID string `json:"record_id,omitempty"`
}

func toWeekGridResponse(grid application.WeekGrid) weekGridResponse {
	cells := make([]gridCellDTO, 0, len(grid.Heatmap))
	for cell, count := range grid.Heatmap {
		dto := gridCellDTO{Day: cell.Day, Hour: cell.Hour, Count: count}
		if record, ok := grid.Owned[cell]; ok {
			dto.Owned = true
			dto.RecordID = record.ID
		}
		cells = append(cells, dto)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Day != cells[j].Day {
			return cells[i].Day < cells[j].Day
		}
		return cells[i].Hour < cells[j].Hour
	})

	return weekGridResponse{
		WeekStart: grid.Window.Start.Format(time.RFC3339),
		WeekEnd:   grid.Window.End.Format(time.RFC3339),
		Cells:     cells,
	}
}
