package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/opsboard/internal/application"
	"github.com/example/opsboard/internal/rsvp"
	"github.com/example/opsboard/internal/timegrid"
)

type scheduleService interface {
	CreateEntry(ctx context.Context, input application.EntryInput) ([]application.ScheduleEntry, error)
	UpdateEntry(ctx context.Context, entryID string, input application.EntryInput, opts application.UpdateOptions) (application.ScheduleEntry, error)
	ReplaceSeries(ctx context.Context, oldSeries int64, input application.EntryInput) ([]application.ScheduleEntry, error)
	DeleteEntry(ctx context.Context, entryID string) error
	DeleteSeries(ctx context.Context, series int64) error
	ListWeek(ctx context.Context, window timegrid.WeekWindow) ([]application.ScheduleEntry, error)
	RSVP(ctx context.Context, entryID, option string) (application.ScheduleEntry, rsvp.State, error)
}

// ScheduleHandler serves calendar entry CRUD and RSVP.
type ScheduleHandler struct {
	service   scheduleService
	responder responder
}

// NewScheduleHandler wires the handler to its service.
func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, responder: newResponder(logger)}
}

// List handles GET /entries. The optional date query parameter selects the
// week, as in the availability grid.
func (h *ScheduleHandler) List(c echo.Context) error {
	window, err := windowFromQuery(c)
	if err != nil {
		return h.responder.badRequest(c, err.Error())
	}

	entries, err := h.service.ListWeek(c.Request().Context(), window)
	if err != nil {
		return h.responder.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, listEntriesResponse{Entries: toEntryDTOs(entries)})
}

// Create handles POST /entries. A repeating input creates the whole series.
func (h *ScheduleHandler) Create(c echo.Context) error {
	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return h.responder.badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	input, bindErr := req.toInput()
	if bindErr != nil {
		return h.responder.badRequest(c, bindErr.Error())
	}

	entries, err := h.service.CreateEntry(c.Request().Context(), input)
	if err != nil {
		return h.responder.serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, listEntriesResponse{Entries: toEntryDTOs(entries)})
}

// Update handles PUT /entries/:id. The optional expected_patch field enables
// optimistic locking; omitting it makes the update last-write-wins.
func (h *ScheduleHandler) Update(c echo.Context) error {
	entryID := strings.TrimSpace(c.Param("id"))
	if entryID == "" {
		return h.responder.badRequest(c, "entry id is required")
	}

	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return h.responder.badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	input, bindErr := req.toInput()
	if bindErr != nil {
		return h.responder.badRequest(c, bindErr.Error())
	}

	entry, err := h.service.UpdateEntry(c.Request().Context(), entryID, input, application.UpdateOptions{
		ExpectedPatch: req.ExpectedPatch,
	})
	if err != nil {
		return h.responder.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, toEntryDTO(entry))
}

// Delete handles DELETE /entries/:id.
func (h *ScheduleHandler) Delete(c echo.Context) error {
	entryID := strings.TrimSpace(c.Param("id"))
	if entryID == "" {
		return h.responder.badRequest(c, "entry id is required")
	}

	if err := h.service.DeleteEntry(c.Request().Context(), entryID); err != nil {
		return h.responder.serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReplaceSeries handles PUT /series/:series. The new series is created before
// the old one is deleted; when the deletion fails both coexist and the caller
// retries the delete.
func (h *ScheduleHandler) ReplaceSeries(c echo.Context) error {
	series, err := seriesParam(c)
	if err != nil {
		return h.responder.badRequest(c, err.Error())
	}

	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return h.responder.badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	input, bindErr := req.toInput()
	if bindErr != nil {
		return h.responder.badRequest(c, bindErr.Error())
	}

	entries, err := h.service.ReplaceSeries(c.Request().Context(), series, input)
	if err != nil {
		var deleteErr *application.SeriesDeleteError
		if errors.As(err, &deleteErr) {
			return c.JSON(http.StatusMultiStatus, replaceSeriesResponse{
				Entries:         toEntryDTOs(entries),
				StaleSeries:     deleteErr.Series,
				StaleSeriesNote: "old series deletion failed; retry the series delete",
			})
		}
		return h.responder.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, replaceSeriesResponse{Entries: toEntryDTOs(entries)})
}

// DeleteSeries handles DELETE /series/:series.
func (h *ScheduleHandler) DeleteSeries(c echo.Context) error {
	series, err := seriesParam(c)
	if err != nil {
		return h.responder.badRequest(c, err.Error())
	}

	if err := h.service.DeleteSeries(c.Request().Context(), series); err != nil {
		return h.responder.serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RSVP handles POST /entries/:id/rsvp. Choosing the already-held option
// toggles the RSVP off.
func (h *ScheduleHandler) RSVP(c echo.Context) error {
	entryID := strings.TrimSpace(c.Param("id"))
	if entryID == "" {
		return h.responder.badRequest(c, "entry id is required")
	}

	var req rsvpRequest
	if err := c.Bind(&req); err != nil {
		return h.responder.badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	entry, state, err := h.service.RSVP(c.Request().Context(), entryID, req.Option)
	if err != nil {
		return h.responder.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, rsvpResponse{
		Entry: toEntryDTO(entry),
		State: rsvpStateLabel(state),
	})
}

func seriesParam(c echo.Context) (int64, error) {
	raw := strings.TrimSpace(c.Param("series"))
	series, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || series <= 0 {
		return 0, errors.New("series must be a positive integer")
	}
	return series, nil
}

type entryRequest struct {
	Type            string          `json:"type" validate:"required"`
	Title           string          `json:"title" validate:"required"`
	Description     string          `json:"description"`
	Start           string          `json:"start" validate:"required"`
	End             string          `json:"end" validate:"required"`
	Repeat          bool            `json:"repeat"`
	RepeatFrequency string          `json:"repeat_frequency"`
	RepeatEndDate   string          `json:"repeat_end_date"`
	RSVPOptions     []rsvpOptionDTO `json:"rsvp_options" validate:"dive"`
	FleetIDs        []string        `json:"fleet_ids"`
	Channel         string          `json:"channel"`
	ExpectedPatch   *int64          `json:"expected_patch"`
}

func (r entryRequest) toInput() (application.EntryInput, error) {
	start, err := parseRequestTime(r.Start)
	if err != nil {
		return application.EntryInput{}, errors.New("start must be RFC 3339")
	}
	end, err := parseRequestTime(r.End)
	if err != nil {
		return application.EntryInput{}, errors.New("end must be RFC 3339")
	}

	input := application.EntryInput{
		Type:            application.EntryType(strings.TrimSpace(r.Type)),
		Title:           strings.TrimSpace(r.Title),
		Description:     r.Description,
		Start:           start,
		End:             end,
		Repeat:          r.Repeat,
		RepeatFrequency: strings.TrimSpace(r.RepeatFrequency),
		FleetIDs:        append([]string(nil), r.FleetIDs...),
		Channel:         strings.TrimSpace(r.Channel),
	}
	if raw := strings.TrimSpace(r.RepeatEndDate); raw != "" {
		endDate, err := parseRequestTime(raw)
		if err != nil {
			return application.EntryInput{}, errors.New("repeat_end_date must be RFC 3339")
		}
		input.RepeatEndDate = &endDate
	}
	for _, option := range r.RSVPOptions {
		input.RSVPOptions = append(input.RSVPOptions, application.RSVPOption{
			Emoji: option.Emoji,
			Name:  strings.TrimSpace(option.Name),
		})
	}
	return input, nil
}

func parseRequestTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

type rsvpRequest struct {
	Option string `json:"option" validate:"required"`
}

type rsvpResponse struct {
	Entry entryDTO `json:"entry"`
	State string   `json:"state"`
}

func rsvpStateLabel(state rsvp.State) string {
	if state == rsvp.StateRSVPd {
		return "rsvpd"
	}
	return "unset"
}

type listEntriesResponse struct {
	Entries []entryDTO `json:"entries"`
}

type replaceSeriesResponse struct {
	Entries         []entryDTO `json:"entries"`
	StaleSeries     int64      `json:"stale_series,omitempty"`
	StaleSeriesNote string     `json:"stale_series_note,omitempty"`
}

type rsvpOptionDTO struct {
	Emoji string `json:"emoji"`
	Name  string `json:"name" validate:"required"`
}

type memberDTO struct {
	UserID string `json:"user_id"`
	Option string `json:"option"`
}

type entryDTO struct {
	ID              string          `json:"id"`
	AuthorID        string          `json:"author_id"`
	Type            string          `json:"type"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Start           string          `json:"start"`
	End             string          `json:"end"`
	Repeat          bool            `json:"repeat"`
	RepeatFrequency string          `json:"repeat_frequency,omitempty"`
	RepeatEndDate   string          `json:"repeat_end_date,omitempty"`
	RepeatSeries    int64           `json:"repeat_series,omitempty"`
	RSVPOptions     []rsvpOptionDTO `json:"rsvp_options"`
	Members         []memberDTO     `json:"members"`
	Attendees       []string        `json:"attendees"`
	FleetIDs        []string        `json:"fleet_ids,omitempty"`
	Channel         string          `json:"channel,omitempty"`
	Active          bool            `json:"active"`
	Patch           int64           `json:"patch"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

func toEntryDTO(entry application.ScheduleEntry) entryDTO {
	dto := entryDTO{
		ID:              entry.ID,
		AuthorID:        entry.AuthorID,
		Type:            string(entry.Type),
		Title:           entry.Title,
		Description:     entry.Description,
		Start:           entry.Start.UTC().Format(time.RFC3339),
		End:             entry.End.UTC().Format(time.RFC3339),
		Repeat:          entry.Repeat,
		RepeatFrequency: entry.RepeatFrequency,
		RepeatSeries:    entry.RepeatSeries,
		FleetIDs:        append([]string(nil), entry.FleetIDs...),
		Channel:         entry.Channel,
		Active:          entry.Active,
		Patch:           entry.Patch,
		CreatedAt:       entry.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       entry.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if entry.RepeatEndDate != nil {
		dto.RepeatEndDate = entry.RepeatEndDate.UTC().Format(time.RFC3339)
	}
	dto.RSVPOptions = make([]rsvpOptionDTO, 0, len(entry.RSVPOptions))
	for _, option := range entry.RSVPOptions {
		dto.RSVPOptions = append(dto.RSVPOptions, rsvpOptionDTO{Emoji: option.Emoji, Name: option.Name})
	}
	dto.Members = make([]memberDTO, 0, len(entry.Members))
	for _, member := range entry.Members {
		dto.Members = append(dto.Members, memberDTO{UserID: member.UserID, Option: member.Option})
	}
	dto.Attendees = append([]string(nil), entry.Attendees...)
	if dto.Attendees == nil {
		dto.Attendees = []string{}
	}
	return dto
}

func toEntryDTOs(entries []application.ScheduleEntry) []entryDTO {
	out := make([]entryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryDTO(entry))
	}
	return out
}
