package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/opsboard/internal/application"
	"github.com/example/opsboard/internal/testfixtures"
)

type testServer struct {
	router          http.Handler
	availability    *testfixtures.AvailabilityStore
	schedules       *testfixtures.ScheduleStore
	scheduleSvc     *application.ScheduleService
	availabilitySvc *application.AvailabilityService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	availabilityStore := testfixtures.NewAvailabilityStore()
	scheduleStore := testfixtures.NewScheduleStore()
	clock := testfixtures.NewClock(time.Time{})
	provider := ContextIdentityProvider{}

	availabilitySvc := application.NewAvailabilityService(
		availabilityStore, provider,
		testfixtures.NewIDGenerator("rec").NextFunc(), clock.NowFunc(),
	)
	scheduleSvc := application.NewScheduleService(
		scheduleStore, provider,
		testfixtures.NewIDGenerator("entry").NextFunc(),
		testfixtures.NewSeriesIDs().NextFunc(), clock.NowFunc(),
	)

	router := NewRouter(RouterConfig{
		Availability: NewAvailabilityHandler(availabilitySvc, nil),
		Schedules:    NewScheduleHandler(scheduleSvc, nil),
		Calendar:     NewCalendarHandler(scheduleSvc, nil),
	})

	return &testServer{
		router:          router,
		availability:    availabilityStore,
		schedules:       scheduleStore,
		scheduleSvc:     scheduleSvc,
		availabilitySvc: availabilitySvc,
	}
}

func (s *testServer) do(method, target, body, userID string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
		req.Header.Set(HeaderUsername, userID+"-name")
		req.Header.Set(HeaderNickname, userID+"-nick")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
}

func TestWeekGridEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	// Monday of the reference week, 09:00 UTC.
	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	if _, err := server.availability.CreateAvailability(context.Background(), application.AvailabilityRecord{
		ID: "seed-1", UserID: "u1", Username: "u1-name", Timestamp: ts,
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if _, err := server.availability.CreateAvailability(context.Background(), application.AvailabilityRecord{
		ID: "seed-2", UserID: "u2", Username: "u2-name", Timestamp: ts,
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	rec := server.do(http.MethodGet, "/availability/week?date=2024-01-01", "", "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		WeekStart string `json:"week_start"`
		Cells     []struct {
			Day      int    `json:"day"`
			Hour     int    `json:"hour"`
			Count    int    `json:"count"`
			Owned    bool   `json:"owned"`
			RecordID string `json:"record_id"`
		} `json:"cells"`
	}
	decodeBody(t, rec, &resp)

	if resp.WeekStart != "2024-01-01T00:00:00Z" {
		t.Errorf("week_start = %q", resp.WeekStart)
	}
	if len(resp.Cells) != 1 {
		t.Fatalf("cells = %d, want 1", len(resp.Cells))
	}
	cell := resp.Cells[0]
	if cell.Day != 0 || cell.Hour != 9 || cell.Count != 2 {
		t.Errorf("cell = %+v", cell)
	}
	if !cell.Owned || cell.RecordID != "seed-1" {
		t.Errorf("owned marking = %+v", cell)
	}
}

func TestWeekGridRequiresIdentity(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := server.do(http.MethodGet, "/availability/week", "", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestSaveSelectionEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	body := `{"week_start":"2024-01-01T00:00:00Z","cells":[{"day":0,"hour":9},{"day":2,"hour":20}]}`
	rec := server.do(http.MethodPut, "/availability/selection", body, "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Created int `json:"created"`
		Deleted int `json:"deleted"`
	}
	decodeBody(t, rec, &resp)
	if resp.Created != 2 || resp.Deleted != 0 {
		t.Errorf("result = %+v", resp)
	}
	if server.availability.Len() != 2 {
		t.Errorf("stored records = %d, want 2", server.availability.Len())
	}

	// Shrinking the selection deletes the dropped cell only.
	body = `{"week_start":"2024-01-01T00:00:00Z","cells":[{"day":2,"hour":20}]}`
	rec = server.do(http.MethodPut, "/availability/selection", body, "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &resp)
	if resp.Created != 0 || resp.Deleted != 1 {
		t.Errorf("result = %+v", resp)
	}
}

func TestSaveSelectionRejectsBadCells(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	body := `{"week_start":"2024-01-01T00:00:00Z","cells":[{"day":9,"hour":3}]}`
	rec := server.do(http.MethodPut, "/availability/selection", body, "u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func entryBody(title string, extra string) string {
	base := fmt.Sprintf(`"type":"event","title":%q,"start":"2024-01-03T19:00:00Z","end":"2024-01-03T20:00:00Z","rsvp_options":[{"emoji":"+1","name":"yes"}]`, title)
	if extra != "" {
		base += "," + extra
	}
	return "{" + base + "}"
}

func TestCreateEntryEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := server.do(http.MethodPost, "/entries", entryBody("Town hall", ""), "u1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Entries []struct {
			ID       string `json:"id"`
			AuthorID string `json:"author_id"`
			Title    string `json:"title"`
			Patch    int64  `json:"patch"`
		} `json:"entries"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(resp.Entries))
	}
	if resp.Entries[0].AuthorID != "u1" || resp.Entries[0].Title != "Town hall" {
		t.Errorf("entry = %+v", resp.Entries[0])
	}
}

func TestCreateEntryValidation(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	body := `{"type":"event","title":"No options","start":"2024-01-03T19:00:00Z","end":"2024-01-03T20:00:00Z"}`
	rec := server.do(http.MethodPost, "/entries", body, "u1")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ErrorCode string            `json:"error_code"`
		Errors    map[string]string `json:"errors"`
	}
	decodeBody(t, rec, &resp)
	if resp.ErrorCode != "VALIDATION_FAILED" {
		t.Errorf("error_code = %q", resp.ErrorCode)
	}
	if _, ok := resp.Errors["rsvp_options"]; !ok {
		t.Errorf("missing rsvp_options field error: %+v", resp.Errors)
	}
}

func TestCreateRepeatingEntryEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	body := entryBody("Weekly roam", `"repeat":true,"repeat_frequency":"weekly","repeat_end_date":"2024-01-24T20:00:00Z"`)
	rec := server.do(http.MethodPost, "/entries", body, "u1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Entries []struct {
			RepeatSeries int64 `json:"repeat_series"`
		} `json:"entries"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Entries) != 4 {
		t.Fatalf("entries = %d, want 4 weekly occurrences", len(resp.Entries))
	}
	for _, entry := range resp.Entries {
		if entry.RepeatSeries != resp.Entries[0].RepeatSeries {
			t.Errorf("series ids differ: %+v", resp.Entries)
		}
	}
}

func TestUpdateEntryConflict(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := server.do(http.MethodPost, "/entries", entryBody("Original", ""), "u1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created struct {
		Entries []struct {
			ID string `json:"id"`
		} `json:"entries"`
	}
	decodeBody(t, rec, &created)
	id := created.Entries[0].ID

	// First update bumps patch to 1.
	rec = server.do(http.MethodPut, "/entries/"+id, entryBody("Renamed", ""), "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Second update pinned to the stale patch 0 must conflict.
	rec = server.do(http.MethodPut, "/entries/"+id, entryBody("Stale", `"expected_patch":0`), "u1")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ErrorCode string `json:"error_code"`
	}
	decodeBody(t, rec, &resp)
	if resp.ErrorCode != "CONFLICT_FROM_COLLABORATOR" {
		t.Errorf("error_code = %q", resp.ErrorCode)
	}
}

func TestUpdateEntryForeignAuthor(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := server.do(http.MethodPost, "/entries", entryBody("Mine", ""), "u1")
	var created struct {
		Entries []struct {
			ID string `json:"id"`
		} `json:"entries"`
	}
	decodeBody(t, rec, &created)

	rec = server.do(http.MethodPut, "/entries/"+created.Entries[0].ID, entryBody("Hijack", ""), "u2")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRSVPEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := server.do(http.MethodPost, "/entries", entryBody("Roam", ""), "u1")
	var created struct {
		Entries []struct {
			ID string `json:"id"`
		} `json:"entries"`
	}
	decodeBody(t, rec, &created)
	id := created.Entries[0].ID

	rec = server.do(http.MethodPost, "/entries/"+id+"/rsvp", `{"option":"yes"}`, "u2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		State string `json:"state"`
		Entry struct {
			Attendees []string `json:"attendees"`
		} `json:"entry"`
	}
	decodeBody(t, rec, &resp)
	if resp.State != "rsvpd" {
		t.Errorf("state = %q", resp.State)
	}
	if len(resp.Entry.Attendees) != 1 || resp.Entry.Attendees[0] != "u2" {
		t.Errorf("attendees = %v", resp.Entry.Attendees)
	}

	// Choosing the held option again toggles the RSVP off.
	rec = server.do(http.MethodPost, "/entries/"+id+"/rsvp", `{"option":"yes"}`, "u2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &resp)
	if resp.State != "unset" {
		t.Errorf("state = %q after toggle", resp.State)
	}
	if len(resp.Entry.Attendees) != 0 {
		t.Errorf("attendees = %v after toggle", resp.Entry.Attendees)
	}

	rec = server.do(http.MethodPost, "/entries/"+id+"/rsvp", `{"option":"bogus"}`, "u2")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d for unknown option", rec.Code)
	}
}

func TestSeriesRoutesEnforceAuthorship(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	body := entryBody("Weekly roam", `"repeat":true,"repeat_frequency":"weekly","repeat_end_date":"2024-01-24T20:00:00Z"`)
	rec := server.do(http.MethodPost, "/entries", body, "alice")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Entries []struct {
			RepeatSeries int64 `json:"repeat_series"`
		} `json:"entries"`
	}
	decodeBody(t, rec, &created)
	series := fmt.Sprintf("%d", created.Entries[0].RepeatSeries)

	rec = server.do(http.MethodDelete, "/series/"+series, "", "mallory")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign delete status = %d, want 403, body = %s", rec.Code, rec.Body.String())
	}

	rec = server.do(http.MethodPut, "/series/"+series, body, "mallory")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign replace status = %d, want 403, body = %s", rec.Code, rec.Body.String())
	}
	if got := len(server.schedules.All()); got != 4 {
		t.Fatalf("store holds %d entries, want the untouched original 4", got)
	}

	rec = server.do(http.MethodDelete, "/series/"+series, "", "alice")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("author delete status = %d, want 204, body = %s", rec.Code, rec.Body.String())
	}
	if got := len(server.schedules.All()); got != 0 {
		t.Fatalf("store holds %d entries after author delete, want 0", got)
	}
}

func TestSeriesParamValidation(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := server.do(http.MethodDelete, "/series/abc", "", "u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCalendarFeedEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := server.do(http.MethodPost, "/entries", entryBody("Feed me", ""), "u1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	rec = server.do(http.MethodGet, "/calendar/week.ics?date=2024-01-01", "", "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "SUMMARY:Feed me") {
		t.Errorf("feed missing entry:\n%s", rec.Body.String())
	}
}

func TestEntryNotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := server.do(http.MethodDelete, "/entries/missing", "", "u1")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
