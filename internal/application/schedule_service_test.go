package application_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/opsboard/internal/application"
	"github.com/example/opsboard/internal/persistence"
	"github.com/example/opsboard/internal/recurrence"
	"github.com/example/opsboard/internal/rsvp"
	"github.com/example/opsboard/internal/testfixtures"
	"github.com/example/opsboard/internal/timegrid"
)

func newScheduleService(store *testfixtures.ScheduleStore, user string) *application.ScheduleService {
	return application.NewScheduleService(
		store,
		testfixtures.Viewer(user),
		testfixtures.NewIDGenerator("entry").NextFunc(),
		testfixtures.NewSeriesIDs().NextFunc(),
		testfixtures.NewClock(time.Time{}).NowFunc(),
	)
}

func eventInput(start time.Time, duration time.Duration) application.EntryInput {
	return application.EntryInput{
		Type:        application.EntryTypeEvent,
		Title:       "Weekly ops meetup",
		Description: "Bring a doctrine fit",
		Start:       start,
		End:         start.Add(duration),
		RSVPOptions: []application.RSVPOption{
			{Emoji: "✅", Name: "Yes"},
			{Emoji: "❔", Name: "Maybe"},
		},
		Channel: "ops",
	}
}

func repeatingInput(start time.Time, duration time.Duration, frequency string, until time.Time) application.EntryInput {
	input := eventInput(start, duration)
	input.Repeat = true
	input.RepeatFrequency = frequency
	input.RepeatEndDate = &until
	return input
}

func TestScheduleService_CreateEntry(t *testing.T) {
	t.Parallel()

	start := testfixtures.ReferenceTime().Add(6 * time.Hour)

	t.Run("creates a single entry", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")

		entries, err := service.CreateEntry(context.Background(), eventInput(start, time.Hour))
		if err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		entry := entries[0]
		if entry.AuthorID != "alice" || entry.RepeatSeries != 0 || entry.Repeat {
			t.Fatalf("entry = %+v, want non-repeating entry by alice", entry)
		}
		if !entry.Active {
			t.Fatalf("new entries start active")
		}
	})

	t.Run("expands a weekly repeat into one series", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")

		until := start.AddDate(0, 0, 21)
		entries, err := service.CreateEntry(context.Background(), repeatingInput(start, time.Hour, "weekly", until))
		if err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
		if len(entries) != 4 {
			t.Fatalf("expected 4 instances, got %d", len(entries))
		}
		series := entries[0].RepeatSeries
		if series == 0 {
			t.Fatalf("repeating instances need a series id")
		}
		for i, entry := range entries {
			if entry.RepeatSeries != series {
				t.Fatalf("instance %d series = %d, want %d", i, entry.RepeatSeries, series)
			}
			if entry.Title != entries[0].Title || entry.Description != entries[0].Description {
				t.Fatalf("instance %d diverges from its siblings", i)
			}
			if entry.End.Sub(entry.Start) != time.Hour {
				t.Fatalf("instance %d duration = %v, want 1h", i, entry.End.Sub(entry.Start))
			}
			want := start.AddDate(0, 0, 7*i)
			if !entry.Start.Equal(want) {
				t.Fatalf("instance %d start = %v, want %v", i, entry.Start, want)
			}
		}
	})

	t.Run("validation blocks the operation before any store call", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name  string
			input application.EntryInput
			field string
		}{
			{
				name: "missing title",
				input: func() application.EntryInput {
					input := eventInput(start, time.Hour)
					input.Title = "  "
					return input
				}(),
				field: "title",
			},
			{
				name: "no rsvp options",
				input: func() application.EntryInput {
					input := eventInput(start, time.Hour)
					input.RSVPOptions = nil
					return input
				}(),
				field: "rsvp_options",
			},
			{
				name: "end before start",
				input: func() application.EntryInput {
					input := eventInput(start, time.Hour)
					input.End = input.Start.Add(-time.Hour)
					return input
				}(),
				field: "time",
			},
			{
				name: "unknown frequency",
				input: func() application.EntryInput {
					until := start.AddDate(0, 0, 7)
					input := repeatingInput(start, time.Hour, "hourly", until)
					return input
				}(),
				field: "repeat_frequency",
			},
			{
				name: "missing repeat end date",
				input: func() application.EntryInput {
					input := eventInput(start, time.Hour)
					input.Repeat = true
					input.RepeatFrequency = "daily"
					return input
				}(),
				field: "repeat_end_date",
			},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				store := testfixtures.NewScheduleStore()
				service := newScheduleService(store, "alice")

				_, err := service.CreateEntry(context.Background(), tc.input)
				var vErr *application.ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if _, ok := vErr.FieldErrors[tc.field]; !ok {
					t.Fatalf("expected field %q in %v", tc.field, vErr.FieldErrors)
				}
				if len(store.All()) != 0 {
					t.Fatalf("validation failure must not mutate the store")
				}
			})
		}
	})

	t.Run("end date before start fails with the range error", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")

		until := start.AddDate(0, 0, -2)
		_, err := service.CreateEntry(context.Background(), repeatingInput(start, time.Hour, "daily", until))
		if !errors.Is(err, recurrence.ErrRangeInvalid) {
			t.Fatalf("expected ErrRangeInvalid, got %v", err)
		}
		if len(store.All()) != 0 {
			t.Fatalf("failed expansion must not mutate the store")
		}
	})
}

func TestScheduleService_ReplaceSeries(t *testing.T) {
	t.Parallel()

	start := testfixtures.ReferenceTime().Add(6 * time.Hour)

	seedSeries := func(t *testing.T, store *testfixtures.ScheduleStore, service *application.ScheduleService, weeks int) []application.ScheduleEntry {
		t.Helper()
		until := start.AddDate(0, 0, 7*(weeks-1))
		entries, err := service.CreateEntry(context.Background(), repeatingInput(start, time.Hour, "weekly", until))
		if err != nil {
			t.Fatalf("seed series: %v", err)
		}
		return entries
	}

	t.Run("new series replaces the old one completely", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")

		old := seedSeries(t, store, service, 3)
		oldIDs := make(map[string]struct{}, len(old))
		for _, entry := range old {
			oldIDs[entry.ID] = struct{}{}
		}

		until := start.AddDate(0, 0, 28)
		replaced, err := service.ReplaceSeries(context.Background(), old[0].RepeatSeries, repeatingInput(start, 2*time.Hour, "weekly", until))
		if err != nil {
			t.Fatalf("ReplaceSeries: %v", err)
		}
		if len(replaced) != 5 {
			t.Fatalf("expected 5 new instances, got %d", len(replaced))
		}

		remaining := store.All()
		if len(remaining) != 5 {
			t.Fatalf("store holds %d entries, want exactly the new series", len(remaining))
		}
		for _, entry := range remaining {
			if _, stale := oldIDs[entry.ID]; stale {
				t.Fatalf("old entry %s survived the replacement", entry.ID)
			}
			if entry.RepeatSeries != replaced[0].RepeatSeries {
				t.Fatalf("entry %s carries series %d, want %d", entry.ID, entry.RepeatSeries, replaced[0].RepeatSeries)
			}
		}
	})

	t.Run("failed creation leaves the old series intact", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")

		old := seedSeries(t, store, service, 3)
		store.CreateBatchErr = func([]application.ScheduleEntry) error {
			return fmt.Errorf("store unavailable")
		}

		until := start.AddDate(0, 0, 28)
		_, err := service.ReplaceSeries(context.Background(), old[0].RepeatSeries, repeatingInput(start, time.Hour, "weekly", until))
		if err == nil || errors.Is(err, application.ErrSeriesDeleteFailed) {
			t.Fatalf("expected a plain creation failure, got %v", err)
		}
		if len(store.All()) != 3 {
			t.Fatalf("old series must be untouched, store holds %d", len(store.All()))
		}
	})

	t.Run("failed deletion reports coexisting series", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")

		old := seedSeries(t, store, service, 3)
		store.DeleteSeriesErr = func(int64) error {
			return fmt.Errorf("store unavailable")
		}

		until := start.AddDate(0, 0, 28)
		replaced, err := service.ReplaceSeries(context.Background(), old[0].RepeatSeries, repeatingInput(start, time.Hour, "weekly", until))
		if !errors.Is(err, application.ErrSeriesDeleteFailed) {
			t.Fatalf("expected ErrSeriesDeleteFailed, got %v", err)
		}
		if len(replaced) != 5 {
			t.Fatalf("new series must be reported to the caller, got %d entries", len(replaced))
		}
		// Both series coexist until the caller retries the deletion.
		if len(store.All()) != 8 {
			t.Fatalf("store holds %d entries, want 8 coexisting", len(store.All()))
		}

		var seriesErr *application.SeriesDeleteError
		if !errors.As(err, &seriesErr) || seriesErr.Series != old[0].RepeatSeries {
			t.Fatalf("series error = %v", err)
		}

		// Retrying just the deletion converges.
		store.DeleteSeriesErr = nil
		if err := service.DeleteSeries(context.Background(), old[0].RepeatSeries); err != nil {
			t.Fatalf("retry DeleteSeries: %v", err)
		}
		if len(store.All()) != 5 {
			t.Fatalf("store holds %d entries after retry, want 5", len(store.All()))
		}
	})

	t.Run("foreign series cannot be replaced", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		owner := newScheduleService(store, "alice")

		old := seedSeries(t, store, owner, 3)

		intruder := newScheduleService(store, "mallory")
		until := start.AddDate(0, 0, 28)
		_, err := intruder.ReplaceSeries(context.Background(), old[0].RepeatSeries, repeatingInput(start, time.Hour, "weekly", until))
		if !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if len(store.All()) != 3 {
			t.Fatalf("store holds %d entries, want the untouched original 3", len(store.All()))
		}
	})

	t.Run("unknown series reports not found", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")

		until := start.AddDate(0, 0, 28)
		_, err := service.ReplaceSeries(context.Background(), 9999, repeatingInput(start, time.Hour, "weekly", until))
		if !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestScheduleService_DeleteSeries(t *testing.T) {
	t.Parallel()

	start := testfixtures.ReferenceTime().Add(6 * time.Hour)

	seedSeries := func(t *testing.T, service *application.ScheduleService, weeks int) []application.ScheduleEntry {
		t.Helper()
		until := start.AddDate(0, 0, 7*(weeks-1))
		entries, err := service.CreateEntry(context.Background(), repeatingInput(start, time.Hour, "weekly", until))
		if err != nil {
			t.Fatalf("seed series: %v", err)
		}
		return entries
	}

	t.Run("author removes the whole series", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")

		old := seedSeries(t, service, 3)
		if err := service.DeleteSeries(context.Background(), old[0].RepeatSeries); err != nil {
			t.Fatalf("DeleteSeries: %v", err)
		}
		if len(store.All()) != 0 {
			t.Fatalf("store holds %d entries, want 0", len(store.All()))
		}
	})

	t.Run("foreign series cannot be deleted", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		owner := newScheduleService(store, "alice")

		old := seedSeries(t, owner, 3)

		intruder := newScheduleService(store, "mallory")
		err := intruder.DeleteSeries(context.Background(), old[0].RepeatSeries)
		if !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if len(store.All()) != 3 {
			t.Fatalf("store holds %d entries, want the untouched original 3", len(store.All()))
		}
	})

	t.Run("unknown series reports not found", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")

		if err := service.DeleteSeries(context.Background(), 9999); !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestScheduleService_UpdateEntry(t *testing.T) {
	t.Parallel()

	start := testfixtures.ReferenceTime().Add(6 * time.Hour)

	seedEntry := func(t *testing.T, service *application.ScheduleService) application.ScheduleEntry {
		t.Helper()
		entries, err := service.CreateEntry(context.Background(), eventInput(start, time.Hour))
		if err != nil {
			t.Fatalf("seed entry: %v", err)
		}
		return entries[0]
	}

	t.Run("non-repeating edits update in place", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")
		entry := seedEntry(t, service)

		input := eventInput(start.Add(time.Hour), 2*time.Hour)
		input.Title = "Moved meetup"

		updated, err := service.UpdateEntry(context.Background(), entry.ID, input, application.UpdateOptions{})
		if err != nil {
			t.Fatalf("UpdateEntry: %v", err)
		}
		if updated.Title != "Moved meetup" || !updated.Start.Equal(start.Add(time.Hour)) {
			t.Fatalf("updated = %+v", updated)
		}
		if len(store.All()) != 1 {
			t.Fatalf("in-place update must not add entries")
		}
	})

	t.Run("stale optimistic updates surface the store conflict unmodified", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")
		entry := seedEntry(t, service)

		// A collaborator bumps the patch first.
		if _, err := service.UpdateEntry(context.Background(), entry.ID, eventInput(start, time.Hour), application.UpdateOptions{}); err != nil {
			t.Fatalf("setup update: %v", err)
		}

		stale := entry.Patch
		_, err := service.UpdateEntry(context.Background(), entry.ID, eventInput(start, time.Hour), application.UpdateOptions{ExpectedPatch: &stale})
		if !errors.Is(err, persistence.ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict passthrough, got %v", err)
		}
	})

	t.Run("foreign entries cannot be edited", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		owner := newScheduleService(store, "alice")
		entry := seedEntry(t, owner)

		intruder := newScheduleService(store, "mallory")
		_, err := intruder.UpdateEntry(context.Background(), entry.ID, eventInput(start, time.Hour), application.UpdateOptions{})
		if !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("repeating inputs are rejected", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")
		entry := seedEntry(t, service)

		until := start.AddDate(0, 0, 7)
		_, err := service.UpdateEntry(context.Background(), entry.ID, repeatingInput(start, time.Hour, "weekly", until), application.UpdateOptions{})
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestScheduleService_RSVP(t *testing.T) {
	t.Parallel()

	start := testfixtures.ReferenceTime().Add(6 * time.Hour)

	seed := func(t *testing.T) (*testfixtures.ScheduleStore, application.ScheduleEntry) {
		t.Helper()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "alice")
		entries, err := service.CreateEntry(context.Background(), eventInput(start, time.Hour))
		if err != nil {
			t.Fatalf("seed entry: %v", err)
		}
		return store, entries[0]
	}

	t.Run("same option twice returns to unset", func(t *testing.T) {
		t.Parallel()
		store, entry := seed(t)
		service := newScheduleService(store, "bob")

		updated, state, err := service.RSVP(context.Background(), entry.ID, "Yes")
		if err != nil {
			t.Fatalf("RSVP: %v", err)
		}
		if state != rsvp.StateRSVPd || len(updated.Attendees) != 1 {
			t.Fatalf("after first select: state=%v attendees=%v", state, updated.Attendees)
		}

		updated, state, err = service.RSVP(context.Background(), entry.ID, "Yes")
		if err != nil {
			t.Fatalf("RSVP: %v", err)
		}
		if state != rsvp.StateUnset {
			t.Fatalf("state = %v, want StateUnset", state)
		}
		if len(updated.Members) != 0 || len(updated.Attendees) != 0 {
			t.Fatalf("toggle-off left membership behind: %+v", updated)
		}
	})

	t.Run("switching options keeps one attendee entry", func(t *testing.T) {
		t.Parallel()
		store, entry := seed(t)
		service := newScheduleService(store, "bob")

		if _, _, err := service.RSVP(context.Background(), entry.ID, "Yes"); err != nil {
			t.Fatalf("RSVP: %v", err)
		}
		updated, state, err := service.RSVP(context.Background(), entry.ID, "Maybe")
		if err != nil {
			t.Fatalf("RSVP: %v", err)
		}
		if state != rsvp.StateRSVPd {
			t.Fatalf("state = %v, want StateRSVPd", state)
		}
		if len(updated.Members) != 1 || updated.Members[0].Option != "Maybe" {
			t.Fatalf("members = %v", updated.Members)
		}
		if len(updated.Attendees) != 1 || updated.Attendees[0] != "bob" {
			t.Fatalf("attendees = %v, want exactly [bob]", updated.Attendees)
		}
	})

	t.Run("unknown options are rejected", func(t *testing.T) {
		t.Parallel()
		store, entry := seed(t)
		service := newScheduleService(store, "bob")

		if _, _, err := service.RSVP(context.Background(), entry.ID, "Perhaps"); !errors.Is(err, rsvp.ErrUnknownOption) {
			t.Fatalf("expected ErrUnknownOption, got %v", err)
		}
	})

	t.Run("missing entries surface not found", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewScheduleStore()
		service := newScheduleService(store, "bob")

		if _, _, err := service.RSVP(context.Background(), "missing", "Yes"); !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestScheduleService_ListWeek(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewScheduleStore()
	service := newScheduleService(store, "alice")
	window := timegrid.WindowContaining(testfixtures.ReferenceTime(), time.UTC)

	for hour := 20; hour >= 16; hour -= 2 {
		input := eventInput(window.Start.Add(time.Duration(hour)*time.Hour), time.Hour)
		input.Title = fmt.Sprintf("Event at %02d", hour)
		if _, err := service.CreateEntry(context.Background(), input); err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
	}

	entries, err := service.ListWeek(context.Background(), window)
	if err != nil {
		t.Fatalf("ListWeek: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Start.Before(entries[i-1].Start) {
			t.Fatalf("entries out of chronological order")
		}
	}
}
