package postgres

import (
	"reflect"
	"testing"
	"time"

	"github.com/example/opsboard/internal/persistence"
)

func TestEntryRowRoundTrip(t *testing.T) {
	t.Parallel()

	endDate := time.Date(2024, 3, 27, 20, 0, 0, 0, time.UTC)
	entry := persistence.ScheduleEntry{
		ID:              "entry-1",
		AuthorID:        "alice",
		Type:            "event",
		Title:           "Weekly roam",
		Description:     "Form up at the gate",
		Start:           time.Date(2024, 3, 6, 20, 0, 0, 0, time.UTC),
		End:             time.Date(2024, 3, 6, 22, 0, 0, 0, time.UTC),
		Repeat:          true,
		RepeatFrequency: "weekly",
		RepeatEndDate:   &endDate,
		RepeatSeries:    7,
		RSVPOptions: []persistence.RSVPOption{
			{Emoji: "👍", Name: "Joining"},
			{Emoji: "👎", Name: "Skipping"},
		},
		Members: []persistence.EventMember{
			{UserID: "alice", Option: "Joining"},
			{UserID: "bob", Option: "Skipping"},
		},
		Attendees: []string{"alice", "bob"},
		FleetIDs:  []string{"fleet-1"},
		Channel:   "ops",
		Active:    true,
		Patch:     3,
		CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	row, err := toEntryRow(entry)
	if err != nil {
		t.Fatalf("toEntryRow() error = %v", err)
	}
	if !row.RepeatEndDate.Valid || !row.RepeatEndDate.Time.Equal(endDate) {
		t.Errorf("RepeatEndDate column = %+v, want valid %v", row.RepeatEndDate, endDate)
	}

	got, err := fromEntryRow(row)
	if err != nil {
		t.Fatalf("fromEntryRow() error = %v", err)
	}
	if !reflect.DeepEqual(got, entry) {
		t.Errorf("round trip mismatch\n got %+v\nwant %+v", got, entry)
	}
}

func TestEntryRowRoundTripSingleEvent(t *testing.T) {
	t.Parallel()

	entry := persistence.ScheduleEntry{
		ID:        "entry-2",
		AuthorID:  "bob",
		Type:      "operation",
		Title:     "Structure bash",
		Start:     time.Date(2024, 4, 1, 18, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 4, 1, 19, 0, 0, 0, time.UTC),
		Active:    true,
		CreatedAt: time.Date(2024, 3, 30, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 30, 9, 0, 0, 0, time.UTC),
	}

	row, err := toEntryRow(entry)
	if err != nil {
		t.Fatalf("toEntryRow() error = %v", err)
	}
	if row.RepeatEndDate.Valid {
		t.Errorf("RepeatEndDate column = %+v, want invalid", row.RepeatEndDate)
	}

	got, err := fromEntryRow(row)
	if err != nil {
		t.Fatalf("fromEntryRow() error = %v", err)
	}
	if got.RepeatEndDate != nil {
		t.Errorf("RepeatEndDate = %v, want nil", got.RepeatEndDate)
	}
	if !reflect.DeepEqual(got, entry) {
		t.Errorf("round trip mismatch\n got %+v\nwant %+v", got, entry)
	}
}
