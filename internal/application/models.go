package application

import (
	"context"
	"time"

	"github.com/example/opsboard/internal/availability"
	"github.com/example/opsboard/internal/timegrid"
)

// Identity describes the user a request acts as, resolved by the external
// identity collaborator.
type Identity struct {
	UserID   string
	Username string
	Nickname string
	Timezone *time.Location
}

// Location returns the identity's preferred timezone, defaulting to UTC.
func (i Identity) Location() *time.Location {
	if i.Timezone == nil {
		return time.UTC
	}
	return i.Timezone
}

// IdentityProvider resolves the identity of the current request.
type IdentityProvider interface {
	Current(ctx context.Context) (Identity, error)
}

// EntryType classifies a schedule entry.
type EntryType string

const (
	// EntryTypeEvent is a plain community event.
	EntryTypeEvent EntryType = "event"
	// EntryTypeFleet is a fleet operation.
	EntryTypeFleet EntryType = "fleet"
	// EntryTypeRonin is a solo-roam event.
	EntryTypeRonin EntryType = "ronin"
	// EntryTypeRoninFleet is a solo-roam fleet hybrid.
	EntryTypeRoninFleet EntryType = "ronin_fleet"
)

// Valid reports whether the type is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeEvent, EntryTypeFleet, EntryTypeRonin, EntryTypeRoninFleet:
		return true
	}
	return false
}

// RSVPOption is one selectable RSVP choice of an entry.
type RSVPOption struct {
	Emoji string
	Name  string
}

// EventMember is one user's RSVP choice on an entry. Unique per user id.
type EventMember struct {
	UserID string
	Option string
}

// AvailabilityRecord is one point-in-time availability marker. The timestamp
// is normalized to the top of an hour.
type AvailabilityRecord struct {
	ID        string
	UserID    string
	Username  string
	Nickname  string
	Timestamp time.Time
}

// ScheduleEntry is one calendar entry. Instances of a recurring definition
// share a non-zero RepeatSeries and differ only in their start and end.
type ScheduleEntry struct {
	ID              string
	AuthorID        string
	Type            EntryType
	Title           string
	Description     string
	Start           time.Time
	End             time.Time
	Repeat          bool
	RepeatFrequency string
	RepeatEndDate   *time.Time
	RepeatSeries    int64
	RSVPOptions     []RSVPOption
	Members         []EventMember
	Attendees       []string
	FleetIDs        []string
	Channel         string
	Active          bool
	Patch           int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EntryInput captures caller-provided entry fields.
type EntryInput struct {
	Type            EntryType
	Title           string
	Description     string
	Start           time.Time
	End             time.Time
	Repeat          bool
	RepeatFrequency string
	RepeatEndDate   *time.Time
	RSVPOptions     []RSVPOption
	FleetIDs        []string
	Channel         string
}

// UpdateOptions selects the write discipline for in-place entry updates. A
// nil ExpectedPatch means last-write-wins; a non-nil value enforces optimistic
// locking.
type UpdateOptions struct {
	ExpectedPatch *int64
}

// WeekGrid is the aggregated availability view of one week for one viewer.
type WeekGrid struct {
	Window  timegrid.WeekWindow
	Heatmap availability.Heatmap
	Owned   map[timegrid.CellID]AvailabilityRecord
}

// SaveSelectionResult reports what a selection save changed.
type SaveSelectionResult struct {
	Created int
	Deleted int
}
