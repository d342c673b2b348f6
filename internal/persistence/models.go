// Package persistence defines the storage contracts of the scheduling service.
package persistence

import "time"

// AvailabilityRecord is one stored point-in-time availability marker. The
// timestamp is always normalized to the top of an hour.
type AvailabilityRecord struct {
	ID        string
	UserID    string
	Username  string
	Nickname  string
	Timestamp time.Time
}

// RSVPOption is one selectable RSVP choice stored with an entry.
type RSVPOption struct {
	Emoji string `json:"emoji"`
	Name  string `json:"name"`
}

// EventMember is one user's stored RSVP choice. Unique per user id.
type EventMember struct {
	UserID string `json:"user_id"`
	Option string `json:"option"`
}

// ScheduleEntry is one stored calendar entry. Recurring entries carry a
// non-zero RepeatSeries shared by every sibling instance.
type ScheduleEntry struct {
	ID              string
	AuthorID        string
	Type            string
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
