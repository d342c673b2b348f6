// Package ics renders schedule entries as an iCalendar feed so members can
// subscribe from their own calendar clients.
package ics

import (
	"fmt"
	"strings"

	ical "github.com/arran4/golang-ical"

	"github.com/example/opsboard/internal/application"
)

const productID = "-//opsboard//scheduling//EN"

// Feed serializes the given entries as a VCALENDAR document. Inactive entries
// are skipped. Entry ids become the event UIDs so re-fetches of the feed
// update rather than duplicate events.
func Feed(entries []application.ScheduleEntry) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, entry := range entries {
		if !entry.Active {
			continue
		}

		event := cal.AddEvent(entry.ID)
		event.SetDtStampTime(entry.UpdatedAt.UTC())
		event.SetCreatedTime(entry.CreatedAt.UTC())
		event.SetModifiedAt(entry.UpdatedAt.UTC())
		event.SetStartAt(entry.Start.UTC())
		event.SetEndAt(entry.End.UTC())
		event.SetSummary(summaryFor(entry))
		if description := descriptionFor(entry); description != "" {
			event.SetDescription(description)
		}
		if entry.Channel != "" {
			event.SetLocation(entry.Channel)
		}
	}

	return cal.Serialize()
}

func summaryFor(entry application.ScheduleEntry) string {
	if entry.Type == application.EntryTypeEvent {
		return entry.Title
	}
	return fmt.Sprintf("[%s] %s", entry.Type, entry.Title)
}

func descriptionFor(entry application.ScheduleEntry) string {
	parts := make([]string, 0, 2)
	if entry.Description != "" {
		parts = append(parts, entry.Description)
	}
	if len(entry.Attendees) > 0 {
		parts = append(parts, fmt.Sprintf("Attendees: %s", strings.Join(entry.Attendees, ", ")))
	}
	return strings.Join(parts, "\n")
}
