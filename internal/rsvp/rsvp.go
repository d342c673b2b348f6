// Package rsvp implements the per-user RSVP state machine of an event entry.
//
// A user is either Unset or RSVPd with one option. Selecting the current
// option again toggles back to Unset; selecting a different option moves the
// membership in place. The attendee list always mirrors the member set.
package rsvp

import (
	"errors"
	"fmt"
)

// ErrUnknownOption indicates a selection that is not one of the entry's options.
var ErrUnknownOption = errors.New("rsvp: unknown option")

// ErrInconsistent indicates the attendee list diverged from the member list.
var ErrInconsistent = errors.New("rsvp: attendees out of sync with members")

// Option is one selectable RSVP choice of an event entry.
type Option struct {
	Emoji string
	Name  string
}

// Member records one user's current choice. At most one member exists per user.
type Member struct {
	UserID string
	Option string
}

// State labels the outcome of a transition.
type State int

const (
	// StateUnset means the user holds no RSVP on the entry.
	StateUnset State = iota
	// StateRSVPd means the user holds an RSVP for one option.
	StateRSVPd
)

// StateOf reports the user's current state and chosen option.
func StateOf(members []Member, userID string) (State, string) {
	for _, member := range members {
		if member.UserID == userID {
			return StateRSVPd, member.Option
		}
	}
	return StateUnset, ""
}

// Apply performs one select transition for the user and returns the updated
// member and attendee lists plus the resulting state. The input slices are
// not modified.
func Apply(options []Option, members []Member, attendees []string, userID, option string) ([]Member, []string, State, error) {
	if !optionExists(options, option) {
		return nil, nil, StateUnset, fmt.Errorf("%w: %q", ErrUnknownOption, option)
	}

	updatedMembers := make([]Member, 0, len(members)+1)
	state := StateUnset
	found := false

	for _, member := range members {
		if member.UserID != userID {
			updatedMembers = append(updatedMembers, member)
			continue
		}
		found = true
		if member.Option == option {
			// Re-selecting the held option toggles the RSVP off; the member
			// entry is dropped entirely.
			continue
		}
		updatedMembers = append(updatedMembers, Member{UserID: userID, Option: option})
		state = StateRSVPd
	}

	if !found {
		updatedMembers = append(updatedMembers, Member{UserID: userID, Option: option})
		state = StateRSVPd
	}

	updatedAttendees := syncAttendees(attendees, updatedMembers)

	if err := Verify(updatedMembers, updatedAttendees); err != nil {
		return nil, nil, StateUnset, err
	}
	return updatedMembers, updatedAttendees, state, nil
}

// Verify checks that attendees is exactly the set of member user ids.
func Verify(members []Member, attendees []string) error {
	memberSet := make(map[string]struct{}, len(members))
	for _, member := range members {
		if _, dup := memberSet[member.UserID]; dup {
			return fmt.Errorf("%w: duplicate member %s", ErrInconsistent, member.UserID)
		}
		memberSet[member.UserID] = struct{}{}
	}

	attendeeSet := make(map[string]struct{}, len(attendees))
	for _, id := range attendees {
		if _, dup := attendeeSet[id]; dup {
			return fmt.Errorf("%w: duplicate attendee %s", ErrInconsistent, id)
		}
		attendeeSet[id] = struct{}{}
	}

	if len(memberSet) != len(attendeeSet) {
		return fmt.Errorf("%w: %d members, %d attendees", ErrInconsistent, len(memberSet), len(attendeeSet))
	}
	for id := range memberSet {
		if _, ok := attendeeSet[id]; !ok {
			return fmt.Errorf("%w: member %s missing from attendees", ErrInconsistent, id)
		}
	}
	return nil
}

// syncAttendees rebuilds the attendee list from the member set, keeping the
// relative order of attendees that remain present.
func syncAttendees(attendees []string, members []Member) []string {
	memberSet := make(map[string]struct{}, len(members))
	for _, member := range members {
		memberSet[member.UserID] = struct{}{}
	}

	result := make([]string, 0, len(members))
	seen := make(map[string]struct{}, len(members))
	for _, id := range attendees {
		if _, ok := memberSet[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	for _, member := range members {
		if _, ok := seen[member.UserID]; ok {
			continue
		}
		seen[member.UserID] = struct{}{}
		result = append(result, member.UserID)
	}
	return result
}

func optionExists(options []Option, name string) bool {
	for _, option := range options {
		if option.Name == name {
			return true
		}
	}
	return false
}
