// Package testfixtures provides deterministic clocks, id sources and
// in-memory stores for service tests.
package testfixtures

import (
	"context"
	"time"

	"github.com/example/opsboard/internal/application"
)

var referenceTime = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// It is a Monday, so WindowContaining yields a window starting that day.
func ReferenceTime() time.Time {
	return referenceTime
}

// StaticIdentity is an IdentityProvider that always resolves to one identity.
type StaticIdentity struct {
	Identity application.Identity
	Err      error
}

// Current implements application.IdentityProvider.
func (s StaticIdentity) Current(context.Context) (application.Identity, error) {
	if s.Err != nil {
		return application.Identity{}, s.Err
	}
	return s.Identity, nil
}

// Viewer builds a StaticIdentity for the given user id in UTC.
func Viewer(userID string) StaticIdentity {
	return StaticIdentity{Identity: application.Identity{
		UserID:   userID,
		Username: userID,
		Nickname: userID,
		Timezone: time.UTC,
	}}
}
