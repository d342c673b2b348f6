package http

import (
	"context"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/opsboard/internal/application"
)

// Gateway headers carrying the authenticated identity. The dashboard sits
// behind an SSO proxy that resolves the user before requests reach us.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
	HeaderNickname = "X-Nickname"
	HeaderTimezone = "X-Timezone"
)

type identityContextKey struct{}

// ContextWithIdentity attaches the resolved identity to the context.
func ContextWithIdentity(ctx context.Context, identity application.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the identity stored by the middleware, if any.
func IdentityFromContext(ctx context.Context) (application.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(application.Identity)
	return identity, ok
}

// IdentityMiddleware reads the gateway identity headers into the request
// context. An unparseable or absent timezone falls back to UTC; a missing
// user id leaves the context untouched so services reject the request.
func IdentityMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
			if userID == "" {
				return next(c)
			}

			identity := application.Identity{
				UserID:   userID,
				Username: strings.TrimSpace(c.Request().Header.Get(HeaderUsername)),
				Nickname: strings.TrimSpace(c.Request().Header.Get(HeaderNickname)),
			}
			if tz := strings.TrimSpace(c.Request().Header.Get(HeaderTimezone)); tz != "" {
				if loc, err := time.LoadLocation(tz); err == nil {
					identity.Timezone = loc
				}
			}

			ctx := ContextWithIdentity(c.Request().Context(), identity)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// ContextIdentityProvider resolves identities from the request context. It is
// the application.IdentityProvider used when serving HTTP.
type ContextIdentityProvider struct{}

// Current implements application.IdentityProvider.
func (ContextIdentityProvider) Current(ctx context.Context) (application.Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return application.Identity{}, application.ErrUnauthorized
	}
	return identity, nil
}
