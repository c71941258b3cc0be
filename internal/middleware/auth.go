package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Identity and session management live in an upstream collaborator; by the
// time a request reaches this engine the actor is already authenticated and
// the gateway forwards the verified identity as headers. The engine's job is
// to enforce tenant isolation and role checks on every call.

const (
	headerTenantID  = "X-Tenant-ID"
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// RequireActor extracts the authenticated actor and tenant from the request
// and stores them in context for downstream handlers. Requests without a
// complete identity are rejected before touching any data.
func RequireActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID, err := strconv.ParseUint(c.Request().Header.Get(headerTenantID), 10, 32)
			if err != nil || tenantID == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing tenant identity")
			}
			actorID, err := strconv.ParseUint(c.Request().Header.Get(headerActorID), 10, 32)
			if err != nil || actorID == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing actor identity")
			}
			role := c.Request().Header.Get(headerActorRole)
			if role != RoleAdmin && role != RoleMember {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing actor role")
			}

			c.Set("tenantID", uint(tenantID))
			c.Set("actorID", uint(actorID))
			c.Set("actorRole", role)

			return next(c)
		}
	}
}

// RequireAdmin rejects non-admin actors. Must run after RequireActor.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if role, _ := c.Get("actorRole").(string); role != RoleAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "admin role required")
			}
			return next(c)
		}
	}
}
