package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"coachledger/internal/middleware"
	"coachledger/internal/services"
)

var validate = validator.New()

// bindAndValidate decodes the JSON body into dest and runs struct validation.
// Bad input is rejected here, before any mutation.
func bindAndValidate(c echo.Context, dest interface{}) error {
	if err := c.Bind(dest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := validate.Struct(dest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// tenantID reads the tenant set by middleware.RequireActor
func tenantID(c echo.Context) uint {
	id, _ := c.Get("tenantID").(uint)
	return id
}

// actor reads the authenticated actor set by middleware.RequireActor
func actor(c echo.Context) services.Actor {
	id, _ := c.Get("actorID").(uint)
	role, _ := c.Get("actorRole").(string)
	return services.Actor{ID: id, Role: role}
}

// requireSelfAccess rejects member-role actors touching another member's data.
// Admin actors pass through.
func requireSelfAccess(c echo.Context, memberID uint) error {
	a := actor(c)
	if a.Role == middleware.RoleMember && a.ID != memberID {
		return echo.NewHTTPError(http.StatusForbidden, "members can only access their own data")
	}
	return nil
}
