package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"coachledger/internal/middleware"
)

func actorContext(role string, actorID uint) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("tenantID", uint(1))
	c.Set("actorID", actorID)
	c.Set("actorRole", role)
	return c
}

func TestRequireSelfAccess(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		actorID  uint
		memberID uint
		wantCode int // 0 means allowed
	}{
		{"member reading own data", middleware.RoleMember, 10, 10, 0},
		{"member reading another member", middleware.RoleMember, 10, 11, http.StatusForbidden},
		{"admin reading any member", middleware.RoleAdmin, 1, 11, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := requireSelfAccess(actorContext(tt.role, tt.actorID), tt.memberID)
			if tt.wantCode == 0 {
				if err != nil {
					t.Errorf("requireSelfAccess() = %v, want nil", err)
				}
				return
			}
			var httpErr *echo.HTTPError
			if !errors.As(err, &httpErr) || httpErr.Code != tt.wantCode {
				t.Errorf("requireSelfAccess() = %v, want HTTP %d", err, tt.wantCode)
			}
		})
	}
}
