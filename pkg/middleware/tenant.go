package middleware

import (
	"net/http"

	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/labstack/echo/v4"
)

// Context keys set by the authentication and tenant middleware
const (
	KeyUserID         = "user_id"
	KeyUserEmail      = "user_email"
	KeyUserRole       = "user_role"
	KeyOrganizationID = "organization_id"
	KeyTenantID       = "tenant_id"
	KeySubscription   = "subscription"
)

// AttachOrganization copies the organization of the authenticated identity into
// the tenant slot used by tenant-scoped handlers. It is a no-op when the token
// carries no organization.
// Must be used AFTER the JWT middleware.
func AttachOrganization() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if orgID, ok := c.Get(KeyOrganizationID).(int); ok && orgID > 0 {
				c.Set(KeyTenantID, orgID)
			}
			return next(c)
		}
	}
}

// RequireOrganization rejects requests that have no tenant attached
func RequireOrganization() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := TenantID(c); !ok {
				return c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error:   "organization_required",
					Message: "Organization context is required.",
				})
			}
			return next(c)
		}
	}
}

// RequireAdmin rejects callers whose role is not ADMIN
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if role, _ := c.Get(KeyUserRole).(string); role != domain.RoleAdmin {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{
					Error:   "forbidden",
					Message: "Admin access required.",
				})
			}
			return next(c)
		}
	}
}

// TenantID returns the organization attached by AttachOrganization
func TenantID(c echo.Context) (int, bool) {
	id, ok := c.Get(KeyTenantID).(int)
	return id, ok && id > 0
}

// UserID returns the authenticated user id
func UserID(c echo.Context) (int, bool) {
	id, ok := c.Get(KeyUserID).(int)
	return id, ok
}
