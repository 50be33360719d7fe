package audit

import (
	"github.com/jordanlanch/assetdesk/pkg/middleware"
	"github.com/labstack/echo/v4"
)

// GetIPAddress extracts the client IP address from the request.
// Echo's RealIP honours X-Forwarded-For and X-Real-IP.
func GetIPAddress(c echo.Context) string {
	return c.RealIP()
}

// GetUserAgent extracts the user agent string
func GetUserAgent(c echo.Context) string {
	return c.Request().UserAgent()
}

// GetRequestContext extracts common context from Echo context
func GetRequestContext(c echo.Context) (ipAddress, userAgent string) {
	return GetIPAddress(c), GetUserAgent(c)
}

// EntryFromContext starts an entry for the authenticated caller of c
func EntryFromContext(c echo.Context, action string) LogEntry {
	entry := LogEntry{Action: action}
	entry.IPAddress, entry.UserAgent = GetRequestContext(c)

	if orgID, ok := middleware.TenantID(c); ok {
		entry.OrganizationID = orgID
	}
	if userID, ok := middleware.UserID(c); ok {
		entry.UserID = &userID
	}
	return entry
}
